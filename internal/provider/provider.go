package provider

import (
	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/model/interfaces"
	"github.com/maxbolgarin/ragreview/internal/provider/bitbucket"
	"github.com/maxbolgarin/ragreview/internal/provider/github"
	"github.com/maxbolgarin/ragreview/internal/provider/gitlab"
)

// NewProvider creates the VCS client selected by cfg.Type. The returned
// provider also serves as the file source of the retrieval engine.
func NewProvider(cfg Config) (interfaces.CodeProvider, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, erro.Wrap(err, "validate config")
	}

	providerCfg := model.ProviderConfig{
		BaseURL:       cfg.BaseURL,
		Token:         cfg.Token,
		WebhookSecret: cfg.WebhookSecret,
		BotUsername:   cfg.BotUsername,
	}

	var (
		out interfaces.CodeProvider
		err error
	)
	switch cfg.Type {
	case GitLab:
		out, err = gitlab.New(providerCfg)
	case GitHub:
		out, err = github.New(providerCfg)
	case Bitbucket:
		out, err = bitbucket.New(providerCfg)
	}
	if err != nil {
		return nil, erro.Wrap(err, "failed to create provider", "type", cfg.Type)
	}

	return out, nil
}
