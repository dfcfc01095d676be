package claude

import (
	"context"
	"strings"

	"github.com/maxbolgarin/cliex"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/model/interfaces"
)

const (
	defaultModel     = "claude-3-5-haiku-20241022"
	defaultBaseURL   = "https://api.anthropic.com"
	messagesPath     = "/v1/messages"
	anthropicVersion = "2023-06-01"
)

var _ interfaces.AgentAPI = (*Agent)(nil)

// Agent calls the Anthropic messages API
type Agent struct {
	cfg model.ModelConfig
	cli *cliex.HTTP
}

func New(ctx context.Context, cli *cliex.HTTP, cfg model.ModelConfig) (*Agent, error) {
	if cfg.APIKey == "" {
		return nil, errm.New("Claude API key is required")
	}
	cfg.Model = lang.Check(cfg.Model, defaultModel)
	cfg.URL = strings.TrimRight(lang.Check(cfg.URL, defaultBaseURL), "/")
	if !strings.HasSuffix(cfg.URL, messagesPath) {
		cfg.URL += messagesPath
	}

	cli.C().SetHeader("x-api-key", cfg.APIKey)
	cli.C().SetHeader("anthropic-version", anthropicVersion)

	agent := &Agent{
		cfg: cfg,
		cli: cli,
	}

	if cfg.IsTest {
		if err := agent.testConnection(ctx); err != nil {
			return nil, errm.Wrap(err, "failed to connect to Claude API")
		}
	}

	return agent, nil
}

func (a *Agent) CallAPI(ctx context.Context, req model.APIRequest) (model.APIResponse, error) {
	var respBody messagesResponse
	_, err := a.cli.Post(ctx, lang.Check(req.URL, a.cfg.URL), newMessagesRequest(a.cfg.Model, req), &respBody)
	if err != nil {
		return model.APIResponse{}, errm.Wrap(err, "failed to make API request")
	}
	return respBody.toAPIResponse(req.IsJSON())
}

func (a *Agent) testConnection(ctx context.Context) error {
	_, err := a.CallAPI(ctx, model.APIRequest{
		Prompt:      "Respond with 'OK' if you can understand this message.",
		MaxTokens:   10,
		Temperature: 0.5,
	})
	if err != nil {
		return errm.Wrap(err, "connection test failed")
	}
	return nil
}
