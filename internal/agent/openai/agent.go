package openai

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
	defaultModel    = "gpt-4o-mini"
	defaultURL      = "https://api.openai.com/v1"
	completionsPath = "/chat/completions"
)

var _ interfaces.AgentAPI = (*Agent)(nil)

// Agent calls an OpenAI compatible chat completions API
type Agent struct {
	cli *cliex.HTTP
	cfg model.ModelConfig
}

func New(ctx context.Context, cli *cliex.HTTP, cfg model.ModelConfig) (*Agent, error) {
	if cfg.APIKey == "" {
		return nil, errm.New("OpenAI API key is required")
	}
	cfg.Model = lang.Check(cfg.Model, defaultModel)
	cfg.URL = completionsURL(lang.Check(cfg.URL, defaultURL))

	cli.C().SetAuthToken(cfg.APIKey)

	agent := &Agent{
		cli: cli,
		cfg: cfg,
	}

	// may take tokens
	if cfg.IsTest {
		if err := agent.testConnection(ctx); err != nil {
			return nil, errm.Wrap(err, "failed to connect to OpenAI API")
		}
	}

	return agent, nil
}

func (a *Agent) CallAPI(ctx context.Context, req model.APIRequest) (model.APIResponse, error) {
	var respBody chatResponse
	_, err := a.cli.Post(ctx, lang.Check(req.URL, a.cfg.URL), newChatRequest(a.cfg.Model, req), &respBody)
	if err != nil {
		return model.APIResponse{}, errm.Wrap(err, "failed to make API request")
	}
	return respBody.toAPIResponse()
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

// completionsURL accepts both an API base and a full completions endpoint
func completionsURL(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, completionsPath) {
		return base
	}
	return base + completionsPath
}
