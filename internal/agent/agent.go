package agent

import (
	"context"
	"strings"

	"github.com/maxbolgarin/cliex"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/ragreview/internal/agent/claude"
	"github.com/maxbolgarin/ragreview/internal/agent/gemini"
	"github.com/maxbolgarin/ragreview/internal/agent/openai"
	"github.com/maxbolgarin/ragreview/internal/agent/prompts"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/model/interfaces"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoJSON is returned wrapped when a model response has no JSON object,
// match it with errm.Is
var ErrNoJSON = errm.New("no valid JSON found in response")

type Agent struct {
	cfg Config
	log logze.Logger
	pb  *prompts.Builder
	api interfaces.AgentAPI
}

func New(ctx context.Context, cfg Config) (*Agent, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, errm.Wrap(err, "validate config")
	}
	cli, err := cliex.NewWithConfig(cliex.Config{
		BaseURL:        cfg.BaseURL,
		UserAgent:      cfg.UserAgent,
		ProxyAddress:   cfg.ProxyURL,
		RequestTimeout: cfg.Timeout,
	})
	if err != nil {
		return nil, errm.Wrap(err, "failed to create HTTP client")
	}

	modelCfg := model.ModelConfig{
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		URL:      cfg.BaseURL,
		ProxyURL: cfg.ProxyURL,
		IsTest:   cfg.IsTest,
	}

	var api interfaces.AgentAPI
	switch cfg.Type {
	case Gemini:
		api, err = gemini.New(ctx, modelCfg)
	case OpenAI:
		api, err = openai.New(ctx, cli, modelCfg)
	case Claude:
		api, err = claude.New(ctx, cli, modelCfg)
	default:
		return nil, errm.Errorf("unsupported agent type: %s", cfg.Type)
	}
	if err != nil {
		return nil, errm.Wrap(err, "failed to create agent")
	}

	return NewWithAPI(cfg, api), nil
}

// NewWithAPI creates an agent over an already constructed API backend
func NewWithAPI(cfg Config, api interfaces.AgentAPI) *Agent {
	return &Agent{
		cfg: cfg,
		log: logze.With("component", "agent", "type", cfg.Type),
		pb:  prompts.NewBuilder(cfg.Language, nil),
		api: api,
	}
}

// Headers returns comment labels in the configured response language
func (a *Agent) Headers() prompts.CommentHeaders {
	return a.pb.Language().Headers
}

// ReviewCode reviews one changed file. reviewContext is the repository context
// for the file and may be empty.
func (a *Agent) ReviewCode(ctx context.Context, file *model.FileDiff, reviewContext string) (*model.FileReviewResult, error) {
	if file == nil {
		return nil, errm.New("nil file")
	}

	prompt := a.pb.BuildReviewPrompt(file, reviewContext)
	response, err := a.apiCall(ctx, prompt, true)
	if err != nil {
		return nil, errm.Wrap(err, "failed to call API for review", "file", file.Path())
	}

	result, err := unmarshal[model.FileReviewResult](response)
	if err != nil {
		a.log.Debug("unparsable review response", "file", file.Path(), "response", response)
		return nil, errm.Wrap(err, "failed to parse review response as JSON", "file", file.Path())
	}

	result.FilePath = file.Path()
	result.Comments = validComments(result.Comments)
	result.HasIssues = len(result.Comments) > 0

	return &result, nil
}

func (a *Agent) apiCall(ctx context.Context, prompt model.Prompt, isJSON bool) (string, error) {
	response, err := a.api.CallAPI(ctx, model.APIRequest{
		Prompt:       prompt.UserPrompt,
		SystemPrompt: prompt.SystemPrompt,
		MaxTokens:    a.cfg.MaxTokens,
		Temperature:  a.cfg.Temperature,
		ResponseType: lang.If(isJSON, model.ResponseTypeJSON, "text/plain"),
	})
	if err != nil {
		return "", errm.Wrap(err, "failed to call API")
	}

	if response.Content == "" {
		return "", errm.New("empty response from API")
	}

	a.log.Debug("API call finished",
		"prompt_tokens", response.PromptTokens,
		"completion_tokens", response.CompletionTokens,
	)

	return response.Content, nil
}

// validComments drops comments without a usable line
func validComments(comments []*model.ReviewAIComment) []*model.ReviewAIComment {
	out := comments[:0]
	for _, c := range comments {
		if c == nil || c.Line <= 0 {
			continue
		}
		if c.EndLine < c.Line {
			c.EndLine = 0
		}
		out = append(out, c)
	}
	return out
}

func unmarshal[T any](response string) (T, error) {
	var result T

	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimPrefix(response, "json")
	response = strings.TrimSuffix(response, "```")

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return result, ErrNoJSON
	}

	if err := json.UnmarshalFromString(response[start:end+1], &result); err != nil {
		return result, errm.Wrap(err, "failed to parse JSON response")
	}

	return result, nil
}
