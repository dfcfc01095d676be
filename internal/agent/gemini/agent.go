package gemini

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/model/interfaces"
	"google.golang.org/genai"
)

const (
	defaultModel = "gemini-2.5-flash"
)

var (
	ErrBadRegion     = errm.New("region not supported by Gemini API")
	ErrLimitExceeded = errm.New("rate limit exceeded")
	ErrUnauthorized  = errm.New("authentication failed")
	ErrBadRequest    = errm.New("bad request to Gemini API")
	ErrOverloaded    = errm.New("Gemini API service unavailable")
	ErrServer        = errm.New("Gemini API server error")
)

var _ interfaces.AgentAPI = (*Agent)(nil)

// Agent calls Google Gemini through the genai SDK
type Agent struct {
	client *genai.Client
	config model.ModelConfig
}

func New(ctx context.Context, cfg model.ModelConfig) (*Agent, error) {
	if cfg.APIKey == "" {
		return nil, erro.New("Gemini API key is required")
	}
	cfg.Model = lang.Check(cfg.Model, defaultModel)

	client, err := NewClient(ctx, cfg.APIKey, cfg.ProxyURL)
	if err != nil {
		return nil, err
	}

	agent := &Agent{
		client: client,
		config: cfg,
	}

	if cfg.IsTest {
		if err := agent.testConnection(ctx); err != nil {
			return nil, erro.Wrap(err, "failed to connect to Gemini API")
		}
	}

	return agent, nil
}

// NewClient creates a genai client for the Gemini API, optionally through a proxy.
// The embedder uses it as well.
func NewClient(ctx context.Context, apiKey, proxyURL string) (*genai.Client, error) {
	transport := &http.Transport{}
	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, erro.Wrap(err, "failed to parse proxy URL")
		}
		transport.Proxy = http.ProxyURL(parsed)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPClient: &http.Client{
			Transport: transport,
		},
	})
	if err != nil {
		return nil, erro.Wrap(err, "failed to create Gemini client")
	}
	return client, nil
}

func (a *Agent) CallAPI(ctx context.Context, req model.APIRequest) (model.APIResponse, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: lang.Check(req.ResponseType, "text/plain"),
		Temperature:      &req.Temperature,
		MaxOutputTokens:  int32(req.MaxTokens),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}

	result, err := a.client.Models.GenerateContent(ctx,
		a.config.Model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: req.Prompt}}}},
		config,
	)
	if err != nil {
		return model.APIResponse{}, HandleAPIError(err)
	}

	if len(result.Candidates) == 0 {
		return model.APIResponse{}, errm.Wrap(ErrBadRequest, "no candidates")
	}
	candidate := result.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return model.APIResponse{}, errm.Wrap(ErrBadRequest, "invalid response structure")
	}

	var content strings.Builder
	for _, part := range candidate.Content.Parts {
		content.WriteString(part.Text)
	}

	out := model.APIResponse{
		CreateTime: result.CreateTime,
		Content:    content.String(),
	}
	if result.UsageMetadata != nil {
		out.PromptTokens = int(result.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(result.UsageMetadata.CandidatesTokenCount)
		out.TotalTokens = int(result.UsageMetadata.TotalTokenCount)
	}

	return out, nil
}

// HandleAPIError maps Gemini API failures to package errors
func HandleAPIError(err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "location is not supported"):
		return errm.Wrap(ErrBadRegion, errStr)
	case strings.Contains(errStr, "429"):
		return errm.Wrap(ErrLimitExceeded, errStr)
	case strings.Contains(errStr, "401") || strings.Contains(errStr, "403"):
		return errm.Wrap(ErrUnauthorized, errStr)
	case strings.Contains(errStr, "400"):
		return errm.Wrap(ErrBadRequest, errStr)
	case strings.Contains(errStr, "503"):
		return errm.Wrap(ErrOverloaded, errStr)
	case strings.Contains(errStr, "500") || strings.Contains(errStr, "502"):
		return errm.Wrap(ErrServer, errStr)
	default:
		return erro.Wrap(err, "Gemini API error")
	}
}

func (a *Agent) testConnection(ctx context.Context) error {
	_, err := a.CallAPI(ctx, model.APIRequest{
		Prompt:      "Respond with 'OK' if you can understand this message.",
		MaxTokens:   10,
		Temperature: 0.5,
	})
	return err
}
