package embedder

import (
	"context"

	"github.com/maxbolgarin/cliex"
	"github.com/maxbolgarin/errm"
)

const ollamaEmbedPath = "/api/embed"

type ollamaEmbedder struct {
	cli   *cliex.HTTP
	model string
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

func newOllama(cfg Config) (*ollamaEmbedder, error) {
	cli, err := cliex.NewWithConfig(cliex.Config{
		BaseURL:        cfg.BaseURL,
		UserAgent:      cfg.UserAgent,
		ProxyAddress:   cfg.ProxyURL,
		RequestTimeout: cfg.Timeout,
	})
	if err != nil {
		return nil, errm.Wrap(err, "failed to create HTTP client")
	}
	if cfg.APIKey != "" {
		cli.C().SetAuthToken(cfg.APIKey)
	}
	return &ollamaEmbedder{cli: cli, model: cfg.Model}, nil
}

func (e *ollamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp ollamaEmbedResponse
	_, err := e.cli.Post(ctx, ollamaEmbedPath, ollamaEmbedRequest{Model: e.model, Input: text}, &resp)
	if err != nil {
		return nil, errm.Wrap(err, "ollama embed")
	}
	if resp.Error != "" {
		return nil, errm.Errorf("ollama embed: %s", resp.Error)
	}
	if len(resp.Embeddings) == 0 {
		return nil, ErrEmptyVector
	}
	return resp.Embeddings[0], nil
}
