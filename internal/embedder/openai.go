package embedder

import (
	"context"
	"net/http"
	"net/url"

	"github.com/maxbolgarin/errm"

	openai "github.com/sashabaranov/go-openai"
)

type openAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func newOpenAI(cfg Config) (*openAIEmbedder, error) {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, errm.Wrap(err, "failed to parse proxy URL")
		}
		clientCfg.HTTPClient = &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}
	}

	return &openAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  openai.EmbeddingModel(cfg.Model),
	}, nil
}

func (e *openAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, errm.Wrap(err, "create embeddings")
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmptyVector
	}
	return resp.Data[0].Embedding, nil
}
