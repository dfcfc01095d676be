package embedder

import (
	"context"

	"github.com/maxbolgarin/ragreview/internal/agent/gemini"
	"google.golang.org/genai"
)

type geminiEmbedder struct {
	client *genai.Client
	model  string
}

func newGemini(ctx context.Context, cfg Config) (*geminiEmbedder, error) {
	client, err := gemini.NewClient(ctx, cfg.APIKey, cfg.ProxyURL)
	if err != nil {
		return nil, err
	}
	return &geminiEmbedder{
		client: client,
		model:  cfg.Model,
	}, nil
}

func (e *geminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Models.EmbedContent(ctx,
		e.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		&genai.EmbedContentConfig{},
	)
	if err != nil {
		return nil, gemini.HandleAPIError(err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, ErrEmptyVector
	}
	return resp.Embeddings[0].Values, nil
}
