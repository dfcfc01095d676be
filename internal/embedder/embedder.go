package embedder

import (
	"context"
	"time"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/ragreview/internal/model/interfaces"
)

// Errors are wrapped with errm, match them with errm.Is.
var (
	// ErrEmptyVector is returned when a backend produced no values
	ErrEmptyVector = errm.New("embedding backend returned an empty vector")
	// ErrBadDimension is returned when a vector size differs from the configured dimension
	ErrBadDimension = errm.New("unexpected embedding dimension")
	// ErrEmptyText is returned for blank input
	ErrEmptyText = errm.New("nothing to embed")
)

// New creates the configured embedding backend wrapped with limits and checks
func New(ctx context.Context, cfg Config) (interfaces.Embedder, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, errm.Wrap(err, "validate config")
	}

	var (
		backend interfaces.Embedder
		err     error
	)
	switch cfg.Type {
	case OpenAI:
		backend, err = newOpenAI(cfg)
	case Gemini:
		backend, err = newGemini(ctx, cfg)
	case Ollama:
		backend, err = newOllama(cfg)
	default:
		return nil, errm.Errorf("unsupported embedder type: %s", cfg.Type)
	}
	if err != nil {
		return nil, errm.Wrap(err, "failed to create embedder", "type", cfg.Type)
	}

	logze.Info("embedder created", "type", cfg.Type, "model", cfg.Model, "dimension", cfg.Dimension)

	return NewGuarded(backend, cfg.Timeout, cfg.Dimension), nil
}

// Guarded applies a per-call timeout and validates vectors of another embedder
type Guarded struct {
	base      interfaces.Embedder
	timeout   time.Duration
	dimension int
}

// NewGuarded wraps base. A zero timeout or dimension disables that check.
func NewGuarded(base interfaces.Embedder, timeout time.Duration, dimension int) *Guarded {
	return &Guarded{
		base:      base,
		timeout:   timeout,
		dimension: dimension,
	}
}

func (g *Guarded) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	vector, err := g.base.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, ErrEmptyVector
	}
	if g.dimension > 0 && len(vector) != g.dimension {
		return nil, errm.Wrap(ErrBadDimension, "vector size", "expected", g.dimension, "got", len(vector))
	}

	return vector, nil
}
