package rag

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/model/interfaces"
)

// Retriever scores index chunks against a query embedding.
// It performs a linear scan over the snapshot it reads from the store.
type Retriever struct {
	store    Store
	embedder interfaces.Embedder
	cfg      Config
	log      logze.Logger
}

func NewRetriever(store Store, embedder interfaces.Embedder, cfg Config) *Retriever {
	return &Retriever{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		log:      logze.With("component", "retriever"),
	}
}

// Retrieve returns chunks similar to the diff of file, best match first.
// A repository without an index and a query without content yield no results.
func (r *Retriever) Retrieve(ctx context.Context, file *model.FileDiff, repositoryID string, maxResults int) ([]model.RetrievalResult, error) {
	query := BuildQuery(file, r.cfg)
	if query == "" {
		return nil, nil
	}
	return r.Search(ctx, repositoryID, query, maxResults)
}

// Search returns chunks similar to a free-form text, best match first
func (r *Retriever) Search(ctx context.Context, repositoryID, query string, maxResults int) ([]model.RetrievalResult, error) {
	if maxResults <= 0 || query == "" {
		return nil, nil
	}

	idx, err := r.store.Get(ctx, repositoryID)
	if err != nil {
		return nil, errm.Wrap(err, "failed to get index", "repository_id", repositoryID)
	}
	if idx.IsEmpty() {
		r.log.DebugIf(r.cfg.Verbose, "repository is not indexed", "repository_id", repositoryID)
		return nil, nil
	}

	vector, err := r.embed(ctx, query)
	if err != nil {
		return nil, errm.Wrap(err, "failed to embed query")
	}
	if len(vector) != idx.Dimension {
		return nil, errm.Wrap(ErrDimensionMismatch, "query vector does not match index",
			"repository_id", repositoryID, "expected", idx.Dimension, "got", len(vector))
	}

	results := rank(idx.Chunks, vector, r.cfg.SimilarityThreshold, maxResults)
	if len(results) == 0 {
		r.log.DebugIf(r.cfg.Verbose, "no chunk above threshold", "repository_id", repositoryID, "threshold", r.cfg.SimilarityThreshold)
	}

	return results, nil
}

func (r *Retriever) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.EmbedTimeout)
	defer cancel()

	vector, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return vector, nil
}

// rank keeps chunks scoring strictly above threshold, sorted by descending
// similarity with ties kept in index order, and caps the result
func rank(chunks []model.CodeChunk, query []float32, threshold float64, maxResults int) []model.RetrievalResult {
	var results []model.RetrievalResult
	for _, chunk := range chunks {
		sim := CosineSimilarity(query, chunk.Embedding)
		if sim > threshold {
			results = append(results, model.RetrievalResult{Chunk: chunk, Similarity: sim})
		}
	}

	slices.SortStableFunc(results, func(a, b model.RetrievalResult) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
