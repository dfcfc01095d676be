package rag

import (
	"context"
	"unicode/utf8"

	"github.com/maxbolgarin/abstract"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/model/interfaces"
)

// Indexer builds repository indexes: list, filter, fetch, chunk, embed, swap
type Indexer struct {
	source   interfaces.FileSource
	embedder interfaces.Embedder
	store    Store
	chunker  *Chunker
	filter   *FileFilter
	cfg      Config
	log      logze.Logger
}

func NewIndexer(source interfaces.FileSource, embedder interfaces.Embedder, store Store, cfg Config) *Indexer {
	return &Indexer{
		source:   source,
		embedder: embedder,
		store:    store,
		chunker:  NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		filter:   NewFileFilter(cfg.ExcludedPaths...),
		cfg:      cfg,
		log:      logze.With("component", "indexer"),
	}
}

// IndexRepository replaces the index of repositoryID with a fresh snapshot of
// branch and returns the number of embedded chunks. Failures of single files
// and chunks are logged and skipped. Chunks whose embedding size differs from
// Config.Dimension, or from the most common size when it is unset, are dropped.
// A listing failure, cancellation or a run where no chunk could be embedded
// fails and keeps the previous index.
func (x *Indexer) IndexRepository(ctx context.Context, project, repositoryID, branch string) (int, error) {
	projectID := model.ProjectPath(project, repositoryID)
	log := x.log.WithFields("repository_id", repositoryID, "project_id", projectID, "branch", branch)
	timer := abstract.StartTimer()

	files, err := x.listFiles(ctx, projectID, branch)
	if err != nil {
		return 0, errm.Wrap(err, "failed to list repository files")
	}
	if len(files) == 0 {
		log.Warn("repository has no files, index is left as is")
		return 0, nil
	}

	candidates := x.filter.Apply(files)
	if x.cfg.MaxFilesPerRun != UnlimitedFiles && len(candidates) > x.cfg.MaxFilesPerRun {
		log.Warn("file limit reached, repository is indexed partially",
			"limit", x.cfg.MaxFilesPerRun,
			"candidates", len(candidates),
			"skipped", len(candidates)-x.cfg.MaxFilesPerRun,
		)
		candidates = candidates[:x.cfg.MaxFilesPerRun]
	}
	log.InfoIf(x.cfg.Verbose, "indexing files", "listed", len(files), "candidates", len(candidates))

	var (
		chunks   []model.CodeChunk
		indexed  = make(map[string]struct{})
		skipped  int
		failures int
		errs     = errm.NewList()
	)

	for _, filePath := range candidates {
		if err := ctx.Err(); err != nil {
			return 0, errm.Wrap(err, "indexing interrupted")
		}

		content, err := x.fetchFile(ctx, projectID, filePath, branch)
		if err != nil {
			errs.Wrap(err, "failed to fetch file", "file", filePath)
			failures++
			continue
		}
		if utf8.RuneCountInString(content) < x.cfg.MinFileSize {
			log.DebugIf(x.cfg.Verbose, "skipping small file", "file", filePath, "size", len(content))
			skipped++
			continue
		}

		var fileChunks int
		for _, chunk := range x.chunker.Chunk(content, filePath) {
			vector, err := x.embed(ctx, chunk.Content)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return 0, errm.Wrap(ctxErr, "indexing interrupted")
				}
				errs.Wrap(err, "failed to embed chunk", "location", chunk.Location)
				failures++
				continue
			}
			chunk.Embedding = vector
			chunks = append(chunks, chunk)
			fileChunks++
		}
		log.DebugIf(x.cfg.Verbose, "file embedded", "file", filePath, "chunks", fileChunks)
	}

	dimension := lang.Check(x.cfg.Dimension, commonDimension(chunks))
	kept := chunks[:0]
	for _, chunk := range chunks {
		if len(chunk.Embedding) != dimension {
			errs.Wrap(ErrDimensionMismatch, "unexpected embedding size",
				"location", chunk.Location, "expected", dimension, "got", len(chunk.Embedding))
			failures++
			continue
		}
		kept = append(kept, chunk)
		indexed[chunk.FilePath] = struct{}{}
	}
	chunks = kept

	// Nothing embedded at all means the embedder is down, not that the repository is empty
	if len(chunks) == 0 && failures > 0 {
		log.Warn("no chunks were embedded, index is left as is", "failures", failures, "error", errs.Err())
		return 0, errm.Wrap(ErrNothingIndexed, "indexing failed", "failures", failures)
	}

	idx, err := NewRepositoryIndex(repositoryID, branch, chunks)
	if err != nil {
		return 0, errm.Wrap(err, "failed to build index")
	}
	if err := x.store.Put(ctx, idx); err != nil {
		return 0, errm.Wrap(err, "failed to save index")
	}

	if failures > 0 {
		log.Warn("some files were not fully indexed", "failures", failures, "error", errs.Err())
	}

	log.Info("repository indexed",
		"chunks", len(chunks),
		"files", len(indexed),
		"small_files", skipped,
		"dimension", dimension,
		"elapsed_time", timer.ElapsedTime().String(),
	)

	return len(chunks), nil
}

func (x *Indexer) listFiles(ctx context.Context, projectID, branch string) ([]string, error) {
	ctx, cancel := withTimeout(ctx, x.cfg.FetchTimeout)
	defer cancel()
	return x.source.ListFiles(ctx, projectID, branch)
}

func (x *Indexer) fetchFile(ctx context.Context, projectID, filePath, branch string) (string, error) {
	ctx, cancel := withTimeout(ctx, x.cfg.FetchTimeout)
	defer cancel()
	return x.source.GetFileContent(ctx, projectID, filePath, branch)
}

func (x *Indexer) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := withTimeout(ctx, x.cfg.EmbedTimeout)
	defer cancel()

	vector, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return vector, nil
}

// commonDimension returns the most frequent embedding size, the first seen one on a tie
func commonDimension(chunks []model.CodeChunk) int {
	counts := make(map[int]int)
	var best int
	for _, c := range chunks {
		dim := len(c.Embedding)
		counts[dim]++
		if counts[dim] > counts[best] {
			best = dim
		}
	}
	return best
}
