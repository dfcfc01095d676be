package rag

import (
	"time"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/ragreview/internal/model"
)

// RepositoryIndex is an immutable snapshot of all embedded chunks of one repository.
// It is replaced wholesale on every indexing run and never mutated after creation.
type RepositoryIndex struct {
	RepositoryID string
	Branch       string
	Chunks       []model.CodeChunk
	Dimension    int
	Files        int
	BuiltAt      time.Time
}

// NewRepositoryIndex builds a snapshot and checks that every chunk has an
// embedding of the same dimension
func NewRepositoryIndex(repositoryID, branch string, chunks []model.CodeChunk) (*RepositoryIndex, error) {
	idx := &RepositoryIndex{
		RepositoryID: repositoryID,
		Branch:       branch,
		Chunks:       chunks,
		BuiltAt:      time.Now(),
	}

	files := make(map[string]struct{})
	for i, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return nil, errm.Wrap(ErrEmptyEmbedding, "chunk without embedding", "location", chunk.Location)
		}
		if i == 0 {
			idx.Dimension = len(chunk.Embedding)
		}
		if len(chunk.Embedding) != idx.Dimension {
			return nil, errm.Wrap(ErrDimensionMismatch, "inconsistent chunk dimension",
				"location", chunk.Location, "expected", idx.Dimension, "got", len(chunk.Embedding))
		}
		files[chunk.FilePath] = struct{}{}
	}
	idx.Files = len(files)

	return idx, nil
}

// Len returns the number of chunks, zero for a nil index
func (i *RepositoryIndex) Len() int {
	if i == nil {
		return 0
	}
	return len(i.Chunks)
}

// IsEmpty reports whether the index has nothing to search
func (i *RepositoryIndex) IsEmpty() bool {
	return i.Len() == 0
}
