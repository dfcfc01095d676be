package rag

import "github.com/maxbolgarin/errm"

// Errors are wrapped with errm on the way up, match them with errm.Is.
var (
	// ErrIndexInProgress is returned when the repository is already being indexed
	ErrIndexInProgress = errm.New("indexing already in progress")
	// ErrDimensionMismatch is returned when a vector does not match the index dimension
	ErrDimensionMismatch = errm.New("embedding dimension mismatch")
	// ErrEmptyEmbedding is returned when the embedder produced no values
	ErrEmptyEmbedding = errm.New("empty embedding")
	// ErrNothingIndexed is returned when every chunk of a run failed to embed
	ErrNothingIndexed = errm.New("no chunks were embedded")
)
