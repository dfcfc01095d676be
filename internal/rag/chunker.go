package rag

import (
	"strings"

	"github.com/maxbolgarin/ragreview/internal/model"
)

// Chunker splits file content into overlapping windows of lines
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given window size and overlap in lines.
// Invalid values fall back to the defaults.
func NewChunker(size, overlap int) *Chunker {
	if size < 1 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = min(defaultChunkOverlap, size-1)
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits content into windows. Line numbers are 1-based and inclusive.
// A window that reaches the last line ends the sequence, so content shorter
// than one window yields exactly one chunk.
func (c *Chunker) Chunk(content, filePath string) []model.CodeChunk {
	lines := splitLines(content)
	if len(lines) == 0 {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]model.CodeChunk, 0, len(lines)/step+1)

	for start := 0; start < len(lines); start += step {
		end := min(start+c.size, len(lines))

		chunks = append(chunks, model.CodeChunk{
			FilePath:   filePath,
			StartLine:  start + 1,
			EndLine:    end,
			ChunkIndex: len(chunks),
			Content:    strings.Join(lines[start:end], "\n"),
			Location:   model.ChunkLocation(filePath, start+1, end),
		})

		if end == len(lines) {
			break
		}
	}

	return chunks
}

// splitLines splits on "\n" without producing a phantom line for a trailing newline
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
