package model

import (
	"strconv"
	"strings"
)

// CodeChunk is a contiguous line range of one repository file
type CodeChunk struct {
	FilePath   string    `json:"file_path"`
	StartLine  int       `json:"start_line"` // 1-based, inclusive
	EndLine    int       `json:"end_line"`   // 1-based, inclusive
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
	Location   string    `json:"location"`
}

// LineCount returns the number of lines covered by the chunk
func (c CodeChunk) LineCount() int {
	if c.EndLine < c.StartLine {
		return 0
	}
	return c.EndLine - c.StartLine + 1
}

// Contains reports whether the chunk covers the whole [start, end] range
func (c CodeChunk) Contains(start, end int) bool {
	return c.StartLine <= start && end <= c.EndLine
}

// ChunkLocation formats a human readable label like "src/app.py:L1-100"
func ChunkLocation(filePath string, startLine, endLine int) string {
	var b strings.Builder
	b.Grow(len(filePath) + 16)
	b.WriteString(filePath)
	b.WriteString(":L")
	b.WriteString(strconv.Itoa(startLine))
	b.WriteString("-")
	b.WriteString(strconv.Itoa(endLine))
	return b.String()
}

// RetrievalResult is one scored chunk match
type RetrievalResult struct {
	Chunk      CodeChunk `json:"chunk"`
	Similarity float64   `json:"similarity"`
}

// DependencyReference is a guessed repository path derived from an import
// statement. The path may not exist.
type DependencyReference struct {
	Path     string `json:"path"`
	Import   string `json:"import"`
	Language string `json:"language"`
}
