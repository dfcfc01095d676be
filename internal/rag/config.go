package rag

import (
	"time"

	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/lang"
)

const (
	defaultChunkSize    = 100
	defaultChunkOverlap = 10

	defaultMaxFilesPerRun = 50
	defaultMinFileSize    = 50
	defaultFetchTimeout   = 30 * time.Second
	defaultEmbedTimeout   = 30 * time.Second

	defaultSimilarityThreshold = 0.7
	defaultMaxResults          = 3
	defaultMaxSnippetLength    = 500

	defaultMaxQueryLines      = 10
	defaultMinQueryLineLength = 6
	defaultMaxQueryLength     = 1000

	defaultMaxDependencies        = 5
	defaultMaxDependencyFetches   = 3
	defaultDependencySummaryLines = 20

	defaultWorkers = 4

	// UnlimitedFiles disables the per-run file cap
	UnlimitedFiles = -1
)

// Config holds the tunables of the retrieval engine.
// Zero values are replaced with defaults.
type Config struct {
	ChunkSize    int `yaml:"chunk_size" env:"RAG_CHUNK_SIZE"`
	ChunkOverlap int `yaml:"chunk_overlap" env:"RAG_CHUNK_OVERLAP"`

	// MaxFilesPerRun caps how many files one indexing run embeds, -1 means no cap
	MaxFilesPerRun int           `yaml:"max_files_per_run" env:"RAG_MAX_FILES_PER_RUN"`
	MinFileSize    int           `yaml:"min_file_size" env:"RAG_MIN_FILE_SIZE"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout" env:"RAG_FETCH_TIMEOUT"`
	EmbedTimeout   time.Duration `yaml:"embed_timeout" env:"RAG_EMBED_TIMEOUT"`
	ExcludedPaths  []string      `yaml:"excluded_paths" env:"RAG_EXCLUDED_PATHS"`
	// Dimension is the expected embedding size, zero keeps the most common size of a run
	Dimension int `yaml:"dimension" env:"RAG_DIMENSION"`

	SimilarityThreshold float64 `yaml:"similarity_threshold" env:"RAG_SIMILARITY_THRESHOLD"`
	MaxResults          int     `yaml:"max_results" env:"RAG_MAX_RESULTS"`
	MaxSnippetLength    int     `yaml:"max_snippet_length" env:"RAG_MAX_SNIPPET_LENGTH"`

	MaxQueryLines      int `yaml:"max_query_lines" env:"RAG_MAX_QUERY_LINES"`
	MinQueryLineLength int `yaml:"min_query_line_length" env:"RAG_MIN_QUERY_LINE_LENGTH"`
	MaxQueryLength     int `yaml:"max_query_length" env:"RAG_MAX_QUERY_LENGTH"`

	MaxDependencies        int `yaml:"max_dependencies" env:"RAG_MAX_DEPENDENCIES"`
	MaxDependencyFetches   int `yaml:"max_dependency_fetches" env:"RAG_MAX_DEPENDENCY_FETCHES"`
	DependencySummaryLines int `yaml:"dependency_summary_lines" env:"RAG_DEPENDENCY_SUMMARY_LINES"`

	// Workers is the size of the background indexing pool
	Workers int  `yaml:"workers" env:"RAG_WORKERS"`
	Verbose bool `yaml:"verbose" env:"RAG_VERBOSE"`
}

func (c *Config) PrepareAndValidate() error {
	c.ChunkSize = lang.Check(c.ChunkSize, defaultChunkSize)
	c.ChunkOverlap = lang.Check(c.ChunkOverlap, defaultChunkOverlap)
	if c.ChunkSize < 1 {
		return erro.New("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return erro.New("chunk overlap must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap)
	}

	c.MaxFilesPerRun = lang.Check(c.MaxFilesPerRun, defaultMaxFilesPerRun)
	if c.MaxFilesPerRun < UnlimitedFiles {
		return erro.New("max files per run must be positive or -1, got %d", c.MaxFilesPerRun)
	}
	c.MinFileSize = lang.Check(c.MinFileSize, defaultMinFileSize)
	c.FetchTimeout = lang.Check(c.FetchTimeout, defaultFetchTimeout)
	c.EmbedTimeout = lang.Check(c.EmbedTimeout, defaultEmbedTimeout)
	if c.Dimension < 0 {
		return erro.New("dimension must not be negative, got %d", c.Dimension)
	}

	c.SimilarityThreshold = lang.Check(c.SimilarityThreshold, defaultSimilarityThreshold)
	if c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1 {
		return erro.New("similarity threshold must be in [-1, 1], got %f", c.SimilarityThreshold)
	}
	c.MaxResults = lang.Check(c.MaxResults, defaultMaxResults)
	c.MaxSnippetLength = lang.Check(c.MaxSnippetLength, defaultMaxSnippetLength)

	c.MaxQueryLines = lang.Check(c.MaxQueryLines, defaultMaxQueryLines)
	c.MinQueryLineLength = lang.Check(c.MinQueryLineLength, defaultMinQueryLineLength)
	c.MaxQueryLength = lang.Check(c.MaxQueryLength, defaultMaxQueryLength)

	c.MaxDependencies = lang.Check(c.MaxDependencies, defaultMaxDependencies)
	c.MaxDependencyFetches = lang.Check(c.MaxDependencyFetches, defaultMaxDependencyFetches)
	c.DependencySummaryLines = lang.Check(c.DependencySummaryLines, defaultDependencySummaryLines)

	c.Workers = lang.Check(c.Workers, defaultWorkers)

	return nil
}
