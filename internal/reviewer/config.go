package reviewer

import (
	"time"

	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/lang"
)

const (
	defaultMaxFilesPerMR   = 50
	defaultMaxFileSize     = 100_000
	defaultPoolSize        = 10
	defaultConcurrentFiles = 4
	defaultFileTimeout     = 3 * time.Minute
)

type Config struct {
	FileFilter      FileFilter    `yaml:"file_filter"`
	MaxFilesPerMR   int           `yaml:"max_files_per_mr" env:"REVIEW_MAX_FILES_PER_MR"`
	PoolSize        int           `yaml:"pool_size" env:"REVIEW_POOL_SIZE"`
	ConcurrentFiles int           `yaml:"concurrent_files" env:"REVIEW_CONCURRENT_FILES"`
	FileTimeout     time.Duration `yaml:"file_timeout" env:"REVIEW_FILE_TIMEOUT"`

	// NoIndexOnDemand disables background indexing of repositories that have no index yet
	NoIndexOnDemand bool `yaml:"no_index_on_demand" env:"REVIEW_NO_INDEX_ON_DEMAND"`
	Verbose         bool `yaml:"verbose" env:"REVIEW_VERBOSE"`
}

// FileFilter represents criteria for filtering files to review
type FileFilter struct {
	MaxFileSize       int      `yaml:"max_file_size" env:"REVIEW_FILE_FILTER_MAX_FILE_SIZE"`
	AllowedExtensions []string `yaml:"allowed_extensions" env:"REVIEW_FILE_FILTER_ALLOWED_EXTENSIONS"`
	ExcludedPaths     []string `yaml:"excluded_paths" env:"REVIEW_FILE_FILTER_EXCLUDED_PATHS"`
}

func (c *Config) PrepareAndValidate() error {
	if c.MaxFilesPerMR < 0 || c.PoolSize < 0 || c.ConcurrentFiles < 0 || c.FileFilter.MaxFileSize < 0 {
		return erro.New("limits must not be negative")
	}
	c.MaxFilesPerMR = lang.Check(c.MaxFilesPerMR, defaultMaxFilesPerMR)
	c.PoolSize = lang.Check(c.PoolSize, defaultPoolSize)
	c.ConcurrentFiles = lang.Check(c.ConcurrentFiles, defaultConcurrentFiles)
	c.FileTimeout = lang.Check(c.FileTimeout, defaultFileTimeout)
	c.FileFilter.MaxFileSize = lang.Check(c.FileFilter.MaxFileSize, defaultMaxFileSize)
	return nil
}
