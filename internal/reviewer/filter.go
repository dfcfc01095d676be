package reviewer

import (
	"path"
	"slices"
	"strings"

	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/rag"
)

type fileFilter struct {
	paths      *rag.FileFilter
	extensions []string
	maxSize    int
}

func newFileFilter(cfg FileFilter) *fileFilter {
	extensions := make([]string, 0, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extensions = append(extensions, ext)
	}
	return &fileFilter{
		paths:      rag.NewFileFilter(cfg.ExcludedPaths...),
		extensions: extensions,
		maxSize:    cfg.MaxFileSize,
	}
}

// skipReason returns why a changed file should not be reviewed
func (f *fileFilter) skipReason(file *model.FileDiff) (string, bool) {
	switch {
	case file.IsDeleted:
		return "deleted", true
	case file.IsBinary:
		return "binary", true
	case strings.TrimSpace(file.Diff) == "":
		return "empty diff", true
	case len(file.Diff) > f.maxSize:
		return "too large", true
	case !f.paths.IsIndexable(file.Path()):
		return "excluded", true
	case len(f.extensions) > 0 && !slices.Contains(f.extensions, strings.ToLower(path.Ext(file.Path()))):
		return "extension not allowed", true
	}
	return "", false
}
