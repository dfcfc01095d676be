package rag

import (
	"path"
	"strings"
	"unicode/utf8"

	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/ragreview/internal/model"
)

// BuildQuery derives a search string from the added lines of a diff and the
// file name. It returns an empty string only when there are no qualifying
// lines and no file name.
func BuildQuery(file *model.FileDiff, cfg Config) string {
	if file == nil {
		return ""
	}
	maxLines := lang.Check(cfg.MaxQueryLines, defaultMaxQueryLines)
	minLineLen := lang.Check(cfg.MinQueryLineLength, defaultMinQueryLineLength)
	maxLen := lang.Check(cfg.MaxQueryLength, defaultMaxQueryLength)

	parts := make([]string, 0, maxLines+1)
	for line := range strings.SplitSeq(file.Diff, "\n") {
		if len(parts) >= maxLines {
			break
		}
		if !strings.HasPrefix(line, "+") || strings.HasPrefix(line, "+++") {
			continue
		}
		line = strings.TrimSpace(line[1:])
		if utf8.RuneCountInString(line) < minLineLen {
			continue
		}
		parts = append(parts, line)
	}

	if name := fileStem(file.Path()); name != "" {
		parts = append(parts, "file "+name)
	}

	return truncateUTF8(strings.Join(parts, " "), maxLen)
}

// fileStem returns the base name without its extension
func fileStem(filePath string) string {
	filePath = strings.TrimSpace(toSlash(filePath))
	if filePath == "" {
		return ""
	}
	base := path.Base(filePath)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
