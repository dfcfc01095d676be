package rag

import (
	"path/filepath"
	"slices"
	"strings"
)

var binaryExtensions = []string{
	// images
	".png", ".jpg", ".jpeg", ".gif", ".bmp", ".ico", ".svg", ".webp", ".tiff", ".psd",
	// archives
	".zip", ".tar", ".gz", ".tgz", ".bz2", ".xz", ".7z", ".rar", ".jar", ".war", ".nupkg",
	// binaries and objects
	".exe", ".dll", ".so", ".dylib", ".a", ".o", ".obj", ".lib", ".bin", ".class", ".pyc", ".pdb", ".wasm",
	// media and documents
	".mp3", ".mp4", ".avi", ".mov", ".wav", ".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	// fonts
	".ttf", ".otf", ".woff", ".woff2", ".eot",
	// data blobs
	".db", ".sqlite", ".parquet", ".pkl",
}

var excludedDirectories = []string{
	"bin/", "obj/", "node_modules/", ".git/", "packages/",
	"vendor/", "dist/", "build/", "target/", "__pycache__/", ".idea/", ".vs/",
}

var lockfiles = []string{
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml", "go.sum", "cargo.lock",
	"poetry.lock", "pipfile.lock", "composer.lock", "gemfile.lock", "packages.lock.json",
}

var generatedMarkers = []string{
	".min.js", ".min.css", ".bundle.js", ".js.map", ".css.map",
	".generated.", ".g.cs", ".designer.cs", "_pb2.py", ".pb.go", "_generated.", "assemblyinfo.cs",
}

// FileFilter decides which repository files are worth indexing.
// Matching is case-insensitive.
type FileFilter struct {
	excludedPaths []string
}

// NewFileFilter creates a filter with the built-in rules and extra patterns.
// Extra patterns are matched as globs against the path and as substrings.
func NewFileFilter(excludedPaths ...string) *FileFilter {
	patterns := make([]string, 0, len(excludedPaths))
	for _, p := range excludedPaths {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, strings.ToLower(p))
		}
	}
	return &FileFilter{excludedPaths: patterns}
}

// IsIndexable reports whether a file should be indexed
func (f *FileFilter) IsIndexable(filePath string) bool {
	p := strings.ToLower(filepath.ToSlash(strings.TrimSpace(filePath)))
	if p == "" || strings.HasSuffix(p, "/") {
		return false
	}

	if slices.Contains(binaryExtensions, filepath.Ext(p)) {
		return false
	}

	// directories match both at the root and nested
	rooted := "/" + strings.TrimPrefix(p, "/")
	for _, dir := range excludedDirectories {
		if strings.Contains(rooted, "/"+dir) {
			return false
		}
	}

	if slices.Contains(lockfiles, filepath.Base(p)) {
		return false
	}

	for _, marker := range generatedMarkers {
		if strings.Contains(p, marker) {
			return false
		}
	}

	for _, pattern := range f.excludedPaths {
		if matched, _ := filepath.Match(pattern, p); matched {
			return false
		}
		if strings.Contains(p, pattern) {
			return false
		}
	}

	return true
}

// Apply returns the indexable subset of paths, preserving order
func (f *FileFilter) Apply(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if f.IsIndexable(p) {
			out = append(out, p)
		}
	}
	return out
}
