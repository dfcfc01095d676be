package prompts

import (
	"path/filepath"
	"strings"
)

// Guide holds review hints for one programming language
type Guide struct {
	Name       string
	Guidelines []string
}

var generalGuide = Guide{
	Name: "general",
	Guidelines: []string{
		"Check error handling on every failure path",
		"Look for resource leaks: files, connections, goroutines, handles",
		"Look for race conditions on shared state",
		"Validate external input before use",
		"Flag logic that contradicts similar code from the repository context",
	},
}

var defaultGuides = map[string]Guide{
	".cs": {
		Name: "C#",
		Guidelines: []string{
			"Async methods are awaited and do not block with .Result or .Wait()",
			"IDisposable objects are disposed with using",
			"Nullable reference types are respected, no unchecked null dereference",
			"LINQ queries are not enumerated several times",
			"Exceptions are not swallowed by empty catch blocks",
		},
	},
	".py": {
		Name: "Python",
		Guidelines: []string{
			"No mutable default arguments",
			"Files and connections are closed with context managers",
			"Exceptions are specific, no bare except",
			"Type hints match the actual values",
			"No blocking calls inside async functions",
		},
	},
	".rs": {
		Name: "Rust",
		Guidelines: []string{
			"No unwrap or expect on values that can fail at runtime",
			"Errors are propagated with ? and carry context",
			"No needless clone of large values",
			"unsafe blocks are minimal and justified by invariants",
			"Locks are not held across await points",
		},
	},
	".java": {
		Name: "Java",
		Guidelines: []string{
			"Resources are closed with try-with-resources",
			"Optional is not used for fields or parameters",
			"equals and hashCode are overridden together",
			"Shared mutable state is synchronized or immutable",
			"Checked exceptions are not silently ignored",
		},
	},
	".go": {
		Name: "Go",
		Guidelines: []string{
			"Errors are checked and wrapped with context",
			"Goroutines have an exit path and respect context cancellation",
			"Maps and slices shared between goroutines are guarded",
			"defer inside loops does not hold resources until return",
			"Interfaces are accepted and structs are returned",
		},
	},
	".ts": {
		Name: "TypeScript",
		Guidelines: []string{
			"Promises are awaited or explicitly handled",
			"No any where a concrete type is known",
			"Optional values are narrowed before use",
			"Equality uses === and !==",
		},
	},
	".js": {
		Name: "JavaScript",
		Guidelines: []string{
			"Promises are awaited or explicitly handled",
			"Optional values are checked before use",
			"Equality uses === and !==",
			"No accidental globals",
		},
	},
}

func init() {
	defaultGuides[".tsx"] = defaultGuides[".ts"]
	defaultGuides[".jsx"] = defaultGuides[".js"]
	defaultGuides[".mjs"] = defaultGuides[".js"]
}

// Registry maps file extensions to language guides
type Registry struct {
	guides map[string]Guide
}

// NewRegistry returns a registry with the built-in guides
func NewRegistry() *Registry {
	guides := make(map[string]Guide, len(defaultGuides))
	for ext, g := range defaultGuides {
		guides[ext] = g
	}
	return &Registry{guides: guides}
}

// Register sets the guide for an extension, it replaces the built-in one
func (r *Registry) Register(ext string, guide Guide) {
	r.guides[normalizeExt(ext)] = guide
}

// ForFile returns the guide of the file language, the general guide for unknown ones
func (r *Registry) ForFile(filePath string) Guide {
	if g, ok := r.guides[normalizeExt(filepath.Ext(filePath))]; ok {
		return g
	}
	return generalGuide
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func (g Guide) render() string {
	var b strings.Builder
	b.WriteString(g.Name)
	b.WriteString(" checklist:\n")
	for _, line := range g.Guidelines {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
