package rag

import (
	"path"
	"regexp"
	"slices"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
)

// importRule describes how one language declares imports and how an import
// maps to a repository path
type importRule struct {
	language  string
	grammar   *sitter.Language
	nodeTypes []string
	// parse extracts module names from one import statement
	parse func(statement string) []string
	// resolve turns a module into a repository path, false to skip it
	resolve func(module, filePath string) (string, bool)
}

var importRules = map[string]*importRule{
	".cs": {
		language:  "csharp",
		grammar:   csharp.GetLanguage(),
		nodeTypes: []string{"using_directive"},
		parse:     matchFirst(csharpUsing),
		resolve:   resolveCSharp,
	},
	".py": {
		language:  "python",
		grammar:   python.GetLanguage(),
		nodeTypes: []string{"import_statement", "import_from_statement"},
		parse:     parsePythonImport,
		resolve:   resolvePython,
	},
	".rs": {
		language:  "rust",
		grammar:   rust.GetLanguage(),
		nodeTypes: []string{"use_declaration"},
		parse:     matchFirst(rustUse),
		resolve:   resolveRust,
	},
	".java": {
		language:  "java",
		grammar:   java.GetLanguage(),
		nodeTypes: []string{"import_declaration"},
		parse:     parseJavaImport,
		resolve:   resolveJava,
	},
}

var (
	csharpUsing      = regexp.MustCompile(`^\s*(?:global\s+)?using\s+(?:static\s+)?([A-Za-z_][\w.]*)\s*;`)
	pythonImport     = regexp.MustCompile(`^\s*import\s+([^#\n]+)`)
	pythonFromImport = regexp.MustCompile(`^\s*from\s+(\.*[\w.]*)\s+import\b`)
	rustUse          = regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?use\s+((?:::)?[A-Za-z_][\w:]*)`)
	javaImport       = regexp.MustCompile(`^\s*import\s+(static\s+)?([\w.]+?)(\.\*)?\s*;`)
)

// frequently imported Python standard library modules, never part of a repository
var pythonStdlib = []string{
	"abc", "argparse", "asyncio", "base64", "collections", "contextlib", "copy", "csv", "dataclasses",
	"datetime", "enum", "functools", "hashlib", "io", "itertools", "json", "logging", "math", "os",
	"pathlib", "pickle", "random", "re", "shutil", "socket", "string", "subprocess", "sys", "tempfile",
	"threading", "time", "typing", "unittest", "urllib", "uuid", "warnings", "__future__",
}

func ruleForFile(filePath string) (*importRule, bool) {
	rule, ok := importRules[strings.ToLower(path.Ext(filePath))]
	return rule, ok
}

// LanguageForFile returns a code fence language for a file, empty when unknown
func LanguageForFile(filePath string) string {
	if rule, ok := ruleForFile(filePath); ok {
		return rule.language
	}
	switch strings.ToLower(path.Ext(filePath)) {
	case ".go":
		return "go"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx", ".mjs":
		return "javascript"
	case ".kt":
		return "kotlin"
	case ".rb":
		return "ruby"
	case ".php":
		return "php"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".hpp":
		return "cpp"
	}
	return ""
}

func matchFirst(re *regexp.Regexp) func(string) []string {
	return func(statement string) []string {
		m := re.FindStringSubmatch(statement)
		if m == nil {
			return nil
		}
		return []string{m[1]}
	}
}

func resolveCSharp(module, _ string) (string, bool) {
	if module == "System" || strings.HasPrefix(module, "System.") ||
		module == "Microsoft" || strings.HasPrefix(module, "Microsoft.") {
		return "", false
	}
	return "/" + strings.ReplaceAll(module, ".", "/") + ".cs", true
}

func parsePythonImport(statement string) []string {
	if m := pythonFromImport.FindStringSubmatch(statement); m != nil {
		return []string{m[1]}
	}
	m := pythonImport.FindStringSubmatch(statement)
	if m == nil {
		return nil
	}

	var modules []string
	for part := range strings.SplitSeq(m[1], ",") {
		// "import a.b as c" keeps "a.b"
		fields := strings.Fields(strings.Trim(part, " ()\\\t"))
		if len(fields) > 0 {
			modules = append(modules, fields[0])
		}
	}
	return modules
}

func resolvePython(module, filePath string) (string, bool) {
	if module == "" {
		return "", false
	}

	if !strings.HasPrefix(module, ".") {
		if slices.Contains(pythonStdlib, strings.SplitN(module, ".", 2)[0]) {
			return "", false
		}
		return "/" + strings.ReplaceAll(module, ".", "/") + ".py", true
	}

	// relative import: one dot is the file's package, every extra dot goes one level up
	rest := strings.TrimLeft(module, ".")
	if rest == "" {
		return "", false
	}
	dir := path.Dir("/" + strings.TrimPrefix(toSlash(filePath), "/"))
	for range len(module) - len(rest) - 1 {
		dir = path.Dir(dir)
	}
	return path.Join(dir, strings.ReplaceAll(rest, ".", "/")) + ".py", true
}

func resolveRust(module, _ string) (string, bool) {
	module = strings.TrimPrefix(module, "::")
	module = strings.TrimPrefix(module, "crate::")
	module = strings.TrimSuffix(module, "::")

	var segments []string
	for s := range strings.SplitSeq(module, "::") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return "", false
	}
	switch segments[0] {
	case "std", "core", "alloc", "self", "super":
		return "", false
	}

	// use a::b::Type points to the module file a/b.rs
	if len(segments) > 1 && isTypeName(segments[len(segments)-1]) {
		segments = segments[:len(segments)-1]
	}
	return "/src/" + strings.Join(segments, "/") + ".rs", true
}

func parseJavaImport(statement string) []string {
	m := javaImport.FindStringSubmatch(statement)
	if m == nil || m[3] != "" {
		// wildcard imports name a package, not a file
		return nil
	}
	module := m[2]
	if m[1] != "" {
		// static imports end with a member name
		if i := strings.LastIndex(module, "."); i > 0 {
			module = module[:i]
		}
	}
	return []string{module}
}

func resolveJava(module, _ string) (string, bool) {
	if strings.HasPrefix(module, "java.") || strings.HasPrefix(module, "javax.") {
		return "", false
	}
	return "/" + strings.ReplaceAll(module, ".", "/") + ".java", true
}

func isTypeName(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}
