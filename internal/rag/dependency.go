package rag

import (
	"context"
	"strings"

	"github.com/maxbolgarin/abstract"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/model/interfaces"
	sitter "github.com/smacker/go-tree-sitter"
)

// ResolveDependencies guesses repository paths of the modules imported by a
// file. Results keep source order, have no duplicates and are capped at limit.
// Files of unsupported languages have no dependencies.
func ResolveDependencies(content, filePath string, limit int) []model.DependencyReference {
	rule, ok := ruleForFile(filePath)
	if !ok || content == "" || limit <= 0 {
		return nil
	}

	statements := importStatements(rule, content)
	if len(statements) == 0 {
		statements = splitLines(content)
	}

	var (
		refs = make([]model.DependencyReference, 0, limit)
		seen = make(map[string]struct{}, limit)
	)
	for _, statement := range statements {
		for _, module := range rule.parse(statement) {
			p, ok := rule.resolve(module, filePath)
			if !ok {
				continue
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}

			refs = append(refs, model.DependencyReference{
				Path:     p,
				Import:   module,
				Language: rule.language,
			})
			if len(refs) >= limit {
				return refs
			}
		}
	}

	return refs
}

// importStatements returns the source text of every import node, in order.
// It returns nil when the file cannot be parsed.
func importStatements(rule *importRule, content string) []string {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(rule.grammar)

	src := []byte(content)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil || tree == nil {
		return nil
	}
	defer tree.Close()

	var out []string
	collectNodes(tree.RootNode(), rule.nodeTypes, func(n *sitter.Node) {
		out = append(out, n.Content(src))
	})
	return out
}

func collectNodes(node *sitter.Node, types []string, fn func(*sitter.Node)) {
	if node == nil {
		return
	}
	for _, t := range types {
		if node.Type() == t {
			fn(node)
			return
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collectNodes(node.Child(i), types, fn)
	}
}

// DependencyResolver loads the guessed dependencies of a file from the repository
type DependencyResolver struct {
	source interfaces.FileSource
	cfg    Config
	log    logze.Logger
}

func NewDependencyResolver(source interfaces.FileSource, cfg Config) *DependencyResolver {
	return &DependencyResolver{
		source: source,
		cfg:    cfg,
		log:    logze.With("component", "dependency_resolver"),
	}
}

// Resolve is ResolveDependencies with the configured limit
func (d *DependencyResolver) Resolve(content, filePath string) []model.DependencyReference {
	return ResolveDependencies(content, filePath, d.cfg.MaxDependencies)
}

// FetchDependencyContext loads the first few references concurrently and
// renders a short summary of each as a labelled code block, in the order of
// refs. References that fail to load or do not exist are skipped.
func (d *DependencyResolver) FetchDependencyContext(ctx context.Context, refs []model.DependencyReference, project, repositoryID, ref string) string {
	if len(refs) == 0 {
		return ""
	}
	refs = refs[:min(len(refs), d.cfg.MaxDependencyFetches)]
	projectID := model.ProjectPath(project, repositoryID)

	summaries := make([]string, len(refs))
	ws := abstract.NewWaiterSet(d.log)
	for i, dep := range refs {
		ws.Add(ctx, func(ctx context.Context) error {
			content, err := d.fetch(ctx, projectID, strings.TrimPrefix(dep.Path, "/"), ref)
			if err != nil {
				d.log.DebugIf(d.cfg.Verbose, "failed to fetch dependency", "path", dep.Path, "error", err)
				return nil
			}
			summaries[i] = summarize(content, d.cfg.DependencySummaryLines)
			return nil
		})
	}
	if err := ws.Await(ctx); err != nil {
		d.log.Warn("dependency fetch interrupted", "error", err)
	}

	var b strings.Builder
	for i, dep := range refs {
		if summaries[i] == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("### ")
		b.WriteString(strings.TrimPrefix(dep.Path, "/"))
		b.WriteString(" (")
		b.WriteString(dep.Import)
		b.WriteString(")\n```")
		b.WriteString(dep.Language)
		b.WriteString("\n")
		b.WriteString(summaries[i])
		b.WriteString("\n```\n")
	}
	return b.String()
}

func (d *DependencyResolver) fetch(ctx context.Context, projectID, filePath, ref string) (string, error) {
	ctx, cancel := withTimeout(ctx, d.cfg.FetchTimeout)
	defer cancel()
	return d.source.GetFileContent(ctx, projectID, filePath, ref)
}

// summarize keeps the first n lines of content
func summarize(content string, n int) string {
	lines := splitLines(strings.TrimSpace(content))
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
