package rag

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/ragreview/internal/model"
)

const (
	headerPullRequest  = "## Pull request"
	headerSimilarCode  = "## Similar code in the repository"
	headerDependencies = "## Related dependencies"
	ellipsis           = "..."
)

// ContextAssembler merges pull request metadata, similar chunks and
// dependency summaries into one bounded text block
type ContextAssembler struct {
	retriever *Retriever
	resolver  *DependencyResolver
	cfg       Config
	log       logze.Logger
}

func NewContextAssembler(retriever *Retriever, resolver *DependencyResolver, cfg Config) *ContextAssembler {
	return &ContextAssembler{
		retriever: retriever,
		resolver:  resolver,
		cfg:       cfg,
		log:       logze.With("component", "context_assembler"),
	}
}

// Build never fails: a section whose source errors or has nothing to say is
// left out and the rest of the context is still returned
func (a *ContextAssembler) Build(ctx context.Context, file *model.FileDiff, pr *model.MergeRequest, project, repositoryID string) string {
	sections := make([]string, 0, 3)

	if header := renderPullRequest(pr); header != "" {
		sections = append(sections, header)
	}
	if file == nil {
		return strings.Join(sections, "\n")
	}
	log := a.log.WithFields("repository_id", repositoryID, "file", file.Path())

	results, err := a.retriever.Retrieve(ctx, file, repositoryID, a.cfg.MaxResults)
	if err != nil {
		log.Warn("failed to retrieve similar code", "error", err)
	}
	if similar := renderSimilar(results, a.cfg.MaxSnippetLength); similar != "" {
		sections = append(sections, similar)
	}

	if file.Content != "" {
		refs := a.resolver.Resolve(file.Content, file.Path())
		ref := ""
		if pr != nil {
			ref = lang.Check(pr.SHA, pr.SourceBranch)
		}
		if deps := a.resolver.FetchDependencyContext(ctx, refs, project, repositoryID, ref); deps != "" {
			sections = append(sections, headerDependencies+"\n\n"+deps)
		}
		log.DebugIf(a.cfg.Verbose, "dependencies resolved", "count", len(refs))
	}

	return strings.Join(sections, "\n")
}

func renderPullRequest(pr *model.MergeRequest) string {
	if pr == nil {
		return ""
	}
	title := strings.TrimSpace(pr.Title)
	description := strings.TrimSpace(pr.Description)
	if title == "" && description == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerPullRequest)
	b.WriteString("\n\n")
	if title != "" {
		b.WriteString("**Title**: ")
		b.WriteString(title)
		b.WriteString("\n")
	}
	if description != "" {
		b.WriteString("**Description**:\n")
		b.WriteString(description)
		b.WriteString("\n")
	}
	return b.String()
}

func renderSimilar(results []model.RetrievalResult, maxSnippet int) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerSimilarCode)
	b.WriteString("\n\n")
	for _, r := range results {
		b.WriteString("### ")
		b.WriteString(r.Chunk.Location)
		b.WriteString(" (similarity: ")
		b.WriteString(strconv.FormatFloat(r.Similarity, 'f', 2, 64))
		b.WriteString(")\n```")
		b.WriteString(LanguageForFile(r.Chunk.FilePath))
		b.WriteString("\n")
		b.WriteString(truncateRunes(r.Chunk.Content, maxSnippet))
		b.WriteString("\n```\n")
	}
	return b.String()
}

// truncateRunes keeps at most n characters and marks the cut with an ellipsis
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	var count int
	for i := range s {
		if count == n {
			return s[:i] + ellipsis
		}
		count++
	}
	return s
}
