package reviewer

import (
	"strconv"
	"strings"

	"github.com/maxbolgarin/ragreview/internal/agent/prompts"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/rag"
)

// buildComment renders an AI comment. Comments pointing outside the visible diff
// lines become general comments that name the location in the body.
func buildComment(headers prompts.CommentHeaders, c *model.ReviewAIComment, filePath, sha string, visible map[int]struct{}) *model.Comment {
	_, inline := visible[c.Line]

	comment := &model.Comment{
		Body:      formatBody(headers, c, filePath, !inline),
		FilePath:  filePath,
		Line:      c.Line,
		Type:      model.CommentTypeGeneral,
		CommitSHA: sha,
	}
	if inline {
		comment.Type = model.CommentTypeInline
		if _, ok := visible[c.EndLine]; ok && c.IsRangeComment() {
			comment.EndLine = c.EndLine
		}
	}
	return comment
}

func formatBody(headers prompts.CommentHeaders, c *model.ReviewAIComment, filePath string, withLocation bool) string {
	var b strings.Builder

	b.WriteString("## ")
	b.WriteString(headers.GetByType(c.IssueType))
	b.WriteString("\n\n")

	if withLocation {
		b.WriteString("`")
		b.WriteString(filePath)
		b.WriteString(":")
		b.WriteString(strconv.Itoa(c.Line))
		if c.IsRangeComment() {
			b.WriteString("-")
			b.WriteString(strconv.Itoa(c.EndLine))
		}
		b.WriteString("`\n\n")
	}

	writeField(&b, headers.ImpactHeader, headers.GetImpact(c.IssueImpact))
	writeField(&b, headers.ConfidenceHeader, headers.GetConfidence(c.ModelConfidence))
	writeField(&b, headers.PriorityHeader, headers.GetPriority(c.FixPriority))
	b.WriteString("\n")

	if c.Title != "" {
		b.WriteString("### ")
		b.WriteString(c.Title)
		b.WriteString("\n\n")
	}
	if c.Description != "" {
		b.WriteString(c.Description)
		b.WriteString("\n\n")
	}

	if c.Suggestion != "" {
		b.WriteString("### ")
		b.WriteString(headers.SuggestionHeader)
		b.WriteString("\n\n")
		b.WriteString(c.Suggestion)
		b.WriteString("\n\n")
	}
	if c.CodeSnippet != "" {
		if strings.HasPrefix(c.CodeSnippet, "```") {
			b.WriteString(c.CodeSnippet)
		} else {
			b.WriteString("```")
			b.WriteString(rag.LanguageForFile(filePath))
			b.WriteString("\n")
			b.WriteString(cleanDiffSnippet(c.CodeSnippet))
			b.WriteString("\n```")
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeField(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	b.WriteString("**")
	b.WriteString(name)
	b.WriteString("**: ")
	b.WriteString(value)
	b.WriteString("\n")
}

// cleanDiffSnippet removes diff markers when every non-empty line of the snippet carries one
func cleanDiffSnippet(snippet string) string {
	lines := strings.Split(snippet, "\n")
	for _, line := range lines {
		if line != "" && !strings.ContainsRune("+- ", rune(line[0])) {
			return snippet
		}
	}
	for i, line := range lines {
		if line != "" {
			lines[i] = line[1:]
		}
	}
	return strings.Join(lines, "\n")
}
