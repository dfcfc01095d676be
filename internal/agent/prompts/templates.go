package prompts

import (
	"fmt"

	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/ragreview/internal/model"
)

const noContext = "(no repository context available)"

// Builder provides methods to build prompts with language support
type Builder struct {
	language LanguageConfig
	guides   *Registry
}

// NewBuilder creates a new prompt builder; a nil registry means the built-in guides
func NewBuilder(language model.Language, guides *Registry) *Builder {
	if guides == nil {
		guides = NewRegistry()
	}
	return &Builder{
		language: GetLanguage(language),
		guides:   guides,
	}
}

// Language returns the response language configuration
func (b *Builder) Language() LanguageConfig {
	return b.language
}

// BuildReviewPrompt creates a prompt for a structured review of one file.
// The review context is the text assembled by the retrieval engine.
func (b *Builder) BuildReviewPrompt(file *model.FileDiff, reviewContext string) model.Prompt {
	guide := b.guides.ForFile(file.Path())

	systemPrompt := fmt.Sprintf(reviewSystemPromptTemplate,
		b.language.Instructions,
		guide.render(),
	)
	userPrompt := fmt.Sprintf(reviewUserPromptTemplate,
		file.Path(),
		lang.Check(reviewContext, noContext),
		file.Content,
		file.Diff,
	)

	return model.Prompt{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Language:     b.language.Language,
	}
}
