package model

import "time"

// Language of the generated review comments
type Language string

const (
	LanguageEnglish    Language = "en"
	LanguageRussian    Language = "ru"
	LanguageSpanish    Language = "es"
	LanguageFrench     Language = "fr"
	LanguageItalian    Language = "it"
	LanguageGerman     Language = "de"
	LanguagePortuguese Language = "pt"
	LanguageJapanese   Language = "ja"
	LanguageKorean     Language = "ko"
	LanguageChinese    Language = "zh"
)

// ModelConfig is passed to every LLM backend
type ModelConfig struct {
	APIKey   string
	Model    string
	URL      string
	ProxyURL string
	IsTest   bool
}

// APIRequest is one completion call
type APIRequest struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
	URL          string
	ResponseType string
}

const ResponseTypeJSON = "application/json"

// IsJSON reports whether the caller expects a JSON object back
func (r APIRequest) IsJSON() bool {
	return r.ResponseType == ResponseTypeJSON
}

// APIResponse carries the completion text and token usage
type APIResponse struct {
	CreateTime       time.Time
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Prompt is a rendered system and user prompt pair
type Prompt struct {
	SystemPrompt string
	UserPrompt   string
	Language     Language
}

// FileReviewResult is the parsed answer of the agent for one file
type FileReviewResult struct {
	FilePath  string             `json:"file"`
	Comments  []*ReviewAIComment `json:"comments"`
	HasIssues bool               `json:"has_issues"`
}

// ReviewAIComment is one finding of the agent, anchored to new-file lines
type ReviewAIComment struct {
	Line    int `json:"line"`
	EndLine int `json:"end_line,omitempty"`

	IssueType       IssueType       `json:"issue_type"`
	IssueImpact     IssueImpact     `json:"issue_impact"`
	FixPriority     FixPriority     `json:"fix_priority"`
	ModelConfidence ModelConfidence `json:"model_confidence"`

	Title       string `json:"title"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
	CodeSnippet string `json:"code_snippet,omitempty"`
}

// IsRangeComment reports whether the comment covers more than one line
func (lrc *ReviewAIComment) IsRangeComment() bool {
	return lrc.EndLine > 0 && lrc.EndLine > lrc.Line
}

// IssueType is the category of a finding
type IssueType string

const (
	IssueTypeFailure     IssueType = "failure"
	IssueTypeBug         IssueType = "bug"
	IssueTypeSecurity    IssueType = "security"
	IssueTypePerformance IssueType = "performance"
	IssueTypeRefactor    IssueType = "refactor"
	IssueTypeIdea        IssueType = "idea"
	IssueTypeBadPractice IssueType = "bad_practice"
	IssueTypeOther       IssueType = "other"
)

// IssueImpact is how much a finding hurts if left unfixed
type IssueImpact string

const (
	IssueImpactCritical IssueImpact = "critical"
	IssueImpactHigh     IssueImpact = "high"
	IssueImpactMedium   IssueImpact = "medium"
	IssueImpactLow      IssueImpact = "low"
)

// ModelConfidence is how sure the agent is about a finding
type ModelConfidence string

const (
	ModelConfidenceVeryHigh ModelConfidence = "very_high"
	ModelConfidenceHigh     ModelConfidence = "high"
	ModelConfidenceMedium   ModelConfidence = "medium"
	ModelConfidenceLow      ModelConfidence = "low"
)

// FixPriority is when a finding should be fixed
type FixPriority string

const (
	FixPriorityHotfix  FixPriority = "hotfix"
	FixPriorityFirst   FixPriority = "first"
	FixPrioritySecond  FixPriority = "second"
	FixPriorityBacklog FixPriority = "backlog"
)
