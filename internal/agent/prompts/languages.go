package prompts

import (
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/ragreview/internal/model"
)

// LanguageConfig defines the human language of agent responses and comment headers
type LanguageConfig struct {
	Language     model.Language `yaml:"language"`
	Instructions string         `yaml:"instructions"`

	Headers CommentHeaders `yaml:"headers"`
}

// CommentHeaders are the labels used when rendering review comments
type CommentHeaders struct {
	FailureHeader     string `yaml:"failure_header"`
	BugHeader         string `yaml:"bug_header"`
	SecurityHeader    string `yaml:"security_header"`
	PerformanceHeader string `yaml:"performance_header"`
	RefactorHeader    string `yaml:"refactor_header"`
	IdeaHeader        string `yaml:"idea_header"`
	BadPracticeHeader string `yaml:"bad_practice_header"`
	OtherHeader       string `yaml:"other_header"`

	ImpactHeader     string `yaml:"impact_header"`
	ConfidenceHeader string `yaml:"confidence_header"`
	PriorityHeader   string `yaml:"priority_header"`
	SuggestionHeader string `yaml:"suggestion_header"`

	ImpactCritical string `yaml:"impact_critical"`
	ImpactHigh     string `yaml:"impact_high"`
	ImpactMedium   string `yaml:"impact_medium"`
	ImpactLow      string `yaml:"impact_low"`

	ConfidenceVeryHigh string `yaml:"confidence_very_high"`
	ConfidenceHigh     string `yaml:"confidence_high"`
	ConfidenceMedium   string `yaml:"confidence_medium"`
	ConfidenceLow      string `yaml:"confidence_low"`

	PriorityHotfix  string `yaml:"priority_hotfix"`
	PriorityFirst   string `yaml:"priority_first"`
	PrioritySecond  string `yaml:"priority_second"`
	PriorityBacklog string `yaml:"priority_backlog"`
}

var englishHeaders = CommentHeaders{
	FailureHeader:     "🚨 Failure",
	BugHeader:         "⚠️ Potential bug",
	SecurityHeader:    "🔒 Security issue",
	PerformanceHeader: "🚀 Performance issue",
	RefactorHeader:    "🛠️ Refactor suggestion",
	IdeaHeader:        "💡 Idea",
	BadPracticeHeader: "🧐 Bad practice",
	OtherHeader:       "🔄 Other issue",

	ImpactHeader:     "Impact",
	ConfidenceHeader: "Model confidence",
	PriorityHeader:   "Fix priority",
	SuggestionHeader: "💡 Suggestion",

	ImpactCritical: "critical 🔴",
	ImpactHigh:     "high 🟠",
	ImpactMedium:   "medium 🟡",
	ImpactLow:      "low 🟢",

	ConfidenceVeryHigh: "very high (90-100%)",
	ConfidenceHigh:     "high (70-90%)",
	ConfidenceMedium:   "medium (40-70%)",
	ConfidenceLow:      "low (20-40%)",

	PriorityHotfix:  "hotfix",
	PriorityFirst:   "fix before merge",
	PrioritySecond:  "fix soon",
	PriorityBacklog: "backlog",
}

// DefaultLanguages provides common language configurations.
// Languages without their own headers use the English ones.
var DefaultLanguages = map[model.Language]LanguageConfig{
	model.LanguageEnglish: {
		Language:     model.LanguageEnglish,
		Instructions: "Respond in clear, professional English. Use technical terminology appropriately.",
		Headers:      englishHeaders,
	},
	model.LanguageSpanish: {
		Language:     model.LanguageSpanish,
		Instructions: "Responde en español claro y profesional. Usa terminología técnica apropiada.",
	},
	model.LanguageFrench: {
		Language:     model.LanguageFrench,
		Instructions: "Répondez en français clair et professionnel. Utilisez une terminologie technique appropriée.",
	},
	model.LanguageGerman: {
		Language:     model.LanguageGerman,
		Instructions: "Antworten Sie in klarem, professionellem Deutsch. Verwenden Sie angemessene technische Terminologie.",
	},
	model.LanguageRussian: {
		Language:     model.LanguageRussian,
		Instructions: "Отвечайте на русском языке четко и профессионально. Используйте соответствующую техническую терминологию.",
		Headers: CommentHeaders{
			FailureHeader:     "🚨 Критическая ошибка",
			BugHeader:         "⚠️ Возможная ошибка",
			SecurityHeader:    "🔒 Проблема безопасности",
			PerformanceHeader: "🚀 Производительность",
			RefactorHeader:    "🛠️ Рефакторинг",
			IdeaHeader:        "💡 Идея",
			BadPracticeHeader: "🧐 Плохая практика",
			OtherHeader:       "🔄 Прочее",

			ImpactHeader:     "Влияние",
			ConfidenceHeader: "Уверенность модели",
			PriorityHeader:   "Приоритет",
			SuggestionHeader: "💡 Предложение",

			ImpactCritical: "критическое 🔴",
			ImpactHigh:     "высокое 🟠",
			ImpactMedium:   "среднее 🟡",
			ImpactLow:      "низкое 🟢",

			ConfidenceVeryHigh: "очень высокая (90-100%)",
			ConfidenceHigh:     "высокая (70-90%)",
			ConfidenceMedium:   "средняя (40-70%)",
			ConfidenceLow:      "низкая (20-40%)",

			PriorityHotfix:  "срочно",
			PriorityFirst:   "до мержа",
			PrioritySecond:  "в ближайшее время",
			PriorityBacklog: "бэклог",
		},
	},
	model.LanguagePortuguese: {
		Language:     model.LanguagePortuguese,
		Instructions: "Responda em português claro e profissional. Use terminologia técnica apropriada.",
	},
	model.LanguageItalian: {
		Language:     model.LanguageItalian,
		Instructions: "Rispondi in italiano chiaro e professionale. Usa una terminologia tecnica appropriata.",
	},
	model.LanguageJapanese: {
		Language:     model.LanguageJapanese,
		Instructions: "明確で専門的な日本語で回答してください。適切な技術用語を使用してください。",
	},
	model.LanguageKorean: {
		Language:     model.LanguageKorean,
		Instructions: "명확하고 전문적인 한국어로 답변해 주세요. 적절한 기술 용어를 사용해 주세요.",
	},
	model.LanguageChinese: {
		Language:     model.LanguageChinese,
		Instructions: "请用清晰、专业的中文回答。适当使用技术术语。",
	},
}

// GetLanguage returns the configuration of language, English when it is unknown
func GetLanguage(language model.Language) LanguageConfig {
	cfg, ok := DefaultLanguages[language]
	if !ok {
		cfg = DefaultLanguages[model.LanguageEnglish]
	}
	if cfg.Headers == (CommentHeaders{}) {
		cfg.Headers = englishHeaders
	}
	return cfg
}

func (h CommentHeaders) GetByType(t model.IssueType) string {
	switch t {
	case model.IssueTypeFailure:
		return h.FailureHeader
	case model.IssueTypeBug:
		return h.BugHeader
	case model.IssueTypeSecurity:
		return h.SecurityHeader
	case model.IssueTypePerformance:
		return h.PerformanceHeader
	case model.IssueTypeRefactor:
		return h.RefactorHeader
	case model.IssueTypeIdea:
		return h.IdeaHeader
	case model.IssueTypeBadPractice:
		return h.BadPracticeHeader
	case model.IssueTypeOther:
		return h.OtherHeader
	}
	logze.Warn("unknown issue type", "issue_type", t)
	return h.OtherHeader
}

func (h CommentHeaders) GetImpact(i model.IssueImpact) string {
	switch i {
	case model.IssueImpactCritical:
		return h.ImpactCritical
	case model.IssueImpactHigh:
		return h.ImpactHigh
	case model.IssueImpactMedium:
		return h.ImpactMedium
	case model.IssueImpactLow:
		return h.ImpactLow
	}
	logze.Warn("unknown issue impact", "issue_impact", i)
	return h.ImpactMedium
}

func (h CommentHeaders) GetConfidence(c model.ModelConfidence) string {
	switch c {
	case model.ModelConfidenceVeryHigh:
		return h.ConfidenceVeryHigh
	case model.ModelConfidenceHigh:
		return h.ConfidenceHigh
	case model.ModelConfidenceMedium:
		return h.ConfidenceMedium
	case model.ModelConfidenceLow:
		return h.ConfidenceLow
	}
	logze.Warn("unknown confidence", "confidence", c)
	return h.ConfidenceMedium
}

func (h CommentHeaders) GetPriority(p model.FixPriority) string {
	switch p {
	case model.FixPriorityHotfix:
		return h.PriorityHotfix
	case model.FixPriorityFirst:
		return h.PriorityFirst
	case model.FixPrioritySecond:
		return h.PrioritySecond
	case model.FixPriorityBacklog:
		return h.PriorityBacklog
	}
	logze.Warn("unknown priority", "priority", p)
	return h.PrioritySecond
}
