package claude

import (
	"strings"
	"time"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/ragreview/internal/model"
)

const (
	jsonOnlySuffix = "\n\nRespond with the JSON object only."
	jsonPrefill    = "{"
)

// Anthropic has no JSON response mode, the output is steered by the prompt and
// the last user turn is closed with a prefilled assistant "{" when JSON is asked.
type messagesRequest struct {
	Model       string      `json:"model"`
	MaxTokens   int         `json:"max_tokens"`
	Temperature float32     `json:"temperature,omitempty"`
	System      []textBlock `json:"system,omitempty"`
	Messages    []turn      `json:"messages"`
}

type turn struct {
	Role    string      `json:"role"`
	Content []textBlock `json:"content"`
}

type textBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func text(s string) []textBlock {
	return []textBlock{{Type: "text", Text: s}}
}

func newMessagesRequest(modelName string, req model.APIRequest) messagesRequest {
	out := messagesRequest{
		Model:       modelName,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.SystemPrompt != "" {
		out.System = text(req.SystemPrompt)
	}

	prompt := req.Prompt
	if req.IsJSON() {
		prompt += jsonOnlySuffix
	}
	out.Messages = append(out.Messages, turn{Role: "user", Content: text(prompt)})
	if req.IsJSON() {
		out.Messages = append(out.Messages, turn{Role: "assistant", Content: text(jsonPrefill)})
	}

	return out
}

type messagesResponse struct {
	Content    []textBlock `json:"content"`
	StopReason string      `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// toAPIResponse joins the text blocks. With a prefilled "{" the reply continues
// the object, so the prefill is put back in front.
func (r messagesResponse) toAPIResponse(prefilled bool) (model.APIResponse, error) {
	if r.Error != nil {
		return model.APIResponse{}, errm.New("Claude API error %s: %s", r.Error.Type, r.Error.Message)
	}

	var b strings.Builder
	if prefilled {
		b.WriteString(jsonPrefill)
	}
	var blocks int
	for _, c := range r.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
			blocks++
		}
	}
	if blocks == 0 {
		return model.APIResponse{}, errm.New("no text content in response, stop reason %q", r.StopReason)
	}

	return model.APIResponse{
		CreateTime:       time.Now(),
		Content:          strings.TrimSpace(b.String()),
		PromptTokens:     r.Usage.InputTokens,
		CompletionTokens: r.Usage.OutputTokens,
		TotalTokens:      r.Usage.InputTokens + r.Usage.OutputTokens,
	}, nil
}
