package openai

import (
	"strings"
	"time"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/ragreview/internal/model"
)

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float32       `json:"temperature,omitempty"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func newChatRequest(modelName string, req model.APIRequest) chatRequest {
	out := chatRequest{
		Model:       modelName,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.SystemPrompt != "" {
		out.Messages = append(out.Messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	out.Messages = append(out.Messages, chatMessage{Role: "user", Content: req.Prompt})

	if req.IsJSON() {
		out.ResponseFormat = &struct {
			Type string `json:"type"`
		}{Type: "json_object"}
	}
	return out
}

type chatResponse struct {
	Created int64 `json:"created"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// toAPIResponse takes the first choice. A filtered completion is an error,
// a truncated one is returned as is and fails later if it is not valid JSON.
func (r chatResponse) toAPIResponse() (model.APIResponse, error) {
	if r.Error != nil {
		return model.APIResponse{}, errm.New("OpenAI API error %s: %s", r.Error.Code, r.Error.Message)
	}
	if len(r.Choices) == 0 {
		return model.APIResponse{}, errm.New("no choices in response")
	}
	choice := r.Choices[0]
	if choice.FinishReason == "content_filter" {
		return model.APIResponse{}, errm.New("completion was blocked by the content filter")
	}

	created := time.Now()
	if r.Created > 0 {
		created = time.Unix(r.Created, 0)
	}

	return model.APIResponse{
		CreateTime:       created,
		Content:          strings.TrimSpace(choice.Message.Content),
		PromptTokens:     r.Usage.PromptTokens,
		CompletionTokens: r.Usage.CompletionTokens,
		TotalTokens:      r.Usage.TotalTokens,
	}, nil
}
