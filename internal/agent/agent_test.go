package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/ragreview/internal/model"
)

type fakeAPI struct {
	response string
	err      error
	requests []model.APIRequest
}

func (f *fakeAPI) CallAPI(_ context.Context, req model.APIRequest) (model.APIResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return model.APIResponse{}, f.err
	}
	return model.APIResponse{Content: f.response}, nil
}

func testAgent(api *fakeAPI) *Agent {
	cfg := Config{Type: Gemini, APIKey: "key"}
	if err := cfg.PrepareAndValidate(); err != nil {
		panic(err)
	}
	return NewWithAPI(cfg, api)
}

func TestReviewCode(t *testing.T) {
	api := &fakeAPI{response: "```json\n" + `{
  "has_issues": true,
  "comments": [
    {"line": 12, "end_line": 15, "issue_type": "bug", "issue_impact": "high", "fix_priority": "first",
     "model_confidence": "high", "title": "Total ignores tax", "description": "Tax is dropped"},
    {"line": 0, "issue_type": "other", "title": "no line"},
    {"line": 20, "end_line": 3, "issue_type": "idea", "title": "inverted range"}
  ]
}` + "\n```"}
	a := testAgent(api)

	file := &model.FileDiff{
		NewPath: "app/billing.py",
		Diff:    "+def total(items):\n+    return sum(items)\n",
		Content: "def total(items):\n    return sum(items)\n",
	}
	result, err := a.ReviewCode(context.Background(), file, "## Similar code in the repository\n\n### app/tax.py:L1-10")
	if err != nil {
		t.Fatalf("review: %v", err)
	}

	if result.FilePath != "app/billing.py" || !result.HasIssues || len(result.Comments) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	first := result.Comments[0]
	if first.Line != 12 || first.EndLine != 15 || !first.IsRangeComment() || first.IssueType != model.IssueTypeBug {
		t.Fatalf("unexpected first comment %+v", first)
	}
	if second := result.Comments[1]; second.EndLine != 0 || second.IsRangeComment() {
		t.Fatalf("inverted range was kept: %+v", second)
	}

	if len(api.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(api.requests))
	}
	req := api.requests[0]
	if req.ResponseType != "application/json" {
		t.Fatalf("unexpected response type %q", req.ResponseType)
	}
	if !strings.Contains(req.Prompt, "### app/tax.py:L1-10") || !strings.Contains(req.Prompt, "return sum(items)") {
		t.Fatalf("prompt misses context or file:\n%s", req.Prompt)
	}
	if !strings.Contains(req.SystemPrompt, "Python checklist") {
		t.Fatalf("system prompt misses the language guide:\n%s", req.SystemPrompt)
	}
}

func TestReviewCodeWithoutContext(t *testing.T) {
	api := &fakeAPI{response: `{"has_issues": false, "comments": []}`}
	result, err := testAgent(api).ReviewCode(context.Background(), &model.FileDiff{NewPath: "main.go", Diff: "+x"}, "")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if result.HasIssues || len(result.Comments) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !strings.Contains(api.requests[0].Prompt, "no repository context available") {
		t.Fatal("empty context is not marked in the prompt")
	}
}

func TestReviewCodeErrors(t *testing.T) {
	file := &model.FileDiff{NewPath: "main.go", Diff: "+x"}

	if _, err := testAgent(&fakeAPI{response: "looks good to me"}).ReviewCode(context.Background(), file, ""); !errm.Is(err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON, got %v", err)
	}
	if _, err := testAgent(&fakeAPI{response: `{"comments": [`}).ReviewCode(context.Background(), file, ""); err == nil {
		t.Fatal("expected error for broken JSON")
	}
	if _, err := testAgent(&fakeAPI{}).ReviewCode(context.Background(), file, ""); err == nil {
		t.Fatal("expected error for empty response")
	}
	if _, err := testAgent(&fakeAPI{err: errors.New("429")}).ReviewCode(context.Background(), file, ""); err == nil {
		t.Fatal("expected API error")
	}
	if _, err := testAgent(&fakeAPI{}).ReviewCode(context.Background(), nil, ""); err == nil {
		t.Fatal("expected error for nil file")
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := Config{Type: "unknown", APIKey: "key"}
	if err := cfg.PrepareAndValidate(); err == nil {
		t.Fatal("expected error for unknown type")
	}
	cfg = Config{Type: Claude}
	if err := cfg.PrepareAndValidate(); err == nil {
		t.Fatal("expected error without api key")
	}
	cfg = Config{Type: OpenAI, APIKey: "key"}
	if err := cfg.PrepareAndValidate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxTokens != defaultMaxTokens || cfg.Language != model.LanguageEnglish {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}
