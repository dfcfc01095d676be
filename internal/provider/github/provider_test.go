package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/maxbolgarin/ragreview/internal/model"
)

const prPayload = `{
	"action": "opened",
	"pull_request": {
		"id": 42, "number": 7, "title": "Add billing", "body": "desc", "state": "open",
		"head": {"ref": "feature", "sha": "abc123"},
		"base": {"ref": "main"},
		"html_url": "https://github.com/team/shop/pull/7",
		"user": {"id": 1, "login": "alice"},
		"requested_reviewers": [{"id": 2, "login": "review-bot"}]
	},
	"repository": {"full_name": "team/shop"},
	"sender": {"id": 1, "login": "alice"}
}`

func newTestProvider(t *testing.T, secret string) *Provider {
	t.Helper()
	p, err := New(model.ProviderConfig{Token: "token", WebhookSecret: secret, BotUsername: "review-bot"})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestValidateWebhook(t *testing.T) {
	p := newTestProvider(t, "s3cret")

	if err := p.ValidateWebhook([]byte(prPayload), sign("s3cret", prPayload)); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if err := p.ValidateWebhook([]byte(prPayload), sign("other", prPayload)); err == nil {
		t.Fatal("wrong secret accepted")
	}
	if err := p.ValidateWebhook([]byte(prPayload), "deadbeef"); err == nil {
		t.Fatal("signature without prefix accepted")
	}
	if err := newTestProvider(t, "").ValidateWebhook([]byte(prPayload), ""); err != nil {
		t.Fatalf("validation must be skipped without secret: %v", err)
	}
}

func TestParseWebhookEvent(t *testing.T) {
	p := newTestProvider(t, "")

	event, err := p.ParseWebhookEvent([]byte(prPayload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mr := event.MergeRequest
	if event.Type != "pull_request" || event.ProjectID != "team/shop" || event.Action != "opened" {
		t.Fatalf("unexpected event %+v", event)
	}
	if mr.IID != 7 || mr.SHA != "abc123" || mr.SourceBranch != "feature" || mr.TargetBranch != "main" {
		t.Fatalf("unexpected merge request %+v", mr)
	}
	if mr.Author.Username != "alice" || len(mr.Reviewers) != 1 {
		t.Fatalf("users not parsed: %+v", mr)
	}
	if !p.IsMergeRequestEvent(event) {
		t.Fatal("opened pull request must be reviewed")
	}

	if _, err := p.ParseWebhookEvent([]byte("{broken")); err == nil {
		t.Fatal("expected error for broken payload")
	}
}

func TestIsMergeRequestEvent(t *testing.T) {
	p := newTestProvider(t, "")
	mr := &model.MergeRequest{IID: 1}

	tests := []struct {
		name  string
		event *model.CodeEvent
		want  bool
	}{
		{"nil", nil, false},
		{"synchronize", &model.CodeEvent{Type: "pull_request", Action: "synchronize", MergeRequest: mr}, true},
		{"closed", &model.CodeEvent{Type: "pull_request", Action: "closed", MergeRequest: mr}, false},
		{"push", &model.CodeEvent{Type: "push", Action: "opened", MergeRequest: mr}, false},
		{"from bot", &model.CodeEvent{Type: "pull_request", Action: "opened", MergeRequest: mr, User: &model.User{Username: "review-bot"}}, false},
		{"other reviewer requested", &model.CodeEvent{Type: "pull_request", Action: "review_requested", MergeRequest: &model.MergeRequest{Reviewers: []model.User{{Username: "bob"}}}}, false},
		{"bot requested", &model.CodeEvent{Type: "pull_request", Action: "review_requested", MergeRequest: &model.MergeRequest{Reviewers: []model.User{{Username: "review-bot"}}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.IsMergeRequestEvent(tt.event); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitProject(t *testing.T) {
	owner, repo, err := splitProject("/team/shop/")
	if err != nil || owner != "team" || repo != "shop" {
		t.Fatalf("unexpected split %q %q %v", owner, repo, err)
	}
	for _, bad := range []string{"", "team", "team/", "a/b/c"} {
		if _, _, err := splitProject(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestGithubState(t *testing.T) {
	if githubState("opened") != "open" || githubState("merged") != "closed" || githubState("") != "all" {
		t.Fatal("unexpected state mapping")
	}
}
