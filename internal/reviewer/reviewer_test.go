package reviewer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/maxbolgarin/ragreview/internal/agent/prompts"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/rag"
)

const billingDiff = `@@ -10,3 +10,4 @@ def total(items):
     subtotal = sum(items)
-    return subtotal
+    tax = subtotal * 0.2
+    return subtotal + tax
 `

type fakeProvider struct {
	mu       sync.Mutex
	diffs    []*model.FileDiff
	files    map[string]string
	comments []*model.Comment
	failPost bool
	relevant bool
}

func (p *fakeProvider) ValidateWebhook([]byte, string) error { return nil }

func (p *fakeProvider) ParseWebhookEvent([]byte) (*model.CodeEvent, error) { return nil, nil }

func (p *fakeProvider) IsMergeRequestEvent(*model.CodeEvent) bool { return p.relevant }

func (p *fakeProvider) GetMergeRequest(_ context.Context, _ string, iid int) (*model.MergeRequest, error) {
	return testMR(iid), nil
}

func (p *fakeProvider) GetMergeRequestDiffs(context.Context, string, int) ([]*model.FileDiff, error) {
	out := make([]*model.FileDiff, 0, len(p.diffs))
	for _, d := range p.diffs {
		c := *d
		out = append(out, &c)
	}
	return out, nil
}

func (p *fakeProvider) ListMergeRequests(context.Context, string, *model.MergeRequestFilter) ([]*model.MergeRequest, error) {
	return nil, nil
}

func (p *fakeProvider) ListFiles(context.Context, string, string) ([]string, error) { return nil, nil }

func (p *fakeProvider) GetFileContent(_ context.Context, _, filePath, ref string) (string, error) {
	return p.files[ref+":"+filePath], nil
}

func (p *fakeProvider) CreateComment(_ context.Context, _ string, _ int, c *model.Comment) error {
	if p.failPost {
		return errors.New("forbidden")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.comments = append(p.comments, c)
	return nil
}

type fakeAgent struct {
	mu       sync.Mutex
	calls    map[string]int
	contexts map[string]string
	contents map[string]string
	comments []*model.ReviewAIComment
	err      error

	// delay keeps each call busy so parallel calls overlap
	delay  time.Duration
	active int
	peak   int
}

func (a *fakeAgent) ReviewCode(_ context.Context, file *model.FileDiff, reviewContext string) (*model.FileReviewResult, error) {
	a.mu.Lock()
	a.active++
	a.peak = max(a.peak, a.active)
	a.mu.Unlock()

	time.Sleep(a.delay)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.active--
	if a.calls == nil {
		a.calls = map[string]int{}
		a.contexts = map[string]string{}
		a.contents = map[string]string{}
	}
	a.calls[file.Path()]++
	a.contexts[file.Path()] = reviewContext
	a.contents[file.Path()] = file.Content
	if a.err != nil {
		return nil, a.err
	}
	return &model.FileReviewResult{FilePath: file.Path(), Comments: a.comments, HasIssues: len(a.comments) > 0}, nil
}

func (a *fakeAgent) Headers() prompts.CommentHeaders {
	return prompts.GetLanguage(model.LanguageEnglish).Headers
}

type fakeEngine struct {
	mu        sync.Mutex
	indexed   bool
	submitted []string
}

func (e *fakeEngine) IsIndexed(string) bool { return e.indexed }

func (e *fakeEngine) SubmitIndexing(project, repositoryID, branch string) (rag.IndexTask, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.submitted = append(e.submitted, repositoryID+"@"+branch)
	return rag.IndexTask{ID: "task-1", RepositoryID: repositoryID, Status: rag.TaskPending}, true
}

func (e *fakeEngine) BuildReviewContext(_ context.Context, file *model.FileDiff, _ *model.MergeRequest, _, repositoryID string) string {
	return "context of " + file.Path() + " in " + repositoryID
}

func testMR(iid int) *model.MergeRequest {
	return &model.MergeRequest{
		IID:          iid,
		Title:        "Add tax",
		SourceBranch: "feature",
		TargetBranch: "main",
		SHA:          "abc123",
	}
}

func newTestReviewer(t *testing.T, provider *fakeProvider, agent *fakeAgent, engine *fakeEngine) *Reviewer {
	t.Helper()
	r, err := New(Config{}, provider, agent, engine)
	if err != nil {
		t.Fatalf("new reviewer: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func TestReviewMergeRequest(t *testing.T) {
	provider := &fakeProvider{
		diffs: []*model.FileDiff{
			{OldPath: "app/billing.py", NewPath: "app/billing.py", Diff: billingDiff},
			{NewPath: "logo.png", Diff: "bin", IsBinary: true},
			{OldPath: "old.py", NewPath: "old.py", Diff: "-x", IsDeleted: true},
			{NewPath: "package-lock.json", Diff: "+{}"},
			{NewPath: "app/empty.py"},
		},
		files: map[string]string{
			"abc123:app/billing.py": "def total(items):\n    ...",
			"main:app/billing.py":   "def total(items):\n    return 0",
		},
	}
	agent := &fakeAgent{comments: []*model.ReviewAIComment{
		{Line: 12, EndLine: 13, IssueType: model.IssueTypeBug, Title: "Tax is hardcoded"},
		{Line: 40, IssueType: model.IssueTypeIdea, Title: "Cache totals"},
	}}
	engine := &fakeEngine{}
	r := newTestReviewer(t, provider, agent, engine)

	result, err := r.ReviewMergeRequest(context.Background(), "team/shop", testMR(7))
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if !result.IsSuccess || result.ProcessedFiles != 1 || result.SkippedFiles != 4 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.CommentsCreated != 2 || result.ContextFiles != 1 {
		t.Fatalf("unexpected counters %+v", result)
	}

	if len(engine.submitted) != 1 || engine.submitted[0] != "team/shop@main" {
		t.Fatalf("indexing not submitted for target branch: %v", engine.submitted)
	}
	if agent.contexts["app/billing.py"] != "context of app/billing.py in team/shop" {
		t.Fatalf("review context not passed: %q", agent.contexts["app/billing.py"])
	}
	if agent.contents["app/billing.py"] != "def total(items):\n    ..." {
		t.Fatalf("content not loaded at head sha: %q", agent.contents["app/billing.py"])
	}

	if len(provider.comments) != 2 {
		t.Fatalf("expected two posted comments, got %d", len(provider.comments))
	}
	inline, general := provider.comments[0], provider.comments[1]
	if inline.Type != model.CommentTypeInline {
		inline, general = general, inline
	}
	if inline.Type != model.CommentTypeInline || inline.Line != 12 || inline.EndLine != 13 || inline.CommitSHA != "abc123" {
		t.Fatalf("unexpected inline comment %+v", inline)
	}
	if !strings.Contains(inline.Body, "Potential bug") || !strings.Contains(inline.Body, "### Tax is hardcoded") {
		t.Fatalf("unexpected inline body:\n%s", inline.Body)
	}
	if general.Type != model.CommentTypeGeneral || !strings.Contains(general.Body, "`app/billing.py:40`") {
		t.Fatalf("comment outside the diff must be general with a location: %+v", general)
	}
}

func TestReviewSkipsAlreadyReviewedDiff(t *testing.T) {
	provider := &fakeProvider{diffs: []*model.FileDiff{{NewPath: "app/billing.py", Diff: billingDiff}}}
	agent := &fakeAgent{comments: []*model.ReviewAIComment{{Line: 12, IssueType: model.IssueTypeBug}}}
	r := newTestReviewer(t, provider, agent, &fakeEngine{indexed: true})

	for range 2 {
		if _, err := r.ReviewMergeRequest(context.Background(), "team/shop", testMR(7)); err != nil {
			t.Fatalf("review: %v", err)
		}
	}
	if agent.calls["app/billing.py"] != 1 || len(provider.comments) != 1 {
		t.Fatalf("unchanged diff reviewed twice: calls %d, comments %d", agent.calls["app/billing.py"], len(provider.comments))
	}

	changed := testMR(7)
	changed.SHA = "def456"
	result, err := r.ReviewMergeRequest(context.Background(), "team/shop", changed)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if agent.calls["app/billing.py"] != 2 || result.ProcessedFiles != 1 {
		t.Fatalf("new head sha must be reviewed again: %+v", result)
	}
}

func TestReviewCollectsErrors(t *testing.T) {
	provider := &fakeProvider{diffs: []*model.FileDiff{
		{NewPath: "a.py", Diff: billingDiff},
		{NewPath: "b.py", Diff: billingDiff},
	}}
	r := newTestReviewer(t, provider, &fakeAgent{err: errors.New("quota")}, &fakeEngine{indexed: true})

	result, err := r.ReviewMergeRequest(context.Background(), "team/shop", testMR(1))
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if result.IsSuccess || len(result.Errors) != 2 || result.ProcessedFiles != 2 {
		t.Fatalf("unexpected result %+v", result)
	}

	provider.failPost = true
	agent := &fakeAgent{comments: []*model.ReviewAIComment{{Line: 12, IssueType: model.IssueTypeBug}}}
	r = newTestReviewer(t, provider, agent, &fakeEngine{indexed: true})
	result, _ = r.ReviewMergeRequest(context.Background(), "team/shop", testMR(1))
	if result.IsSuccess || result.CommentsCreated != 0 {
		t.Fatalf("failed posting must be reported: %+v", result)
	}
}

func TestReviewNilMergeRequest(t *testing.T) {
	r := newTestReviewer(t, &fakeProvider{}, &fakeAgent{}, &fakeEngine{})
	if _, err := r.ReviewMergeRequest(context.Background(), "x", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestMaxFilesPerMR(t *testing.T) {
	provider := &fakeProvider{}
	for _, name := range []string{"a.py", "b.py", "c.py"} {
		provider.diffs = append(provider.diffs, &model.FileDiff{NewPath: name, Diff: billingDiff})
	}
	r, err := New(Config{MaxFilesPerMR: 2}, provider, &fakeAgent{}, &fakeEngine{indexed: true})
	if err != nil {
		t.Fatalf("new reviewer: %v", err)
	}
	defer r.Close()

	result, _ := r.ReviewMergeRequest(context.Background(), "x", testMR(1))
	if result.ProcessedFiles != 2 || result.SkippedFiles != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestHandleEvent(t *testing.T) {
	provider := &fakeProvider{diffs: []*model.FileDiff{{NewPath: "a.py", Diff: billingDiff}}}
	agent := &fakeAgent{}
	r := newTestReviewer(t, provider, agent, &fakeEngine{indexed: true})

	event := &model.CodeEvent{Type: "push", ProjectID: "team/shop", MergeRequest: testMR(3)}
	if err := r.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := r.HandleEvent(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil event")
	}

	provider.relevant = true
	if err := r.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		agent.mu.Lock()
		calls := agent.calls["a.py"]
		agent.mu.Unlock()
		if calls == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("merge request event was not reviewed")
}

func TestReviewBoundsConcurrentFiles(t *testing.T) {
	provider := &fakeProvider{}
	for _, name := range []string{"a.py", "b.py", "c.py", "d.py", "e.py", "f.py"} {
		provider.diffs = append(provider.diffs, &model.FileDiff{OldPath: name, NewPath: name, Diff: billingDiff, Content: "x = 1"})
	}
	agent := &fakeAgent{delay: 20 * time.Millisecond}

	r, err := New(Config{ConcurrentFiles: 2}, provider, agent, &fakeEngine{indexed: true})
	if err != nil {
		t.Fatalf("new reviewer: %v", err)
	}
	defer r.Close()

	result, err := r.ReviewMergeRequest(context.Background(), "team/shop", testMR(9))
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if !result.IsSuccess || result.ProcessedFiles != 6 {
		t.Fatalf("unexpected result %+v", result)
	}
	if agent.peak > 2 {
		t.Fatalf("expected at most 2 files in flight, got %d", agent.peak)
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := Config{}
	if err := cfg.PrepareAndValidate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxFilesPerMR != defaultMaxFilesPerMR || cfg.FileFilter.MaxFileSize != defaultMaxFileSize || cfg.FileTimeout != defaultFileTimeout {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	cfg = Config{ConcurrentFiles: -1}
	if err := cfg.PrepareAndValidate(); err == nil {
		t.Fatal("expected error for negative limit")
	}
}
