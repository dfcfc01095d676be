package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/model/interfaces"
	"github.com/maxbolgarin/ragreview/internal/rag"

	jsoniter "github.com/json-iterator/go"
)

type fakeProvider struct {
	interfaces.CodeProvider

	secret   string
	relevant bool
}

func (p *fakeProvider) ValidateWebhook(_ []byte, token string) error {
	if token != p.secret {
		return errors.New("bad token")
	}
	return nil
}

func (p *fakeProvider) ParseWebhookEvent(payload []byte) (*model.CodeEvent, error) {
	if !strings.HasPrefix(string(payload), "{") {
		return nil, errors.New("not json")
	}
	return &model.CodeEvent{Type: "merge_request", Action: "open", MergeRequest: &model.MergeRequest{IID: 1}}, nil
}

func (p *fakeProvider) IsMergeRequestEvent(*model.CodeEvent) bool { return p.relevant }

type fakeHandler struct {
	mu     sync.Mutex
	events []*model.CodeEvent
}

func (h *fakeHandler) HandleEvent(_ context.Context, event *model.CodeEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

type fakeIndexes struct {
	chunks    map[string]int
	tasks     map[string]rag.IndexTask
	submitted []string
	clearErr  error
	cleared   []string
}

func (f *fakeIndexes) SubmitIndexing(project, repositoryID, branch string) (rag.IndexTask, bool) {
	f.submitted = append(f.submitted, repositoryID+"@"+branch)
	task := rag.IndexTask{ID: "t1", RepositoryID: repositoryID, Branch: branch, Status: rag.TaskPending}
	f.tasks[repositoryID] = task
	return task, true
}

func (f *fakeIndexes) IndexStatus(repositoryID string) (rag.IndexTask, bool) {
	task, ok := f.tasks[repositoryID]
	return task, ok
}

func (f *fakeIndexes) ChunkCount(repositoryID string) int { return f.chunks[repositoryID] }

func (f *fakeIndexes) ClearIndex(_ context.Context, repositoryID string) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = append(f.cleared, repositoryID)
	return nil
}

func newTestServer(t *testing.T, provider *fakeProvider, handler *fakeHandler, indexes *fakeIndexes) *Server {
	t.Helper()
	s, err := New(Config{}, provider, handler, indexes)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return s
}

func newIndexes() *fakeIndexes {
	return &fakeIndexes{chunks: map[string]int{}, tasks: map[string]rag.IndexTask{}}
}

func TestWebhook(t *testing.T) {
	provider := &fakeProvider{secret: "s3cret", relevant: true}
	handler := &fakeHandler{}
	s := newTestServer(t, provider, handler, newIndexes())

	tests := []struct {
		name   string
		method string
		token  string
		body   string
		code   int
	}{
		{"wrong method", http.MethodGet, "s3cret", "{}", http.StatusMethodNotAllowed},
		{"bad token", http.MethodPost, "nope", "{}", http.StatusUnauthorized},
		{"bad payload", http.MethodPost, "s3cret", "plain", http.StatusBadRequest},
		{"accepted", http.MethodPost, "s3cret", "{}", http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/webhook", strings.NewReader(tt.body))
			req.Header.Set("X-Gitlab-Token", tt.token)
			rec := httptest.NewRecorder()

			s.handleWebhook(rec, req)
			if rec.Code != tt.code {
				t.Fatalf("got %d, want %d", rec.Code, tt.code)
			}
		})
	}
	if len(handler.events) != 1 {
		t.Fatalf("expected one handled event, got %d", len(handler.events))
	}

	provider.relevant = false
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{}"))
	req.Header.Set("X-Gitlab-Token", "s3cret")
	rec := httptest.NewRecorder()
	s.handleWebhook(rec, req)
	if rec.Code != http.StatusOK || len(handler.events) != 1 {
		t.Fatalf("irrelevant event must be acknowledged and dropped: %d", rec.Code)
	}
}

func TestIndexAPI(t *testing.T) {
	indexes := newIndexes()
	s := newTestServer(t, &fakeProvider{}, &fakeHandler{}, indexes)

	do := func(method, target, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.handleIndex(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
		return rec
	}

	if rec := do(http.MethodGet, "/api/index?project=team&repository=shop", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown repository: got %d", rec.Code)
	}

	rec := do(http.MethodPost, "/api/index", `{"project":"team","repository":"shop","branch":"main"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit: got %d", rec.Code)
	}
	var submitted indexResponse
	if err := jsoniter.Unmarshal(rec.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if submitted.RepositoryID != "team/shop" || !submitted.Submitted || submitted.Task == nil || submitted.Task.ID != "t1" {
		t.Fatalf("unexpected response %+v", submitted)
	}
	if len(indexes.submitted) != 1 || indexes.submitted[0] != "team/shop@main" {
		t.Fatalf("unexpected submissions %v", indexes.submitted)
	}

	indexes.chunks["team/shop"] = 12
	rec = do(http.MethodGet, "/api/index?repository=team/shop", "")
	var status indexResponse
	if err := jsoniter.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusOK || !status.Indexed || status.Chunks != 12 || status.Task.Status != rag.TaskPending {
		t.Fatalf("unexpected status %d %+v", rec.Code, status)
	}

	if rec := do(http.MethodPost, "/api/index", `{"branch":"main"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing repository: got %d", rec.Code)
	}
	if rec := do(http.MethodPost, "/api/index", `{broken`); rec.Code != http.StatusBadRequest {
		t.Fatalf("broken body: got %d", rec.Code)
	}

	if rec := do(http.MethodDelete, "/api/index?repository=team/shop", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d", rec.Code)
	}
	if len(indexes.cleared) != 1 || indexes.cleared[0] != "team/shop" {
		t.Fatalf("unexpected cleared %v", indexes.cleared)
	}

	indexes.clearErr = rag.ErrIndexInProgress
	if rec := do(http.MethodDelete, "/api/index?repository=team/shop", ""); rec.Code != http.StatusConflict {
		t.Fatalf("delete during indexing: got %d", rec.Code)
	}
	if rec := do(http.MethodDelete, "/api/index", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("delete without repository: got %d", rec.Code)
	}
	if rec := do(http.MethodPut, "/api/index", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("put: got %d", rec.Code)
	}
}

func TestConfig(t *testing.T) {
	var cfg Config
	if err := cfg.PrepareAndValidate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Address != defaultAddress || cfg.IndexEndpoint != defaultIndexEndpoint || cfg.Timeout != defaultTimeout {
		t.Fatalf("defaults not applied: %+v", cfg)
	}

	for _, bad := range []Config{
		{Endpoint: "webhook"},
		{Endpoint: "/hook", IndexEndpoint: "/hook"},
		{EnableHTTPS: true},
	} {
		if err := bad.PrepareAndValidate(); err == nil {
			t.Fatalf("expected error for %+v", bad)
		}
	}
}
