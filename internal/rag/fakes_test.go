package rag

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"unicode"
)

// vocabEmbedder counts occurrences of a fixed vocabulary, so identical text
// always maps to identical vectors and shared words raise similarity
type vocabEmbedder struct {
	vocab []string

	mu    sync.Mutex
	calls int
	// texts containing failOn return an error
	failOn string
	// texts containing shortOn get a vector one element shorter
	shortOn string
}

var testVocab = []string{"invoice", "total", "amount", "tax", "shipping", "parcel", "courier", "route"}

func newVocabEmbedder() *vocabEmbedder {
	return &vocabEmbedder{vocab: testVocab}
}

func (e *vocabEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, errors.New("embedding service unavailable")
	}

	vec := make([]float32, len(e.vocab))
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		if i := slices.Index(e.vocab, w); i >= 0 {
			vec[i]++
		}
	}
	if e.shortOn != "" && strings.Contains(text, e.shortOn) {
		vec = vec[:len(vec)-1]
	}
	return vec, nil
}

func (e *vocabEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// fakeSource serves files from memory in insertion order
type fakeSource struct {
	mu       sync.Mutex
	paths    []string
	files    map[string]string
	failing  map[string]bool
	listErr  error
	projects []string
	fetches  []string

	// when set, ListFiles signals started and waits for release
	started chan struct{}
	release chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		files:   make(map[string]string),
		failing: make(map[string]bool),
	}
}

func (s *fakeSource) add(path, content string) *fakeSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[path]; !ok {
		s.paths = append(s.paths, path)
	}
	s.files[path] = content
	return s
}

func (s *fakeSource) ListFiles(ctx context.Context, projectID, ref string) ([]string, error) {
	s.mu.Lock()
	s.projects = append(s.projects, projectID)
	started, release := s.started, s.release
	s.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return slices.Clone(s.paths), nil
}

func (s *fakeSource) GetFileContent(_ context.Context, _, filePath, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches = append(s.fetches, filePath)
	if s.failing[filePath] {
		return "", errors.New("host api error")
	}
	return s.files[filePath], nil
}

func (s *fakeSource) fetched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.fetches)
}

func testConfig() Config {
	cfg := Config{Workers: 2}
	if err := cfg.PrepareAndValidate(); err != nil {
		panic(err)
	}
	return cfg
}

// numberedLines builds n lines produced by line(i) for i in [1, n]
func numberedLines(n int, line func(i int) string) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		b.WriteString(line(i))
		b.WriteString("\n")
	}
	return b.String()
}
