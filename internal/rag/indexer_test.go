package rag

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/maxbolgarin/errm"
)

func codeLines(n int) string {
	return numberedLines(n, func(i int) string { return "invoice total amount line" + strconv.Itoa(i) })
}

func TestIndexRepository(t *testing.T) {
	source := newFakeSource().
		add("src/billing.py", codeLines(150)).
		add("src/tiny.py", "x = 1\n").
		add("assets/logo.png", codeLines(10)).
		add("node_modules/lib/index.js", codeLines(10))
	store := NewMemoryStore()
	embedder := newVocabEmbedder()

	n, err := NewIndexer(source, embedder, store, testConfig()).IndexRepository(context.Background(), "team", "shop", "main")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 chunks, got %d", n)
	}

	idx, _ := store.Get(context.Background(), "shop")
	if idx.Len() != 2 || idx.Files != 1 || idx.Dimension != len(testVocab) || idx.Branch != "main" {
		t.Fatalf("unexpected index %+v", idx)
	}
	for _, c := range idx.Chunks {
		if c.FilePath != "src/billing.py" || len(c.Embedding) == 0 {
			t.Fatalf("unexpected chunk %s", c.Location)
		}
	}

	fetched := source.fetched()
	if slices.Contains(fetched, "assets/logo.png") || slices.Contains(fetched, "node_modules/lib/index.js") {
		t.Fatalf("excluded files were fetched: %v", fetched)
	}
	if source.projects[0] != "team/shop" {
		t.Fatalf("unexpected project id %q", source.projects[0])
	}
	if embedder.Calls() != 2 {
		t.Fatalf("expected 2 embedding calls, got %d", embedder.Calls())
	}
}

func TestIndexRepositoryIsIdempotent(t *testing.T) {
	source := newFakeSource().add("a.py", codeLines(150)).add("b.py", codeLines(80))
	store := NewMemoryStore()
	x := NewIndexer(source, newVocabEmbedder(), store, testConfig())

	first, err := x.IndexRepository(context.Background(), "", "repo", "main")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := x.IndexRepository(context.Background(), "", "repo", "main")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	idx, _ := store.Get(context.Background(), "repo")
	if first != second || idx.Len() != first {
		t.Fatalf("runs produced %d and %d chunks, index holds %d", first, second, idx.Len())
	}
}

func TestIndexRepositoryEmptyListingKeepsIndex(t *testing.T) {
	store := NewMemoryStore()
	if _, err := NewIndexer(newFakeSource().add("a.py", codeLines(20)), newVocabEmbedder(), store, testConfig()).
		IndexRepository(context.Background(), "", "repo", "main"); err != nil {
		t.Fatalf("index: %v", err)
	}

	n, err := NewIndexer(newFakeSource(), newVocabEmbedder(), store, testConfig()).
		IndexRepository(context.Background(), "", "repo", "main")
	if err != nil || n != 0 {
		t.Fatalf("expected 0 chunks without error, got %d, %v", n, err)
	}

	idx, _ := store.Get(context.Background(), "repo")
	if idx.Len() != 1 {
		t.Fatalf("index was replaced, has %d chunks", idx.Len())
	}
}

func TestIndexRepositoryListingFailureKeepsIndex(t *testing.T) {
	source := newFakeSource().add("a.py", codeLines(20))
	store := NewMemoryStore()
	x := NewIndexer(source, newVocabEmbedder(), store, testConfig())

	if _, err := x.IndexRepository(context.Background(), "", "repo", "main"); err != nil {
		t.Fatalf("index: %v", err)
	}

	source.listErr = errors.New("rate limited")
	if _, err := x.IndexRepository(context.Background(), "", "repo", "main"); err == nil {
		t.Fatal("expected listing error")
	}

	idx, _ := store.Get(context.Background(), "repo")
	if idx.Len() != 1 {
		t.Fatalf("previous index lost, has %d chunks", idx.Len())
	}
}

func TestIndexRepositorySkipsFailures(t *testing.T) {
	source := newFakeSource().
		add("ok.py", codeLines(20)).
		add("broken.py", codeLines(20)).
		add("shipping.py", numberedLines(20, func(int) string { return "shipping parcel courier route" }))
	source.failing["broken.py"] = true

	embedder := newVocabEmbedder()
	embedder.failOn = "shipping"

	store := NewMemoryStore()
	n, err := NewIndexer(source, embedder, store, testConfig()).IndexRepository(context.Background(), "", "repo", "main")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected only ok.py to be indexed, got %d chunks", n)
	}

	idx, _ := store.Get(context.Background(), "repo")
	if idx.Chunks[0].FilePath != "ok.py" {
		t.Fatalf("unexpected chunk %s", idx.Chunks[0].Location)
	}
}

func TestIndexRepositorySkipsInconsistentDimension(t *testing.T) {
	source := newFakeSource().
		add("a.py", codeLines(20)).
		add("b.py", numberedLines(20, func(int) string { return "shipping parcel courier route" }))

	embedder := newVocabEmbedder()
	embedder.shortOn = "shipping"

	n, err := NewIndexer(source, embedder, NewMemoryStore(), testConfig()).IndexRepository(context.Background(), "", "repo", "main")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 chunk, got %d", n)
	}
}

func TestIndexRepositoryFileCap(t *testing.T) {
	source := newFakeSource()
	for i := range 5 {
		source.add("f"+strconv.Itoa(i)+".py", codeLines(10))
	}

	cfg := testConfig()
	cfg.MaxFilesPerRun = 3
	n, err := NewIndexer(source, newVocabEmbedder(), NewMemoryStore(), cfg).IndexRepository(context.Background(), "", "repo", "main")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 chunks, got %d", n)
	}
	if got := source.fetched(); !slices.Equal(got, []string{"f0.py", "f1.py", "f2.py"}) {
		t.Fatalf("unexpected fetches %v", got)
	}

	cfg.MaxFilesPerRun = UnlimitedFiles
	n, err = NewIndexer(source, newVocabEmbedder(), NewMemoryStore(), cfg).IndexRepository(context.Background(), "", "repo", "main")
	if err != nil || n != 5 {
		t.Fatalf("expected 5 chunks without cap, got %d, %v", n, err)
	}
}

func TestIndexRepositoryCancelled(t *testing.T) {
	source := newFakeSource().add("a.py", codeLines(20))
	store := NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewIndexer(source, newVocabEmbedder(), store, testConfig()).IndexRepository(ctx, "", "repo", "main")
	if !errm.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if idx, _ := store.Get(context.Background(), "repo"); idx != nil {
		t.Fatal("index stored after cancellation")
	}
}

func TestIndexRepositoryChunkContent(t *testing.T) {
	content := codeLines(150)
	store := NewMemoryStore()
	if _, err := NewIndexer(newFakeSource().add("a.py", content), newVocabEmbedder(), store, testConfig()).
		IndexRepository(context.Background(), "", "repo", "main"); err != nil {
		t.Fatalf("index: %v", err)
	}

	idx, _ := store.Get(context.Background(), "repo")
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	for _, c := range idx.Chunks {
		want := strings.Join(lines[c.StartLine-1:c.EndLine], "\n")
		if c.Content != want {
			t.Fatalf("chunk %s content does not match source lines", c.Location)
		}
	}
}

// shrinkFirstEmbedder truncates the vector of the first call to size values
type shrinkFirstEmbedder struct {
	*vocabEmbedder
	size  int
	calls int
}

func (e *shrinkFirstEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.vocabEmbedder.Embed(ctx, text)
	e.calls++
	if err == nil && e.calls == 1 {
		vec = vec[:e.size]
	}
	return vec, err
}

func TestIndexRepositoryKeepsCommonDimension(t *testing.T) {
	source := newFakeSource()
	for i := range 4 {
		source.add("f"+strconv.Itoa(i)+".py", codeLines(10))
	}
	embedder := &shrinkFirstEmbedder{vocabEmbedder: newVocabEmbedder(), size: 3}
	store := NewMemoryStore()

	n, err := NewIndexer(source, embedder, store, testConfig()).IndexRepository(context.Background(), "", "repo", "main")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected the 3 chunks of the common size, got %d", n)
	}

	idx, _ := store.Get(context.Background(), "repo")
	if idx.Dimension != len(testVocab) || idx.Files != 3 {
		t.Fatalf("unexpected index %+v", idx)
	}
	for _, c := range idx.Chunks {
		if c.FilePath == "f0.py" {
			t.Fatal("chunk with the odd embedding size was indexed")
		}
	}
}

func TestIndexRepositoryConfiguredDimension(t *testing.T) {
	source := newFakeSource()
	for i := range 4 {
		source.add("f"+strconv.Itoa(i)+".py", codeLines(10))
	}
	embedder := &shrinkFirstEmbedder{vocabEmbedder: newVocabEmbedder(), size: 3}

	cfg := testConfig()
	cfg.Dimension = 3
	store := NewMemoryStore()
	n, err := NewIndexer(source, embedder, store, cfg).IndexRepository(context.Background(), "", "repo", "main")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected only the chunk of the configured size, got %d", n)
	}
	if idx, _ := store.Get(context.Background(), "repo"); idx.Dimension != 3 {
		t.Fatalf("unexpected dimension %d", idx.Dimension)
	}
}

func TestIndexRepositoryEmbedderDownKeepsIndex(t *testing.T) {
	source := newFakeSource().add("a.py", codeLines(20))
	store := NewMemoryStore()
	embedder := newVocabEmbedder()
	x := NewIndexer(source, embedder, store, testConfig())

	if _, err := x.IndexRepository(context.Background(), "", "repo", "main"); err != nil {
		t.Fatalf("index: %v", err)
	}

	embedder.failOn = "invoice"
	n, err := x.IndexRepository(context.Background(), "", "repo", "main")
	if !errm.Is(err, ErrNothingIndexed) || n != 0 {
		t.Fatalf("expected nothing indexed error, got %d, %v", n, err)
	}

	idx, _ := store.Get(context.Background(), "repo")
	if idx.Len() != 1 {
		t.Fatalf("previous index lost, has %d chunks", idx.Len())
	}
}
