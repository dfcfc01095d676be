package rag

import (
	"context"
	"sync"
	"time"

	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/model/interfaces"
	"github.com/panjf2000/ants/v2"
)

// Engine is the retrieval-augmented context engine. It owns the repository
// indexes and serves review contexts built from them.
type Engine struct {
	cfg       Config
	store     Store
	indexer   *Indexer
	retriever *Retriever
	resolver  *DependencyResolver
	assembler *ContextAssembler
	pool      *ants.Pool
	log       logze.Logger

	// base context of background tasks, cancelled on Close
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	inFlight map[string]struct{}
	tasks    map[string]*IndexTask
}

// New creates an engine. A nil store means an in-memory store.
func New(cfg Config, source interfaces.FileSource, embedder interfaces.Embedder, store Store) (*Engine, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, erro.Wrap(err, "validate config")
	}
	if source == nil {
		return nil, erro.New("file source is required")
	}
	if embedder == nil {
		return nil, erro.New("embedder is required")
	}
	if store == nil {
		store = NewMemoryStore()
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, erro.Wrap(err, "failed to create ants pool")
	}

	retriever := NewRetriever(store, embedder, cfg)
	resolver := NewDependencyResolver(source, cfg)
	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		cfg:       cfg,
		store:     store,
		indexer:   NewIndexer(source, embedder, store, cfg),
		retriever: retriever,
		resolver:  resolver,
		assembler: NewContextAssembler(retriever, resolver, cfg),
		pool:      pool,
		log:       logze.With("component", "rag_engine"),
		ctx:       ctx,
		cancel:    cancel,
		inFlight:  make(map[string]struct{}),
		tasks:     make(map[string]*IndexTask),
	}, nil
}

// IndexRepository builds and swaps in a new index for the repository and
// returns the number of embedded chunks. Only one run per repository can be
// in flight, a concurrent call returns ErrIndexInProgress without doing work.
func (e *Engine) IndexRepository(ctx context.Context, project, repositoryID, branch string) (int, error) {
	if repositoryID == "" {
		return 0, errm.New("repository id is required")
	}
	if !e.acquire(repositoryID) {
		e.log.Info("indexing already in progress", "repository_id", repositoryID)
		return 0, ErrIndexInProgress
	}
	defer e.release(repositoryID)

	return e.indexer.IndexRepository(ctx, project, repositoryID, branch)
}

// SubmitIndexing schedules a background indexing run. When the repository
// already has a pending or running task, that task is returned with false.
func (e *Engine) SubmitIndexing(project, repositoryID, branch string) (IndexTask, bool) {
	e.mu.Lock()
	if task, ok := e.tasks[repositoryID]; ok && task.IsActive() {
		out := *task
		e.mu.Unlock()
		return out, false
	}
	task := newIndexTask(project, repositoryID, branch)
	e.tasks[repositoryID] = task
	out := *task
	e.mu.Unlock()

	log := e.log.WithFields("repository_id", repositoryID, "task_id", task.ID)

	err := e.pool.Submit(func() {
		e.runTask(task, log)
	})
	if err != nil {
		log.Err(err, "failed to submit indexing task")
		e.finishTask(task, 0, errm.Wrap(err, "submit task"), "")
		return e.snapshot(task), true
	}

	log.Info("indexing task submitted", "branch", branch)
	return out, true
}

// IndexStatus returns the latest indexing task of the repository
func (e *Engine) IndexStatus(repositoryID string) (IndexTask, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	task, ok := e.tasks[repositoryID]
	if !ok {
		return IndexTask{}, false
	}
	return *task, true
}

// IsIndexed reports whether the repository has a non-empty index
func (e *Engine) IsIndexed(repositoryID string) bool {
	return e.ChunkCount(repositoryID) > 0
}

// ChunkCount returns the number of chunks in the repository index
func (e *Engine) ChunkCount(repositoryID string) int {
	idx, err := e.Index(e.ctx, repositoryID)
	if err != nil {
		e.log.Warn("failed to get index", "repository_id", repositoryID, "error", err)
		return 0
	}
	return idx.Len()
}

// Index returns the current snapshot of the repository, nil if there is none
func (e *Engine) Index(ctx context.Context, repositoryID string) (*RepositoryIndex, error) {
	return e.store.Get(ctx, repositoryID)
}

// ClearIndex drops the repository index. It refuses while indexing is running.
func (e *Engine) ClearIndex(ctx context.Context, repositoryID string) error {
	if !e.acquire(repositoryID) {
		return ErrIndexInProgress
	}
	defer e.release(repositoryID)

	if err := e.store.Delete(ctx, repositoryID); err != nil {
		return errm.Wrap(err, "failed to delete index", "repository_id", repositoryID)
	}
	e.log.Info("index cleared", "repository_id", repositoryID)
	return nil
}

// BuildReviewContext assembles the context for reviewing one file.
// It degrades to fewer sections instead of failing.
func (e *Engine) BuildReviewContext(ctx context.Context, file *model.FileDiff, pr *model.MergeRequest, project, repositoryID string) string {
	return e.assembler.Build(ctx, file, pr, project, repositoryID)
}

// Retrieve returns indexed chunks similar to the file diff
func (e *Engine) Retrieve(ctx context.Context, file *model.FileDiff, repositoryID string, maxResults int) ([]model.RetrievalResult, error) {
	return e.retriever.Retrieve(ctx, file, repositoryID, maxResults)
}

// Search returns indexed chunks similar to a free-form text
func (e *Engine) Search(ctx context.Context, repositoryID, query string, maxResults int) ([]model.RetrievalResult, error) {
	return e.retriever.Search(ctx, repositoryID, query, maxResults)
}

// ResolveDependencies guesses the repository files imported by a file
func (e *Engine) ResolveDependencies(content, filePath string) []model.DependencyReference {
	return e.resolver.Resolve(content, filePath)
}

// Close cancels running tasks and releases the worker pool
func (e *Engine) Close() {
	e.cancel()
	e.pool.Release()
}

func (e *Engine) runTask(task *IndexTask, log logze.Logger) {
	e.mu.Lock()
	task.Status = TaskRunning
	task.StartedAt = time.Now()
	e.mu.Unlock()

	chunks, err := e.IndexRepository(e.ctx, task.Project, task.RepositoryID, task.Branch)
	if errm.Is(err, ErrIndexInProgress) {
		// a direct IndexRepository call holds the repository, its run covers this task
		e.finishTask(task, e.ChunkCount(task.RepositoryID), nil, noteMerged)
		log.Info("indexing task merged into a running indexing")
		return
	}
	e.finishTask(task, chunks, err, "")

	if err != nil {
		log.Err(err, "indexing task failed")
		return
	}
	log.Info("indexing task finished", "chunks", chunks)
}

func (e *Engine) finishTask(task *IndexTask, chunks int, err error, note string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	task.FinishedAt = time.Now()
	task.Chunks = chunks
	task.Note = note
	if err != nil {
		task.Status = TaskFailed
		task.Error = err.Error()
		return
	}
	task.Status = TaskDone
}

func (e *Engine) snapshot(task *IndexTask) IndexTask {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *task
}

func (e *Engine) acquire(repositoryID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.inFlight[repositoryID]; ok {
		return false
	}
	e.inFlight[repositoryID] = struct{}{}
	return true
}

func (e *Engine) release(repositoryID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, repositoryID)
}
