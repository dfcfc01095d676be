package app

import (
	"context"
	"time"

	"github.com/maxbolgarin/contem"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/ragreview/internal/agent"
	"github.com/maxbolgarin/ragreview/internal/embedder"
	"github.com/maxbolgarin/ragreview/internal/mcp"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/model/interfaces"
	"github.com/maxbolgarin/ragreview/internal/provider"
	"github.com/maxbolgarin/ragreview/internal/rag"
	"github.com/maxbolgarin/ragreview/internal/reviewer"
	"github.com/maxbolgarin/ragreview/internal/server"
	"github.com/maxbolgarin/ragreview/internal/storage/postgres"
)

const indexPollInterval = 2 * time.Second

// RAGReview wires the provider, the retrieval engine and the reviewer.
// The reviewer and its agent are created only by commands that review.
type RAGReview struct {
	provider interfaces.CodeProvider
	fetcher  *provider.Fetcher
	engine   *rag.Engine
	reviewer *reviewer.Reviewer

	ctx contem.Context
	cfg Config
	log logze.Logger
}

// New creates the provider and the engine, resources are released on ctx shutdown
func New(ctx contem.Context, cfg Config) (*RAGReview, error) {
	s := &RAGReview{
		ctx: ctx,
		cfg: cfg,
		log: logze.With("component", "app"),
	}

	if err := s.init(ctx, cfg); err != nil {
		return nil, errm.Wrap(err, "failed to initialize service")
	}

	return s, nil
}

// Serve starts the webhook server and blocks until ctx is done
func (s *RAGReview) Serve(ctx context.Context) error {
	if err := s.initReviewer(); err != nil {
		return err
	}

	srv, err := server.New(s.cfg.Server, s.provider, s.reviewer, s.engine)
	if err != nil {
		return errm.Wrap(err, "failed to create server")
	}
	s.ctx.Add(srv.Stop)

	started := make(chan error, 1)
	go func() {
		started <- srv.Start(ctx)
	}()

	select {
	case err := <-started:
		if err != nil {
			return errm.Wrap(err, "failed to start server")
		}
		s.log.Info("server started", "address", s.cfg.Server.Address, "endpoint", s.cfg.Server.Endpoint)
		<-ctx.Done()
	case <-ctx.Done():
	}
	return nil
}

// Review reviews one merge request, or every open one when mrIID is zero
func (s *RAGReview) Review(ctx context.Context, projectID string, mrIID int) error {
	if err := s.initReviewer(); err != nil {
		return err
	}

	if mrIID > 0 {
		result, err := s.reviewer.GetAndReviewMergeRequest(ctx, projectID, mrIID)
		if err != nil {
			return errm.Wrap(err, "failed to review merge request", "mr_iid", mrIID)
		}
		return result.Err()
	}

	mrs, err := s.fetcher.FetchOpenMRs(ctx, projectID)
	if err != nil {
		return errm.Wrap(err, "failed to fetch open merge requests")
	}
	s.log.Info("reviewing open merge requests", "project", projectID, "count", len(mrs))

	errs := errm.NewList()
	for _, mr := range mrs {
		result, err := s.reviewer.ReviewMergeRequest(ctx, projectID, mr)
		if err != nil {
			errs.Wrap(err, "review merge request", "mr_iid", mr.IID)
			continue
		}
		if err := result.Err(); err != nil {
			errs.Wrap(err, "review merge request", "mr_iid", mr.IID)
		}
	}
	return errs.Err()
}

// Index builds the index of a repository and waits for the task to finish
func (s *RAGReview) Index(ctx context.Context, project, repository, branch string) error {
	repositoryID := model.ProjectPath(project, repository)
	if repositoryID == "" {
		return errm.New("repository is required")
	}

	task, submitted := s.engine.SubmitIndexing("", repositoryID, branch)
	log := s.log.WithFields("repository_id", repositoryID, "task_id", task.ID)
	log.InfoIf(!submitted, "indexing is already running, waiting for it")

	ticker := time.NewTicker(indexPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		task, ok := s.engine.IndexStatus(repositoryID)
		if !ok {
			return errm.New("indexing task of %q disappeared", repositoryID)
		}
		switch task.Status {
		case rag.TaskDone:
			log.Info("repository indexed", "chunks", task.Chunks, "elapsed", task.Duration(), "note", task.Note)
			return nil
		case rag.TaskFailed:
			return errm.New("indexing of %q failed: %s", repositoryID, task.Error)
		}
		log.Debug("indexing in progress", "status", task.Status)
	}
}

// ServeMCP exposes the engine as MCP tools over stdio
func (s *RAGReview) ServeMCP(version string) error {
	srv, err := mcp.New(s.engine, version)
	if err != nil {
		return errm.Wrap(err, "failed to create mcp server")
	}
	return srv.ServeStdio()
}

func (s *RAGReview) init(ctx contem.Context, cfg Config) (err error) {
	s.provider, err = provider.NewProvider(cfg.Provider)
	if err != nil {
		return errm.Wrap(err, "failed to create VCS provider")
	}
	s.fetcher = provider.NewFetcher(s.provider)

	emb, err := embedder.New(ctx, cfg.Embedder)
	if err != nil {
		return errm.Wrap(err, "failed to create embedder")
	}

	var store rag.Store
	if cfg.Postgres.IsEnabled() {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return errm.Wrap(err, "failed to open postgres store")
		}
		ctx.Add(func(context.Context) error { return pg.Close() })
		store = rag.NewCachedStore(pg)
		s.log.Info("using postgres index store")
	}

	cfg.RAG.Dimension = lang.Check(cfg.RAG.Dimension, cfg.Embedder.Dimension)
	s.engine, err = rag.New(cfg.RAG, s.provider, emb, store)
	if err != nil {
		return errm.Wrap(err, "failed to create rag engine")
	}
	ctx.Add(func(context.Context) error {
		s.engine.Close()
		return nil
	})

	return nil
}

func (s *RAGReview) initReviewer() error {
	if s.reviewer != nil {
		return nil
	}

	ag, err := agent.New(s.ctx, s.cfg.Agent)
	if err != nil {
		return errm.Wrap(err, "failed to create AI agent")
	}

	s.reviewer, err = reviewer.New(s.cfg.Reviewer, s.provider, ag, s.engine)
	if err != nil {
		return errm.Wrap(err, "failed to create reviewer")
	}
	s.ctx.Add(func(context.Context) error {
		s.reviewer.Close()
		return nil
	})

	return nil
}
