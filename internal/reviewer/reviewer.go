package reviewer

import (
	"context"

	"github.com/maxbolgarin/abstract"
	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/ragreview/internal/agent/prompts"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/model/interfaces"
	"github.com/maxbolgarin/ragreview/internal/rag"
	"github.com/panjf2000/ants/v2"
)

// CodeReviewer reviews a single changed file with the given repository context
type CodeReviewer interface {
	ReviewCode(ctx context.Context, file *model.FileDiff, reviewContext string) (*model.FileReviewResult, error)
	Headers() prompts.CommentHeaders
}

// ContextEngine provides repository context for a changed file
type ContextEngine interface {
	IsIndexed(repositoryID string) bool
	SubmitIndexing(project, repositoryID, branch string) (rag.IndexTask, bool)
	BuildReviewContext(ctx context.Context, file *model.FileDiff, pr *model.MergeRequest, project, repositoryID string) string
}

// Reviewer posts review comments on merge requests
type Reviewer struct {
	provider interfaces.CodeProvider
	agent    CodeReviewer
	engine   ContextEngine
	filter   *fileFilter
	pool     *ants.Pool

	cfg Config
	log logze.Logger

	// request key -> file path -> diff hash
	processed *abstract.SafeMapOfMaps[string, string, string]
}

func New(cfg Config, provider interfaces.CodeProvider, agent CodeReviewer, engine ContextEngine) (*Reviewer, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, erro.Wrap(err, "failed to prepare and validate config")
	}
	if provider == nil || agent == nil || engine == nil {
		return nil, erro.New("provider, agent and engine are required")
	}

	pool, err := ants.NewPool(cfg.PoolSize)
	if err != nil {
		return nil, erro.Wrap(err, "failed to create ants pool")
	}

	return &Reviewer{
		provider:  provider,
		agent:     agent,
		engine:    engine,
		filter:    newFileFilter(cfg.FileFilter),
		pool:      pool,
		cfg:       cfg,
		log:       logze.With("component", "reviewer"),
		processed: abstract.NewSafeMapOfMaps[string, string, string](),
	}, nil
}

// HandleEvent schedules a review for merge request events and ignores the rest
func (s *Reviewer) HandleEvent(ctx context.Context, event *model.CodeEvent) error {
	if event == nil {
		return erro.New("event is nil")
	}
	log := s.log.WithFields(
		"event_type", event.Type,
		"action", event.Action,
		"project_id", event.ProjectID,
	)

	if !s.provider.IsMergeRequestEvent(event) {
		log.Debug("unhandled webhook event")
		return nil
	}
	log.Info("scheduling merge request review", "mr_iid", event.MergeRequest.IID)

	return s.pool.Submit(func() {
		if _, err := s.GetAndReviewMergeRequest(ctx, event.ProjectID, event.MergeRequest.IID); err != nil {
			log.Err(err, "failed to review merge request", "mr_iid", event.MergeRequest.IID)
		}
	})
}

// Close releases the pool
func (s *Reviewer) Close() {
	s.pool.Release()
}
