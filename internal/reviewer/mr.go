package reviewer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/maxbolgarin/abstract"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/panjf2000/ants/v2"
)

// GetAndReviewMergeRequest gets a merge request by IID and reviews it
func (s *Reviewer) GetAndReviewMergeRequest(ctx context.Context, projectID string, mrIID int) (*model.ReviewResult, error) {
	mr, err := s.provider.GetMergeRequest(ctx, projectID, mrIID)
	if err != nil {
		return nil, errm.Wrap(err, "failed to get merge request")
	}
	return s.ReviewMergeRequest(ctx, projectID, mr)
}

// ReviewMergeRequest reviews every eligible changed file and posts the comments.
// Failures of single files are collected in the result and do not stop the review.
func (s *Reviewer) ReviewMergeRequest(ctx context.Context, projectID string, mr *model.MergeRequest) (*model.ReviewResult, error) {
	if mr == nil {
		return nil, errm.New("merge request is nil")
	}
	log := s.log.WithFields(
		"project_id", projectID,
		"mr_iid", mr.IID,
		"branch_from", mr.SourceBranch,
		"branch_to", mr.TargetBranch,
		"commit_sha", lang.TruncateString(mr.SHA, 8),
	)
	log.Info("starting merge request review", "title", mr.Title)

	diffs, err := s.provider.GetMergeRequestDiffs(ctx, projectID, mr.IID)
	if err != nil {
		return nil, errm.Wrap(err, "failed to get merge request diffs")
	}

	request := model.ReviewRequest{
		ProjectID:    projectID,
		MergeRequest: mr,
		Changes:      diffs,
	}
	result := &model.ReviewResult{}
	timer := abstract.StartTimer()
	defer s.logProcessingResults(result, timer, log)

	files := s.filterFilesForReview(request, result, log)
	if len(files) == 0 {
		result.IsSuccess = true
		return result, nil
	}

	s.ensureIndexed(projectID, mr, log)

	pool, err := ants.NewPool(s.cfg.ConcurrentFiles)
	if err != nil {
		return nil, errm.Wrap(err, "failed to create file review pool")
	}
	defer pool.Release()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			outcome := s.reviewFile(ctx, request, file, log)

			mu.Lock()
			defer mu.Unlock()
			outcome.apply(result)
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			result.Errors = append(result.Errors, errm.Wrap(err, "failed to submit file review", "file", file.Path()))
			mu.Unlock()
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		result.Errors = append(result.Errors, errm.Wrap(err, "review interrupted"))
	}

	result.IsSuccess = len(result.Errors) == 0
	return result, nil
}

type fileOutcome struct {
	skipped     bool
	withContext bool
	comments    int
	err         error
}

func (o fileOutcome) apply(result *model.ReviewResult) {
	switch {
	case o.skipped:
		result.SkippedFiles++
	default:
		result.ProcessedFiles++
	}
	if o.withContext {
		result.ContextFiles++
	}
	result.CommentsCreated += o.comments
	if o.err != nil {
		result.Errors = append(result.Errors, o.err)
	}
}

func (s *Reviewer) reviewFile(ctx context.Context, request model.ReviewRequest, file *model.FileDiff, log logze.Logger) (out fileOutcome) {
	mr := request.MergeRequest
	path := file.Path()
	log = log.WithFields("file", path)

	key := request.Key()
	hash := diffHash(file.Diff)
	if old, ok := s.processed.Lookup(key, path); ok && old == hash {
		log.DebugIf(s.cfg.Verbose, "skipping already reviewed")
		return fileOutcome{skipped: true}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.FileTimeout)
	defer cancel()

	s.loadContent(ctx, request, file, log)

	reviewContext := s.engine.BuildReviewContext(ctx, file, mr, "", request.ProjectID)
	out.withContext = reviewContext != ""

	review, err := s.agent.ReviewCode(ctx, file, reviewContext)
	if err != nil {
		log.Err(err, "failed to review file")
		out.err = errm.Wrap(err, "failed to review file", "file", path)
		return out
	}

	if !review.HasIssues {
		log.DebugIf(s.cfg.Verbose, "no issues found")
		s.processed.Set(key, path, hash)
		return out
	}

	visible := changedLines(file.Diff)
	headers := s.agent.Headers()
	errs := errm.NewList()
	for _, c := range review.Comments {
		comment := buildComment(headers, c, path, mr.SHA, visible)
		if err := s.provider.CreateComment(ctx, request.ProjectID, mr.IID, comment); err != nil {
			log.Err(err, "failed to create comment", "line", c.Line)
			errs.Wrap(err, "failed to create comment", "file", path, "line", c.Line)
			continue
		}
		out.comments++
		log.DebugIf(s.cfg.Verbose, "comment created", "line", c.Line, "type", c.IssueType, "inline", comment.Type == model.CommentTypeInline)
	}
	out.err = errs.Err()

	if out.err == nil {
		s.processed.Set(key, path, hash)
	}
	log.InfoIf(s.cfg.Verbose, "file reviewed", "comments", out.comments)

	return out
}

// loadContent fetches the current and previous file versions when the provider did not send them
func (s *Reviewer) loadContent(ctx context.Context, request model.ReviewRequest, file *model.FileDiff, log logze.Logger) {
	mr := request.MergeRequest

	if file.Content == "" {
		content, err := s.provider.GetFileContent(ctx, request.ProjectID, file.Path(), lang.Check(mr.SHA, mr.SourceBranch))
		if err != nil {
			log.Warn("failed to load file content", "error", err)
		}
		file.Content = content
	}

	if file.PreviousContent == "" && !file.IsNew && mr.TargetBranch != "" {
		content, err := s.provider.GetFileContent(ctx, request.ProjectID, lang.Check(file.OldPath, file.NewPath), mr.TargetBranch)
		if err != nil {
			log.Warn("failed to load previous file content", "error", err)
		}
		file.PreviousContent = content
	}
}

func (s *Reviewer) ensureIndexed(projectID string, mr *model.MergeRequest, log logze.Logger) {
	if s.cfg.NoIndexOnDemand || s.engine.IsIndexed(projectID) {
		return
	}
	task, submitted := s.engine.SubmitIndexing("", projectID, mr.TargetBranch)
	log.InfoIf(submitted, "repository is not indexed, indexing submitted", "task_id", task.ID)
	log.DebugIf(!submitted, "repository indexing is already running", "task_id", task.ID)
}

func (s *Reviewer) filterFilesForReview(request model.ReviewRequest, result *model.ReviewResult, log logze.Logger) []*model.FileDiff {
	var filtered []*model.FileDiff

	for _, file := range request.Changes {
		if reason, ok := s.filter.skipReason(file); ok {
			log.DebugIf(s.cfg.Verbose, "skipping file", "file", file.Path(), "reason", reason)
			result.SkippedFiles++
			continue
		}
		if len(filtered) >= s.cfg.MaxFilesPerMR {
			log.Warn("reached maximum files limit", "limit", s.cfg.MaxFilesPerMR)
			result.SkippedFiles++
			continue
		}
		filtered = append(filtered, file)
	}

	log.InfoIf(s.cfg.Verbose, "found files to review", "total_files", len(filtered))

	return filtered
}

func (s *Reviewer) logProcessingResults(result *model.ReviewResult, timer abstract.Timer, log logze.Logger) {
	log = log.WithFields(append(result.Fields(), "elapsed_time", timer.ElapsedTime().String())...)
	if result.IsSuccess {
		log.Info("successfully reviewed")
		return
	}

	log.Error("review completed with errors", "error_count", len(result.Errors))
	for _, err := range result.Errors {
		log.Err(err, "processing error")
	}
}

func diffHash(diff string) string {
	sum := sha256.Sum256([]byte(diff))
	return hex.EncodeToString(sum[:8])
}
