package model

import (
	"slices"
	"strconv"
	"time"

	"github.com/maxbolgarin/errm"
)

// CodeEvent is a parsed webhook of any provider. Type and Action keep the provider's own names.
type CodeEvent struct {
	Type         string
	Action       string
	ProjectID    string
	MergeRequest *MergeRequest
	User         *User
	ReceivedAt   time.Time
}

// SentBy reports whether username triggered the event
func (e *CodeEvent) SentBy(username string) bool {
	return username != "" && e.User != nil && e.User.Username == username
}

// AsksReviewFrom reports whether username is a requested reviewer of the merge request
func (e *CodeEvent) AsksReviewFrom(username string) bool {
	if username == "" || e.MergeRequest == nil {
		return false
	}
	return slices.ContainsFunc(e.MergeRequest.Reviewers, func(u User) bool {
		return u.Username == username
	})
}

// ReviewRequest is one merge request revision with its changed files
type ReviewRequest struct {
	ProjectID    string
	MergeRequest *MergeRequest
	Changes      []*FileDiff
}

// Key identifies the revision: project, head SHA and merge request number.
// Files already reviewed under the same key are not reviewed again.
func (r ReviewRequest) Key() string {
	return r.ProjectID + ":" + r.MergeRequest.SHA + ":" + strconv.Itoa(r.MergeRequest.IID)
}

// ReviewResult aggregates the file reviews of one merge request
type ReviewResult struct {
	IsSuccess       bool
	ProcessedFiles  int
	SkippedFiles    int
	ContextFiles    int
	CommentsCreated int
	Errors          []error
}

// Err joins the file errors, nil when the review had none
func (r *ReviewResult) Err() error {
	if r == nil || len(r.Errors) == 0 {
		return nil
	}
	errs := errm.NewList()
	for _, err := range r.Errors {
		errs.Wrap(err, "file review")
	}
	return errs.Err()
}

// Fields returns the counters as log key-value pairs
func (r *ReviewResult) Fields() []any {
	return []any{
		"processed_files", r.ProcessedFiles,
		"skipped_files", r.SkippedFiles,
		"context_files", r.ContextFiles,
		"comments_created", r.CommentsCreated,
	}
}
