package rag

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a background indexing task
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskDone    TaskStatus = "done"
	TaskFailed  TaskStatus = "failed"
)

// noteMerged marks a task that found the repository held by a direct indexing call
const noteMerged = "repository was already being indexed by another run"

// IndexTask tracks one background indexing run of a repository
type IndexTask struct {
	ID           string     `json:"id"`
	Project      string     `json:"project,omitempty"`
	RepositoryID string     `json:"repository_id"`
	Branch       string     `json:"branch,omitempty"`
	Status       TaskStatus `json:"status"`
	Chunks       int        `json:"chunks"`
	Error        string     `json:"error,omitempty"`
	Note         string     `json:"note,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    time.Time  `json:"started_at,omitzero"`
	FinishedAt   time.Time  `json:"finished_at,omitzero"`
}

func newIndexTask(project, repositoryID, branch string) *IndexTask {
	return &IndexTask{
		ID:           uuid.NewString(),
		Project:      project,
		RepositoryID: repositoryID,
		Branch:       branch,
		Status:       TaskPending,
		CreatedAt:    time.Now(),
	}
}

// IsActive reports whether the task is pending or running
func (t IndexTask) IsActive() bool {
	return t.Status == TaskPending || t.Status == TaskRunning
}

// Duration returns how long the task ran, zero until it starts
func (t IndexTask) Duration() time.Duration {
	switch {
	case t.StartedAt.IsZero():
		return 0
	case t.FinishedAt.IsZero():
		return time.Since(t.StartedAt)
	}
	return t.FinishedAt.Sub(t.StartedAt)
}
