package interfaces

import (
	"context"

	"github.com/maxbolgarin/ragreview/internal/model"
)

// CodeProvider is a VCS hosting API: GitLab, GitHub or Bitbucket
type CodeProvider interface {
	// ValidateWebhook checks the secret token or the payload signature
	ValidateWebhook(payload []byte, authToken string) error
	ParseWebhookEvent(payload []byte) (*model.CodeEvent, error)
	IsMergeRequestEvent(event *model.CodeEvent) bool

	GetMergeRequest(ctx context.Context, projectID string, mrIID int) (*model.MergeRequest, error)
	GetMergeRequestDiffs(ctx context.Context, projectID string, mrIID int) ([]*model.FileDiff, error)
	ListMergeRequests(ctx context.Context, projectID string, filter *model.MergeRequestFilter) ([]*model.MergeRequest, error)

	FileSource

	// CreateComment posts an inline comment when Line is set, a general one otherwise
	CreateComment(ctx context.Context, projectID string, mrIID int, comment *model.Comment) error
}

// FileSource gives read access to repository files at a ref
type FileSource interface {
	// ListFiles returns repository-relative paths of every file at ref
	ListFiles(ctx context.Context, projectID, ref string) ([]string, error)
	// GetFileContent returns an empty string without error when the file does not exist
	GetFileContent(ctx context.Context, projectID, filePath, ref string) (string, error)
}

// AgentAPI is one LLM completion backend
type AgentAPI interface {
	CallAPI(ctx context.Context, req model.APIRequest) (model.APIResponse, error)
}

// Embedder turns text into a fixed-length vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
