package model

import (
	"path"
	"strings"
	"time"
)

// ProviderConfig represents provider-specific configuration
type ProviderConfig struct {
	BaseURL       string
	Token         string
	WebhookSecret string
	BotUsername   string
}

// User represents a user across different providers
type User struct {
	ID       string
	Username string
	Name     string
}

// MergeRequest represents a merge/pull request across different providers
type MergeRequest struct {
	ID           string
	IID          int
	Title        string
	Description  string
	SourceBranch string
	TargetBranch string
	Author       User
	Reviewers    []User
	URL          string
	State        string
	SHA          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ChangeType is the kind of change applied to a file in a merge request
type ChangeType string

const (
	ChangeTypeAdded    ChangeType = "added"
	ChangeTypeModified ChangeType = "modified"
	ChangeTypeDeleted  ChangeType = "deleted"
	ChangeTypeRenamed  ChangeType = "renamed"
)

// FileDiff represents changes in a single file of a merge request
type FileDiff struct {
	OldPath string
	NewPath string
	Diff    string

	// Content and PreviousContent are loaded on demand by the reviewer
	Content         string
	PreviousContent string

	IsNew     bool
	IsDeleted bool
	IsRenamed bool
	IsBinary  bool
}

// Path returns the path of the file after the change
func (f *FileDiff) Path() string {
	if f.NewPath != "" {
		return f.NewPath
	}
	return f.OldPath
}

// ChangeType derives the change kind from the provider flags
func (f *FileDiff) ChangeType() ChangeType {
	switch {
	case f.IsNew:
		return ChangeTypeAdded
	case f.IsDeleted:
		return ChangeTypeDeleted
	case f.IsRenamed:
		return ChangeTypeRenamed
	default:
		return ChangeTypeModified
	}
}

// Comment represents a code review comment
type Comment struct {
	ID        string
	Body      string
	FilePath  string
	Line      int         // Line number in the new file (for line-specific comments)
	EndLine   int         // Last line for range comments
	Type      CommentType // Type of comment
	CommitSHA string      // Head commit an inline comment refers to
	Author    User
	CreatedAt time.Time
}

// CommentType defines the type of comment
type CommentType string

const (
	CommentTypeGeneral CommentType = "general" // General MR/PR comment
	CommentTypeInline  CommentType = "inline"  // Inline code comment
)

// MergeRequestFilter represents criteria for filtering merge requests
type MergeRequestFilter struct {
	State        []string   // e.g., "open", "closed", "merged"
	TargetBranch string     // Filter by target branch
	UpdatedAfter *time.Time // Filter by last update time
	Limit        int        // Maximum number of results (0 = no limit)
	Page         int        // Page number for pagination (0-based)
}

// ProjectPath joins a project (owner, group, workspace) and a repository into
// the identifier the providers understand. An empty project means repositoryID
// is already a full path or a numeric id.
func ProjectPath(project, repositoryID string) string {
	project = strings.Trim(project, "/")
	repositoryID = strings.Trim(repositoryID, "/")
	if project == "" {
		return repositoryID
	}
	if repositoryID == "" {
		return project
	}
	return path.Join(project, repositoryID)
}
