package gitlab

import (
	"context"
	"crypto/subtle"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/model/interfaces"
	gitlab "gitlab.com/gitlab-org/api/client-go"

	jsoniter "github.com/json-iterator/go"
)

const (
	defaultBaseURL = "https://gitlab.com"
	perPage        = 100
)

var _ interfaces.CodeProvider = (*Provider)(nil)

var relevantActions = []string{"open", "reopen", "update"}

// Provider implements the CodeProvider interface for GitLab
type Provider struct {
	client *gitlab.Client
	config model.ProviderConfig
	log    logze.Logger
}

func New(config model.ProviderConfig) (*Provider, error) {
	if config.Token == "" {
		return nil, errm.New("GitLab token is required")
	}

	client, err := gitlab.NewClient(config.Token, gitlab.WithBaseURL(lang.Check(config.BaseURL, defaultBaseURL)))
	if err != nil {
		return nil, errm.Wrap(err, "failed to create GitLab client")
	}

	return &Provider{
		client: client,
		config: config,
		log:    logze.With("provider", "gitlab"),
	}, nil
}

// ValidateWebhook compares the X-Gitlab-Token header with the configured secret
func (p *Provider) ValidateWebhook(_ []byte, token string) error {
	if p.config.WebhookSecret == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(p.config.WebhookSecret)) != 1 {
		return errm.New("invalid webhook token")
	}
	return nil
}

func (p *Provider) ParseWebhookEvent(payload []byte) (*model.CodeEvent, error) {
	var data gitlabPayload
	if err := jsoniter.Unmarshal(payload, &data); err != nil {
		return nil, errm.Wrap(err, "failed to parse GitLab webhook payload")
	}

	attrs := data.ObjectAttributes
	reviewers := make([]model.User, 0, len(data.Reviewers))
	for _, r := range data.Reviewers {
		reviewers = append(reviewers, r.toUser())
	}

	return &model.CodeEvent{
		Type:       data.ObjectKind,
		Action:     attrs.Action,
		ProjectID:  strconv.Itoa(data.Project.ID),
		User:       gitlab.Ptr(data.User.toUser()),
		ReceivedAt: time.Now(),
		MergeRequest: &model.MergeRequest{
			ID:           strconv.Itoa(attrs.ID),
			IID:          attrs.IID,
			Title:        attrs.Title,
			Description:  attrs.Description,
			SourceBranch: attrs.SourceBranch,
			TargetBranch: attrs.TargetBranch,
			URL:          attrs.URL,
			State:        attrs.State,
			SHA:          attrs.LastCommit.ID,
			Author:       model.User{ID: strconv.Itoa(attrs.AuthorID)},
			Reviewers:    reviewers,
		},
	}, nil
}

// IsMergeRequestEvent accepts open/update events of merge requests where the bot is a reviewer
func (p *Provider) IsMergeRequestEvent(event *model.CodeEvent) bool {
	if event == nil || event.Type != "merge_request" || event.MergeRequest == nil {
		return false
	}
	if !slices.Contains(relevantActions, event.Action) {
		return false
	}
	if p.config.BotUsername == "" {
		return true
	}
	if event.SentBy(p.config.BotUsername) {
		return false
	}

	isReviewer := event.AsksReviewFrom(p.config.BotUsername)
	p.log.DebugIf(!isReviewer, "bot not in reviewers list, skipping", "mr_iid", event.MergeRequest.IID)

	return isReviewer
}

func (p *Provider) GetMergeRequest(ctx context.Context, projectID string, mrIID int) (*model.MergeRequest, error) {
	mr, _, err := p.client.MergeRequests.GetMergeRequest(projectID, mrIID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, errm.Wrap(err, "failed to get merge request from GitLab")
	}
	return toMergeRequest(&mr.BasicMergeRequest), nil
}

func (p *Provider) GetMergeRequestDiffs(ctx context.Context, projectID string, mrIID int) ([]*model.FileDiff, error) {
	opts := &gitlab.ListMergeRequestDiffsOptions{
		ListOptions: gitlab.ListOptions{Page: 1, PerPage: perPage},
	}

	var diffs []*model.FileDiff
	for {
		page, resp, err := p.client.MergeRequests.ListMergeRequestDiffs(projectID, mrIID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, errm.Wrap(err, "failed to list merge request diffs")
		}
		for _, d := range page {
			diffs = append(diffs, &model.FileDiff{
				OldPath:   d.OldPath,
				NewPath:   d.NewPath,
				Diff:      d.Diff,
				IsNew:     d.NewFile,
				IsDeleted: d.DeletedFile,
				IsRenamed: d.RenamedFile,
				IsBinary:  d.Diff == "" && !d.DeletedFile && !d.NewFile,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return diffs, nil
}

func (p *Provider) ListMergeRequests(ctx context.Context, projectID string, filter *model.MergeRequestFilter) ([]*model.MergeRequest, error) {
	if filter == nil {
		filter = &model.MergeRequestFilter{}
	}

	opts := &gitlab.ListProjectMergeRequestsOptions{
		ListOptions: gitlab.ListOptions{
			Page:    filter.Page + 1,
			PerPage: min(lang.Check(filter.Limit, perPage), perPage),
		},
		UpdatedAfter: filter.UpdatedAfter,
	}
	if len(filter.State) > 0 {
		opts.State = gitlab.Ptr(gitlabState(filter.State[0]))
	}
	if filter.TargetBranch != "" {
		opts.TargetBranch = gitlab.Ptr(filter.TargetBranch)
	}

	mrs, _, err := p.client.MergeRequests.ListProjectMergeRequests(projectID, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, errm.Wrap(err, "failed to list merge requests")
	}

	out := make([]*model.MergeRequest, 0, len(mrs))
	for _, mr := range mrs {
		out = append(out, toMergeRequest(mr))
	}
	return out, nil
}

// ListFiles walks the recursive repository tree page by page
func (p *Provider) ListFiles(ctx context.Context, projectID, ref string) ([]string, error) {
	opts := &gitlab.ListTreeOptions{
		ListOptions: gitlab.ListOptions{Page: 1, PerPage: perPage},
		Recursive:   gitlab.Ptr(true),
	}
	if ref != "" {
		opts.Ref = gitlab.Ptr(ref)
	}

	var files []string
	for {
		nodes, resp, err := p.client.Repositories.ListTree(projectID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, errm.Wrap(err, "failed to list repository tree", "page", opts.Page)
		}
		for _, node := range nodes {
			if node.Type == "blob" {
				files = append(files, node.Path)
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return files, nil
}

// GetFileContent returns raw file content or an empty string when the file does not exist
func (p *Provider) GetFileContent(ctx context.Context, projectID, filePath, ref string) (string, error) {
	opts := &gitlab.GetRawFileOptions{}
	if ref != "" {
		opts.Ref = gitlab.Ptr(ref)
	}

	raw, resp, err := p.client.RepositoryFiles.GetRawFile(projectID, filePath, opts, gitlab.WithContext(ctx))
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if err != nil {
		return "", errm.Wrap(err, "failed to get file content from GitLab", "file", filePath)
	}
	return string(raw), nil
}

// CreateComment starts a positioned discussion for inline comments and a plain one otherwise
func (p *Provider) CreateComment(ctx context.Context, projectID string, mrIID int, comment *model.Comment) error {
	opts := &gitlab.CreateMergeRequestDiscussionOptions{
		Body: gitlab.Ptr(comment.Body),
	}

	if comment.Type == model.CommentTypeInline && comment.FilePath != "" && comment.Line > 0 {
		mr, _, err := p.client.MergeRequests.GetMergeRequest(projectID, mrIID, nil, gitlab.WithContext(ctx))
		if err != nil {
			return errm.Wrap(err, "failed to get diff refs")
		}
		opts.Position = &gitlab.PositionOptions{
			BaseSHA:      gitlab.Ptr(mr.DiffRefs.BaseSha),
			StartSHA:     gitlab.Ptr(mr.DiffRefs.StartSha),
			HeadSHA:      gitlab.Ptr(mr.DiffRefs.HeadSha),
			PositionType: gitlab.Ptr("text"),
			NewPath:      gitlab.Ptr(comment.FilePath),
			OldPath:      gitlab.Ptr(comment.FilePath),
			NewLine:      gitlab.Ptr(comment.Line),
		}
	}

	discussion, _, err := p.client.Discussions.CreateMergeRequestDiscussion(projectID, mrIID, opts, gitlab.WithContext(ctx))
	if err != nil {
		return errm.Wrap(err, "failed to create merge request discussion", "file", comment.FilePath, "line", comment.Line)
	}
	comment.ID = discussion.ID

	return nil
}

func toMergeRequest(mr *gitlab.BasicMergeRequest) *model.MergeRequest {
	reviewers := make([]model.User, 0, len(mr.Reviewers))
	for _, r := range mr.Reviewers {
		reviewers = append(reviewers, toUser(r))
	}
	return &model.MergeRequest{
		ID:           strconv.Itoa(mr.ID),
		IID:          mr.IID,
		Title:        mr.Title,
		Description:  mr.Description,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		URL:          mr.WebURL,
		State:        mr.State,
		SHA:          mr.SHA,
		Author:       toUser(mr.Author),
		Reviewers:    reviewers,
		CreatedAt:    lang.Deref(mr.CreatedAt),
		UpdatedAt:    lang.Deref(mr.UpdatedAt),
	}
}

func toUser(u *gitlab.BasicUser) model.User {
	if u == nil {
		return model.User{}
	}
	return model.User{ID: strconv.Itoa(u.ID), Username: u.Username, Name: u.Name}
}

func gitlabState(state string) string {
	switch state {
	case "open", "opened":
		return "opened"
	case "closed", "merged", "locked":
		return state
	}
	return "all"
}
