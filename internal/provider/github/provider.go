package github

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/model/interfaces"
	"golang.org/x/oauth2"

	jsoniter "github.com/json-iterator/go"
)

var _ interfaces.CodeProvider = (*Provider)(nil)

const (
	defaultBaseURL = "https://github.com"
	perPage        = 100
)

var relevantActions = []string{
	"opened",
	"reopened",
	"synchronize",
	"review_requested",
	"ready_for_review",
}

// Provider implements the CodeProvider interface for GitHub
type Provider struct {
	client *github.Client
	config model.ProviderConfig
	log    logze.Logger
}

func New(config model.ProviderConfig) (*Provider, error) {
	if config.Token == "" {
		return nil, errm.New("GitHub token is required")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: config.Token})
	tc := oauth2.NewClient(context.Background(), ts)

	client := github.NewClient(tc)
	if config.BaseURL != "" && config.BaseURL != defaultBaseURL {
		var err error
		client, err = client.WithEnterpriseURLs(config.BaseURL, config.BaseURL)
		if err != nil {
			return nil, errm.Wrap(err, "failed to create GitHub Enterprise client")
		}
	}

	return &Provider{
		client: client,
		config: config,
		log:    logze.With("provider", "github"),
	}, nil
}

// ValidateWebhook checks the X-Hub-Signature-256 header value
func (p *Provider) ValidateWebhook(payload []byte, signature string) error {
	if p.config.WebhookSecret == "" {
		return nil
	}
	if !strings.HasPrefix(signature, "sha256=") {
		return errm.New("invalid GitHub signature format")
	}

	mac := hmac.New(sha256.New, []byte(p.config.WebhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(strings.TrimPrefix(signature, "sha256=")), []byte(expected)) {
		return errm.New("GitHub webhook signature verification failed")
	}
	return nil
}

func (p *Provider) ParseWebhookEvent(payload []byte) (*model.CodeEvent, error) {
	var data githubPayload
	if err := jsoniter.Unmarshal(payload, &data); err != nil {
		return nil, errm.Wrap(err, "failed to parse GitHub webhook payload")
	}

	pr := data.PullRequest
	reviewers := make([]model.User, 0, len(pr.RequestedReviewers))
	for _, r := range pr.RequestedReviewers {
		reviewers = append(reviewers, model.User{ID: strconv.Itoa(r.ID), Username: r.Login, Name: r.Name})
	}

	eventType := "pull_request"
	if pr.Number == 0 {
		eventType = "unknown"
	}

	return &model.CodeEvent{
		Type:       eventType,
		Action:     data.Action,
		ProjectID:  data.Repository.FullName,
		ReceivedAt: time.Now(),
		User: &model.User{
			ID:       strconv.Itoa(data.Sender.ID),
			Username: data.Sender.Login,
			Name:     data.Sender.Name,
		},
		MergeRequest: &model.MergeRequest{
			ID:           strconv.Itoa(pr.ID),
			IID:          pr.Number,
			Title:        pr.Title,
			Description:  pr.Body,
			SourceBranch: pr.Head.Ref,
			TargetBranch: pr.Base.Ref,
			URL:          pr.HTMLURL,
			State:        pr.State,
			SHA:          pr.Head.SHA,
			Author: model.User{
				ID:       strconv.Itoa(pr.User.ID),
				Username: pr.User.Login,
				Name:     pr.User.Name,
			},
			Reviewers: reviewers,
		},
	}, nil
}

// IsMergeRequestEvent accepts pull request events that should trigger a review
func (p *Provider) IsMergeRequestEvent(event *model.CodeEvent) bool {
	if event == nil || event.Type != "pull_request" || event.MergeRequest == nil {
		return false
	}
	if !slices.Contains(relevantActions, event.Action) {
		p.log.Debug("ignoring irrelevant action", "action", event.Action)
		return false
	}
	if event.SentBy(p.config.BotUsername) {
		p.log.Debug("ignoring event from bot user")
		return false
	}
	if event.Action == "review_requested" {
		return event.AsksReviewFrom(p.config.BotUsername)
	}
	return true
}

func (p *Provider) GetMergeRequest(ctx context.Context, projectID string, mrIID int) (*model.MergeRequest, error) {
	owner, repo, err := splitProject(projectID)
	if err != nil {
		return nil, err
	}

	pr, _, err := p.client.PullRequests.Get(ctx, owner, repo, mrIID)
	if err != nil {
		return nil, errm.Wrap(err, "failed to get pull request from GitHub")
	}
	return toMergeRequest(pr), nil
}

func (p *Provider) GetMergeRequestDiffs(ctx context.Context, projectID string, mrIID int) ([]*model.FileDiff, error) {
	owner, repo, err := splitProject(projectID)
	if err != nil {
		return nil, err
	}

	opts := &github.ListOptions{PerPage: perPage}
	var files []*github.CommitFile
	for {
		page, resp, err := p.client.PullRequests.ListFiles(ctx, owner, repo, mrIID, opts)
		if err != nil {
			return nil, errm.Wrap(err, "failed to list pull request files")
		}
		files = append(files, page...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	diffs := make([]*model.FileDiff, 0, len(files))
	for _, file := range files {
		status := file.GetStatus()
		diff := &model.FileDiff{
			OldPath:   lang.Check(file.GetPreviousFilename(), file.GetFilename()),
			NewPath:   file.GetFilename(),
			Diff:      file.GetPatch(),
			IsNew:     status == "added",
			IsDeleted: status == "removed",
			IsRenamed: status == "renamed",
		}
		diff.IsBinary = diff.Diff == "" && file.GetChanges() > 0
		diffs = append(diffs, diff)
	}

	return diffs, nil
}

func (p *Provider) ListMergeRequests(ctx context.Context, projectID string, filter *model.MergeRequestFilter) ([]*model.MergeRequest, error) {
	owner, repo, err := splitProject(projectID)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		filter = &model.MergeRequestFilter{}
	}

	opts := &github.PullRequestListOptions{
		Base: filter.TargetBranch,
		ListOptions: github.ListOptions{
			Page:    filter.Page + 1,
			PerPage: min(lang.Check(filter.Limit, perPage), perPage),
		},
	}
	if len(filter.State) > 0 {
		opts.State = githubState(filter.State[0])
	}

	prs, _, err := p.client.PullRequests.List(ctx, owner, repo, opts)
	if err != nil {
		return nil, errm.Wrap(err, "failed to list pull requests")
	}

	out := make([]*model.MergeRequest, 0, len(prs))
	for _, pr := range prs {
		if filter.UpdatedAfter != nil && pr.GetUpdatedAt().Time.Before(*filter.UpdatedAfter) {
			continue
		}
		out = append(out, toMergeRequest(pr))
	}
	return out, nil
}

// ListFiles lists blobs of the recursive git tree at ref, the default branch when ref is empty
func (p *Provider) ListFiles(ctx context.Context, projectID, ref string) ([]string, error) {
	owner, repo, err := splitProject(projectID)
	if err != nil {
		return nil, err
	}

	if ref == "" {
		repository, _, err := p.client.Repositories.Get(ctx, owner, repo)
		if err != nil {
			return nil, errm.Wrap(err, "failed to get repository")
		}
		ref = repository.GetDefaultBranch()
	}

	tree, _, err := p.client.Git.GetTree(ctx, owner, repo, ref, true)
	if err != nil {
		return nil, errm.Wrap(err, "failed to get git tree", "ref", ref)
	}
	if tree.GetTruncated() {
		p.log.Warn("git tree is truncated, repository is listed partially", "project_id", projectID, "ref", ref)
	}

	files := make([]string, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		if entry.GetType() == "blob" {
			files = append(files, entry.GetPath())
		}
	}
	return files, nil
}

// GetFileContent returns file content at ref or an empty string when the file does not exist
func (p *Provider) GetFileContent(ctx context.Context, projectID, filePath, ref string) (string, error) {
	owner, repo, err := splitProject(projectID)
	if err != nil {
		return "", err
	}
	opts := &github.RepositoryContentGetOptions{Ref: ref}

	file, _, resp, err := p.client.Repositories.GetContents(ctx, owner, repo, filePath, opts)
	if isNotFound(resp, err) {
		return "", nil
	}
	if err != nil {
		return "", errm.Wrap(err, "failed to get file content", "file", filePath)
	}
	if file == nil {
		// a directory
		return "", nil
	}

	content, err := file.GetContent()
	if err != nil {
		return "", errm.Wrap(err, "failed to decode file content", "file", filePath)
	}
	if content != "" || file.GetSize() == 0 {
		return content, nil
	}

	// the contents API omits bodies of large files
	rc, resp, err := p.client.Repositories.DownloadContents(ctx, owner, repo, filePath, opts)
	if isNotFound(resp, err) {
		return "", nil
	}
	if err != nil {
		return "", errm.Wrap(err, "failed to download file", "file", filePath)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", errm.Wrap(err, "failed to read file", "file", filePath)
	}
	return string(raw), nil
}

// CreateComment posts an inline review comment or a general conversation comment
func (p *Provider) CreateComment(ctx context.Context, projectID string, mrIID int, comment *model.Comment) error {
	owner, repo, err := splitProject(projectID)
	if err != nil {
		return err
	}

	if comment.Type == model.CommentTypeInline && comment.FilePath != "" && comment.Line > 0 {
		prComment := &github.PullRequestComment{
			Body:     github.String(comment.Body),
			Path:     github.String(comment.FilePath),
			CommitID: github.String(comment.CommitSHA),
			Side:     github.String("RIGHT"),
			Line:     github.Int(lineOrEnd(comment)),
		}
		if comment.EndLine > comment.Line {
			prComment.StartLine = github.Int(comment.Line)
			prComment.StartSide = github.String("RIGHT")
		}

		created, _, err := p.client.PullRequests.CreateComment(ctx, owner, repo, mrIID, prComment)
		if err != nil {
			return errm.Wrap(err, "failed to create review comment", "file", comment.FilePath, "line", comment.Line)
		}
		comment.ID = strconv.FormatInt(created.GetID(), 10)
		return nil
	}

	created, _, err := p.client.Issues.CreateComment(ctx, owner, repo, mrIID, &github.IssueComment{
		Body: github.String(comment.Body),
	})
	if err != nil {
		return errm.Wrap(err, "failed to create pull request comment")
	}
	comment.ID = strconv.FormatInt(created.GetID(), 10)
	return nil
}

func toMergeRequest(pr *github.PullRequest) *model.MergeRequest {
	reviewers := make([]model.User, 0, len(pr.RequestedReviewers))
	for _, r := range pr.RequestedReviewers {
		reviewers = append(reviewers, toUser(r))
	}
	return &model.MergeRequest{
		ID:           strconv.FormatInt(pr.GetID(), 10),
		IID:          pr.GetNumber(),
		Title:        pr.GetTitle(),
		Description:  pr.GetBody(),
		SourceBranch: pr.GetHead().GetRef(),
		TargetBranch: pr.GetBase().GetRef(),
		URL:          pr.GetHTMLURL(),
		State:        pr.GetState(),
		SHA:          pr.GetHead().GetSHA(),
		Author:       toUser(pr.GetUser()),
		Reviewers:    reviewers,
		CreatedAt:    pr.GetCreatedAt().Time,
		UpdatedAt:    pr.GetUpdatedAt().Time,
	}
}

func toUser(u *github.User) model.User {
	if u == nil {
		return model.User{}
	}
	return model.User{
		ID:       strconv.FormatInt(u.GetID(), 10),
		Username: u.GetLogin(),
		Name:     u.GetName(),
	}
}

func splitProject(projectID string) (string, string, error) {
	owner, repo, ok := strings.Cut(strings.Trim(projectID, "/"), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", errm.New("invalid GitHub project ID %q, expected 'owner/repo'", projectID)
	}
	return owner, repo, nil
}

func githubState(state string) string {
	switch state {
	case "opened", "open":
		return "open"
	case "closed", "merged":
		return "closed"
	}
	return "all"
}

func isNotFound(resp *github.Response, err error) bool {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

func lineOrEnd(c *model.Comment) int {
	if c.EndLine > c.Line {
		return c.EndLine
	}
	return c.Line
}
