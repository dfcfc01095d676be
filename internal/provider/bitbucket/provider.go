package bitbucket

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/maxbolgarin/cliex"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/model/interfaces"

	jsoniter "github.com/json-iterator/go"
)

var _ interfaces.CodeProvider = (*Provider)(nil)

const (
	defaultBaseURL = "https://api.bitbucket.org/2.0"
	pageLen        = 100
)

var relevantActions = []string{"created", "updated", "reviewer_added"}

// Provider implements the CodeProvider interface for Bitbucket Cloud REST API
type Provider struct {
	client *cliex.HTTP
	config model.ProviderConfig
	log    logze.Logger
}

func New(config model.ProviderConfig) (*Provider, error) {
	if config.Token == "" {
		return nil, errm.New("Bitbucket token is required")
	}
	log := logze.With("provider", "bitbucket")

	baseURL := strings.TrimSuffix(lang.Check(config.BaseURL, defaultBaseURL), "/")
	cli, err := cliex.New(cliex.WithBaseURL(baseURL), cliex.WithLogger(log))
	if err != nil {
		return nil, errm.Wrap(err, "failed to create Bitbucket client")
	}
	cli.C().SetAuthToken(config.Token)

	return &Provider{
		client: cli,
		config: config,
		log:    log,
	}, nil
}

// ValidateWebhook checks the X-Hub-Signature HMAC of the payload
func (p *Provider) ValidateWebhook(payload []byte, signature string) error {
	if p.config.WebhookSecret == "" {
		return nil
	}

	mac := hmac.New(sha256.New, []byte(p.config.WebhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(signature, "sha256="))) {
		return errm.New("Bitbucket webhook signature verification failed")
	}
	return nil
}

// ParseWebhookEvent derives the action from the payload, the event key header is not available here
func (p *Provider) ParseWebhookEvent(payload []byte) (*model.CodeEvent, error) {
	var data bitbucketPayload
	if err := jsoniter.Unmarshal(payload, &data); err != nil {
		return nil, errm.Wrap(err, "failed to parse Bitbucket webhook payload")
	}

	action := "unknown"
	switch {
	case len(data.Changes) > 0:
		action = "updated"
	case data.PullRequest.State == "OPEN" && data.PullRequest.CreatedOn == data.PullRequest.UpdatedOn:
		action = "created"
	case data.PullRequest.State == "OPEN":
		action = "updated"
	case data.PullRequest.State != "":
		action = strings.ToLower(data.PullRequest.State)
	}

	actor := data.Actor.toUser()
	eventType := "pullrequest"
	if data.PullRequest.ID == 0 {
		eventType = "unknown"
	}

	return &model.CodeEvent{
		Type:         eventType,
		Action:       action,
		ProjectID:    data.Repository.FullName,
		User:         &actor,
		MergeRequest: data.PullRequest.toMergeRequest(),
		ReceivedAt:   time.Now(),
	}, nil
}

func (p *Provider) IsMergeRequestEvent(event *model.CodeEvent) bool {
	if event == nil || event.Type != "pullrequest" || event.MergeRequest == nil {
		return false
	}
	if !slices.Contains(relevantActions, event.Action) {
		p.log.Debug("ignoring irrelevant action", "action", event.Action)
		return false
	}
	if event.SentBy(p.config.BotUsername) {
		return false
	}
	if event.Action == "reviewer_added" {
		return event.AsksReviewFrom(p.config.BotUsername)
	}
	return true
}

func (p *Provider) GetMergeRequest(ctx context.Context, projectID string, mrIID int) (*model.MergeRequest, error) {
	repoPath, err := repositoryPath(projectID)
	if err != nil {
		return nil, err
	}

	var pr bitbucketPullRequest
	if _, err := p.client.Get(ctx, repoPath+"/pullrequests/"+strconv.Itoa(mrIID), &pr); err != nil {
		return nil, errm.Wrap(err, "failed to get pull request from Bitbucket")
	}
	return pr.toMergeRequest(), nil
}

func (p *Provider) GetMergeRequestDiffs(ctx context.Context, projectID string, mrIID int) ([]*model.FileDiff, error) {
	repoPath, err := repositoryPath(projectID)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Get(ctx, repoPath+"/pullrequests/"+strconv.Itoa(mrIID)+"/diff")
	if err != nil {
		return nil, errm.Wrap(err, "failed to get diff from Bitbucket")
	}
	return parseUnifiedDiff(string(resp.Body())), nil
}

func (p *Provider) ListMergeRequests(ctx context.Context, projectID string, filter *model.MergeRequestFilter) ([]*model.MergeRequest, error) {
	repoPath, err := repositoryPath(projectID)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		filter = &model.MergeRequestFilter{}
	}

	query := url.Values{}
	query.Set("pagelen", strconv.Itoa(min(lang.Check(filter.Limit, pageLen), pageLen)))
	query.Set("page", strconv.Itoa(filter.Page+1))
	if len(filter.State) > 0 {
		query.Set("state", bitbucketState(filter.State[0]))
	}

	var page bitbucketPage[bitbucketPullRequest]
	if _, err := p.client.Get(ctx, repoPath+"/pullrequests?"+query.Encode(), &page); err != nil {
		return nil, errm.Wrap(err, "failed to list pull requests")
	}

	out := make([]*model.MergeRequest, 0, len(page.Values))
	for _, pr := range page.Values {
		mr := pr.toMergeRequest()
		if filter.TargetBranch != "" && mr.TargetBranch != filter.TargetBranch {
			continue
		}
		if filter.UpdatedAfter != nil && mr.UpdatedAt.Before(*filter.UpdatedAfter) {
			continue
		}
		out = append(out, mr)
	}
	return out, nil
}

// ListFiles walks the src tree directory by directory, following the next links of every listing
func (p *Provider) ListFiles(ctx context.Context, projectID, ref string) ([]string, error) {
	repoPath, err := repositoryPath(projectID)
	if err != nil {
		return nil, err
	}

	if ref == "" {
		var repo bitbucketRepository
		if _, err := p.client.Get(ctx, repoPath, &repo); err != nil {
			return nil, errm.Wrap(err, "failed to get repository")
		}
		ref = repo.MainBranch.Name
	}

	var (
		files []string
		dirs  = []string{""}
	)
	for len(dirs) > 0 {
		dir := dirs[0]
		dirs = dirs[1:]

		next := repoPath + "/src/" + url.PathEscape(ref) + "/" + dir + "?pagelen=" + strconv.Itoa(pageLen)
		for next != "" {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			var page bitbucketPage[bitbucketSrcEntry]
			if _, err := p.client.Get(ctx, next, &page); err != nil {
				return nil, errm.Wrap(err, "failed to list directory", "dir", dir)
			}
			for _, entry := range page.Values {
				switch entry.Type {
				case "commit_file":
					files = append(files, entry.Path)
				case "commit_directory":
					dirs = append(dirs, entry.Path+"/")
				}
			}
			next = page.Next
		}
	}

	return files, nil
}

// GetFileContent returns raw file content or an empty string when the file does not exist
func (p *Provider) GetFileContent(ctx context.Context, projectID, filePath, ref string) (string, error) {
	repoPath, err := repositoryPath(projectID)
	if err != nil {
		return "", err
	}

	resp, err := p.client.Get(ctx, repoPath+"/src/"+url.PathEscape(lang.Check(ref, "HEAD"))+"/"+filePath)
	if resp != nil && resp.StatusCode() == http.StatusNotFound {
		return "", nil
	}
	if err != nil {
		return "", errm.Wrap(err, "failed to get file content from Bitbucket", "file", filePath)
	}
	return string(resp.Body()), nil
}

func (p *Provider) CreateComment(ctx context.Context, projectID string, mrIID int, comment *model.Comment) error {
	repoPath, err := repositoryPath(projectID)
	if err != nil {
		return err
	}

	req := bitbucketCommentRequest{}
	req.Content.Raw = comment.Body
	if comment.Type == model.CommentTypeInline && comment.FilePath != "" && comment.Line > 0 {
		req.Inline = &bitbucketInline{Path: comment.FilePath, To: comment.Line}
		if comment.EndLine > comment.Line {
			req.Inline.From = comment.Line
			req.Inline.To = comment.EndLine
		}
	}

	var created bitbucketComment
	if _, err := p.client.Post(ctx, repoPath+"/pullrequests/"+strconv.Itoa(mrIID)+"/comments", req, &created); err != nil {
		return errm.Wrap(err, "failed to create comment", "file", comment.FilePath, "line", comment.Line)
	}
	comment.ID = strconv.Itoa(created.ID)

	return nil
}

func repositoryPath(projectID string) (string, error) {
	workspace, slug, ok := strings.Cut(strings.Trim(projectID, "/"), "/")
	if !ok || workspace == "" || slug == "" || strings.Contains(slug, "/") {
		return "", errm.New("invalid Bitbucket project ID %q, expected 'workspace/repo_slug'", projectID)
	}
	return "repositories/" + workspace + "/" + slug, nil
}

func bitbucketState(state string) string {
	switch state {
	case "open", "opened":
		return "OPEN"
	case "closed", "declined":
		return "DECLINED"
	}
	return strings.ToUpper(state)
}

// parseUnifiedDiff splits a multi-file git diff into per-file diffs
func parseUnifiedDiff(content string) []*model.FileDiff {
	var (
		diffs   []*model.FileDiff
		current *model.FileDiff
		lines   []string
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Diff = strings.Join(lines, "\n")
		current.NewPath = lang.Check(current.NewPath, current.OldPath)
		current.OldPath = lang.Check(current.OldPath, current.NewPath)
		current.IsRenamed = current.IsRenamed || (!current.IsNew && !current.IsDeleted && current.OldPath != current.NewPath)
		diffs = append(diffs, current)
	}

	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			flush()
			current = &model.FileDiff{}
			lines = []string{line}
			if a, b, ok := strings.Cut(strings.TrimPrefix(line, "diff --git "), " b/"); ok {
				current.OldPath = strings.TrimPrefix(a, "a/")
				current.NewPath = b
			}
			continue
		case current == nil:
			continue
		case strings.HasPrefix(line, "--- "):
			if strings.HasSuffix(line, "/dev/null") {
				current.IsNew = true
			}
		case strings.HasPrefix(line, "+++ "):
			if strings.HasSuffix(line, "/dev/null") {
				current.IsDeleted = true
			}
		case strings.HasPrefix(line, "new file mode"):
			current.IsNew = true
		case strings.HasPrefix(line, "deleted file mode"):
			current.IsDeleted = true
		case strings.HasPrefix(line, "Binary files"):
			current.IsBinary = true
		}
		lines = append(lines, line)
	}
	flush()

	return diffs
}
