package bitbucket

import (
	"strconv"
	"strings"
	"time"

	"github.com/maxbolgarin/ragreview/internal/model"

	jsoniter "github.com/json-iterator/go"
)

type bitbucketPage[T any] struct {
	Values []T    `json:"values"`
	Next   string `json:"next"`
}

type bitbucketUser struct {
	UUID        string `json:"uuid"`
	Username    string `json:"username"`
	Nickname    string `json:"nickname"`
	DisplayName string `json:"display_name"`
}

func (u bitbucketUser) toUser() model.User {
	return model.User{
		ID:       u.UUID,
		Username: u.Username,
		Name:     u.DisplayName,
	}
}

type bitbucketBranchRef struct {
	Branch struct {
		Name string `json:"name"`
	} `json:"branch"`
	Commit struct {
		Hash string `json:"hash"`
	} `json:"commit"`
}

type bitbucketPullRequest struct {
	ID          int                `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	State       string             `json:"state"`
	CreatedOn   string             `json:"created_on"`
	UpdatedOn   string             `json:"updated_on"`
	Source      bitbucketBranchRef `json:"source"`
	Destination bitbucketBranchRef `json:"destination"`
	Author      bitbucketUser      `json:"author"`
	Reviewers   []bitbucketUser    `json:"reviewers"`
	Links       struct {
		HTML struct {
			Href string `json:"href"`
		} `json:"html"`
	} `json:"links"`
}

func (pr bitbucketPullRequest) toMergeRequest() *model.MergeRequest {
	reviewers := make([]model.User, 0, len(pr.Reviewers))
	for _, r := range pr.Reviewers {
		reviewers = append(reviewers, r.toUser())
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, pr.CreatedOn)
	updatedAt, _ := time.Parse(time.RFC3339Nano, pr.UpdatedOn)

	return &model.MergeRequest{
		ID:           strconv.Itoa(pr.ID),
		IID:          pr.ID,
		Title:        pr.Title,
		Description:  pr.Description,
		SourceBranch: pr.Source.Branch.Name,
		TargetBranch: pr.Destination.Branch.Name,
		URL:          pr.Links.HTML.Href,
		State:        strings.ToLower(pr.State),
		SHA:          pr.Source.Commit.Hash,
		Author:       pr.Author.toUser(),
		Reviewers:    reviewers,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
}

type bitbucketRepository struct {
	FullName   string `json:"full_name"`
	MainBranch struct {
		Name string `json:"name"`
	} `json:"mainbranch"`
}

type bitbucketSrcEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

type bitbucketInline struct {
	Path string `json:"path"`
	From int    `json:"from,omitempty"`
	To   int    `json:"to"`
}

type bitbucketCommentRequest struct {
	Content struct {
		Raw string `json:"raw"`
	} `json:"content"`
	Inline *bitbucketInline `json:"inline,omitempty"`
}

type bitbucketComment struct {
	ID int `json:"id"`
}

type bitbucketPayload struct {
	Repository  bitbucketRepository  `json:"repository"`
	PullRequest bitbucketPullRequest `json:"pullrequest"`
	Actor       bitbucketUser        `json:"actor"`
	Changes     jsoniter.RawMessage  `json:"changes,omitempty"`
}
