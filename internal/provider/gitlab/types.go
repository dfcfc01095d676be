package gitlab

import (
	"strconv"

	"github.com/maxbolgarin/ragreview/internal/model"
)

type gitlabUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

func (u gitlabUser) toUser() model.User {
	return model.User{ID: strconv.Itoa(u.ID), Username: u.Username, Name: u.Name}
}

type gitlabPayload struct {
	ObjectKind string     `json:"object_kind"`
	User       gitlabUser `json:"user"`
	Project    struct {
		ID                int    `json:"id"`
		PathWithNamespace string `json:"path_with_namespace"`
	} `json:"project"`
	ObjectAttributes struct {
		ID           int    `json:"id"`
		IID          int    `json:"iid"`
		Action       string `json:"action"`
		State        string `json:"state"`
		SourceBranch string `json:"source_branch"`
		TargetBranch string `json:"target_branch"`
		URL          string `json:"url"`
		Title        string `json:"title"`
		Description  string `json:"description"`
		AuthorID     int    `json:"author_id"`
		LastCommit   struct {
			ID string `json:"id"`
		} `json:"last_commit"`
	} `json:"object_attributes"`
	Reviewers []gitlabUser `json:"reviewers"`
}
