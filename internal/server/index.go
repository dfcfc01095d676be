package server

import (
	"net/http"
	"strings"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/rag"
	"github.com/maxbolgarin/servex/v2"

	jsoniter "github.com/json-iterator/go"
)

type indexRequest struct {
	Project    string `json:"project"`
	Repository string `json:"repository"`
	Branch     string `json:"branch"`
}

type indexResponse struct {
	RepositoryID string         `json:"repository_id"`
	Indexed      bool           `json:"indexed"`
	Chunks       int            `json:"chunks"`
	Task         *rag.IndexTask `json:"task,omitempty"`
	Submitted    bool           `json:"submitted,omitempty"`
}

// handleIndex serves POST (submit), GET (status) and DELETE (clear) of a repository index.
// Indexes are keyed by the full provider path, the same key webhook reviews use.
func (h *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := servex.NewContext(w, r)

	switch r.Method {
	case http.MethodPost:
		body, err := ctx.Read()
		if err != nil {
			ctx.BadRequest(err, "failed to read body")
			return
		}
		var req indexRequest
		if err := jsoniter.Unmarshal(body, &req); err != nil {
			ctx.BadRequest(err, "invalid request body")
			return
		}
		repositoryID := model.ProjectPath(req.Project, req.Repository)
		if repositoryID == "" {
			ctx.BadRequest(errm.New("repository is required"), "repository is required")
			return
		}

		task, submitted := h.indexes.SubmitIndexing("", repositoryID, strings.TrimSpace(req.Branch))
		h.log.Info("index requested", "repository_id", repositoryID, "task_id", task.ID, "submitted", submitted)

		chunks := h.indexes.ChunkCount(repositoryID)
		writeJSON(w, http.StatusAccepted, indexResponse{
			RepositoryID: repositoryID,
			Indexed:      chunks > 0,
			Chunks:       chunks,
			Task:         &task,
			Submitted:    submitted,
		})

	case http.MethodGet:
		repositoryID, ok := repositoryFromQuery(ctx, r)
		if !ok {
			return
		}
		resp := indexResponse{
			RepositoryID: repositoryID,
			Chunks:       h.indexes.ChunkCount(repositoryID),
		}
		resp.Indexed = resp.Chunks > 0
		if task, ok := h.indexes.IndexStatus(repositoryID); ok {
			resp.Task = &task
		}
		if !resp.Indexed && resp.Task == nil {
			ctx.NotFound(errm.New("repository is not indexed"), "repository is not indexed")
			return
		}
		writeJSON(w, http.StatusOK, resp)

	case http.MethodDelete:
		repositoryID, ok := repositoryFromQuery(ctx, r)
		if !ok {
			return
		}
		if err := h.indexes.ClearIndex(r.Context(), repositoryID); err != nil {
			if errm.Is(err, rag.ErrIndexInProgress) {
				writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
				return
			}
			ctx.InternalServerError(err, "failed to clear index")
			return
		}
		h.log.Info("index cleared", "repository_id", repositoryID)
		ctx.Response(http.StatusNoContent)

	default:
		ctx.Response(http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := jsoniter.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

func repositoryFromQuery(ctx *servex.Context, r *http.Request) (string, bool) {
	query := r.URL.Query()
	repositoryID := model.ProjectPath(query.Get("project"), query.Get("repository"))
	if repositoryID == "" {
		ctx.BadRequest(errm.New("repository is required"), "repository query parameter is required")
		return "", false
	}
	return repositoryID, true
}
