package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/rag"

	jsoniter "github.com/json-iterator/go"
)

const (
	serverName = "ragreview"

	defaultSearchResults = 5
	maxSearchResults     = 50
	snippetLimit         = 1200
)

const instructions = `Tools for retrieval augmented code review.
Index a repository with index_repository and poll index_status until the task is done.
Then use search_code to find similar code and review_context to build the context
a reviewer sees for a changed file.`

// Engine is the part of the RAG engine exposed as MCP tools
type Engine interface {
	SubmitIndexing(project, repositoryID, branch string) (rag.IndexTask, bool)
	IndexStatus(repositoryID string) (rag.IndexTask, bool)
	ChunkCount(repositoryID string) int
	Search(ctx context.Context, repositoryID, query string, maxResults int) ([]model.RetrievalResult, error)
	BuildReviewContext(ctx context.Context, file *model.FileDiff, pr *model.MergeRequest, project, repositoryID string) string
}

// Server exposes the engine to MCP clients over stdio
type Server struct {
	engine Engine
	srv    *server.MCPServer
	log    logze.Logger
}

func New(engine Engine, version string) (*Server, error) {
	if engine == nil {
		return nil, errm.New("engine is required")
	}
	s := &Server{
		engine: engine,
		log:    logze.With("component", "mcp"),
	}

	s.srv = server.NewMCPServer(
		serverName,
		lang.Check(version, "dev"),
		server.WithToolCapabilities(true),
		server.WithLogging(),
		server.WithInstructions(instructions),
	)
	s.register()

	return s, nil
}

// ServeStdio blocks until stdin is closed
func (s *Server) ServeStdio() error {
	s.log.Info("serving mcp over stdio")
	if err := server.ServeStdio(s.srv); err != nil {
		return errm.Wrap(err, "serve stdio")
	}
	return nil
}

func (s *Server) register() {
	s.srv.AddTool(mcp.NewTool("index_repository",
		mcp.WithDescription("Start background indexing of a repository. Returns the indexing task."),
		mcp.WithString("repository", mcp.Description("Repository path, e.g. group/service"), mcp.Required()),
		mcp.WithString("project", mcp.Description("Optional namespace prepended to the repository path")),
		mcp.WithString("branch", mcp.Description("Branch to index, default branch when empty")),
	), s.handleIndexRepository)

	s.srv.AddTool(mcp.NewTool("index_status",
		mcp.WithDescription("Show the indexing task and chunk count of a repository."),
		mcp.WithString("repository", mcp.Description("Repository path"), mcp.Required()),
		mcp.WithString("project", mcp.Description("Optional namespace prepended to the repository path")),
	), s.handleIndexStatus)

	s.srv.AddTool(mcp.NewTool("search_code",
		mcp.WithDescription("Find indexed code chunks similar to a query."),
		mcp.WithString("repository", mcp.Description("Repository path"), mcp.Required()),
		mcp.WithString("query", mcp.Description("Code or text to search for"), mcp.Required()),
		mcp.WithString("project", mcp.Description("Optional namespace prepended to the repository path")),
		mcp.WithNumber("max_results", mcp.Description("Maximum number of results (default 5)")),
	), s.handleSearchCode)

	s.srv.AddTool(mcp.NewTool("review_context",
		mcp.WithDescription("Build the review context for a changed file: similar code and imported dependencies."),
		mcp.WithString("repository", mcp.Description("Repository path"), mcp.Required()),
		mcp.WithString("file_path", mcp.Description("Path of the changed file"), mcp.Required()),
		mcp.WithString("diff", mcp.Description("Unified diff of the change")),
		mcp.WithString("content", mcp.Description("Current content of the file")),
		mcp.WithString("title", mcp.Description("Merge request title")),
		mcp.WithString("description", mcp.Description("Merge request description")),
		mcp.WithString("branch", mcp.Description("Ref to fetch dependencies from")),
		mcp.WithString("project", mcp.Description("Optional namespace prepended to the repository path")),
	), s.handleReviewContext)
}

type statusResult struct {
	RepositoryID string         `json:"repository_id"`
	Indexed      bool           `json:"indexed"`
	Chunks       int            `json:"chunks"`
	Submitted    bool           `json:"submitted,omitempty"`
	Task         *rag.IndexTask `json:"task,omitempty"`
}

func (s *Server) handleIndexRepository(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	repositoryID, err := args.repositoryID()
	if err != nil {
		return errorResult(err), nil
	}

	task, submitted := s.engine.SubmitIndexing("", repositoryID, args.str("branch"))
	s.log.Info("indexing requested", "repository_id", repositoryID, "task_id", task.ID, "submitted", submitted)

	return jsonResult(statusResult{
		RepositoryID: repositoryID,
		Chunks:       s.engine.ChunkCount(repositoryID),
		Indexed:      s.engine.ChunkCount(repositoryID) > 0,
		Submitted:    submitted,
		Task:         &task,
	}), nil
}

func (s *Server) handleIndexStatus(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	repositoryID, err := args.repositoryID()
	if err != nil {
		return errorResult(err), nil
	}

	out := statusResult{
		RepositoryID: repositoryID,
		Chunks:       s.engine.ChunkCount(repositoryID),
	}
	out.Indexed = out.Chunks > 0
	if task, ok := s.engine.IndexStatus(repositoryID); ok {
		out.Task = &task
	}
	if !out.Indexed && out.Task == nil {
		return errorResult(errm.Errorf("repository %q is not indexed", repositoryID)), nil
	}

	return jsonResult(out), nil
}

func (s *Server) handleSearchCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	repositoryID, err := args.repositoryID()
	if err != nil {
		return errorResult(err), nil
	}
	query := args.str("query")
	if query == "" {
		return errorResult(errm.New("query is required")), nil
	}
	maxResults := min(args.num("max_results", defaultSearchResults), maxSearchResults)

	results, err := s.engine.Search(ctx, repositoryID, query, maxResults)
	if err != nil {
		s.log.Err(err, "search failed", "repository_id", repositoryID)
		return errorResult(errm.Wrap(err, "search")), nil
	}

	return textResult(formatResults(repositoryID, results)), nil
}

func (s *Server) handleReviewContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	repositoryID, err := args.repositoryID()
	if err != nil {
		return errorResult(err), nil
	}
	filePath := args.str("file_path")
	if filePath == "" {
		return errorResult(errm.New("file_path is required")), nil
	}
	diff, content := args.raw("diff"), args.raw("content")
	if diff == "" && content == "" {
		return errorResult(errm.New("diff or content is required")), nil
	}

	file := &model.FileDiff{
		OldPath: filePath,
		NewPath: filePath,
		Diff:    diff,
		Content: content,
	}
	pr := &model.MergeRequest{
		Title:        args.str("title"),
		Description:  args.str("description"),
		SourceBranch: args.str("branch"),
	}

	out := s.engine.BuildReviewContext(ctx, file, pr, "", repositoryID)
	if out == "" {
		out = "No context found for " + filePath
	}
	return textResult(out), nil
}

func formatResults(repositoryID string, results []model.RetrievalResult) string {
	if len(results) == 0 {
		return "No similar code found in " + repositoryID
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d results in %s\n", len(results), repositoryID)
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. %s (similarity %.2f)\n", i+1, r.Chunk.Location, r.Similarity)
		b.WriteString("```")
		b.WriteString(rag.LanguageForFile(r.Chunk.FilePath))
		b.WriteString("\n")
		b.WriteString(lang.TruncateString(r.Chunk.Content, snippetLimit))
		b.WriteString("\n```\n")
	}
	return b.String()
}

type toolArgs map[string]any

func arguments(req mcp.CallToolRequest) toolArgs {
	return toolArgs(req.Params.Arguments)
}

func (a toolArgs) raw(key string) string {
	v, _ := a[key].(string)
	return v
}

func (a toolArgs) str(key string) string {
	return strings.TrimSpace(a.raw(key))
}

// num reads a JSON number, which arrives as float64
func (a toolArgs) num(key string, def int) int {
	switch v := a[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return def
}

func (a toolArgs) repositoryID() (string, error) {
	repository := a.str("repository")
	if repository == "" {
		return "", errm.New("repository is required")
	}
	return model.ProjectPath(a.str("project"), repository), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	raw, err := jsoniter.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(errm.Wrap(err, "marshal result"))
	}
	return textResult(string(raw))
}

func errorResult(err error) *mcp.CallToolResult {
	res := textResult("Error: " + err.Error())
	res.IsError = true
	return res
}
