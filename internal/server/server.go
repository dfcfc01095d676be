package server

import (
	"context"
	"net/http"

	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/ragreview/internal/model"
	"github.com/maxbolgarin/ragreview/internal/model/interfaces"
	"github.com/maxbolgarin/ragreview/internal/rag"
	"github.com/maxbolgarin/servex/v2"
)

// Headers carrying the webhook secret or signature, in provider order
var authHeaders = []string{
	"X-Gitlab-Token",
	"X-Hub-Signature-256",
	"X-Hub-Signature",
}

// EventHandler processes merge request webhook events
type EventHandler interface {
	HandleEvent(ctx context.Context, event *model.CodeEvent) error
}

// IndexManager runs and reports repository indexing
type IndexManager interface {
	SubmitIndexing(project, repositoryID, branch string) (rag.IndexTask, bool)
	IndexStatus(repositoryID string) (rag.IndexTask, bool)
	ChunkCount(repositoryID string) int
	ClearIndex(ctx context.Context, repositoryID string) error
}

// Server handles webhook requests from VCS providers and the indexing API
type Server struct {
	provider interfaces.CodeProvider
	handler  EventHandler
	indexes  IndexManager
	config   Config
	log      logze.Logger
	server   *servex.Server

	// base context of reviews started by webhooks, request contexts end too early
	baseCtx context.Context
}

func New(cfg Config, provider interfaces.CodeProvider, handler EventHandler, indexes IndexManager) (*Server, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, erro.Wrap(err, "validate config")
	}

	log := logze.With("component", "server")

	server, err := servex.NewServer(
		servex.WithReadTimeout(cfg.Timeout),
		servex.WithIdleTimeout(cfg.Timeout*2),
		servex.WithLogger(log),
		servex.WithHealthEndpoint(),
		servex.WithDefaultMetrics(),
		servex.WithCertificate(cfg.Certificate),
	)
	if err != nil {
		return nil, erro.Wrap(err, "failed to create server")
	}

	h := &Server{
		provider: provider,
		handler:  handler,
		indexes:  indexes,
		config:   cfg,
		log:      log,
		server:   server,
		baseCtx:  context.Background(),
	}

	server.HandleFunc(cfg.Endpoint, h.handleWebhook)
	if !cfg.DisableIndexAPI {
		server.HandleFunc(cfg.IndexEndpoint, h.handleIndex)
	}

	return h, nil
}

// Start starts the server, reviews triggered by webhooks live within ctx
func (h *Server) Start(ctx context.Context) error {
	h.baseCtx = ctx
	if h.config.EnableHTTPS {
		return h.server.StartHTTPS(h.config.Address)
	}
	return h.server.StartHTTP(h.config.Address)
}

func (h *Server) Stop(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

func (h *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := servex.NewContext(w, r)

	if r.Method != http.MethodPost {
		ctx.Response(http.StatusMethodNotAllowed)
		return
	}

	body, err := ctx.Read()
	if err != nil {
		ctx.BadRequest(err, "failed to read webhook body")
		return
	}

	if err := h.provider.ValidateWebhook(body, authFromHeaders(r)); err != nil {
		ctx.Unauthorized(err, "webhook validation failed")
		return
	}

	event, err := h.provider.ParseWebhookEvent(body)
	if err != nil {
		ctx.BadRequest(err, "failed to parse webhook event")
		return
	}

	if !h.provider.IsMergeRequestEvent(event) {
		h.log.Debug("ignoring non-merge request event", "type", event.Type, "action", event.Action)
		ctx.Response(http.StatusOK)
		return
	}

	h.log.Info("received merge request event", "mr_title", event.MergeRequest.Title, "action", event.Action)

	if err := h.handler.HandleEvent(h.baseCtx, event); err != nil {
		ctx.InternalServerError(err, "failed to handle event")
		return
	}
	ctx.Response(http.StatusAccepted)
}

func authFromHeaders(r *http.Request) string {
	for _, header := range authHeaders {
		if value := r.Header.Get(header); value != "" {
			return value
		}
	}
	return ""
}
