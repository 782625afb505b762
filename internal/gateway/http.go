package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rahul/saarthi/internal/agent"
	"github.com/rahul/saarthi/internal/observability"
)

// QueryRunner is the core pipeline surface the gateway calls into.
type QueryRunner interface {
	Run(ctx context.Context, userQuery, traceID string) *agent.ExecutionState
}

// HTTPGateway exposes the pipeline over a small JSON API:
// POST /v1/query and GET /healthz.
type HTTPGateway struct {
	server  *http.Server
	runner  QueryRunner
	logger  *observability.Logger
	timeout time.Duration
}

func NewHTTPGateway(addr string, runner QueryRunner, logger *observability.Logger, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	g := &HTTPGateway{
		runner:  runner,
		logger:  logger,
		timeout: timeout,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/query", g.handleQuery)
	mux.HandleFunc("/healthz", g.handleHealth)

	g.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: timeout + 10*time.Second,
	}
	return g
}

func (g *HTTPGateway) Start() error {
	err := g.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (g *HTTPGateway) Stop(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}

type queryRequest struct {
	Query string `json:"query"`
}

func (g *HTTPGateway) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		http.Error(w, "request body must be JSON with a non-empty \"query\"", http.StatusBadRequest)
		return
	}

	// Honor an upstream trace id when the caller supplies one.
	traceID := r.Header.Get("X-Trace-ID")

	ctx, cancel := context.WithTimeout(r.Context(), g.timeout)
	defer cancel()

	state := g.runner.Run(ctx, req.Query, traceID)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state.Snapshot()); err != nil {
		g.logger.LogError(state.RequestID(), "gateway", err)
	}
}

func (g *HTTPGateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
