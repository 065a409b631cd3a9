package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/reviewpulse/internal/logger"
	"github.com/custodia-labs/reviewpulse/internal/metrics"
)

// Version is the MCP server version.
const Version = "0.1.0"

const shutdownTimeout = 10 * time.Second

// instructions tells clients how the review tools fit together.
const instructions = `ReviewPulse turns a quarter of customer reviews into ranked themes and actions.

Call run_ingestion with a businessUnitId and a quarter such as 2025Q3. A unit and
quarter is processed once; repeat calls return ok=false with "already processed"
and the existing manifestId. Check synthesisErrors in the result for themes whose
actions could not be generated.

Use list_manifests to find earlier runs, theme_metrics for per-theme counts and
quarter-over-quarter trends, and synthesize_actions to regenerate actions for one
theme. Manifests and their themes are also readable as reviewpulse:// resources.`

// Server exposes the review pipeline as MCP tools and resources.
type Server struct {
	ports  *Ports
	server *mcp.Server
}

// NewServer creates a new MCP server with the given ports.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{ports: ports}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "reviewpulse",
		Title:   "ReviewPulse",
		Version: Version,
	}, &mcp.ServerOptions{
		Instructions:       instructions,
		InitializedHandler: s.onInitialized,
	})

	s.registerTools()
	s.registerResources()

	return s, nil
}

func (s *Server) onInitialized(_ context.Context, _ *mcp.InitializedRequest) {
	metrics.MCPSessions.Inc()
	logger.Debug("MCP session initialised (insights %t, actions %t)",
		s.ports.Insights != nil, s.ports.Actions != nil)
}

// Run serves over stdio until the context is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	logger.Debug("MCP server running on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the HTTP handler: streamable MCP on /mcp and a /health probe
// for process supervisors.
func (s *Server) Handler() http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/mcp", streamable)
	r.Handle("/mcp/*", streamable)
	return r
}

// RunHTTP serves Handler on addr until the context is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	logger.Info("MCP server listening on %s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
