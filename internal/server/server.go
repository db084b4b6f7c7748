package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"toolgate/internal/auth"
	"toolgate/internal/config"
	"toolgate/internal/dispatcher"
	"toolgate/pkg/logging"
)

const (
	serverName = "toolgate"

	// DefaultReadHeaderTimeout is the timeout for reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultWriteTimeout is the timeout for writing responses.
	DefaultWriteTimeout = 120 * time.Second
	// DefaultIdleTimeout is the idle timeout for keepalive connections.
	DefaultIdleTimeout = 120 * time.Second

	shutdownTimeout = 5 * time.Second
)

// Server ties the transport surface together: the MCP endpoint exposing
// gated tools, the authorization connect/callback endpoints, and a health
// probe, all on one HTTP listener.
type Server struct {
	cfg          config.Config
	elicitations *auth.ElicitationStore
	mcpServer    *mcpserver.MCPServer
	httpServer   *http.Server
}

// New assembles the server from its collaborators. version is reported
// through the MCP handshake.
func New(cfg config.Config, version string, d *dispatcher.Dispatcher, providers *auth.ProviderRegistry, elicitations *auth.ElicitationStore) *Server {
	mcpSrv := mcpserver.NewMCPServer(
		serverName,
		version,
		mcpserver.WithToolCapabilities(false),
	)
	mcpSrv.AddTools(createServerTools(d, cfg.BaseURL())...)

	mux := http.NewServeMux()

	// Health check endpoint (unauthenticated)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	authHandler := NewAuthHandler(providers, elicitations, cfg.Principal)
	authHandler.RegisterRoutes(mux)

	mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(mcpSrv))

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	return &Server{
		cfg:          cfg,
		elicitations: elicitations,
		mcpServer:    mcpSrv,
		httpServer:   httpSrv,
	}
}

// Run starts the HTTP listener and the elicitation sweeper, and blocks until
// ctx is canceled or the listener fails. Shutdown is graceful with a bounded
// timeout.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Info("Server", "Listening on %s (base URL %s)", s.httpServer.Addr, s.cfg.BaseURL())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.elicitations.StartSweeper(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logging.Info("Server", "Shutting down")
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Handler exposes the assembled HTTP mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
