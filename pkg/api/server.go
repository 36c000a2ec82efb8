// Package api serves machine-readable run state for qeintel serve: health,
// run history, MCP integration metrics, and a WebSocket stream of hub
// messages from the live run. It is a monitoring surface, not a control
// plane; runs are started from the CLI.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stolostron/qe-intelligence/pkg/mcp"
	"github.com/stolostron/qe-intelligence/pkg/orchestrator"
	"github.com/stolostron/qe-intelligence/pkg/runstore"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the monitoring endpoints.
type Server struct {
	runtime     *orchestrator.Runtime
	coordinator *mcp.Coordinator
	store       runstore.Store
	logger      *slog.Logger
}

// NewServer wires the monitoring surface. coordinator may be nil when the
// integration layer is not up; the metrics endpoint then reports 503.
func NewServer(runtime *orchestrator.Runtime, coordinator *mcp.Coordinator, store runstore.Store) *Server {
	if store == nil {
		store = runstore.NopStore{}
	}
	return &Server{
		runtime:     runtime,
		coordinator: coordinator,
		store:       store,
		logger:      slog.With("component", "api"),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	v1.GET("/runs", s.listRuns)
	v1.GET("/runs/:id", s.getRun)
	v1.GET("/mcp/metrics", s.mcpMetrics)
	v1.GET("/mcp/servers", s.mcpServers)

	r.GET("/ws/messages", s.streamMessages)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("API server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("Request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start).Round(time.Millisecond))
	}
}
