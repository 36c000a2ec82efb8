package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stolostron/qe-intelligence/pkg/runstore"
	"github.com/stolostron/qe-intelligence/pkg/version"
)

func (s *Server) health(c *gin.Context) {
	payload := gin.H{
		"status":     "healthy",
		"version":    version.Full(),
		"build":      version.Get(),
		"active_run": s.runtime != nil && s.runtime.ActiveHub() != nil,
	}

	if pg, ok := s.store.(*runstore.PostgresStore); ok {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		dbHealth, err := runstore.Health(ctx, pg.DB())
		payload["database"] = dbHealth
		if err != nil {
			payload["status"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, payload)
			return
		}
	}

	c.JSON(http.StatusOK, payload)
}

func (s *Server) listRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	runs, err := s.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("Listing runs failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "run history unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (s *Server) getRun(c *gin.Context) {
	run, err := s.store.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, runstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		s.logger.Error("Fetching run failed", "run_id", c.Param("id"), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "run history unavailable"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) mcpMetrics(c *gin.Context) {
	if s.coordinator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "integration layer not running"})
		return
	}
	c.JSON(http.StatusOK, s.coordinator.Metrics())
}

func (s *Server) mcpServers(c *gin.Context) {
	if s.coordinator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "integration layer not running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"servers": s.coordinator.ServerStatuses()})
}
