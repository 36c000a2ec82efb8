package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolostron/qe-intelligence/pkg/config"
	"github.com/stolostron/qe-intelligence/pkg/mcp"
	"github.com/stolostron/qe-intelligence/pkg/models"
	"github.com/stolostron/qe-intelligence/pkg/runstore"
)

// memStore is an in-memory Store for handler tests.
type memStore struct {
	runs []*models.WorkflowResult
	err  error
}

func (s *memStore) RecordRun(_ context.Context, result *models.WorkflowResult) error {
	s.runs = append(s.runs, result)
	return s.err
}

func (s *memStore) ListRuns(_ context.Context, limit int) ([]*models.WorkflowResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit > len(s.runs) {
		limit = len(s.runs)
	}
	return s.runs[:limit], nil
}

func (s *memStore) GetRun(_ context.Context, runID string) (*models.WorkflowResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, run := range s.runs {
		if run.RunID == runID {
			return run, nil
		}
	}
	return nil, runstore.ErrNotFound
}

func (s *memStore) Close() error { return nil }

func doRequest(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	srv := NewServer(nil, nil, nil)
	rec := doRequest(t, srv, http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["active_run"])
	assert.NotEmpty(t, body["version"])

	build, ok := body["build"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "qe-intelligence", build["app"])
	assert.NotEmpty(t, build["git_commit"])
	assert.NotEmpty(t, build["go_version"])
}

func TestListRuns(t *testing.T) {
	store := &memStore{runs: []*models.WorkflowResult{
		{RunID: "run-1", Tool: models.ToolTestGenerator, Input: "ACM-1",
			Success: true, Status: models.RunStatusCompleted,
			StartedAt: time.Now(), CompletedAt: time.Now()},
		{RunID: "run-2", Tool: models.ToolPipelineAnalyzer, Input: "https://jenkins.example/job/clc/9",
			Success: true, Status: models.RunStatusCompleted,
			StartedAt: time.Now(), CompletedAt: time.Now()},
	}}
	srv := NewServer(nil, nil, store)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["count"])

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/runs?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["count"])
}

func TestListRuns_BadLimit(t *testing.T) {
	srv := NewServer(nil, nil, &memStore{})

	for _, limit := range []string{"0", "-3", "abc"} {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/runs?limit="+limit)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestGetRun(t *testing.T) {
	store := &memStore{runs: []*models.WorkflowResult{
		{RunID: "run-1", Tool: models.ToolTestGenerator, Input: "ACM-1",
			Success: true, Status: models.RunStatusCompleted},
	}}
	srv := NewServer(nil, nil, store)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/runs/run-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run-1", decodeBody(t, rec)["run_id"])

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/runs/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMCPEndpoints_WithoutCoordinator(t *testing.T) {
	srv := NewServer(nil, nil, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/mcp/metrics")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/mcp/servers")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMCPMetrics(t *testing.T) {
	cfg := &config.Config{
		MCP:               config.DefaultMCPSettings(),
		MCPServerRegistry: config.NewMCPServerRegistry(nil),
	}
	coordinator := mcp.NewCoordinator(cfg)
	srv := NewServer(nil, coordinator, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/mcp/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body, "mcp_calls")
	assert.Contains(t, body, "success_rate")
}

func TestStreamMessages_NoActiveRun(t *testing.T) {
	srv := NewServer(nil, nil, nil)
	rec := doRequest(t, srv, http.MethodGet, "/ws/messages")

	// Plain GET without upgrade headers is rejected at the handshake.
	assert.NotEqual(t, http.StatusOK, rec.Code)
}
