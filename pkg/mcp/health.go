package mcp

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ServerStatus captures the health state of one MCP server.
type ServerStatus struct {
	ServerID  string    `json:"server_id"`
	Healthy   bool      `json:"healthy"`
	LastCheck time.Time `json:"last_check"`
	Error     string    `json:"error,omitempty"`
	ToolCount int       `json:"tool_count"`
}

// healthTable tracks per-server health with interval-limited rechecks: an
// unhealthy server is re-probed at most once per interval, so a dead server
// costs one probe per window instead of one per operation.
type healthTable struct {
	client   protocolCaller
	interval time.Duration

	mu       sync.Mutex
	statuses map[string]*ServerStatus

	now    func() time.Time
	logger *slog.Logger
}

func newHealthTable(client protocolCaller, interval time.Duration) *healthTable {
	return &healthTable{
		client:   client,
		interval: interval,
		statuses: make(map[string]*ServerStatus),
		now:      time.Now,
		logger:   slog.Default(),
	}
}

// healthy reports whether the server can be used, probing it when the
// status is stale or missing.
func (t *healthTable) healthy(ctx context.Context, serverID string) bool {
	t.mu.Lock()
	status, ok := t.statuses[serverID]
	if ok && t.now().Sub(status.LastCheck) < t.interval {
		healthy := status.Healthy
		t.mu.Unlock()
		return healthy
	}
	t.mu.Unlock()

	return t.probe(ctx, serverID)
}

// probe connects (if needed) and lists tools as a liveness check.
func (t *healthTable) probe(ctx context.Context, serverID string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, HealthProbeTimeout)
	defer cancel()

	if err := t.client.EnsureServer(probeCtx, serverID); err != nil {
		t.record(serverID, false, err.Error(), 0)
		return false
	}

	// Re-probe the live connection, not the cached list.
	t.client.InvalidateToolCache(serverID)
	tools, err := t.client.ListTools(probeCtx, serverID)
	if err != nil {
		t.record(serverID, false, err.Error(), 0)
		return false
	}

	t.record(serverID, true, "", len(tools))
	return true
}

func (t *healthTable) record(serverID string, healthy bool, errMsg string, toolCount int) {
	if !healthy {
		t.logger.Debug("MCP server health check failed", "server", serverID, "error", errMsg)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statuses[serverID] = &ServerStatus{
		ServerID:  serverID,
		Healthy:   healthy,
		LastCheck: t.now(),
		Error:     errMsg,
		ToolCount: toolCount,
	}
}

// snapshot returns a copy of all known statuses.
func (t *healthTable) snapshot() map[string]*ServerStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make(map[string]*ServerStatus, len(t.statuses))
	for k, v := range t.statuses {
		cp := *v
		result[k] = &cp
	}
	return result
}
