package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/stolostron/qe-intelligence/pkg/config"
)

// Result statuses and sources.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	SourceMCP      = "mcp"
	SourceFallback = "fallback"
	SourceCache    = "cache"
)

// Result is the uniform answer every coordinator operation returns. Status
// is "success" or "error"; Source says which path produced the data.
type Result struct {
	Status         string `json:"status"`
	Data           any    `json:"data,omitempty"`
	Source         string `json:"source,omitempty"`
	Error          string `json:"error,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// Succeeded reports whether the operation produced usable data.
func (r *Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// protocolCaller is the slice of Client the coordinator depends on.
type protocolCaller interface {
	EnsureServer(ctx context.Context, serverID string) error
	CallTool(ctx context.Context, serverID, tool string, args map[string]any) (*mcpsdk.CallToolResult, error)
	ListTools(ctx context.Context, serverID string) ([]*mcpsdk.Tool, error)
	InvalidateToolCache(serverID string)
	Close() error
}

// operation is one coordinator call: the MCP route plus its fallback.
type operation struct {
	name     string
	serverID string
	tool     string
	args     map[string]any
	fallback func(ctx context.Context) (any, error)
}

// Coordinator is the single entry point for all external-service access.
// Every operation follows the same pipeline: cache → health check →
// protocol call → fallback, with metrics recorded throughout.
type Coordinator struct {
	settings *config.MCPSettings
	client   protocolCaller
	cache    *resultCache
	health   *healthTable
	fallback *FallbackManager
	metrics  *Metrics
	logger   *slog.Logger
}

// NewCoordinator wires the integration layer from configuration.
func NewCoordinator(cfg *config.Config) *Coordinator {
	client := NewClient(cfg.MCPServerRegistry)
	return &Coordinator{
		settings: cfg.MCP,
		client:   client,
		cache:    newResultCache(cfg.MCP.CacheTTL()),
		health:   newHealthTable(client, cfg.MCP.HealthCheckInterval()),
		fallback: NewFallbackManager(),
		metrics:  NewMetrics(),
		logger:   slog.Default(),
	}
}

// Close shuts down all protocol sessions.
func (c *Coordinator) Close() error {
	return c.client.Close()
}

// Metrics returns a snapshot of the integration-layer counters.
func (c *Coordinator) Metrics() Snapshot {
	return c.metrics.Snapshot()
}

// ServerStatuses returns the current health table contents.
func (c *Coordinator) ServerStatuses() map[string]*ServerStatus {
	return c.health.snapshot()
}

// PurgeCache drops every cached result. Called by Phase 0 cleanup.
func (c *Coordinator) PurgeCache() {
	c.cache.Purge()
}

// GitHubGetPullRequest fetches pull-request metadata.
func (c *Coordinator) GitHubGetPullRequest(ctx context.Context, owner, repo string, number int) *Result {
	return c.execute(ctx, operation{
		name:     "github.get_pull_request",
		serverID: "github",
		tool:     "get_pull_request",
		args:     map[string]any{"owner": owner, "repo": repo, "pull_number": number},
		fallback: func(ctx context.Context) (any, error) {
			return c.fallback.GitHubGetPullRequest(ctx, owner, repo, number)
		},
	})
}

// GitHubSearchRepositories searches for repositories. limit <= 0 leaves the
// page size to the server.
func (c *Coordinator) GitHubSearchRepositories(ctx context.Context, query string, limit int) *Result {
	args := map[string]any{"query": query}
	if limit > 0 {
		args["perPage"] = limit
	}
	return c.execute(ctx, operation{
		name:     "github.search_repositories",
		serverID: "github",
		tool:     "search_repositories",
		args:     args,
		fallback: func(ctx context.Context) (any, error) {
			return c.fallback.GitHubSearchRepositories(ctx, query, limit)
		},
	})
}

// FilesystemReadFile reads one file.
func (c *Coordinator) FilesystemReadFile(ctx context.Context, path string) *Result {
	return c.execute(ctx, operation{
		name:     "filesystem.read_file",
		serverID: "filesystem",
		tool:     "read_file",
		args:     map[string]any{"path": path},
		fallback: func(ctx context.Context) (any, error) {
			return c.fallback.FilesystemReadFile(ctx, path)
		},
	})
}

// FilesystemSearchFiles finds files matching a name pattern under root.
// The filesystem server has no cap of its own, so maxResults is applied to
// the decoded result; the cache keeps the full list. maxResults <= 0 means
// unbounded.
func (c *Coordinator) FilesystemSearchFiles(ctx context.Context, root, pattern string, maxResults int) *Result {
	res := c.execute(ctx, operation{
		name:     "filesystem.search_files",
		serverID: "filesystem",
		tool:     "search_files",
		args:     map[string]any{"path": root, "pattern": pattern},
		fallback: func(ctx context.Context) (any, error) {
			return c.fallback.FilesystemSearchFiles(ctx, root, pattern)
		},
	})
	if maxResults > 0 {
		res.Data = truncateList(res.Data, maxResults)
	}
	return res
}

// truncateList caps a decoded list result; non-list data passes through.
func truncateList(data any, max int) any {
	switch list := data.(type) {
	case []any:
		if len(list) > max {
			return list[:max]
		}
	case []string:
		if len(list) > max {
			return list[:max]
		}
	}
	return data
}

// JiraGetIssue fetches one JIRA issue.
func (c *Coordinator) JiraGetIssue(ctx context.Context, key string) *Result {
	return c.execute(ctx, operation{
		name:     "jira.get_issue",
		serverID: "jira",
		tool:     "jira_get_issue",
		args:     map[string]any{"issue_key": key},
		fallback: func(ctx context.Context) (any, error) {
			return c.fallback.JiraGetIssue(ctx, key)
		},
	})
}

// JenkinsGetBuild fetches build metadata for a Jenkins build URL.
func (c *Coordinator) JenkinsGetBuild(ctx context.Context, buildURL string) *Result {
	return c.execute(ctx, operation{
		name:     "jenkins.get_build",
		serverID: "jenkins",
		tool:     "get_build",
		args:     map[string]any{"build_url": buildURL},
		fallback: func(ctx context.Context) (any, error) {
			return c.fallback.JenkinsGetBuild(ctx, buildURL)
		},
	})
}

// execute runs one operation through the full pipeline.
func (c *Coordinator) execute(ctx context.Context, op operation) *Result {
	c.metrics.RecordCall()

	if c.settings.CacheEnabled() {
		if data, ok := c.cache.Get(op.name, op.args); ok {
			c.metrics.RecordCacheHit()
			c.metrics.RecordSuccess()
			return &Result{Status: StatusSuccess, Data: data, Source: SourceCache}
		}
		c.metrics.RecordCacheMiss()
	}

	var fallbackReason string
	if c.health.healthy(ctx, op.serverID) {
		start := time.Now()
		data, err := c.callProtocol(ctx, op)
		if err == nil {
			c.metrics.RecordSuccess()
			c.metrics.RecordLatency(time.Since(start))
			if c.settings.CacheEnabled() {
				c.cache.Put(op.name, op.args, data)
			}
			return &Result{Status: StatusSuccess, Data: data, Source: SourceMCP}
		}
		fallbackReason = fmt.Sprintf("mcp call failed: %v", err)
		c.logger.Warn("MCP operation failed, considering fallback",
			"operation", op.name, "server", op.serverID, "error", err)
	} else {
		fallbackReason = fmt.Sprintf("server %q unhealthy", op.serverID)
	}

	if !c.settings.FallbackEnabled() || op.fallback == nil {
		return &Result{Status: StatusError, Error: fallbackReason}
	}

	c.metrics.RecordFallback()
	data, err := op.fallback(ctx)
	if err != nil {
		return &Result{
			Status:         StatusError,
			Error:          fmt.Sprintf("fallback failed: %v", err),
			FallbackReason: fallbackReason,
		}
	}

	c.metrics.RecordSuccess()
	if c.settings.CacheEnabled() {
		c.cache.Put(op.name, op.args, data)
	}
	return &Result{
		Status:         StatusSuccess,
		Data:           data,
		Source:         SourceFallback,
		FallbackReason: fallbackReason,
	}
}

// callProtocol performs the MCP call and decodes the tool result.
func (c *Coordinator) callProtocol(ctx context.Context, op operation) (any, error) {
	if err := c.client.EnsureServer(ctx, op.serverID); err != nil {
		return nil, err
	}

	result, err := c.client.CallTool(ctx, op.serverID, op.tool, op.args)
	if err != nil {
		return nil, err
	}
	return decodeToolResult(result)
}

// decodeToolResult flattens a CallToolResult into data: JSON when the text
// content parses as JSON, the raw string otherwise.
func decodeToolResult(result *mcpsdk.CallToolResult) (any, error) {
	var texts []string
	for _, content := range result.Content {
		if tc, ok := content.(*mcpsdk.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	text := strings.Join(texts, "\n")

	if result.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return nil, fmt.Errorf("tool error: %s", text)
	}

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err == nil {
		return decoded, nil
	}
	return text, nil
}
