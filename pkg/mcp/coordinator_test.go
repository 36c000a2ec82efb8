package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolostron/qe-intelligence/pkg/config"
)

// stubProtocol fakes the protocol layer for pipeline tests.
type stubProtocol struct {
	ensureErr  error
	callResult *mcpsdk.CallToolResult
	callErr    error
	callCount  int
	lastArgs   map[string]any
}

func (s *stubProtocol) EnsureServer(context.Context, string) error { return s.ensureErr }

func (s *stubProtocol) CallTool(_ context.Context, _, _ string, args map[string]any) (*mcpsdk.CallToolResult, error) {
	s.callCount++
	s.lastArgs = args
	return s.callResult, s.callErr
}

func (s *stubProtocol) ListTools(context.Context, string) ([]*mcpsdk.Tool, error) {
	if s.ensureErr != nil {
		return nil, s.ensureErr
	}
	return []*mcpsdk.Tool{{Name: "get_pull_request"}}, nil
}

func (s *stubProtocol) InvalidateToolCache(string) {}
func (s *stubProtocol) Close() error               { return nil }

func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}
}

func newTestCoordinator(stub *stubProtocol) *Coordinator {
	settings := config.DefaultMCPSettings()
	return &Coordinator{
		settings: settings,
		client:   stub,
		cache:    newResultCache(settings.CacheTTL()),
		health:   newHealthTable(stub, settings.HealthCheckInterval()),
		fallback: NewFallbackManager(),
		metrics:  NewMetrics(),
		logger:   testLogger(),
	}
}

func TestExecute_ProtocolSuccess(t *testing.T) {
	stub := &stubProtocol{callResult: textResult(`{"number": 42, "state": "open"}`)}
	c := newTestCoordinator(stub)

	res := c.execute(context.Background(), operation{
		name:     "github.get_pull_request",
		serverID: "github",
		tool:     "get_pull_request",
		args:     map[string]any{"pull_number": 42},
	})

	require.True(t, res.Succeeded())
	assert.Equal(t, SourceMCP, res.Source)
	data, ok := res.Data.(map[string]any)
	require.True(t, ok, "JSON text content decodes into structured data")
	assert.Equal(t, "open", data["state"])

	snap := c.Metrics()
	assert.Equal(t, int64(1), snap.MCPCalls)
	assert.Equal(t, int64(1), snap.Successes)
	assert.Equal(t, int64(0), snap.FallbackCalls)
}

func TestExecute_SecondCallServedFromCache(t *testing.T) {
	stub := &stubProtocol{callResult: textResult(`{"ok": true}`)}
	c := newTestCoordinator(stub)

	op := operation{name: "jira.get_issue", serverID: "jira", tool: "jira_get_issue",
		args: map[string]any{"issue_key": "ACM-1"}}

	first := c.execute(context.Background(), op)
	second := c.execute(context.Background(), op)

	assert.Equal(t, SourceMCP, first.Source)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, 1, stub.callCount, "cached call must not reach the protocol layer")
	assert.Equal(t, int64(1), c.Metrics().CacheHits)
}

func TestExecute_UnhealthyServerGoesStraightToFallback(t *testing.T) {
	stub := &stubProtocol{ensureErr: errors.New("connection refused")}
	c := newTestCoordinator(stub)

	res := c.execute(context.Background(), operation{
		name:     "github.get_pull_request",
		serverID: "github",
		tool:     "get_pull_request",
		args:     map[string]any{"pull_number": 7},
		fallback: func(context.Context) (any, error) {
			return map[string]any{"number": 7}, nil
		},
	})

	require.True(t, res.Succeeded())
	assert.Equal(t, SourceFallback, res.Source)
	assert.Contains(t, res.FallbackReason, "unhealthy")
	assert.Equal(t, 0, stub.callCount, "unhealthy server must not receive protocol calls")
	assert.Equal(t, int64(1), c.Metrics().FallbackCalls)
}

func TestExecute_ProtocolFailureFallsBack(t *testing.T) {
	stub := &stubProtocol{callErr: errors.New("invalid params")}
	c := newTestCoordinator(stub)

	res := c.execute(context.Background(), operation{
		name:     "filesystem.read_file",
		serverID: "filesystem",
		tool:     "read_file",
		args:     map[string]any{"path": "x.js"},
		fallback: func(context.Context) (any, error) { return "contents", nil },
	})

	require.True(t, res.Succeeded())
	assert.Equal(t, SourceFallback, res.Source)
	assert.Contains(t, res.FallbackReason, "mcp call failed")
	assert.Equal(t, "contents", res.Data)
}

func TestExecute_FallbackDisabledReturnsError(t *testing.T) {
	stub := &stubProtocol{ensureErr: errors.New("connection refused")}
	c := newTestCoordinator(stub)
	c.settings.EnableFallback = config.BoolPtr(false)

	res := c.execute(context.Background(), operation{
		name:     "jenkins.get_build",
		serverID: "jenkins",
		tool:     "get_build",
		args:     map[string]any{"build_url": "https://jenkins.example/job/clc/1/"},
		fallback: func(context.Context) (any, error) { return "should not run", nil },
	})

	assert.False(t, res.Succeeded())
	assert.Equal(t, StatusError, res.Status)
	assert.NotEqual(t, "should not run", res.Data)
}

func TestExecute_BothPathsFailing(t *testing.T) {
	stub := &stubProtocol{callErr: errors.New("invalid request")}
	c := newTestCoordinator(stub)

	res := c.execute(context.Background(), operation{
		name:     "jira.get_issue",
		serverID: "jira",
		tool:     "jira_get_issue",
		args:     map[string]any{"issue_key": "ACM-2"},
		fallback: func(context.Context) (any, error) {
			return nil, errors.New("no JIRA_BASE_URL")
		},
	})

	assert.False(t, res.Succeeded())
	assert.Contains(t, res.Error, "fallback failed")
	assert.Contains(t, res.FallbackReason, "mcp call failed")
}

func TestExecute_HealthCheckedOncePerInterval(t *testing.T) {
	stub := &stubProtocol{ensureErr: errors.New("connection refused")}
	c := newTestCoordinator(stub)

	now := time.Now()
	c.health.now = func() time.Time { return now }

	op := operation{
		name: "github.get_pull_request", serverID: "github", tool: "get_pull_request",
		fallback: func(context.Context) (any, error) { return nil, errors.New("nope") },
	}
	c.execute(context.Background(), op)
	c.execute(context.Background(), op)

	statuses := c.ServerStatuses()
	require.Contains(t, statuses, "github")
	firstCheck := statuses["github"].LastCheck
	assert.False(t, statuses["github"].Healthy)

	// Within the interval the cached unhealthy status is reused.
	now = now.Add(30 * time.Second)
	c.execute(context.Background(), op)
	assert.Equal(t, firstCheck, c.ServerStatuses()["github"].LastCheck)

	// After the interval the server is re-probed.
	now = now.Add(31 * time.Second)
	c.execute(context.Background(), op)
	assert.True(t, c.ServerStatuses()["github"].LastCheck.After(firstCheck))
}

func TestGitHubSearchRepositories_LimitReachesServer(t *testing.T) {
	stub := &stubProtocol{callResult: textResult(`{"items": []}`)}
	c := newTestCoordinator(stub)

	res := c.GitHubSearchRepositories(context.Background(), "org:stolostron import", 5)
	require.True(t, res.Succeeded())
	assert.Equal(t, "org:stolostron import", stub.lastArgs["query"])
	assert.Equal(t, 5, stub.lastArgs["perPage"])
}

func TestGitHubSearchRepositories_NoLimitLeavesPagingToServer(t *testing.T) {
	stub := &stubProtocol{callResult: textResult(`{"items": []}`)}
	c := newTestCoordinator(stub)

	res := c.GitHubSearchRepositories(context.Background(), "org:stolostron", 0)
	require.True(t, res.Succeeded())
	assert.NotContains(t, stub.lastArgs, "perPage")
}

func TestFilesystemSearchFiles_MaxResults(t *testing.T) {
	stub := &stubProtocol{callResult: textResult(`["a.md", "b.md", "c.md"]`)}
	c := newTestCoordinator(stub)

	res := c.FilesystemSearchFiles(context.Background(), "docs", "*.md", 2)
	require.True(t, res.Succeeded())
	assert.Equal(t, []any{"a.md", "b.md"}, res.Data)

	// The cache keeps the full list, so a later wider call sees everything.
	res = c.FilesystemSearchFiles(context.Background(), "docs", "*.md", 0)
	require.True(t, res.Succeeded())
	assert.Equal(t, SourceCache, res.Source)
	assert.Len(t, res.Data, 3)
}

func TestDecodeToolResult(t *testing.T) {
	t.Run("json content", func(t *testing.T) {
		data, err := decodeToolResult(textResult(`[1, 2, 3]`))
		require.NoError(t, err)
		assert.Equal(t, []any{1.0, 2.0, 3.0}, data)
	})

	t.Run("plain text content", func(t *testing.T) {
		data, err := decodeToolResult(textResult("describe cluster output"))
		require.NoError(t, err)
		assert.Equal(t, "describe cluster output", data)
	})

	t.Run("multiple text blocks joined", func(t *testing.T) {
		res := &mcpsdk.CallToolResult{Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: "line one"},
			&mcpsdk.TextContent{Text: "line two"},
		}}
		data, err := decodeToolResult(res)
		require.NoError(t, err)
		assert.Equal(t, "line one\nline two", data)
	})

	t.Run("tool error", func(t *testing.T) {
		res := textResult("repo not found")
		res.IsError = true
		_, err := decodeToolResult(res)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "repo not found")
	})
}

func TestCoordinator_PurgeCache(t *testing.T) {
	stub := &stubProtocol{callResult: textResult(`"v"`)}
	c := newTestCoordinator(stub)

	op := operation{name: "filesystem.read_file", serverID: "filesystem", tool: "read_file",
		args: map[string]any{"path": "a"}}
	c.execute(context.Background(), op)
	c.PurgeCache()
	c.execute(context.Background(), op)

	assert.Equal(t, 2, stub.callCount, "purge must force a fresh protocol call")
}
