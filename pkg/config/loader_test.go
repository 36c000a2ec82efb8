package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestInitialize_BuiltinsOnly(t *testing.T) {
	cfg, err := Initialize(context.Background(), t.TempDir())
	require.NoError(t, err)

	// Built-in agents and servers are present.
	assert.True(t, cfg.AgentRegistry.Has("agent_a"))
	assert.True(t, cfg.AgentRegistry.Has("qe_intelligence"))
	assert.True(t, cfg.MCPServerRegistry.Has("github"))
	assert.True(t, cfg.MCPServerRegistry.Has("jenkins"))

	// Default settings.
	assert.Equal(t, 300, cfg.MCP.CacheTTLSeconds)
	assert.Equal(t, 60, cfg.MCP.HealthCheckIntervalSeconds)
	assert.Equal(t, 3, cfg.MCP.MaxRetries)
	assert.InDelta(t, 1.0, cfg.MCP.RetryDelaySeconds, 1e-9)
	assert.True(t, cfg.MCP.FallbackEnabled())
	assert.True(t, cfg.MCP.CacheEnabled())
	assert.True(t, cfg.MaskingEnabled)
	assert.Empty(t, cfg.MCPConfigPath)
}

func TestInitialize_YAMLOverridesSettings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "qe-intelligence.yaml", `
mcp:
  cache_ttl: 120
  enable_fallback: false
run:
  output_dir: /tmp/qe-out
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 120, cfg.MCP.CacheTTLSeconds)
	assert.False(t, cfg.MCP.FallbackEnabled())
	// Unset values keep defaults.
	assert.Equal(t, 60, cfg.MCP.HealthCheckIntervalSeconds)
	assert.Equal(t, "/tmp/qe-out", cfg.Run.OutputDir)
	assert.Equal(t, DefaultRunSettings().CancelGracePeriod, cfg.Run.CancelGracePeriod)
}

func TestInitialize_MCPJSONDiscovered(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mcp-servers.json", `{
  "mcpServers": {
    "github": {"type": "stdio", "command": "custom-github-mcp"},
    "extra": {"type": "http", "url": "http://localhost:9000/mcp"}
  },
  "settings": {"cache_ttl": 30, "max_retries": 5}
}`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "mcp-servers.json"), cfg.MCPConfigPath)

	// JSON entry replaces the built-in github server.
	gh, err := cfg.MCPServerRegistry.Get("github")
	require.NoError(t, err)
	assert.Equal(t, "custom-github-mcp", gh.Command)

	assert.True(t, cfg.MCPServerRegistry.Has("extra"))
	// Built-ins not overridden survive.
	assert.True(t, cfg.MCPServerRegistry.Has("jira"))

	// JSON settings block wins over defaults.
	assert.Equal(t, 30, cfg.MCP.CacheTTLSeconds)
	assert.Equal(t, 5, cfg.MCP.MaxRetries)
}

func TestInitialize_EnvExpansionInYAML(t *testing.T) {
	t.Setenv("QE_TEST_OUTPUT", "/srv/qe")
	dir := t.TempDir()
	writeFile(t, dir, "qe-intelligence.yaml", `
run:
  output_dir: "{{.QE_TEST_OUTPUT}}/runs-root"
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "/srv/qe/runs-root", cfg.Run.OutputDir)
}

func TestInitialize_InvalidYAMLFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "qe-intelligence.yaml", "agents: [unclosed")

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestInitialize_InvalidMCPJSONFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mcp-servers.json", "{not json")

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestInitialize_UnknownServerReferenceFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "qe-intelligence.yaml", `
agents:
  agent_x:
    name: custom-agent
    role: github
    mcp_servers: [does-not-exist]
`)

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestInitialize_BadServerTypeFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mcp-servers.json", `{
  "mcpServers": {"weird": {"type": "carrier-pigeon"}}
}`)

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestRegistry_GetMissing(t *testing.T) {
	cfg, err := Initialize(context.Background(), t.TempDir())
	require.NoError(t, err)

	_, err = cfg.AgentRegistry.Get("nope")
	assert.ErrorIs(t, err, ErrAgentNotFound)
	_, err = cfg.MCPServerRegistry.Get("nope")
	assert.ErrorIs(t, err, ErrMCPServerNotFound)
}

func TestAgentConfig_Defaults(t *testing.T) {
	a := &AgentConfig{Name: "x", Role: RoleJira}
	assert.True(t, a.IsEnabled())
	assert.Equal(t, DefaultRunSettings().AgentTimeout, a.Timeout(DefaultRunSettings().AgentTimeout))

	disabled := false
	a.Enabled = &disabled
	assert.False(t, a.IsEnabled())

	a.TimeoutSeconds = 90
	assert.Equal(t, "1m30s", a.Timeout(0).String())
}
