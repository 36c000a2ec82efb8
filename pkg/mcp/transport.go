package mcp

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/stolostron/qe-intelligence/pkg/config"
)

// createTransport creates an MCP SDK transport from a server config.
func createTransport(ctx context.Context, cfg *config.MCPServerConfig) (mcpsdk.Transport, error) {
	switch cfg.Type {
	case config.TransportStdio:
		return createStdioTransport(ctx, cfg)
	case config.TransportHTTP:
		return createHTTPTransport(cfg)
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", cfg.Type)
	}
}

func createStdioTransport(ctx context.Context, cfg *config.MCPServerConfig) (*mcpsdk.CommandTransport, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("stdio transport requires command")
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)

	// Inherit parent environment + config overrides. Built-in server entries
	// carry unexpanded {{.VAR}} references, so expand here.
	env := os.Environ()
	for k, v := range cfg.Env {
		val := string(config.ExpandEnv([]byte(v)))
		if val == "" && k == githubTokenEnvVar {
			// GITHUB_TOKEN was unset; walk the rest of the credential chain
			// (GH_TOKEN, then the gh CLI) before leaving the server
			// unauthenticated.
			val = ResolveGitHubToken(ctx)
		}
		env = append(env, fmt.Sprintf("%s=%s", k, val))
	}
	cmd.Env = env

	return &mcpsdk.CommandTransport{Command: cmd}, nil
}

func createHTTPTransport(cfg *config.MCPServerConfig) (*mcpsdk.StreamableClientTransport, error) {
	url := string(config.ExpandEnv([]byte(cfg.URL)))
	if url == "" {
		return nil, fmt.Errorf("HTTP transport requires url")
	}
	transport := &mcpsdk.StreamableClientTransport{
		Endpoint: url,
	}
	if cfg.BearerToken != "" || cfg.Timeout > 0 {
		transport.HTTPClient = buildHTTPClient(cfg)
	}
	return transport, nil
}

// buildHTTPClient creates an http.Client with auth and timeout settings.
func buildHTTPClient(cfg *config.MCPServerConfig) *http.Client {
	client := &http.Client{
		Transport: http.DefaultTransport,
	}

	if cfg.BearerToken != "" {
		client.Transport = &bearerTokenTransport{
			base:  client.Transport,
			token: string(config.ExpandEnv([]byte(cfg.BearerToken))),
		}
	}

	if cfg.Timeout > 0 {
		client.Timeout = time.Duration(cfg.Timeout) * time.Second
	}

	return client
}

// bearerTokenTransport wraps an http.RoundTripper to add Authorization headers.
type bearerTokenTransport struct {
	base  http.RoundTripper
	token string
}

func (t *bearerTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}
