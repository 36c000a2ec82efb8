package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// fallbackTimeout bounds any single fallback execution (CLI or HTTP).
const fallbackTimeout = 20 * time.Second

// maxFallbackBody caps HTTP fallback response bodies.
const maxFallbackBody = 4 << 20 // 4 MiB

// FallbackManager runs the degraded path when an MCP server is unhealthy or
// a protocol call fails: the gh CLI for GitHub, find/cat subprocesses for
// filesystem access, and direct HTTP for Jenkins and JIRA.
type FallbackManager struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFallbackManager creates a fallback manager.
func NewFallbackManager() *FallbackManager {
	return &FallbackManager{
		httpClient: &http.Client{Timeout: fallbackTimeout},
		logger:     slog.Default(),
	}
}

// GitHubGetPullRequest fetches PR metadata via the gh CLI.
func (f *FallbackManager) GitHubGetPullRequest(ctx context.Context, owner, repo string, number int) (any, error) {
	out, err := f.runCommand(ctx, "gh", "pr", "view", strconv.Itoa(number),
		"--repo", owner+"/"+repo,
		"--json", "number,title,state,body,author,files,baseRefName,headRefName,mergedAt")
	if err != nil {
		return nil, fmt.Errorf("gh pr view failed: %w", err)
	}
	return decodeJSON(out)
}

// GitHubSearchRepositories searches repositories via the gh CLI.
func (f *FallbackManager) GitHubSearchRepositories(ctx context.Context, query string, limit int) (any, error) {
	if limit <= 0 {
		limit = 10
	}
	out, err := f.runCommand(ctx, "gh", "search", "repos", query,
		"--json", "fullName,description,url", "--limit", strconv.Itoa(limit))
	if err != nil {
		return nil, fmt.Errorf("gh search repos failed: %w", err)
	}
	return decodeJSON(out)
}

// FilesystemReadFile reads a file via cat.
func (f *FallbackManager) FilesystemReadFile(ctx context.Context, path string) (any, error) {
	out, err := f.runCommand(ctx, "cat", path)
	if err != nil {
		return nil, fmt.Errorf("cat %s failed: %w", path, err)
	}
	return string(out), nil
}

// FilesystemSearchFiles finds files matching a name pattern via find.
func (f *FallbackManager) FilesystemSearchFiles(ctx context.Context, root, pattern string) (any, error) {
	out, err := f.runCommand(ctx, "find", root, "-type", "f", "-name", pattern)
	if err != nil {
		return nil, fmt.Errorf("find in %s failed: %w", root, err)
	}
	var matches []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line != "" {
			matches = append(matches, line)
		}
	}
	return matches, nil
}

// JenkinsGetBuild fetches build metadata from the Jenkins JSON API.
func (f *FallbackManager) JenkinsGetBuild(ctx context.Context, buildURL string) (any, error) {
	apiURL := strings.TrimSuffix(buildURL, "/") + "/api/json"
	return f.getJSON(ctx, apiURL, nil)
}

// JiraGetIssue fetches an issue from the JIRA REST API. Requires
// JIRA_BASE_URL; JIRA_API_TOKEN is attached when present.
func (f *FallbackManager) JiraGetIssue(ctx context.Context, key string) (any, error) {
	base := strings.TrimSuffix(os.Getenv("JIRA_BASE_URL"), "/")
	if base == "" {
		return nil, fmt.Errorf("JIRA fallback requires JIRA_BASE_URL")
	}
	headers := map[string]string{}
	if token := os.Getenv("JIRA_API_TOKEN"); token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return f.getJSON(ctx, base+"/rest/api/2/issue/"+key, headers)
}

// runCommand executes a subprocess with the fallback deadline.
func (f *FallbackManager) runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, fallbackTimeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return out, nil
}

func (f *FallbackManager) getJSON(ctx context.Context, url string, headers map[string]string) (any, error) {
	reqCtx, cancel := context.WithTimeout(ctx, fallbackTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFallbackBody))
	if err != nil {
		return nil, err
	}
	return decodeJSON(body)
}

func decodeJSON(data []byte) (any, error) {
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
