package mcp

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"
)

// githubTokenEnvVar is the variable the GitHub MCP server reads its
// credential from.
const githubTokenEnvVar = "GITHUB_PERSONAL_ACCESS_TOKEN"

// githubTokenPrefixes are the formats GitHub issues today.
var githubTokenPrefixes = []string{"ghp_", "gho_", "ghs_", "ghu_", "github_pat_"}

// ghCLITimeout bounds the `gh auth token` subprocess.
const ghCLITimeout = 5 * time.Second

// ResolveGitHubToken walks the credential chain:
// GITHUB_TOKEN → GH_TOKEN → `gh auth token`. The first syntactically valid
// token wins; an empty string means no usable credential was found.
func ResolveGitHubToken(ctx context.Context) string {
	for _, env := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		if token := strings.TrimSpace(os.Getenv(env)); ValidGitHubToken(token) {
			return token
		}
	}

	cliCtx, cancel := context.WithTimeout(ctx, ghCLITimeout)
	defer cancel()

	out, err := exec.CommandContext(cliCtx, "gh", "auth", "token").Output()
	if err != nil {
		return ""
	}
	if token := strings.TrimSpace(string(out)); ValidGitHubToken(token) {
		return token
	}
	return ""
}

// ValidGitHubToken checks token syntax: a known GitHub prefix, or at least
// 40 alphanumeric characters (classic 40-hex tokens and enterprise formats).
func ValidGitHubToken(token string) bool {
	if token == "" {
		return false
	}
	for _, prefix := range githubTokenPrefixes {
		if strings.HasPrefix(token, prefix) {
			return len(token) > len(prefix)
		}
	}
	if len(token) < 40 {
		return false
	}
	for _, r := range token {
		if !isAlnum(r) {
			return false
		}
	}
	return true
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
