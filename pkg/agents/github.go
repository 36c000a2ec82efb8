package agents

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stolostron/qe-intelligence/pkg/models"
)

// repoSearchLimit bounds how many repositories one investigation pulls in.
const repoSearchLimit = 10

// GitHubAgent is Phase 2 agent C: it locates the repositories behind the
// components under investigation and, when a pull request reference is
// supplied, pulls its details.
type GitHubAgent struct{}

func (a *GitHubAgent) ID() string   { return "agent_c" }
func (a *GitHubAgent) Name() string { return "github-investigation" }

func (a *GitHubAgent) Execute(ctx context.Context, rc *RunContext) (*models.AgentResult, error) {
	started := time.Now()
	announce(rc, a.ID(), "active")

	var warnings []string
	if w := awaitProceed(ctx, rc, a.ID(), "starting repository investigation"); w != "" {
		warnings = append(warnings, w)
	}

	org := strings.TrimSpace(os.Getenv("QE_GITHUB_ORG"))
	if org == "" {
		org = "stolostron"
	}
	keywords := investigationKeywords(rc)
	query := "org:" + org
	if len(keywords) > 0 {
		query += " " + keywords[0]
	}

	res := rc.Services.GitHubSearchRepositories(ctx, query, repoSearchLimit)
	if !res.Succeeded() {
		return nil, fmt.Errorf("searching repositories (%s): %s", query, res.Error)
	}
	repos := repoList(res.Data)
	if len(repos) == 0 {
		warnings = append(warnings, "no repositories matched the investigation query")
	}

	findings := map[string]any{
		"organization": org,
		"query":        query,
		"repositories": repos,
	}

	// QE_GITHUB_PR=owner/repo#123 pins the investigation to one pull request.
	if owner, repo, number, ok := parsePRRef(os.Getenv("QE_GITHUB_PR")); ok {
		prRes := rc.Services.GitHubGetPullRequest(ctx, owner, repo, number)
		if prRes.Succeeded() {
			findings["pull_request"] = prRes.Data
		} else {
			warnings = append(warnings, fmt.Sprintf("pull request %s/%s#%d unavailable: %s",
				owner, repo, number, prRes.Error))
		}
	}

	confidence := 0.8
	if len(repos) == 0 {
		confidence = 0.35
	}

	detail := renderGitHubDetail(query, repos, findings)
	outFile, err := writeDetailFile(rc, a.ID(), a.Name(), detail)
	if err != nil {
		return nil, err
	}

	result := &models.AgentResult{
		AgentID:          a.ID(),
		AgentName:        a.Name(),
		Findings:         findings,
		Confidence:       confidence,
		OutputFile:       outFile,
		Warnings:         warnings,
		DetailedAnalysis: detail,
	}
	return finish(rc, result, started), nil
}

// repoList normalizes a repository search result: a bare list (gh CLI) or a
// wrapper object with an items field (MCP tool).
func repoList(data any) []map[string]any {
	items := asSlice(data)
	if items == nil {
		items = asSlice(asMap(data)["items"])
	}
	out := []map[string]any{}
	for _, item := range items {
		repo := asMap(item)
		if repo == nil {
			continue
		}
		name := asString(repo["fullName"])
		if name == "" {
			name = asString(repo["full_name"])
		}
		if name == "" {
			continue
		}
		out = append(out, map[string]any{
			"full_name":   name,
			"description": asString(repo["description"]),
			"url":         valueOr(asString(repo["url"]), asString(repo["html_url"])),
		})
	}
	return out
}

func parsePRRef(ref string) (owner, repo string, number int, ok bool) {
	ref = strings.TrimSpace(ref)
	slug, num, found := strings.Cut(ref, "#")
	if !found {
		return "", "", 0, false
	}
	owner, repo, found = strings.Cut(slug, "/")
	if !found || owner == "" || repo == "" {
		return "", "", 0, false
	}
	number, err := strconv.Atoi(num)
	if err != nil || number <= 0 {
		return "", "", 0, false
	}
	return owner, repo, number, true
}

func renderGitHubDetail(query string, repos []map[string]any, findings map[string]any) string {
	var b strings.Builder
	b.WriteString("# GitHub Investigation\n\n")
	fmt.Fprintf(&b, "Query: `%s`\n\n", query)
	b.WriteString("## Repositories\n\n")
	if len(repos) == 0 {
		b.WriteString("(none matched)\n")
	}
	for _, repo := range repos {
		fmt.Fprintf(&b, "- %s", repo["full_name"])
		if desc := asString(repo["description"]); desc != "" {
			fmt.Fprintf(&b, ": %s", desc)
		}
		b.WriteString("\n")
	}
	if pr := asMap(findings["pull_request"]); pr != nil {
		fmt.Fprintf(&b, "\n## Pull Request\n\n- Title: %s\n- State: %s\n",
			asString(pr["title"]), asString(pr["state"]))
	}
	return b.String()
}
