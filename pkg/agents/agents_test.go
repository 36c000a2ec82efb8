package agents

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolostron/qe-intelligence/pkg/hub"
	"github.com/stolostron/qe-intelligence/pkg/mcp"
	"github.com/stolostron/qe-intelligence/pkg/models"
)

// stubServices fakes the MCP coordinator per operation. Unstubbed
// operations fail loudly.
type stubServices struct {
	jiraGetIssue    func(key string) *mcp.Result
	jenkinsGetBuild func(url string) *mcp.Result
	searchFiles     func(root, pattern string) *mcp.Result
	readFile        func(path string) *mcp.Result
	searchRepos     func(query string) *mcp.Result
	getPullRequest  func(owner, repo string, number int) *mcp.Result
}

func okResult(data any) *mcp.Result {
	return &mcp.Result{Status: mcp.StatusSuccess, Data: data, Source: mcp.SourceMCP}
}

func errResult(msg string) *mcp.Result {
	return &mcp.Result{Status: mcp.StatusError, Error: msg}
}

func (s *stubServices) JiraGetIssue(_ context.Context, key string) *mcp.Result {
	if s.jiraGetIssue == nil {
		return errResult("jira not stubbed")
	}
	return s.jiraGetIssue(key)
}

func (s *stubServices) JenkinsGetBuild(_ context.Context, url string) *mcp.Result {
	if s.jenkinsGetBuild == nil {
		return errResult("jenkins not stubbed")
	}
	return s.jenkinsGetBuild(url)
}

func (s *stubServices) FilesystemSearchFiles(_ context.Context, root, pattern string, _ int) *mcp.Result {
	if s.searchFiles == nil {
		return errResult("search not stubbed")
	}
	return s.searchFiles(root, pattern)
}

func (s *stubServices) FilesystemReadFile(_ context.Context, path string) *mcp.Result {
	if s.readFile == nil {
		return errResult("read not stubbed")
	}
	return s.readFile(path)
}

func (s *stubServices) GitHubSearchRepositories(_ context.Context, query string, _ int) *mcp.Result {
	if s.searchRepos == nil {
		return errResult("repo search not stubbed")
	}
	return s.searchRepos(query)
}

func (s *stubServices) GitHubGetPullRequest(_ context.Context, owner, repo string, number int) *mcp.Result {
	if s.getPullRequest == nil {
		return errResult("pull request not stubbed")
	}
	return s.getPullRequest(owner, repo, number)
}

func newRunContext(t *testing.T, input string, services Services) *RunContext {
	t.Helper()
	return &RunContext{
		RunID:    "run-test",
		RunDir:   t.TempDir(),
		Tool:     models.ToolTestGenerator,
		Input:    input,
		Services: services,
	}
}

func TestJIRAAgent_Execute(t *testing.T) {
	services := &stubServices{
		jiraGetIssue: func(key string) *mcp.Result {
			assert.Equal(t, "ACM-12345", key)
			return okResult(map[string]any{
				"fields": map[string]any{
					"summary": "Cluster import fails behind proxy",
					"description": "Importing a managed cluster fails.\n\n" +
						"Acceptance Criteria:\n- import succeeds behind proxy\n- status reaches Ready\n",
					"priority":    map[string]any{"name": "Critical"},
					"components":  []any{map[string]any{"name": "Cluster Lifecycle"}},
					"labels":      []any{"proxy"},
					"fixVersions": []any{map[string]any{"name": "2.12.0"}},
				},
			})
		},
	}
	rc := newRunContext(t, "ACM-12345", services)

	agent := &JIRAAgent{}
	res, err := agent.Execute(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, "agent_a", res.AgentID)
	assert.Equal(t, models.AgentStatusSuccess, res.Status)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.Empty(t, res.Warnings)

	assert.Equal(t, "Cluster import fails behind proxy", res.Findings["summary"])
	assert.Equal(t, "Critical", res.Findings["priority"])
	assert.Equal(t, []string{"Cluster Lifecycle"}, res.Findings["components"])
	assert.Equal(t, []string{"import succeeds behind proxy", "status reaches Ready"},
		res.Findings["acceptance_criteria"])

	require.FileExists(t, res.OutputFile)
	assert.Equal(t, "agent_a_jira-intelligence.md", filepath.Base(res.OutputFile))
	content, err := os.ReadFile(res.OutputFile)
	require.NoError(t, err)
	assert.Equal(t, res.DetailedAnalysis, string(content),
		"detail file and in-memory analysis must match")
}

func TestJIRAAgent_MissingDescriptionDegrades(t *testing.T) {
	services := &stubServices{
		jiraGetIssue: func(string) *mcp.Result {
			return okResult(map[string]any{"fields": map[string]any{"summary": "short"}})
		},
	}
	res, err := (&JIRAAgent{}).Execute(context.Background(), newRunContext(t, "ACM-1", services))
	require.NoError(t, err)

	assert.Equal(t, models.AgentStatusSuccess, res.Status)
	assert.InDelta(t, 0.6, res.Confidence, 1e-9)
	assert.NotEmpty(t, res.Warnings)
}

func TestJIRAAgent_FetchFailure(t *testing.T) {
	services := &stubServices{
		jiraGetIssue: func(string) *mcp.Result { return errResult("jira unreachable") },
	}
	_, err := (&JIRAAgent{}).Execute(context.Background(), newRunContext(t, "ACM-2", services))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jira unreachable")
}

func TestExtractAcceptanceCriteria(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        []string
	}{
		{
			"heading section",
			"Background.\n\nAcceptance criteria:\n- one\n- two\n\nNotes after.",
			[]string{"one", "two"},
		},
		{
			"checklist fallback",
			"Steps:\n- [ ] verify import\n- [x] verify detach\n",
			[]string{"verify import", "verify detach"},
		},
		{"no criteria", "Just prose.", nil},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractAcceptanceCriteria(tt.description))
		})
	}
}

func TestPipelineAgent_Execute(t *testing.T) {
	buildURL := "https://jenkins.example/job/clc/1234"
	services := &stubServices{
		jenkinsGetBuild: func(url string) *mcp.Result {
			if strings.HasSuffix(url, "/testReport") {
				return okResult(map[string]any{
					"suites": []any{map[string]any{
						"cases": []any{
							map[string]any{
								"className": "clusters", "name": "import_spec",
								"status": "FAILED", "errorDetails": "Timed out retrying",
							},
							map[string]any{"name": "detach_spec", "status": "PASSED"},
							map[string]any{"name": "create_spec", "status": "REGRESSION"},
						},
					}},
				})
			}
			return okResult(map[string]any{
				"fullDisplayName": "clc-e2e #1234",
				"number":          1234.0,
				"result":          "UNSTABLE",
				"duration":        90000.0,
			})
		},
	}
	rc := newRunContext(t, buildURL+"/", services)
	rc.Tool = models.ToolPipelineAnalyzer

	res, err := (&PipelineAgent{}).Execute(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, "agent_a", res.AgentID)
	assert.Equal(t, "pipeline-intelligence", res.AgentName)
	assert.Equal(t, "UNSTABLE", res.Findings["build_result"])

	failed, ok := res.Findings["failed_tests"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, failed, 2, "passed cases are excluded")
	assert.Equal(t, "clusters.import_spec", failed[0]["name"])
	assert.Equal(t, "Timed out retrying", failed[0]["error_message"])
	assert.Equal(t, "create_spec", failed[1]["name"])
}

func TestPipelineAgent_MissingTestReport(t *testing.T) {
	services := &stubServices{
		jenkinsGetBuild: func(url string) *mcp.Result {
			if strings.HasSuffix(url, "/testReport") {
				return errResult("404")
			}
			return okResult(map[string]any{"result": "FAILURE"})
		},
	}
	rc := newRunContext(t, "https://jenkins.example/job/clc/7", services)

	res, err := (&PipelineAgent{}).Execute(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, models.AgentStatusSuccess, res.Status)
	assert.InDelta(t, 0.6, res.Confidence, 1e-9)
	assert.NotEmpty(t, res.Warnings)
}

func TestEnvironmentAgent_Execute(t *testing.T) {
	t.Setenv("CLUSTER_CONSOLE_URL", "https://console.example")
	t.Setenv("CLUSTER_API_URL", "https://api.example:6443")
	t.Setenv("CLUSTER_NAME", "hub-1")

	agent := &EnvironmentAgent{probe: func(_ context.Context, url string) error {
		if strings.Contains(url, "api") {
			return errors.New("connection refused")
		}
		return nil
	}}
	res, err := agent.Execute(context.Background(), newRunContext(t, "ACM-1", &stubServices{}))
	require.NoError(t, err)

	assert.Equal(t, "agent_d", res.AgentID)
	assert.Equal(t, true, res.Findings["console_accessible"])
	assert.Equal(t, false, res.Findings["api_accessible"])
	assert.Equal(t, false, res.Findings["healthy"])
	assert.Equal(t, "hub-1", res.Findings["target_cluster"])
	assert.InDelta(t, 0.6, res.Confidence, 1e-9)
	assert.NotEmpty(t, res.Warnings)
}

func TestEnvironmentAgent_NoEndpointsConfigured(t *testing.T) {
	t.Setenv("CLUSTER_CONSOLE_URL", "")
	t.Setenv("CLUSTER_API_URL", "")
	t.Setenv("CLUSTER_NAME", "")

	agent := &EnvironmentAgent{probe: func(context.Context, string) error {
		t.Fatal("probe must not run without endpoints")
		return nil
	}}
	res, err := agent.Execute(context.Background(), newRunContext(t, "ACM-1", &stubServices{}))
	require.NoError(t, err)

	assert.InDelta(t, 0.4, res.Confidence, 1e-9)
	assert.Equal(t, "unknown", res.Findings["target_cluster"])
	assert.NotEmpty(t, res.Warnings)
}

func TestDocumentationAgent_Execute(t *testing.T) {
	t.Setenv("QE_DOCS_ROOT", "/qe/docs")
	services := &stubServices{
		searchFiles: func(root, pattern string) *mcp.Result {
			assert.Equal(t, "/qe/docs", root)
			assert.Equal(t, "*.md", pattern)
			return okResult("/qe/docs/cluster-lifecycle.md\n/qe/docs/observability.md\n")
		},
		readFile: func(path string) *mcp.Result {
			return okResult("# Cluster Lifecycle\n## Import\nbody\n## Detach\n")
		},
	}
	rc := newRunContext(t, "ACM-1", services)
	rc.Foundation = []*models.AgentResult{{
		AgentID: "agent_a",
		Status:  models.AgentStatusSuccess,
		Findings: map[string]any{
			"components": []any{"Cluster Lifecycle"},
			"summary":    "Cluster import fails",
		},
	}}

	res, err := (&DocumentationAgent{}).Execute(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, "agent_b", res.AgentID)
	assert.Equal(t, 2, res.Findings["files_scanned"])
	assert.Equal(t, []string{"/qe/docs/cluster-lifecycle.md"}, res.Findings["relevant_docs"])
	sections := res.Findings["sections"].(map[string][]string)
	assert.Equal(t, []string{"Cluster Lifecycle", "Import", "Detach"},
		sections["/qe/docs/cluster-lifecycle.md"])
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
}

func TestDocumentationAgent_NoMatchesDegrades(t *testing.T) {
	services := &stubServices{
		searchFiles: func(string, string) *mcp.Result { return okResult("") },
	}
	res, err := (&DocumentationAgent{}).Execute(context.Background(),
		newRunContext(t, "ACM-1", services))
	require.NoError(t, err)

	assert.InDelta(t, 0.3, res.Confidence, 1e-9)
	assert.NotEmpty(t, res.Warnings)
}

func TestDocumentationAgent_PauseAndProceed(t *testing.T) {
	h := hub.New("run-test", models.PhaseInvestigation)
	require.NoError(t, h.Start())
	defer h.Stop()

	// The orchestrator side: answer every pause request with proceed.
	h.Subscribe(OrchestratorID, []string{MsgStatusPaused}, func(m *models.Message) {
		_, err := h.PublishReply(OrchestratorID, m.Sender, MsgProceed, nil, m.ID)
		assert.NoError(t, err)
	})

	services := &stubServices{
		searchFiles: func(string, string) *mcp.Result { return okResult("/docs/acm-1.md\n") },
		readFile:    func(string) *mcp.Result { return okResult("# ACM-1\n") },
	}
	rc := newRunContext(t, "acm-1", services)
	rc.Hub = h
	rc.PauseTimeout = 2 * time.Second

	res, err := (&DocumentationAgent{}).Execute(context.Background(), rc)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings, "granted proceed must not leave a warning")

	paused := h.GetMessageHistory(hub.HistoryFilter{Type: MsgStatusPaused})
	require.Len(t, paused, 1)
	assert.Equal(t, "agent_b", paused[0].Sender)
	assert.True(t, paused[0].RequiresResponse)
}

func TestDocumentationAgent_PauseTimeoutWarns(t *testing.T) {
	h := hub.New("run-test", models.PhaseInvestigation)
	require.NoError(t, h.Start())
	defer h.Stop()

	services := &stubServices{
		searchFiles: func(string, string) *mcp.Result { return okResult("/docs/acm-1.md\n") },
		readFile:    func(string) *mcp.Result { return okResult("# ACM-1\n") },
	}
	rc := newRunContext(t, "acm-1", services)
	rc.Hub = h
	rc.PauseTimeout = 50 * time.Millisecond

	res, err := (&DocumentationAgent{}).Execute(context.Background(), rc)
	require.NoError(t, err)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "proceed wait failed")
}

func TestGitHubAgent_Execute(t *testing.T) {
	t.Setenv("QE_GITHUB_ORG", "")
	t.Setenv("QE_GITHUB_PR", "")
	services := &stubServices{
		searchRepos: func(query string) *mcp.Result {
			assert.Equal(t, "org:stolostron cluster lifecycle", query)
			return okResult([]any{
				map[string]any{"fullName": "stolostron/clc-ui-e2e", "description": "CLC UI tests",
					"url": "https://github.com/stolostron/clc-ui-e2e"},
				map[string]any{"description": "nameless entry is dropped"},
			})
		},
	}
	rc := newRunContext(t, "ACM-1", services)
	rc.Foundation = []*models.AgentResult{{
		AgentID:  "agent_a",
		Status:   models.AgentStatusSuccess,
		Findings: map[string]any{"components": []any{"cluster lifecycle"}},
	}}

	res, err := (&GitHubAgent{}).Execute(context.Background(), rc)
	require.NoError(t, err)

	repos := res.Findings["repositories"].([]map[string]any)
	require.Len(t, repos, 1)
	assert.Equal(t, "stolostron/clc-ui-e2e", repos[0]["full_name"])
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
}

func TestGitHubAgent_PullRequestReference(t *testing.T) {
	t.Setenv("QE_GITHUB_ORG", "stolostron")
	t.Setenv("QE_GITHUB_PR", "stolostron/console#9001")
	services := &stubServices{
		searchRepos: func(string) *mcp.Result { return okResult([]any{}) },
		getPullRequest: func(owner, repo string, number int) *mcp.Result {
			assert.Equal(t, "stolostron", owner)
			assert.Equal(t, "console", repo)
			assert.Equal(t, 9001, number)
			return okResult(map[string]any{"title": "Fix import wizard", "state": "MERGED"})
		},
	}

	res, err := (&GitHubAgent{}).Execute(context.Background(), newRunContext(t, "ACM-1", services))
	require.NoError(t, err)

	pr := res.Findings["pull_request"].(map[string]any)
	assert.Equal(t, "Fix import wizard", pr["title"])
	assert.Contains(t, res.DetailedAnalysis, "Fix import wizard")
}

func TestParsePRRef(t *testing.T) {
	tests := []struct {
		ref   string
		ok    bool
		owner string
		num   int
	}{
		{"stolostron/console#42", true, "stolostron", 42},
		{"console#42", false, "", 0},
		{"stolostron/console", false, "", 0},
		{"stolostron/console#zero", false, "", 0},
		{"stolostron/console#-1", false, "", 0},
		{"", false, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			owner, _, num, ok := parsePRRef(tt.ref)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.owner, owner)
				assert.Equal(t, tt.num, num)
			}
		})
	}
}

func TestQEIntelligence_Analyze(t *testing.T) {
	packages := []*models.AgentIntelligencePackage{
		{
			AgentID: "agent_a", AgentName: "jira-intelligence",
			Status: models.AgentStatusSuccess, Confidence: 0.9,
			FindingsSummary: map[string]any{
				"ticket":              "ACM-1",
				"components":          []any{"Cluster Lifecycle"},
				"acceptance_criteria": []any{"import works"},
			},
		},
		{
			AgentID: "agent_d", AgentName: "environment-intelligence",
			Status: models.AgentStatusSuccess, Confidence: 0.7,
			FindingsSummary: map[string]any{"healthy": true},
		},
		{
			AgentID: "agent_b", AgentName: "documentation-intelligence",
			Status: models.AgentStatusFailed,
		},
	}

	out := (&QEIntelligence{}).Analyze(packages)

	assert.Equal(t, models.AgentStatusSuccess, out.Status)
	assert.Contains(t, out.TestPatterns, "functional coverage for cluster lifecycle")
	assert.Contains(t, out.TestPatterns, "acceptance-criteria verification")
	assert.Contains(t, out.TestPatterns, "target-cluster smoke verification")
	assert.Contains(t, out.CoverageGaps, "no documentation-intelligence output available (failed)")
	assert.InDelta(t, 0.8, out.Confidence, 1e-9, "mean of successful package confidences")
}

func TestQEIntelligence_AllAgentsFailed(t *testing.T) {
	out := (&QEIntelligence{}).Analyze([]*models.AgentIntelligencePackage{
		{AgentID: "agent_a", AgentName: "jira-intelligence", Status: models.AgentStatusFailed},
	})
	assert.Equal(t, models.AgentStatusFailed, out.Status)
	assert.Zero(t, out.Confidence)
}

func TestQEIntelligence_Deterministic(t *testing.T) {
	packages := []*models.AgentIntelligencePackage{{
		AgentID: "agent_a", AgentName: "jira-intelligence",
		Status: models.AgentStatusSuccess, Confidence: 0.8,
		FindingsSummary: map[string]any{
			"components": []any{"Search", "Observability", "Application Lifecycle"},
		},
	}}
	first := (&QEIntelligence{}).Analyze(packages)
	second := (&QEIntelligence{}).Analyze(packages)
	assert.Equal(t, first, second)
}
