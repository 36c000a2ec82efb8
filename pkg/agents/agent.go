// Package agents implements the investigation agents launched by the phased
// orchestrator: JIRA intelligence (A), environment intelligence (D),
// documentation intelligence (B), GitHub investigation (C), and the QE
// intelligence service invoked during data-flow staging.
//
// Agents never share memory: cross-agent coordination goes through the
// per-phase hub, and cross-phase data arrives on the RunContext.
package agents

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stolostron/qe-intelligence/pkg/hub"
	"github.com/stolostron/qe-intelligence/pkg/mcp"
	"github.com/stolostron/qe-intelligence/pkg/models"
)

// Message types exchanged over the phase hub.
const (
	MsgStatusUpdate = "status.update"
	MsgStatusPaused = "status.paused"
	MsgProceed      = "proceed"
)

// OrchestratorID is the hub identity the orchestrator answers paused agents
// under.
const OrchestratorID = "orchestrator"

// defaultPauseTimeout bounds the PAUSE-and-wait handshake when the run
// settings carry no value.
const defaultPauseTimeout = 30 * time.Second

// Services is the slice of the MCP coordinator the agents consume.
// *mcp.Coordinator satisfies it; tests substitute stubs.
type Services interface {
	GitHubGetPullRequest(ctx context.Context, owner, repo string, number int) *mcp.Result
	GitHubSearchRepositories(ctx context.Context, query string, limit int) *mcp.Result
	FilesystemReadFile(ctx context.Context, path string) *mcp.Result
	FilesystemSearchFiles(ctx context.Context, root, pattern string, maxResults int) *mcp.Result
	JiraGetIssue(ctx context.Context, key string) *mcp.Result
	JenkinsGetBuild(ctx context.Context, buildURL string) *mcp.Result
}

var _ Services = (*mcp.Coordinator)(nil)

// Agent is one unit of investigation. Execute returns either a result or an
// error; the phase runner converts errors into status=failed results, so an
// error never crosses the phase boundary.
type Agent interface {
	ID() string
	Name() string
	Execute(ctx context.Context, rc *RunContext) (*models.AgentResult, error)
}

// RunContext carries everything an agent may touch during one run. The
// orchestrator owns it; agents treat it as read-only except for their own
// output files under RunDir.
type RunContext struct {
	RunID  string
	RunDir string
	Tool   models.Tool
	Input  string // JIRA ticket ID or Jenkins build URL

	Hub      *hub.Hub // phase-scoped; nil outside hub-backed phases
	Services Services

	// Foundation holds the Phase 1 results, available to Phase 2 agents.
	Foundation []*models.AgentResult

	PauseTimeout time.Duration
	Logger       *slog.Logger
}

// FoundationFor returns the Phase 1 result for the given agent, or nil.
func (rc *RunContext) FoundationFor(agentID string) *models.AgentResult {
	for _, r := range rc.Foundation {
		if r.AgentID == agentID {
			return r
		}
	}
	return nil
}

func (rc *RunContext) log() *slog.Logger {
	if rc.Logger != nil {
		return rc.Logger
	}
	return slog.Default()
}

// writeDetailFile writes an agent's detailed analysis under the run
// directory as agent_<id>_<name>.md. The file is a temp artifact: staging
// copies its content into the intelligence package and Phase 5 removes it.
func writeDetailFile(rc *RunContext, agentID, agentName, content string) (string, error) {
	short := strings.TrimPrefix(agentID, "agent_")
	path := filepath.Join(rc.RunDir, fmt.Sprintf("agent_%s_%s.md", short, agentName))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing detail file for %s: %w", agentID, err)
	}
	return path, nil
}

// announce publishes a best-effort status update on the phase hub. Hub
// unavailability never fails an agent.
func announce(rc *RunContext, agentID, status string) {
	if rc.Hub == nil {
		return
	}
	_, err := rc.Hub.Publish(agentID, models.BroadcastTarget, MsgStatusUpdate,
		map[string]any{"status": status}, models.PriorityNormal, false)
	if err != nil {
		rc.log().Debug("Status update not delivered", "agent", agentID, "err", err)
	}
}

// awaitProceed is the PAUSE-and-wait handshake: the agent publishes
// status.paused and blocks until the orchestrator replies proceed or the
// pause timeout elapses. A timeout degrades the agent (returned as a warning)
// instead of failing it.
func awaitProceed(ctx context.Context, rc *RunContext, agentID, reason string) string {
	if rc.Hub == nil {
		return ""
	}
	timeout := rc.PauseTimeout
	if timeout <= 0 {
		timeout = defaultPauseTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := rc.Hub.Request(waitCtx, agentID, OrchestratorID, MsgStatusPaused,
		map[string]any{"reason": reason}, MsgProceed)
	if err != nil {
		rc.log().Warn("Proceed wait failed; continuing without confirmation",
			"agent", agentID, "reason", reason, "err", err)
		return fmt.Sprintf("proceed wait failed (%s): %v", reason, err)
	}
	return ""
}

// finish stamps the shared terminal fields on a successful result and marks
// the agent completed on the hub registry.
func finish(rc *RunContext, res *models.AgentResult, started time.Time) *models.AgentResult {
	res.Status = models.AgentStatusSuccess
	res.ExecutionTime = time.Since(started)
	announce(rc, res.AgentID, "completed")
	return res
}

// --- loosely-typed helpers over MCP result data ---

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// dig walks nested maps by key path and returns the leaf, or nil.
func dig(m map[string]any, path ...string) any {
	var cur any = m
	for _, key := range path {
		node := asMap(cur)
		if node == nil {
			return nil
		}
		cur = node[key]
	}
	return cur
}
