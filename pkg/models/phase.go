package models

import "time"

// PhaseID identifies one step of the fixed pipeline. Phases execute in the
// declared order and never branch.
type PhaseID string

const (
	PhaseInitCleanup   PhaseID = "phase_0"
	PhaseFoundation    PhaseID = "phase_1"
	PhaseInvestigation PhaseID = "phase_2"
	PhaseStaging       PhaseID = "phase_2_5"
	PhaseAnalysis      PhaseID = "phase_3"
	PhaseExtension     PhaseID = "phase_4"
	PhaseFinalCleanup  PhaseID = "phase_5"
)

// PhaseOrder is the normative pipeline order (0 → 1 → 2 → 2.5 → 3 → 4 → 5).
var PhaseOrder = []PhaseID{
	PhaseInitCleanup,
	PhaseFoundation,
	PhaseInvestigation,
	PhaseStaging,
	PhaseAnalysis,
	PhaseExtension,
	PhaseFinalCleanup,
}

// PhaseStatus is the aggregate status of a phase: success when at least one
// agent succeeded, partial when some failed, failed only when all failed.
type PhaseStatus string

const (
	PhaseStatusSuccess PhaseStatus = "success"
	PhaseStatusPartial PhaseStatus = "partial"
	PhaseStatusFailed  PhaseStatus = "failed"
)

// PhaseResult aggregates the agent results of one phase.
// AgentResults preserves agent-spawn order so downstream processing is stable.
type PhaseResult struct {
	PhaseID       PhaseID        `json:"phase_id"`
	PhaseName     string         `json:"phase_name"`
	Status        PhaseStatus    `json:"status"`
	AgentResults  []*AgentResult `json:"agent_results,omitempty"`
	ExecutionTime time.Duration  `json:"execution_time"`
	ErrorMessage  string         `json:"error_message,omitempty"`
}

// AggregatePhaseStatus derives the phase status from its agent results.
// An empty result set counts as failed.
func AggregatePhaseStatus(results []*AgentResult) PhaseStatus {
	if len(results) == 0 {
		return PhaseStatusFailed
	}
	succeeded := 0
	for _, r := range results {
		if r.Succeeded() {
			succeeded++
		}
	}
	switch {
	case succeeded == len(results):
		return PhaseStatusSuccess
	case succeeded > 0:
		return PhaseStatusPartial
	default:
		return PhaseStatusFailed
	}
}

// RunStatus is the terminal state of a full workflow run.
type RunStatus string

const (
	RunStatusCompleted  RunStatus = "completed"
	RunStatusCancelled  RunStatus = "cancelled"
	RunStatusFatalAbort RunStatus = "fatal_abort"
)

// WorkflowResult is the top-level outcome of ExecuteFullWorkflow.
// Success is false only when a fatal invariant broke (no run directory, data
// preservation failure, cancellation); individual agent failures still yield
// Success=true with per-phase partial statuses.
type WorkflowResult struct {
	RunID         string         `json:"run_id"`
	Tool          Tool           `json:"tool"`
	Input         string         `json:"input"` // JIRA ticket or Jenkins build URL
	RunDir        string         `json:"run_dir,omitempty"`
	Success       bool           `json:"success"`
	Status        RunStatus      `json:"status"`
	Phases        []*PhaseResult `json:"phases"`
	ExecutionTime time.Duration  `json:"execution_time"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	CompletedAt   time.Time      `json:"completed_at"`
}

// Phase returns the result for the given phase ID, or nil if it never ran.
func (w *WorkflowResult) Phase(id PhaseID) *PhaseResult {
	for _, p := range w.Phases {
		if p.PhaseID == id {
			return p
		}
	}
	return nil
}
