package models

import "time"

// AgentStatus is the terminal execution status of a single agent.
type AgentStatus string

const (
	AgentStatusSuccess AgentStatus = "success"
	AgentStatusFailed  AgentStatus = "failed"
	AgentStatusSkipped AgentStatus = "skipped"
)

// ErrorKind classifies agent failures for orchestrator control flow.
// Only integrity, input, and cancellation kinds may change how the run ends;
// everything else is recorded on the AgentResult and the pipeline continues.
type ErrorKind string

const (
	ErrorKindNone       ErrorKind = ""
	ErrorKindTransient  ErrorKind = "transient_external"
	ErrorKindCredential ErrorKind = "credential"
	ErrorKindSchema     ErrorKind = "schema"
	ErrorKindIntegrity  ErrorKind = "integrity"
	ErrorKindInput      ErrorKind = "user_input"
	ErrorKindCancelled  ErrorKind = "cancelled"
)

// AgentResult is the typed outcome of one agent execution. Agents never
// return errors across the phase boundary; failures are captured here.
type AgentResult struct {
	AgentID       string         `json:"agent_id"`
	AgentName     string         `json:"agent_name"`
	Status        AgentStatus    `json:"status"`
	Findings      map[string]any `json:"findings,omitempty"`
	Confidence    float64        `json:"confidence"`
	ExecutionTime time.Duration  `json:"execution_time"`
	OutputFile    string         `json:"output_file,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	ErrorKind     ErrorKind      `json:"error_kind,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`

	// DetailedAnalysis is the agent's full emitted analysis. Phase 2.5 copies
	// it verbatim into the intelligence package; it must never be truncated
	// between the agent and Phase 3 input.
	DetailedAnalysis string `json:"detailed_analysis,omitempty"`
}

// Succeeded reports whether the agent completed successfully.
func (r *AgentResult) Succeeded() bool {
	return r.Status == AgentStatusSuccess
}

// FailedResult builds a failed AgentResult with the conventions the
// orchestrator relies on: confidence zero, empty findings, captured message.
func FailedResult(agentID, agentName string, kind ErrorKind, errMsg string, elapsed time.Duration) *AgentResult {
	return &AgentResult{
		AgentID:       agentID,
		AgentName:     agentName,
		Status:        AgentStatusFailed,
		Confidence:    0.0,
		ExecutionTime: elapsed,
		ErrorMessage:  errMsg,
		ErrorKind:     kind,
	}
}
