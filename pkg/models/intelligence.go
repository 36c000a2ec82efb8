package models

import "time"

// AgentIntelligencePackage is the Phase 2.5 wrapper around one agent's
// output. DetailedContent must equal the agent's emitted detailed analysis
// byte-for-byte; staging verifies this before Phase 3 runs.
type AgentIntelligencePackage struct {
	AgentID         string         `json:"agent_id"`
	AgentName       string         `json:"agent_name"`
	Status          AgentStatus    `json:"status"`
	FindingsSummary map[string]any `json:"findings_summary,omitempty"`
	DetailedFile    string         `json:"detailed_file,omitempty"`
	DetailedContent string         `json:"detailed_content,omitempty"`
	Confidence      float64        `json:"confidence"`
	ExecutionTime   time.Duration  `json:"execution_time"`
}

// QEIntelligencePackage is the QE intelligence service output produced
// alongside the agent packages in Phase 2.5.
type QEIntelligencePackage struct {
	ServiceName        string      `json:"service_name"`
	Status             AgentStatus `json:"status"`
	TestPatterns       []string    `json:"test_patterns,omitempty"`
	CoverageGaps       []string    `json:"coverage_gaps,omitempty"`
	AutomationInsights []string    `json:"automation_insights,omitempty"`
	Confidence         float64     `json:"confidence"`
}

// IntelligenceBundle is the single input handed to Phase 3: every agent
// package from Phases 1 and 2 plus the QE intelligence result.
type IntelligenceBundle struct {
	AgentPackages            []*AgentIntelligencePackage `json:"agent_packages"`
	QEIntelligence           *QEIntelligencePackage      `json:"qe_intelligence,omitempty"`
	DataPreservationVerified bool                        `json:"data_preservation_verified"`
	PreservationFailures     []string                    `json:"preservation_failures,omitempty"`
}

// PackageFor returns the intelligence package for the given agent ID,
// or nil if the agent never produced one.
func (b *IntelligenceBundle) PackageFor(agentID string) *AgentIntelligencePackage {
	for _, p := range b.AgentPackages {
		if p.AgentID == agentID {
			return p
		}
	}
	return nil
}
