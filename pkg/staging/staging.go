// Package staging implements Phase 2.5: it gathers every agent result from
// the foundation and investigation phases into intelligence packages, invokes
// the QE intelligence service, and verifies that no agent output was lost on
// the way to analysis.
package staging

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/stolostron/qe-intelligence/pkg/agents"
	"github.com/stolostron/qe-intelligence/pkg/models"
)

// ErrDataPreservation is the staging integrity failure: a successful agent's
// detailed analysis did not survive packaging. It is the only error class
// that fails an otherwise-completed run.
var ErrDataPreservation = errors.New("data preservation verification failed")

// Staged artifact names. Both match the Phase 5 temp patterns, so they are
// removed once the run's final reports exist.
const (
	bundleFile       = "bundle_staging.json"
	intelligenceFile = "qe_intelligence.json"
)

// Stager builds the Phase 3 input bundle.
type Stager struct {
	intelligence *agents.QEIntelligence
	logger       *slog.Logger
}

// NewStager constructs a stager with the QE intelligence service.
func NewStager() *Stager {
	return &Stager{
		intelligence: &agents.QEIntelligence{},
		logger:       slog.With("component", "staging"),
	}
}

// Stage wraps the agent results in package order, runs QE intelligence, and
// verifies preservation. The bundle is always returned; the error is non-nil
// only when verification failed.
func (s *Stager) Stage(runDir string, results []*models.AgentResult) (*models.IntelligenceBundle, error) {
	packages := make([]*models.AgentIntelligencePackage, 0, len(results))
	for _, r := range results {
		packages = append(packages, &models.AgentIntelligencePackage{
			AgentID:         r.AgentID,
			AgentName:       r.AgentName,
			Status:          r.Status,
			FindingsSummary: r.Findings,
			DetailedFile:    r.OutputFile,
			DetailedContent: r.DetailedAnalysis,
			Confidence:      r.Confidence,
			ExecutionTime:   r.ExecutionTime,
		})
	}

	bundle := &models.IntelligenceBundle{
		AgentPackages:  packages,
		QEIntelligence: s.intelligence.Analyze(packages),
	}
	bundle.PreservationFailures = verifyPreservation(results, packages)
	bundle.DataPreservationVerified = len(bundle.PreservationFailures) == 0

	s.writeArtifacts(runDir, bundle)

	if !bundle.DataPreservationVerified {
		return bundle, fmt.Errorf("%w: %s", ErrDataPreservation,
			strings.Join(bundle.PreservationFailures, "; "))
	}
	s.logger.Info("Staging complete",
		"packages", len(packages), "qe_status", bundle.QEIntelligence.Status)
	return bundle, nil
}

// verifyPreservation checks that every successful agent's detailed analysis
// is present in its package byte-for-byte. Failed and skipped agents are
// exempt: they had nothing to preserve.
func verifyPreservation(results []*models.AgentResult, packages []*models.AgentIntelligencePackage) []string {
	var failures []string
	for i, r := range results {
		if !r.Succeeded() {
			continue
		}
		switch {
		case i >= len(packages) || packages[i].AgentID != r.AgentID:
			failures = append(failures, fmt.Sprintf("%s: package missing", r.AgentID))
		case packages[i].DetailedContent == "":
			failures = append(failures, fmt.Sprintf("%s: detailed analysis is empty", r.AgentID))
		case packages[i].DetailedContent != r.DetailedAnalysis:
			failures = append(failures, fmt.Sprintf("%s: detailed analysis was altered", r.AgentID))
		}
	}
	return failures
}

// writeArtifacts persists the staged bundle for inspection. Write failures
// degrade the run but never fail it; the in-memory bundle is authoritative.
func (s *Stager) writeArtifacts(runDir string, bundle *models.IntelligenceBundle) {
	if runDir == "" {
		return
	}
	s.writeJSON(filepath.Join(runDir, bundleFile), bundle)
	s.writeJSON(filepath.Join(runDir, intelligenceFile), bundle.QEIntelligence)
}

func (s *Stager) writeJSON(path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err == nil {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		s.logger.Warn("Could not write staging artifact", "path", path, "err", err)
	}
}
