package agents

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stolostron/qe-intelligence/pkg/models"
)

// QEIntelligenceServiceName identifies the staging-phase synthesis service.
const QEIntelligenceServiceName = "qe_intelligence"

// QEIntelligence synthesizes test patterns, coverage gaps, and automation
// insights from the staged agent packages. It runs during Phase 2.5, after
// the packages are built and before preservation is verified.
//
// The synthesis is deterministic: the same packages always produce the same
// output, so staging results are reproducible.
type QEIntelligence struct{}

// Analyze produces the QE intelligence package for the staged agent outputs.
func (q *QEIntelligence) Analyze(packages []*models.AgentIntelligencePackage) *models.QEIntelligencePackage {
	out := &models.QEIntelligencePackage{
		ServiceName: QEIntelligenceServiceName,
		Status:      models.AgentStatusSuccess,
	}

	var confidences []float64
	for _, pkg := range packages {
		if pkg.Status != models.AgentStatusSuccess {
			out.CoverageGaps = append(out.CoverageGaps,
				fmt.Sprintf("no %s output available (%s)", pkg.AgentName, pkg.Status))
			continue
		}
		confidences = append(confidences, pkg.Confidence)
		q.mine(pkg, out)
	}

	if len(confidences) == 0 {
		out.Status = models.AgentStatusFailed
		out.Confidence = 0.0
		return out
	}

	sort.Strings(out.TestPatterns)
	sort.Strings(out.CoverageGaps)
	sort.Strings(out.AutomationInsights)
	out.TestPatterns = dedup(out.TestPatterns)
	out.CoverageGaps = dedup(out.CoverageGaps)
	out.AutomationInsights = dedup(out.AutomationInsights)

	sum := 0.0
	for _, c := range confidences {
		sum += c
	}
	out.Confidence = clamp(sum/float64(len(confidences)), 0.1, 0.95)
	return out
}

// mine extracts patterns and insights from one successful agent package.
func (q *QEIntelligence) mine(pkg *models.AgentIntelligencePackage, out *models.QEIntelligencePackage) {
	summary := pkg.FindingsSummary

	for _, c := range asSlice(summary["components"]) {
		if name := asString(c); name != "" {
			out.TestPatterns = append(out.TestPatterns,
				fmt.Sprintf("functional coverage for %s", strings.ToLower(name)))
		}
	}
	if criteria := asSlice(summary["acceptance_criteria"]); len(criteria) > 0 {
		out.TestPatterns = append(out.TestPatterns, "acceptance-criteria verification")
	} else if asString(summary["ticket"]) != "" {
		out.CoverageGaps = append(out.CoverageGaps,
			"ticket lacks acceptance criteria; test scope inferred from summary")
	}

	if summary["healthy"] == true {
		out.TestPatterns = append(out.TestPatterns, "target-cluster smoke verification")
	} else if _, assessed := summary["healthy"]; assessed {
		out.CoverageGaps = append(out.CoverageGaps,
			"target cluster unhealthy; environment-dependent cases need manual setup")
	}

	if docs := asSlice(summary["relevant_docs"]); len(docs) > 0 {
		out.TestPatterns = append(out.TestPatterns, "documented workflow validation")
		out.AutomationInsights = append(out.AutomationInsights,
			"align automated steps with the documented workflows")
	}

	if repos := asSlice(summary["repositories"]); len(repos) > 0 {
		out.AutomationInsights = append(out.AutomationInsights,
			fmt.Sprintf("candidate automation repositories identified (%d)", len(repos)))
	}

	if failed := asSlice(summary["failed_tests"]); len(failed) > 0 {
		out.TestPatterns = append(out.TestPatterns, "regression coverage for failing pipeline tests")
		out.AutomationInsights = append(out.AutomationInsights,
			fmt.Sprintf("review %d failing tests for flaky-selector patterns", len(failed)))
	}
}

func dedup(items []string) []string {
	out := items[:0]
	var prev string
	for i, item := range items {
		if i == 0 || item != prev {
			out = append(out, item)
		}
		prev = item
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
