package report

import (
	"strings"

	"github.com/stolostron/qe-intelligence/pkg/evidence"
	"github.com/stolostron/qe-intelligence/pkg/models"
)

// BuildAnalysis assembles the analyzer's Phase 3 output: one evidence
// package per failing test, classified and aggregated. Missing agent data
// shrinks the evidence vector, which the confidence calculation reflects.
func BuildAnalysis(jenkinsURL string, bundle *models.IntelligenceBundle) *evidence.Aggregated {
	env := environmentEvidence(bundle)
	repo := repositoryEvidence(bundle)

	var build evidence.BuildInfo
	var failures []map[string]any
	if pipeline := bundle.PackageFor("agent_a"); pipeline != nil && pipeline.Status == models.AgentStatusSuccess {
		summary := pipeline.FindingsSummary
		build = evidence.BuildInfo{
			JobName:     str(summary["job_name"]),
			BuildNumber: intval(summary["build_number"]),
			Result:      str(summary["build_result"]),
		}
		failures = failureMaps(summary["failed_tests"])
		if u := str(summary["build_url"]); u != "" {
			jenkinsURL = u
		}
	}

	packages := make([]*evidence.Package, 0, len(failures))
	for _, failure := range failures {
		msg := str(failure["error_message"])
		packages = append(packages, evidence.Build(evidence.Input{
			TestName:     str(failure["name"]),
			ErrorMessage: msg,
			StackTrace:   str(failure["stack_trace"]),
			Repository:   repo,
			Environment:  env,
			Console:      consoleEvidence(msg),
		}))
	}
	return evidence.Aggregate(jenkinsURL, build, packages)
}

func environmentEvidence(bundle *models.IntelligenceBundle) evidence.Environment {
	pkg := bundle.PackageFor("agent_d")
	if pkg == nil || pkg.Status != models.AgentStatusSuccess {
		return evidence.Environment{}
	}
	summary := pkg.FindingsSummary
	return evidence.Environment{
		Healthy:       summary["healthy"] == true,
		Accessible:    summary["console_accessible"] == true,
		APIAccessible: summary["api_accessible"] == true,
		TargetCluster: str(summary["target_cluster"]),
	}
}

// repositoryEvidence records what the GitHub investigation established. The
// analyzer does not clone repositories, so selector lookups stay unknown;
// the confidence factors account for that.
func repositoryEvidence(bundle *models.IntelligenceBundle) evidence.Repository {
	pkg := bundle.PackageFor("agent_c")
	if pkg == nil || pkg.Status != models.AgentStatusSuccess {
		return evidence.Repository{}
	}
	return evidence.Repository{
		Cloned: len(failureMaps(pkg.FindingsSummary["repositories"])) > 0,
	}
}

// consoleEvidence derives console flags from the failure text itself when no
// captured console log exists.
func consoleEvidence(errorMessage string) evidence.Console {
	lower := strings.ToLower(errorMessage)
	return evidence.Console{
		Has500Errors:      strings.Contains(lower, "500") && strings.Contains(lower, "error"),
		HasNetworkErrors:  strings.Contains(lower, "net::err"),
		ConnectionRefused: strings.Contains(lower, "connection refused"),
	}
}

func failureMaps(v any) []map[string]any {
	if direct, ok := v.([]map[string]any); ok {
		return direct
	}
	items, _ := v.([]any)
	var out []map[string]any
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func intval(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
