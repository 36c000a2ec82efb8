package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stolostron/qe-intelligence/pkg/models"
)

// PipelineAgent fills the Phase 1 slot A for the pipeline analyzer: it pulls
// the Jenkins build and its test report so later phases can classify the
// failures.
type PipelineAgent struct{}

func (a *PipelineAgent) ID() string   { return "agent_a" }
func (a *PipelineAgent) Name() string { return "pipeline-intelligence" }

func (a *PipelineAgent) Execute(ctx context.Context, rc *RunContext) (*models.AgentResult, error) {
	started := time.Now()
	announce(rc, a.ID(), "active")

	buildURL := strings.TrimRight(strings.TrimSpace(rc.Input), "/")
	if buildURL == "" {
		return nil, fmt.Errorf("no Jenkins build URL in run input")
	}

	res := rc.Services.JenkinsGetBuild(ctx, buildURL)
	if !res.Succeeded() {
		return nil, fmt.Errorf("fetching build %s: %s", buildURL, res.Error)
	}
	build := asMap(res.Data)

	var warnings []string
	failedTests := []map[string]any{}

	// The test report lives one resource below the build. Missing reports are
	// common (aborted builds, non-test jobs) and only degrade the agent.
	reportRes := rc.Services.JenkinsGetBuild(ctx, buildURL+"/testReport")
	if reportRes.Succeeded() {
		failedTests = failedCases(asMap(reportRes.Data))
	} else {
		warnings = append(warnings, "test report unavailable; classifying from build metadata only")
	}

	buildResult := asString(build["result"])
	confidence := 0.9
	if len(failedTests) == 0 {
		confidence = 0.6
	}

	findings := map[string]any{
		"build_url":    buildURL,
		"job_name":     asString(build["fullDisplayName"]),
		"build_number": build["number"],
		"build_result": buildResult,
		"building":     build["building"] == true,
		"duration_ms":  build["duration"],
		"failed_tests": failedTests,
	}

	detail := renderBuildDetail(buildURL, buildResult, findings, failedTests)
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

// failedCases flattens the Jenkins test report into the failing cases.
func failedCases(report map[string]any) []map[string]any {
	out := []map[string]any{}
	for _, s := range asSlice(report["suites"]) {
		suite := asMap(s)
		for _, c := range asSlice(suite["cases"]) {
			tc := asMap(c)
			status := strings.ToUpper(asString(tc["status"]))
			if status != "FAILED" && status != "REGRESSION" {
				continue
			}
			name := asString(tc["name"])
			if cls := asString(tc["className"]); cls != "" {
				name = cls + "." + name
			}
			out = append(out, map[string]any{
				"name":          name,
				"status":        status,
				"error_message": asString(tc["errorDetails"]),
				"stack_trace":   asString(tc["errorStackTrace"]),
			})
		}
	}
	return out
}

func renderBuildDetail(buildURL, result string, findings map[string]any, failedTests []map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Pipeline Intelligence: %s\n\n", buildURL)
	fmt.Fprintf(&b, "- Job: %s\n", valueOr(asString(findings["job_name"]), "(unknown)"))
	fmt.Fprintf(&b, "- Result: %s\n", valueOr(result, "(in progress)"))
	fmt.Fprintf(&b, "- Failed tests: %d\n\n", len(failedTests))

	if len(failedTests) > 0 {
		b.WriteString("## Failing Tests\n\n")
		for _, tc := range failedTests {
			fmt.Fprintf(&b, "### %s\n\n", asString(tc["name"]))
			if msg := asString(tc["error_message"]); msg != "" {
				fmt.Fprintf(&b, "```\n%s\n```\n\n", msg)
			}
		}
	}
	return b.String()
}
