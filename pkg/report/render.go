package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stolostron/qe-intelligence/pkg/classify"
	"github.com/stolostron/qe-intelligence/pkg/evidence"
	"github.com/stolostron/qe-intelligence/pkg/models"
)

// tableHeader is the normative five-column test-case table header.
const tableHeader = "| Step | Action | UI Method | CLI Method | Expected Result |\n" +
	"|------|--------|-----------|------------|-----------------|\n"

// escapeCell makes a value safe inside a Markdown table cell: literal pipes
// become &#124; and newlines collapse to spaces.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "&#124;")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

// RenderTestCases produces Test-Cases.md. The layout is normative:
// `# Test Cases for <id>`, `## TC-NNN: <Title>` with zero-padded numbers,
// and the exact five-column table per case.
func RenderTestCases(plan *TestPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Test Cases for %s\n\n", plan.Ticket)

	for i, tc := range plan.Cases {
		fmt.Fprintf(&b, "## TC-%03d: %s\n\n", i+1, tc.Title)
		if tc.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", tc.Description)
		}
		b.WriteString(tableHeader)
		for n, step := range tc.Steps {
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
				n+1,
				escapeCell(step.Action),
				escapeCell(step.UIMethod),
				escapeCell(step.CLIMethod),
				escapeCell(step.Expected))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderCompleteAnalysis produces Complete-Analysis.md: the prose companion
// documenting what each agent found and how the plan was derived.
func RenderCompleteAnalysis(plan *TestPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Complete Analysis for %s\n\n", plan.Ticket)

	b.WriteString("## Ticket\n\n")
	fmt.Fprintf(&b, "- Summary: %s\n", orNone(plan.Summary))
	fmt.Fprintf(&b, "- Priority: %s\n", orNone(plan.Priority))
	fmt.Fprintf(&b, "- Components: %s\n\n", orNone(strings.Join(plan.Components, ", ")))

	if bundle := plan.Bundle; bundle != nil {
		b.WriteString("## Agent Intelligence\n\n")
		b.WriteString("| Agent | Status | Confidence | Execution Time |\n")
		b.WriteString("|-------|--------|------------|----------------|\n")
		for _, pkg := range bundle.AgentPackages {
			fmt.Fprintf(&b, "| %s | %s | %.2f | %s |\n",
				escapeCell(pkg.AgentName), pkg.Status, pkg.Confidence,
				pkg.ExecutionTime.Round(time.Millisecond))
		}
		b.WriteString("\n")

		if qe := bundle.QEIntelligence; qe != nil && qe.Status == models.AgentStatusSuccess {
			b.WriteString("## QE Intelligence\n\n")
			writeList(&b, "Test patterns", qe.TestPatterns)
			writeList(&b, "Coverage gaps", qe.CoverageGaps)
			writeList(&b, "Automation insights", qe.AutomationInsights)
		}

		for _, pkg := range bundle.AgentPackages {
			if pkg.Status != models.AgentStatusSuccess || pkg.DetailedContent == "" {
				continue
			}
			fmt.Fprintf(&b, "## Detailed Findings: %s\n\n%s\n", pkg.AgentName,
				strings.TrimRight(pkg.DetailedContent, "\n"))
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "## Generated Test Cases\n\n%d test cases were generated (see Test-Cases.md).\n",
		len(plan.Cases))
	return b.String()
}

// RenderAnalyzerReport produces report.md for the pipeline analyzer.
func RenderAnalyzerReport(agg *evidence.Aggregated) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Pipeline Failure Analysis\n\n")
	fmt.Fprintf(&b, "- Build: %s #%d\n", orNone(agg.Build.JobName), agg.Build.BuildNumber)
	fmt.Fprintf(&b, "- Jenkins URL: %s\n", agg.JenkinsURL)
	fmt.Fprintf(&b, "- Result: %s\n", orNone(agg.Build.Result))
	fmt.Fprintf(&b, "- Failing tests analyzed: %d\n\n", agg.TotalFailures)

	b.WriteString("## Verdict Summary\n\n")
	b.WriteString("| Classification | Count |\n|----------------|-------|\n")
	for _, c := range []classify.Classification{
		classify.ProductBug, classify.AutomationBug, classify.Infrastructure,
	} {
		fmt.Fprintf(&b, "| %s | %d |\n", c, agg.ClassificationCounts[c])
	}
	fmt.Fprintf(&b, "\nTests flagged for manual review: %d\n\n", agg.NeedsReviewCount)

	for _, pkg := range agg.Tests {
		fmt.Fprintf(&b, "## %s\n\n", pkg.Test.TestName)
		fmt.Fprintf(&b, "- Verdict: **%s** (%s confidence, %.2f)\n",
			pkg.Validation.FinalClassification,
			classify.LevelFor(pkg.Validation.FinalConfidence), pkg.Validation.FinalConfidence)
		fmt.Fprintf(&b, "- Failure category: %s\n", pkg.Test.Category)
		fmt.Fprintf(&b, "- Reasoning: %s\n", pkg.Result.Reasoning)
		if pkg.Validation.WasCorrected {
			fmt.Fprintf(&b, "- Corrected by cross-validation: %s\n",
				strings.Join(pkg.Validation.AppliedRules, ", "))
		}
		if pkg.Validation.NeedsReview {
			b.WriteString("- Needs manual review\n")
		}
		warnings := append([]string(nil), pkg.Confidence.Warnings...)
		sort.Strings(warnings)
		if len(warnings) > 0 {
			b.WriteString("- Warnings:\n")
			for _, w := range warnings {
				fmt.Fprintf(&b, "  - %s\n", w)
			}
		}
		if pkg.Test.ErrorMessage != "" {
			fmt.Fprintf(&b, "\n```\n%s\n```\n", pkg.Test.ErrorMessage)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
