package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stolostron/qe-intelligence/pkg/models"
)

// JIRAAgent is Phase 1 agent A for the test generator: it fetches the input
// ticket and distills the requirement picture the later phases test against.
type JIRAAgent struct{}

func (a *JIRAAgent) ID() string   { return "agent_a" }
func (a *JIRAAgent) Name() string { return "jira-intelligence" }

func (a *JIRAAgent) Execute(ctx context.Context, rc *RunContext) (*models.AgentResult, error) {
	started := time.Now()
	announce(rc, a.ID(), "active")

	ticket := strings.TrimSpace(rc.Input)
	if ticket == "" {
		return nil, fmt.Errorf("no JIRA ticket in run input")
	}

	res := rc.Services.JiraGetIssue(ctx, ticket)
	if !res.Succeeded() {
		return nil, fmt.Errorf("fetching %s: %s", ticket, res.Error)
	}

	issue := parseIssue(ticket, res.Data)
	var warnings []string
	confidence := 0.9
	if issue.Summary == "" {
		warnings = append(warnings, "ticket has no summary")
		confidence = 0.5
	}
	if issue.Description == "" {
		warnings = append(warnings, "ticket has no description; acceptance criteria unavailable")
		confidence = min(confidence, 0.6)
	}

	detail := issue.render(res.Source)
	outFile, err := writeDetailFile(rc, a.ID(), a.Name(), detail)
	if err != nil {
		return nil, err
	}

	result := &models.AgentResult{
		AgentID:   a.ID(),
		AgentName: a.Name(),
		Findings: map[string]any{
			"ticket":              issue.Key,
			"summary":             issue.Summary,
			"priority":            issue.Priority,
			"components":          issue.Components,
			"labels":              issue.Labels,
			"fix_versions":        issue.FixVersions,
			"acceptance_criteria": issue.AcceptanceCriteria,
		},
		Confidence:       confidence,
		OutputFile:       outFile,
		Warnings:         warnings,
		DetailedAnalysis: detail,
	}
	return finish(rc, result, started), nil
}

// jiraIssue is the distilled ticket view. Field lookup tolerates both the
// MCP tool shape and the raw REST shape (top-level vs fields.*).
type jiraIssue struct {
	Key                string
	Summary            string
	Description        string
	Priority           string
	Components         []string
	Labels             []string
	FixVersions        []string
	AcceptanceCriteria []string
}

func parseIssue(key string, data any) *jiraIssue {
	root := asMap(data)
	fields := asMap(root["fields"])
	if fields == nil {
		fields = root
	}

	issue := &jiraIssue{
		Key:         key,
		Summary:     asString(fields["summary"]),
		Description: asString(fields["description"]),
		Priority:    asString(dig(fields, "priority", "name")),
	}
	if issue.Priority == "" {
		issue.Priority = asString(fields["priority"])
	}
	issue.Components = namedList(fields["components"])
	issue.FixVersions = namedList(fields["fixVersions"])
	for _, l := range asSlice(fields["labels"]) {
		if s := asString(l); s != "" {
			issue.Labels = append(issue.Labels, s)
		}
	}
	issue.AcceptanceCriteria = extractAcceptanceCriteria(issue.Description)
	return issue
}

// namedList flattens either ["a", "b"] or [{"name": "a"}, ...] into names.
func namedList(v any) []string {
	var out []string
	for _, item := range asSlice(v) {
		if s := asString(item); s != "" {
			out = append(out, s)
			continue
		}
		if name := asString(asMap(item)["name"]); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// extractAcceptanceCriteria pulls list items that follow an acceptance
// criteria heading, or any checklist bullets when no heading exists.
func extractAcceptanceCriteria(description string) []string {
	var criteria []string
	inSection := false
	for _, line := range strings.Split(description, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		if strings.Contains(lower, "acceptance criteria") {
			inSection = true
			continue
		}
		bullet := strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ")
		switch {
		case inSection && bullet:
			criteria = append(criteria, strings.TrimSpace(trimmed[2:]))
		case inSection && trimmed == "":
			// blank lines inside the section are fine
		case inSection:
			inSection = false
		}
	}
	if len(criteria) == 0 {
		for _, line := range strings.Split(description, "\n") {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "- [ ]") || strings.HasPrefix(trimmed, "- [x]") {
				criteria = append(criteria, strings.TrimSpace(trimmed[5:]))
			}
		}
	}
	return criteria
}

func (i *jiraIssue) render(source string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# JIRA Intelligence: %s\n\n", i.Key)
	fmt.Fprintf(&b, "Source: %s\n\n", source)
	fmt.Fprintf(&b, "## Summary\n\n%s\n\n", valueOr(i.Summary, "(none)"))
	fmt.Fprintf(&b, "## Priority\n\n%s\n\n", valueOr(i.Priority, "(unset)"))

	b.WriteString("## Components\n\n")
	writeBullets(&b, i.Components, "(none identified)")
	b.WriteString("\n## Fix Versions\n\n")
	writeBullets(&b, i.FixVersions, "(none)")
	b.WriteString("\n## Acceptance Criteria\n\n")
	writeBullets(&b, i.AcceptanceCriteria, "(not stated on the ticket)")

	if i.Description != "" {
		fmt.Fprintf(&b, "\n## Description\n\n%s\n", i.Description)
	}
	return b.String()
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func writeBullets(b *strings.Builder, items []string, empty string) {
	if len(items) == 0 {
		fmt.Fprintf(b, "%s\n", empty)
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
