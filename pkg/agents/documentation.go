package agents

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/stolostron/qe-intelligence/pkg/models"
)

// maxDocsToRead bounds how many matching documents the agent opens.
const maxDocsToRead = 3

// maxDocMatches bounds the filesystem search itself.
const maxDocMatches = 200

// DocumentationAgent is Phase 2 agent B: it scans the QE documentation tree
// for material relevant to the components identified in Phase 1.
type DocumentationAgent struct{}

func (a *DocumentationAgent) ID() string   { return "agent_b" }
func (a *DocumentationAgent) Name() string { return "documentation-intelligence" }

func (a *DocumentationAgent) Execute(ctx context.Context, rc *RunContext) (*models.AgentResult, error) {
	started := time.Now()
	announce(rc, a.ID(), "active")

	var warnings []string
	if w := awaitProceed(ctx, rc, a.ID(), "starting documentation scan"); w != "" {
		warnings = append(warnings, w)
	}

	docsRoot := strings.TrimSpace(os.Getenv("QE_DOCS_ROOT"))
	if docsRoot == "" {
		docsRoot = "docs"
	}
	keywords := investigationKeywords(rc)

	res := rc.Services.FilesystemSearchFiles(ctx, docsRoot, "*.md", maxDocMatches)
	if !res.Succeeded() {
		return nil, fmt.Errorf("scanning %s: %s", docsRoot, res.Error)
	}
	paths := pathList(res.Data)

	relevant := matchPaths(paths, keywords)
	sections := make(map[string][]string, len(relevant))
	for i, path := range relevant {
		if i >= maxDocsToRead {
			break
		}
		docRes := rc.Services.FilesystemReadFile(ctx, path)
		if !docRes.Succeeded() {
			warnings = append(warnings, fmt.Sprintf("could not read %s: %s", path, docRes.Error))
			continue
		}
		sections[path] = markdownHeadings(asString(docRes.Data))
	}

	confidence := 0.8
	if len(relevant) == 0 {
		confidence = 0.3
		warnings = append(warnings, "no documentation matched the investigation keywords")
	}

	findings := map[string]any{
		"docs_root":     docsRoot,
		"keywords":      keywords,
		"files_scanned": len(paths),
		"relevant_docs": relevant,
		"sections":      sections,
	}

	detail := renderDocumentationDetail(docsRoot, keywords, relevant, sections)
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

// investigationKeywords derives search terms from the Phase 1 results,
// falling back to the raw run input.
func investigationKeywords(rc *RunContext) []string {
	var keywords []string
	seen := map[string]bool{}
	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if len(term) >= 3 && !seen[term] {
			seen[term] = true
			keywords = append(keywords, term)
		}
	}

	if foundation := rc.FoundationFor("agent_a"); foundation != nil {
		for _, c := range asSlice(foundation.Findings["components"]) {
			add(asString(c))
		}
		for _, word := range strings.Fields(asString(foundation.Findings["summary"])) {
			if len(word) >= 6 {
				add(strings.Trim(word, ".,:;()"))
			}
		}
		add(asString(foundation.Findings["job_name"]))
	}
	if len(keywords) == 0 {
		add(rc.Input)
	}
	return keywords
}

// pathList normalizes a filesystem search result: either newline-separated
// text or a list of path values.
func pathList(data any) []string {
	var out []string
	if text := asString(data); text != "" {
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, line)
			}
		}
		return out
	}
	for _, item := range asSlice(data) {
		if s := asString(item); s != "" {
			out = append(out, s)
			continue
		}
		if s := asString(asMap(item)["path"]); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func matchPaths(paths, keywords []string) []string {
	var matched []string
	for _, path := range paths {
		lower := strings.ToLower(path)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, path)
				break
			}
		}
	}
	return matched
}

func markdownHeadings(content string) []string {
	var headings []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			headings = append(headings, strings.TrimSpace(strings.TrimLeft(trimmed, "#")))
		}
	}
	return headings
}

func renderDocumentationDetail(root string, keywords, relevant []string, sections map[string][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Documentation Intelligence\n\n")
	fmt.Fprintf(&b, "Scanned %s for: %s\n\n", root, strings.Join(keywords, ", "))
	b.WriteString("## Relevant Documents\n\n")
	writeBullets(&b, relevant, "(none matched)")
	for _, path := range relevant {
		if heads, ok := sections[path]; ok && len(heads) > 0 {
			fmt.Fprintf(&b, "\n## Sections: %s\n\n", path)
			writeBullets(&b, heads, "")
		}
	}
	return b.String()
}
