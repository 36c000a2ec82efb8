// Package extract recognizes known subsystem components inside failure
// artifacts (error messages, stack traces, console logs) and optionally
// queries a knowledge graph for dependency impact.
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Source identifies where a component mention was found.
type Source string

const (
	SourceErrorMessage Source = "error_message"
	SourceStackTrace   Source = "stack_trace"
	SourceConsoleLog   Source = "console_log"
)

// contextWindow is the number of characters kept on each side of a match.
const contextWindow = 80

// DefaultComponents lists the subsystem identifiers recognized out of the
// box. Matching is whole-word and case-insensitive.
var DefaultComponents = []string{
	"search-api",
	"search-indexer",
	"search-collector",
	"console-api",
	"hive",
	"klusterlet",
	"multicluster-observability",
	"grc-policy-propagator",
	"governance-policy-framework",
	"managedcluster-import-controller",
	"cluster-curator",
	"application-manager",
	"multiclusterhub-operator",
	"submariner",
	"volsync",
}

// Component is one deduplicated component mention.
type Component struct {
	Name    string `json:"name"`
	Source  Source `json:"source"`
	Context string `json:"context"` // bounded window around the match
}

// Extractor finds known component names in text. Safe for concurrent use
// after construction.
type Extractor struct {
	patterns map[string]*regexp.Regexp // component name → whole-word pattern
	names    []string                  // stable iteration order
}

// NewExtractor builds an extractor for the given component names.
// An empty list falls back to DefaultComponents.
func NewExtractor(components []string) *Extractor {
	if len(components) == 0 {
		components = DefaultComponents
	}
	names := append([]string(nil), components...)
	sort.Strings(names)

	patterns := make(map[string]*regexp.Regexp, len(names))
	for _, name := range names {
		// Component names contain hyphens, so \b alone is not enough: guard
		// both sides against word characters and hyphens.
		patterns[name] = regexp.MustCompile(`(?i)(^|[^\w-])(` + regexp.QuoteMeta(name) + `)($|[^\w-])`)
	}
	return &Extractor{patterns: patterns, names: names}
}

// ExtractFromError scans an error message.
func (e *Extractor) ExtractFromError(message string) []Component {
	return e.scan(message, SourceErrorMessage)
}

// ExtractFromStackTrace scans a stack trace.
func (e *Extractor) ExtractFromStackTrace(trace string) []Component {
	return e.scan(trace, SourceStackTrace)
}

// ExtractFromConsoleLog scans a console log. When errorLinesOnly is set,
// only lines containing "error" (case-insensitive) are scanned.
func (e *Extractor) ExtractFromConsoleLog(log string, errorLinesOnly bool) []Component {
	if !errorLinesOnly {
		return e.scan(log, SourceConsoleLog)
	}
	var kept []string
	for _, line := range strings.Split(log, "\n") {
		if strings.Contains(strings.ToLower(line), "error") {
			kept = append(kept, line)
		}
	}
	return e.scan(strings.Join(kept, "\n"), SourceConsoleLog)
}

// ExtractAllFromTestFailure scans every artifact of one failure and returns
// the union, deduplicated by (name, source).
func (e *Extractor) ExtractAllFromTestFailure(errorMessage, stackTrace, consoleLog string) []Component {
	var all []Component
	all = append(all, e.ExtractFromError(errorMessage)...)
	all = append(all, e.ExtractFromStackTrace(stackTrace)...)
	all = append(all, e.ExtractFromConsoleLog(consoleLog, true)...)
	return dedupe(all)
}

// scan returns one Component per distinct name found in text.
func (e *Extractor) scan(text string, source Source) []Component {
	if text == "" {
		return nil
	}
	var found []Component
	for _, name := range e.names {
		loc := e.patterns[name].FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		// Submatch 2 is the component name itself.
		start, end := loc[4], loc[5]
		found = append(found, Component{
			Name:    name,
			Source:  source,
			Context: window(text, start, end),
		})
	}
	return found
}

// window returns up to contextWindow characters on each side of [start,end).
func window(text string, start, end int) string {
	lo := start - contextWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + contextWindow
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}

func dedupe(components []Component) []Component {
	seen := make(map[string]bool, len(components))
	out := components[:0]
	for _, c := range components {
		key := fmt.Sprintf("%s|%s", c.Name, c.Source)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
