// Package evidence bundles per-test failure features, repository and
// environment state, and console errors into evidence packages with
// pre-applied classification and confidence.
package evidence

import (
	"regexp"

	"github.com/stolostron/qe-intelligence/pkg/classify"
)

// MaxErrorMessageLen is the stored-message truncation bound. Longer messages
// are cut before they enter the evidence package.
const MaxErrorMessageLen = 500

// categoryRule maps a message pattern to a failure type. Rules are evaluated
// in order; the first match wins. Categorization is a pure function of the
// message text.
type categoryRule struct {
	pattern  *regexp.Regexp
	category classify.FailureType
}

var categoryRules = []categoryRule{
	{regexp.MustCompile(`(?i)(\b500\b|internal server error)`), classify.FailureServerError},
	{regexp.MustCompile(`(?i)(not found|could not find|expected to find element)`), classify.FailureElementNotFound},
	{regexp.MustCompile(`(?i)(timeout|timed out)`), classify.FailureTimeout},
	{regexp.MustCompile(`(?i)(\b401\b|\b403\b|unauthorized|forbidden)`), classify.FailureAuthError},
	{regexp.MustCompile(`(?i)(connection refused|ECONNREFUSED|network)`), classify.FailureNetwork},
	{regexp.MustCompile(`(?i)(expected .* to equal|assertionerror)`), classify.FailureAssertion},
}

// Categorize maps a raw error message to its failure type.
func Categorize(message string) classify.FailureType {
	for _, r := range categoryRules {
		if r.pattern.MatchString(message) {
			return r.category
		}
	}
	return classify.FailureUnknown
}

// TruncateMessage bounds an error message to MaxErrorMessageLen characters.
// Truncation counts runes so a multi-byte character is never split.
func TruncateMessage(message string) string {
	if len(message) <= MaxErrorMessageLen {
		return message
	}
	runes := []rune(message)
	if len(runes) <= MaxErrorMessageLen {
		return message
	}
	return string(runes[:MaxErrorMessageLen])
}
