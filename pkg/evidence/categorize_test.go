package evidence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stolostron/qe-intelligence/pkg/classify"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected classify.FailureType
	}{
		{"http 500", "Request failed with status code 500", classify.FailureServerError},
		{"internal server error text", "Internal Server Error while loading overview", classify.FailureServerError},
		{"element not found", "Expected to find element: [data-test=cluster-name], but never found it.", classify.FailureElementNotFound},
		{"could not find", "could not find the submit button", classify.FailureElementNotFound},
		{"timeout", "CypressError: Timed out retrying after 30000ms", classify.FailureTimeout},
		{"timeout lowercase", "operation timeout exceeded", classify.FailureTimeout},
		{"unauthorized", "401 Unauthorized", classify.FailureAuthError},
		{"forbidden", "response: Forbidden (403)", classify.FailureAuthError},
		{"connection refused", "connect ECONNREFUSED 10.0.0.5:443", classify.FailureNetwork},
		{"network", "network error while fetching manifest", classify.FailureNetwork},
		{"assertion equal", "expected 'Ready' to equal 'Pending'", classify.FailureAssertion},
		{"assertion error", "AssertionError: values differ", classify.FailureAssertion},
		{"unknown", "something odd happened", classify.FailureUnknown},
		{"empty", "", classify.FailureUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Categorize(tt.message))
		})
	}
}

func TestCategorize_OrderFirstMatchWins(t *testing.T) {
	// "Timed out ... expected to find element" matches both the element and
	// timeout rules; the element rule is evaluated first.
	msg := "Timed out retrying: expected to find element '#main'"
	assert.Equal(t, classify.FailureElementNotFound, Categorize(msg))

	// A 500 inside a not-found message is still a server error (rule order).
	msg = "could not find resource: server responded 500"
	assert.Equal(t, classify.FailureServerError, Categorize(msg))
}

func TestCategorize_Deterministic(t *testing.T) {
	msg := "Timed out retrying: expected to find element '#main'"
	first := Categorize(msg)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Categorize(msg))
	}
}

func TestTruncateMessage(t *testing.T) {
	short := "short message"
	assert.Equal(t, short, TruncateMessage(short))

	long := strings.Repeat("x", 2000)
	truncated := TruncateMessage(long)
	assert.Len(t, truncated, MaxErrorMessageLen)

	// Multi-byte runes are not split.
	unicode := strings.Repeat("é", 600)
	truncated = TruncateMessage(unicode)
	assert.Equal(t, MaxErrorMessageLen, len([]rune(truncated)))
	assert.Equal(t, strings.Repeat("é", MaxErrorMessageLen), truncated)
}
