// Package masking sanitizes report output: cluster-specific URLs, hosts,
// users, and secrets are replaced with a fixed placeholder set before any
// artifact is written.
package masking

import (
	"log/slog"
	"regexp"
)

// RedactionNotice replaces report content that could not be safely masked.
const RedactionNotice = "[REDACTED: content could not be safely masked]"

// Service applies the built-in masking patterns. Created once at startup;
// thread-safe and stateless aside from compiled patterns.
type Service struct {
	enabled  bool
	patterns []*CompiledPattern
	// residue patterns detect secrets that must never survive masking;
	// a hit after masking redacts the whole content (fail-closed).
	residue []*regexp.Regexp
}

// NewService creates a masking service with all patterns compiled.
func NewService(enabled bool) *Service {
	s := &Service{
		enabled:  enabled,
		patterns: builtinPatterns(),
		residue: []*regexp.Regexp{
			regexp.MustCompile(`\b(?:ghp|gho|ghs|ghu)_[A-Za-z0-9]{20,}\b`),
			regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{20,}\b`),
			regexp.MustCompile(`\bkubeadmin\b`),
		},
	}
	slog.Debug("Masking service initialized",
		"enabled", enabled, "patterns", len(s.patterns))
	return s
}

// Mask applies every pattern in order. Used for log lines and intermediate
// data; on any anomaly it returns what it has (fail-open).
func (s *Service) Mask(content string) string {
	if !s.enabled || content == "" {
		return content
	}
	masked := content
	for _, p := range s.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked
}

// MaskReport masks content destined for a report artifact. Fail-closed:
// when a secret pattern still matches after masking, the whole content is
// replaced with a redaction notice rather than written out.
func (s *Service) MaskReport(content string) string {
	if !s.enabled || content == "" {
		return content
	}
	masked := s.Mask(content)
	for _, r := range s.residue {
		if r.MatchString(masked) {
			slog.Error("Masking left recognizable secret material, redacting report content",
				"pattern", r.String())
			return RedactionNotice
		}
	}
	return masked
}
