package evidence

import "github.com/stolostron/qe-intelligence/pkg/classify"

// BuildInfo identifies the Jenkins build under analysis.
type BuildInfo struct {
	JobName     string `json:"job_name"`
	BuildNumber int    `json:"build_number"`
	Result      string `json:"result,omitempty"`
	Branch      string `json:"branch,omitempty"`
}

// Aggregated is the whole-build evidence package handed to reporting: every
// per-test package plus totals and classification counts.
type Aggregated struct {
	JenkinsURL string     `json:"jenkins_url"`
	Build      BuildInfo  `json:"build_info"`
	Tests      []*Package `json:"tests"`

	TotalFailures        int                             `json:"total_failures"`
	ClassificationCounts map[classify.Classification]int `json:"classification_counts"`
	NeedsReviewCount     int                             `json:"needs_review_count"`
}

// Aggregate combines per-test packages into the build-level summary.
// Counts use the post-validation classification.
func Aggregate(jenkinsURL string, build BuildInfo, tests []*Package) *Aggregated {
	agg := &Aggregated{
		JenkinsURL:    jenkinsURL,
		Build:         build,
		Tests:         tests,
		TotalFailures: len(tests),
		ClassificationCounts: map[classify.Classification]int{
			classify.ProductBug:     0,
			classify.AutomationBug:  0,
			classify.Infrastructure: 0,
		},
	}
	for _, p := range tests {
		agg.ClassificationCounts[p.Validation.FinalClassification]++
		if p.Validation.NeedsReview {
			agg.NeedsReviewCount++
		}
	}
	return agg
}
