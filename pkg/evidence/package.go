package evidence

import (
	"github.com/stolostron/qe-intelligence/pkg/classify"
)

// selectorRecentChangeDays is the git-history age under which a selector
// change counts as recent.
const selectorRecentChangeDays = 30

// TestFailure holds the raw per-test failure features.
type TestFailure struct {
	TestName      string               `json:"test_name"`
	ErrorMessage  string               `json:"error_message"` // truncated to MaxErrorMessageLen
	Category      classify.FailureType `json:"failure_category"`
	RootCauseFile string               `json:"root_cause_file,omitempty"`
	RootCauseLine int                  `json:"root_cause_line,omitempty"`
	StackTrace    string               `json:"stack_trace,omitempty"`
}

// Repository holds automation-repository evidence for one failing test.
type Repository struct {
	Cloned             bool   `json:"cloned"`
	Branch             string `json:"branch,omitempty"`
	SelectorLookupDone bool   `json:"selector_lookup_done"`
	SelectorFound      bool   `json:"selector_found"`
	SelectorAgeDays    int    `json:"selector_age_days,omitempty"` // git-history age of last change
	TestFilePresent    bool   `json:"test_file_present"`
	GitHistoryPresent  bool   `json:"git_history_present"`
}

// SelectorRecentlyChanged reports whether the selector's last change falls
// inside the recent-change window.
func (r Repository) SelectorRecentlyChanged() bool {
	return r.SelectorLookupDone && r.SelectorFound &&
		r.GitHistoryPresent && r.SelectorAgeDays >= 0 &&
		r.SelectorAgeDays <= selectorRecentChangeDays
}

// Environment holds cluster-state evidence captured at analysis time.
type Environment struct {
	Healthy       bool   `json:"healthy"`
	Accessible    bool   `json:"accessible"`
	APIAccessible bool   `json:"api_accessible"`
	TargetCluster string `json:"target_cluster,omitempty"`
}

// Console holds browser/console error evidence from the failing run.
type Console struct {
	Has500Errors      bool     `json:"has_500_errors"`
	HasNetworkErrors  bool     `json:"has_network_errors"`
	HasAPIErrors      bool     `json:"has_api_errors"`
	ConnectionRefused bool     `json:"connection_refused"`
	KeyErrors         []string `json:"key_errors,omitempty"`
}

// Package is the complete evidence bundle for one failing test, with the
// decision matrix, confidence calculation, and cross-validation pre-applied.
type Package struct {
	Test        TestFailure                `json:"test"`
	Repository  Repository                 `json:"repository"`
	Environment Environment                `json:"environment"`
	Console     Console                    `json:"console"`
	Result      classify.Result            `json:"classification"`
	Confidence  classify.Breakdown         `json:"confidence"`
	Validation  classify.ValidationOutcome `json:"validation"`
}

// Input is the raw material for building one evidence package.
type Input struct {
	TestName      string
	ErrorMessage  string
	StackTrace    string
	RootCauseFile string
	RootCauseLine int

	Repository  Repository
	Environment Environment
	Console     Console
}

// Build categorizes the failure, runs the decision matrix with console and
// selector adjustments, computes the calibrated confidence, and applies the
// cross-reference rules. The stored error message is truncated.
func Build(in Input) *Package {
	msg := TruncateMessage(in.ErrorMessage)
	category := Categorize(in.ErrorMessage)

	var adjustments []string
	if in.Console.Has500Errors {
		adjustments = append(adjustments, "console_500_error")
	}
	if in.Console.ConnectionRefused {
		adjustments = append(adjustments, "console_connection_refused")
	}
	if in.Console.HasNetworkErrors {
		adjustments = append(adjustments, "console_network_errors")
	}
	if in.Repository.SelectorRecentlyChanged() {
		adjustments = append(adjustments, "selector_recently_changed")
	}

	result := classify.Classify(classify.MatrixInput{
		FailureType:   category,
		EnvHealthy:    in.Environment.Healthy,
		SelectorFound: in.Repository.SelectorFound,
		Adjustments:   adjustments,
	})

	breakdown := classify.NewCalculator(classify.DefaultWeights()).Calculate(classify.ConfidenceInputs{
		Scores:            result.Scores,
		Evidence:          evidenceFlags(in),
		SourceSuggestions: sourceSuggestions(in, result.Classification),
		Selector: classify.SelectorKnowledge{
			Known:           in.Repository.SelectorLookupDone,
			InRepo:          in.Repository.SelectorFound,
			RecentlyChanged: in.Repository.SelectorRecentlyChanged(),
		},
		History: historySignal(in, result.Classification),
	})

	validation := classify.CrossValidate(classify.ValidationInput{
		Classification:           result.Classification,
		Confidence:               breakdown.FinalConfidence,
		FailureType:              category,
		ConsoleHas500Errors:      in.Console.Has500Errors,
		ConsoleConnectionRefused: in.Console.ConnectionRefused,
		ClusterAccessible:        in.Environment.Accessible,
		EnvHealthy:               in.Environment.Healthy,
		SelectorFound:            in.Repository.SelectorFound,
		SelectorRecentlyChanged:  in.Repository.SelectorRecentlyChanged(),
	})

	return &Package{
		Test: TestFailure{
			TestName:      in.TestName,
			ErrorMessage:  msg,
			Category:      category,
			RootCauseFile: in.RootCauseFile,
			RootCauseLine: in.RootCauseLine,
			StackTrace:    in.StackTrace,
		},
		Repository:  in.Repository,
		Environment: in.Environment,
		Console:     in.Console,
		Result:      result,
		Confidence:  breakdown,
		Validation:  validation,
	}
}

// evidenceFlags derives the nine-flag completeness vector from the input.
func evidenceFlags(in Input) classify.EvidenceFlags {
	return classify.EvidenceFlags{
		StackTrace:         in.StackTrace != "",
		ParsedFrames:       in.RootCauseFile != "" && in.RootCauseLine > 0,
		RootCauseFile:      in.RootCauseFile != "",
		EnvironmentStatus:  in.Environment.TargetCluster != "" || in.Environment.Accessible,
		RepositoryAnalysis: in.Repository.Cloned,
		SelectorLookup:     in.Repository.SelectorLookupDone,
		GitHistory:         in.Repository.GitHistoryPresent,
		ConsoleErrors:      len(in.Console.KeyErrors) > 0 || in.Console.Has500Errors || in.Console.HasNetworkErrors,
		TestFileContent:    in.Repository.TestFilePresent,
	}
}

// sourceSuggestions collects the dominant classification suggested by each
// evidence source that is present.
func sourceSuggestions(in Input, primary classify.Classification) []classify.Classification {
	var out []classify.Classification

	// Test evidence always exists and votes with the matrix verdict.
	out = append(out, primary)

	if in.Console.Has500Errors || in.Console.HasAPIErrors {
		out = append(out, classify.ProductBug)
	} else if in.Console.ConnectionRefused || in.Console.HasNetworkErrors {
		out = append(out, classify.Infrastructure)
	}

	if !in.Environment.Healthy || !in.Environment.Accessible {
		out = append(out, classify.Infrastructure)
	}

	if in.Repository.SelectorLookupDone {
		if in.Repository.SelectorRecentlyChanged() {
			out = append(out, classify.AutomationBug)
		} else if !in.Repository.SelectorFound {
			out = append(out, classify.ProductBug)
		}
	}

	return out
}

// historySignal reports whether git history backs the matrix verdict:
// a recent selector change supports an automation verdict and contradicts a
// product verdict for element failures.
func historySignal(in Input, primary classify.Classification) classify.HistorySignal {
	if !in.Repository.GitHistoryPresent {
		return classify.HistoryUnknown
	}
	if in.Repository.SelectorRecentlyChanged() {
		if primary == classify.AutomationBug {
			return classify.HistorySupports
		}
		return classify.HistoryContradicts
	}
	return classify.HistoryUnknown
}
