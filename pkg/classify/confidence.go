package classify

import "fmt"

// ConfidenceLevel buckets the final confidence into reporting bands.
type ConfidenceLevel string

const (
	LevelHigh   ConfidenceLevel = "HIGH"
	LevelMedium ConfidenceLevel = "MEDIUM"
	LevelLow    ConfidenceLevel = "LOW"
)

// Confidence clamp bounds: a verdict is never reported as certain, and never
// as fully uninformative.
const (
	ConfidenceFloor   = 0.10
	ConfidenceCeiling = 0.95
)

// Weights configures the contribution of each confidence factor.
// The defaults sum to 1.0.
type Weights struct {
	ScoreSeparation      float64
	EvidenceCompleteness float64
	SourceConsistency    float64
	SelectorCertainty    float64
	HistorySignal        float64
}

// DefaultWeights returns the normative factor weights (25/25/20/15/15).
func DefaultWeights() Weights {
	return Weights{
		ScoreSeparation:      0.25,
		EvidenceCompleteness: 0.25,
		SourceConsistency:    0.20,
		SelectorCertainty:    0.15,
		HistorySignal:        0.15,
	}
}

// EvidenceFlags records which of the nine evidence inputs were present when
// the classification was computed. Completeness is the fraction set.
type EvidenceFlags struct {
	StackTrace         bool `json:"stack_trace"`
	ParsedFrames       bool `json:"parsed_frames"`
	RootCauseFile      bool `json:"root_cause_file"`
	EnvironmentStatus  bool `json:"environment_status"`
	RepositoryAnalysis bool `json:"repository_analysis"`
	SelectorLookup     bool `json:"selector_lookup"`
	GitHistory         bool `json:"git_history"`
	ConsoleErrors      bool `json:"console_errors"`
	TestFileContent    bool `json:"test_file_content"`
}

// Completeness returns the fraction of the nine flags that are set.
func (f EvidenceFlags) Completeness() float64 {
	present := 0
	for _, b := range [9]bool{
		f.StackTrace, f.ParsedFrames, f.RootCauseFile,
		f.EnvironmentStatus, f.RepositoryAnalysis, f.SelectorLookup,
		f.GitHistory, f.ConsoleErrors, f.TestFileContent,
	} {
		if b {
			present++
		}
	}
	return float64(present) / 9.0
}

// SelectorKnowledge describes what the repository lookup established about
// the failing selector.
type SelectorKnowledge struct {
	// Known is false when no selector lookup result is available.
	Known bool
	// InRepo is meaningful only when Known is true.
	InRepo bool
	// RecentlyChanged is meaningful only when Known && InRepo.
	RecentlyChanged bool
}

// Certainty maps selector knowledge to a [0,1] factor: high when the lookup
// produced a decisive answer, low when the selector state is unknown.
func (k SelectorKnowledge) Certainty() float64 {
	switch {
	case !k.Known:
		return 0.40
	case k.InRepo && k.RecentlyChanged:
		return 0.80
	case !k.InRepo:
		return 0.80
	default:
		return 0.60
	}
}

// HistorySignal describes whether git history supports the classification.
type HistorySignal int

const (
	HistoryUnknown HistorySignal = iota
	HistorySupports
	HistoryContradicts
)

func (h HistorySignal) factor() float64 {
	switch h {
	case HistorySupports:
		return 0.80
	case HistoryContradicts:
		return 0.30
	default:
		return 0.50
	}
}

// ConfidenceInputs bundles everything the calculator consumes.
type ConfidenceInputs struct {
	Scores   Scores
	Evidence EvidenceFlags

	// SourceSuggestions holds the dominant classification suggested by each
	// evidence source that produced one (test evidence, repository evidence,
	// environment evidence, console evidence).
	SourceSuggestions []Classification

	Selector SelectorKnowledge
	History  HistorySignal
}

// Breakdown is the explainable confidence result.
type Breakdown struct {
	ScoreSeparation      float64         `json:"score_separation"`
	EvidenceCompleteness float64         `json:"evidence_completeness"`
	SourceConsistency    float64         `json:"source_consistency"`
	SelectorCertainty    float64         `json:"selector_certainty"`
	HistorySignal        float64         `json:"history_signal"`
	FinalConfidence      float64         `json:"final_confidence"`
	Level                ConfidenceLevel `json:"confidence_level"`
	Warnings             []string        `json:"warnings,omitempty"`
}

// Calculator computes calibrated confidence from weighted factors.
// The zero value is not usable; construct with NewCalculator.
type Calculator struct {
	weights Weights
}

// NewCalculator returns a calculator with the given weights. Zero-value
// weights fall back to the defaults.
func NewCalculator(w Weights) *Calculator {
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	return &Calculator{weights: w}
}

// warning thresholds, per factor
const (
	warnSeparation   = 0.20
	warnCompleteness = 0.50
	warnConsistency  = 0.50
	warnSelector     = 0.50
	warnHistory      = 0.40
)

// Calculate combines the factors into a final confidence clamped to
// [0.10, 0.95] and emits a warning for every factor under its threshold.
func (c *Calculator) Calculate(in ConfidenceInputs) Breakdown {
	b := Breakdown{
		ScoreSeparation:      in.Scores.Separation(),
		EvidenceCompleteness: in.Evidence.Completeness(),
		SourceConsistency:    sourceConsistency(in.SourceSuggestions),
		SelectorCertainty:    in.Selector.Certainty(),
		HistorySignal:        in.History.factor(),
	}

	final := c.weights.ScoreSeparation*b.ScoreSeparation +
		c.weights.EvidenceCompleteness*b.EvidenceCompleteness +
		c.weights.SourceConsistency*b.SourceConsistency +
		c.weights.SelectorCertainty*b.SelectorCertainty +
		c.weights.HistorySignal*b.HistorySignal

	b.FinalConfidence = ClampConfidence(final)
	b.Level = LevelFor(b.FinalConfidence)

	if b.ScoreSeparation < warnSeparation {
		b.Warnings = append(b.Warnings, fmt.Sprintf("low score separation (%.2f): verdicts are close", b.ScoreSeparation))
	}
	if b.EvidenceCompleteness < warnCompleteness {
		b.Warnings = append(b.Warnings, fmt.Sprintf("incomplete evidence (%.2f): classification based on partial inputs", b.EvidenceCompleteness))
	}
	if b.SourceConsistency < warnConsistency {
		b.Warnings = append(b.Warnings, fmt.Sprintf("evidence sources disagree (consistency %.2f)", b.SourceConsistency))
	}
	if b.SelectorCertainty < warnSelector {
		b.Warnings = append(b.Warnings, "selector state unknown: repository lookup inconclusive")
	}
	if b.HistorySignal < warnHistory {
		b.Warnings = append(b.Warnings, "git history contradicts the classification")
	}

	return b
}

// sourceConsistency returns agreeing/present; with fewer than two sources the
// signal is uninformative and defaults to 0.5.
func sourceConsistency(suggestions []Classification) float64 {
	if len(suggestions) < 2 {
		return 0.5
	}
	counts := make(map[Classification]int, 3)
	for _, s := range suggestions {
		counts[s]++
	}
	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}
	return float64(max) / float64(len(suggestions))
}

// ClampConfidence bounds a confidence value to [0.10, 0.95].
func ClampConfidence(v float64) float64 {
	if v < ConfidenceFloor {
		return ConfidenceFloor
	}
	if v > ConfidenceCeiling {
		return ConfidenceCeiling
	}
	return v
}

// LevelFor maps a confidence value to its band: HIGH ≥ 0.75, MEDIUM ≥ 0.5.
func LevelFor(confidence float64) ConfidenceLevel {
	switch {
	case confidence >= 0.75:
		return LevelHigh
	case confidence >= 0.50:
		return LevelMedium
	default:
		return LevelLow
	}
}
