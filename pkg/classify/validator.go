package classify

import "fmt"

// RuleAction is what a cross-reference rule does when it fires.
type RuleAction string

const (
	ActionCorrect RuleAction = "correct"
	ActionConfirm RuleAction = "confirm"
	ActionFlag    RuleAction = "flag"
)

// confidence delta applied per firing rule
const ruleConfidenceDelta = 0.10

// ValidationInput carries the classified result plus the cross-cutting
// evidence the rules consult.
type ValidationInput struct {
	Classification Classification
	Confidence     float64
	FailureType    FailureType

	ConsoleHas500Errors      bool
	ConsoleConnectionRefused bool
	ClusterAccessible        bool
	EnvHealthy               bool
	SelectorFound            bool
	SelectorRecentlyChanged  bool
}

// ValidationOutcome is the result of running the rules engine.
type ValidationOutcome struct {
	FinalClassification Classification `json:"final_classification"`
	FinalConfidence     float64        `json:"final_confidence"`
	WasCorrected        bool           `json:"was_corrected"`
	WasConfirmed        bool           `json:"was_confirmed"`
	NeedsReview         bool           `json:"needs_review"`
	AppliedRules        []string       `json:"applied_rules,omitempty"`
	Notes               []string       `json:"notes,omitempty"`
}

// rule is one cross-reference check. Rules are evaluated in priority order
// (lower number first); only the highest-priority applicable correction is
// applied, while confirmations and flags stack.
type rule struct {
	name     string
	priority int
	action   RuleAction
	target   Classification // correction target; unused for confirm/flag
	applies  func(ValidationInput) bool
	note     string
}

var crossRules = []rule{
	{
		name:     "500_overrides_automation",
		priority: 1,
		action:   ActionCorrect,
		target:   ProductBug,
		applies: func(in ValidationInput) bool {
			return in.Classification == AutomationBug && in.ConsoleHas500Errors
		},
		note: "console shows HTTP 500 errors: server fault, not automation",
	},
	{
		name:     "selector_missing_overrides_automation",
		priority: 2,
		action:   ActionCorrect,
		target:   ProductBug,
		applies: func(in ValidationInput) bool {
			return in.Classification == AutomationBug &&
				in.FailureType == FailureElementNotFound && !in.SelectorFound
		},
		note: "selector absent from the codebase: the product UI changed",
	},
	{
		name:     "cluster_unhealthy_overrides_automation",
		priority: 3,
		action:   ActionCorrect,
		target:   Infrastructure,
		applies: func(in ValidationInput) bool {
			return in.Classification == AutomationBug && !in.ClusterAccessible
		},
		note: "target cluster unreachable during the run",
	},
	{
		name:     "500_confirms_product",
		priority: 4,
		action:   ActionConfirm,
		applies: func(in ValidationInput) bool {
			return in.Classification == ProductBug && in.ConsoleHas500Errors
		},
		note: "console 500 errors corroborate the product-bug verdict",
	},
	{
		name:     "selector_change_confirms_automation",
		priority: 5,
		action:   ActionConfirm,
		applies: func(in ValidationInput) bool {
			return in.Classification == AutomationBug && in.SelectorRecentlyChanged
		},
		note: "selector changed recently: automation lagging the product",
	},
	{
		name:     "infra_with_healthy_env_flags",
		priority: 6,
		action:   ActionFlag,
		applies: func(in ValidationInput) bool {
			return in.Classification == Infrastructure &&
				in.ClusterAccessible && in.EnvHealthy
		},
		note: "infrastructure verdict despite a healthy, reachable environment",
	},
}

// CrossValidate runs the override rules against a classified result and
// returns the (possibly corrected) final verdict. The final confidence is
// clamped to [0.10, 0.95] after all adjustments.
func CrossValidate(in ValidationInput) ValidationOutcome {
	out := ValidationOutcome{
		FinalClassification: in.Classification,
		FinalConfidence:     in.Confidence,
	}

	corrected := false
	for _, r := range crossRules { // already in priority order
		if !r.applies(in) {
			continue
		}
		switch r.action {
		case ActionCorrect:
			if corrected {
				continue // strongest (highest-priority) correction already won
			}
			corrected = true
			out.WasCorrected = true
			out.FinalClassification = r.target
			out.FinalConfidence += ruleConfidenceDelta
		case ActionConfirm:
			out.WasConfirmed = true
			out.FinalConfidence += ruleConfidenceDelta
		case ActionFlag:
			out.NeedsReview = true
			out.FinalConfidence -= ruleConfidenceDelta
		}
		out.AppliedRules = append(out.AppliedRules, r.name)
		out.Notes = append(out.Notes, fmt.Sprintf("%s: %s", r.name, r.note))
	}

	out.FinalConfidence = ClampConfidence(out.FinalConfidence)
	return out
}
