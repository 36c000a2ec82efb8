package classify

import (
	"fmt"
	"sort"
)

// FailureType is the categorized failure mode extracted from a test's error
// message (see pkg/evidence for the categorization rules).
type FailureType string

const (
	FailureServerError     FailureType = "server_error"
	FailureElementNotFound FailureType = "element_not_found"
	FailureTimeout         FailureType = "timeout"
	FailureNetwork         FailureType = "network"
	FailureAssertion       FailureType = "assertion"
	FailureAuthError       FailureType = "auth_error"
	FailureUnknown         FailureType = "unknown"
)

// FailureTypes lists every defined failure type, in matrix order.
var FailureTypes = []FailureType{
	FailureServerError,
	FailureElementNotFound,
	FailureTimeout,
	FailureNetwork,
	FailureAssertion,
	FailureAuthError,
	FailureUnknown,
}

// MatrixInput is the feature triple looked up in the decision matrix, plus
// optional named adjustment factors applied before renormalization.
type MatrixInput struct {
	FailureType   FailureType
	EnvHealthy    bool
	SelectorFound bool

	// Adjustments are named evidence factors (e.g. "console_500_error").
	// Unknown names are ignored.
	Adjustments []string
}

// Result is the outcome of a decision-matrix classification.
type Result struct {
	Classification Classification `json:"classification"`
	Confidence     float64        `json:"confidence"`
	Reasoning      string         `json:"reasoning"`
	Evidence       []string       `json:"evidence,omitempty"`
	Adjustments    []string       `json:"adjustments,omitempty"`
	Scores         Scores         `json:"scores"`
}

// matrixKey indexes the base-score table. selectorAny entries match either
// selector state.
type matrixKey struct {
	failureType FailureType
	envHealthy  bool
	selector    selectorState
}

type selectorState int

const (
	selectorAny selectorState = iota
	selectorFound
	selectorMissing
)

type baseTriple struct {
	product, automation, infra float64
}

// baseMatrix maps (failure_type, env_healthy, selector_found) to the base
// probability triple. Selector-specific entries take precedence over
// selectorAny entries; anything else falls back to the neutral prior.
var baseMatrix = map[matrixKey]baseTriple{
	{FailureServerError, true, selectorAny}:  {0.90, 0.05, 0.05},
	{FailureServerError, false, selectorAny}: {0.35, 0.05, 0.60},

	{FailureElementNotFound, true, selectorFound}:    {0.20, 0.70, 0.10},
	{FailureElementNotFound, true, selectorMissing}:  {0.70, 0.20, 0.10},
	{FailureElementNotFound, false, selectorFound}:   {0.10, 0.40, 0.50},
	{FailureElementNotFound, false, selectorMissing}: {0.30, 0.20, 0.50},

	{FailureTimeout, true, selectorAny}:  {0.15, 0.70, 0.15},
	{FailureTimeout, false, selectorAny}: {0.10, 0.20, 0.70},

	{FailureNetwork, true, selectorAny}:  {0.10, 0.30, 0.60},
	{FailureNetwork, false, selectorAny}: {0.05, 0.10, 0.85},

	{FailureAssertion, true, selectorAny}:  {0.65, 0.25, 0.10},
	{FailureAssertion, false, selectorAny}: {0.40, 0.15, 0.45},

	{FailureAuthError, true, selectorAny}:  {0.15, 0.70, 0.15},
	{FailureAuthError, false, selectorAny}: {0.10, 0.25, 0.65},
}

// neutralPrior is the fallback for unknown failure types: a valid but
// low-separation classification.
var neutralPrior = baseTriple{1.0 / 3, 1.0 / 3, 1.0 / 3}

// adjustmentDeltas are additive deltas applied to the base triple before
// renormalization. Names mirror the evidence flags that produce them.
var adjustmentDeltas = map[string]baseTriple{
	"console_500_error":          {+0.15, -0.10, -0.05},
	"console_connection_refused": {-0.05, -0.15, +0.20},
	"console_network_errors":     {-0.05, -0.10, +0.15},
	"selector_recently_changed":  {-0.10, +0.15, -0.05},
	"flaky_history":              {-0.05, +0.10, -0.05},
}

// lookupBase resolves the base triple for a feature combination. Exact
// selector matches win over selectorAny; unknown types get the neutral prior.
func lookupBase(ft FailureType, envHealthy, selFound bool) baseTriple {
	sel := selectorMissing
	if selFound {
		sel = selectorFound
	}
	if t, ok := baseMatrix[matrixKey{ft, envHealthy, sel}]; ok {
		return t
	}
	if t, ok := baseMatrix[matrixKey{ft, envHealthy, selectorAny}]; ok {
		return t
	}
	return neutralPrior
}

// Classify runs the decision matrix over the input features and returns the
// scored verdict. The returned scores always sum to 1.0 (±1e-3); the result
// confidence is the raw score separation (the calibrated confidence is
// computed separately, see Calculator).
func Classify(in MatrixInput) Result {
	base := lookupBase(in.FailureType, in.EnvHealthy, in.SelectorFound)

	p, a, i := base.product, base.automation, base.infra
	applied := make([]string, 0, len(in.Adjustments))
	// Sort so the same adjustment set always yields the same applied order.
	names := append([]string(nil), in.Adjustments...)
	sort.Strings(names)
	for _, name := range names {
		delta, ok := adjustmentDeltas[name]
		if !ok {
			continue
		}
		p += delta.product
		a += delta.automation
		i += delta.infra
		applied = append(applied, name)
	}

	scores := NewScores(p, a, i)
	primary := scores.Primary()

	evidence := []string{
		fmt.Sprintf("failure_type=%s", in.FailureType),
		fmt.Sprintf("env_healthy=%t", in.EnvHealthy),
		fmt.Sprintf("selector_found=%t", in.SelectorFound),
	}

	return Result{
		Classification: primary,
		Confidence:     scores.Separation(),
		Reasoning:      reasoningFor(primary, in, applied),
		Evidence:       evidence,
		Adjustments:    applied,
		Scores:         scores,
	}
}

func reasoningFor(primary Classification, in MatrixInput, applied []string) string {
	base := fmt.Sprintf("%s failure with env_healthy=%t and selector_found=%t maps to %s",
		in.FailureType, in.EnvHealthy, in.SelectorFound, primary)
	if len(applied) == 0 {
		return base
	}
	return fmt.Sprintf("%s (adjusted by %d evidence factors)", base, len(applied))
}
