package classify

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScores_Normalized(t *testing.T) {
	tests := []struct {
		name    string
		p, a, i float64
	}{
		{"already normalized", 0.5, 0.3, 0.2},
		{"unnormalized", 2.0, 1.0, 1.0},
		{"all zero", 0, 0, 0},
		{"negative floored", -0.5, 0.7, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScores(tt.p, tt.a, tt.i)
			assert.InDelta(t, 1.0, s.Sum(), 1e-3)
		})
	}
}

func TestScores_PrimaryAndSeparation(t *testing.T) {
	s := NewScores(0.8, 0.15, 0.05)
	assert.Equal(t, ProductBug, s.Primary())
	assert.InDelta(t, (0.8-0.15)/0.8, s.Separation(), 1e-9)

	tied := NewScores(0.4, 0.4, 0.2)
	// Ties resolve deterministically toward product.
	assert.Equal(t, ProductBug, tied.Primary())
	assert.InDelta(t, 0.0, tied.Separation(), 1e-9)
}

func TestClassify_MatrixCoversAllCombinations(t *testing.T) {
	for _, ft := range FailureTypes {
		for _, env := range []bool{true, false} {
			for _, sel := range []bool{true, false} {
				r := Classify(MatrixInput{FailureType: ft, EnvHealthy: env, SelectorFound: sel})
				assert.InDelta(t, 1.0, r.Scores.Sum(), 1e-3,
					"%s env=%t sel=%t", ft, env, sel)
			}
		}
	}
}

func TestClassify_ServerErrorHealthyEnv(t *testing.T) {
	// S1: server error with a healthy environment is a product bug.
	r := Classify(MatrixInput{FailureType: FailureServerError, EnvHealthy: true, SelectorFound: true})
	assert.Equal(t, ProductBug, r.Classification)
	assert.GreaterOrEqual(t, r.Scores.ProductBug, 0.80)
}

func TestClassify_ElementNotFoundSelectorInRepo(t *testing.T) {
	// S2: selector exists in the repo, so the element lookup itself is stale.
	r := Classify(MatrixInput{FailureType: FailureElementNotFound, EnvHealthy: true, SelectorFound: true})
	assert.Equal(t, AutomationBug, r.Classification)
	assert.GreaterOrEqual(t, r.Scores.AutomationBug, 0.5)
}

func TestClassify_ElementNotFoundSelectorMissing(t *testing.T) {
	// S3: selector missing from the repo means the product UI changed.
	r := Classify(MatrixInput{FailureType: FailureElementNotFound, EnvHealthy: true, SelectorFound: false})
	assert.Equal(t, ProductBug, r.Classification)
	assert.GreaterOrEqual(t, r.Scores.ProductBug, 0.5)
}

func TestClassify_TimeoutUnhealthyCluster(t *testing.T) {
	// S4: timeouts against an unhealthy cluster point at infrastructure.
	r := Classify(MatrixInput{FailureType: FailureTimeout, EnvHealthy: false, SelectorFound: true})
	assert.Equal(t, Infrastructure, r.Classification)
	assert.GreaterOrEqual(t, r.Scores.Infrastructure, 0.5)
}

func TestClassify_UnknownTypeNeutralPrior(t *testing.T) {
	r := Classify(MatrixInput{FailureType: FailureUnknown, EnvHealthy: true, SelectorFound: false})
	assert.InDelta(t, 1.0, r.Scores.Sum(), 1e-3)
	// Neutral prior means near-zero separation.
	assert.Less(t, r.Scores.Separation(), 0.05)
}

func TestClassify_AdjustmentsShiftScores(t *testing.T) {
	base := Classify(MatrixInput{FailureType: FailureElementNotFound, EnvHealthy: true, SelectorFound: true})
	adjusted := Classify(MatrixInput{
		FailureType:   FailureElementNotFound,
		EnvHealthy:    true,
		SelectorFound: true,
		Adjustments:   []string{"console_500_error"},
	})

	assert.Greater(t, adjusted.Scores.ProductBug, base.Scores.ProductBug)
	assert.InDelta(t, 1.0, adjusted.Scores.Sum(), 1e-3)
	assert.Equal(t, []string{"console_500_error"}, adjusted.Adjustments)
}

func TestClassify_UnknownAdjustmentIgnored(t *testing.T) {
	r := Classify(MatrixInput{
		FailureType: FailureTimeout,
		EnvHealthy:  true,
		Adjustments: []string{"no_such_factor"},
	})
	assert.Empty(t, r.Adjustments)
	assert.InDelta(t, 1.0, r.Scores.Sum(), 1e-3)
}

func TestClassify_Deterministic(t *testing.T) {
	in := MatrixInput{
		FailureType:   FailureAssertion,
		EnvHealthy:    true,
		SelectorFound: true,
		Adjustments:   []string{"selector_recently_changed", "console_500_error"},
	}
	first := Classify(in)
	for i := 0; i < 10; i++ {
		again := Classify(in)
		assert.Equal(t, first, again)
	}
}

func TestClassify_AdjustmentNeverProducesInvalidScores(t *testing.T) {
	all := make([]string, 0, len(adjustmentDeltas))
	for name := range adjustmentDeltas {
		all = append(all, name)
	}
	for _, ft := range FailureTypes {
		r := Classify(MatrixInput{FailureType: ft, EnvHealthy: false, Adjustments: all})
		assert.InDelta(t, 1.0, r.Scores.Sum(), 1e-3)
		assert.False(t, math.IsNaN(r.Scores.Separation()))
	}
}
