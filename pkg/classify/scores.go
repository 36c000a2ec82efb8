// Package classify implements the deterministic three-way classification of
// pipeline test failures: decision-matrix scoring, calibrated confidence, and
// cross-reference validation with override rules.
package classify

import "math"

// Classification is the final verdict for a test failure.
type Classification string

const (
	ProductBug     Classification = "product_bug"
	AutomationBug  Classification = "automation_bug"
	Infrastructure Classification = "infrastructure"
)

// Scores is the normalized probability triple over the three verdicts.
// After construction the components always sum to 1.0 (±1e-3).
type Scores struct {
	ProductBug     float64 `json:"product_bug"`
	AutomationBug  float64 `json:"automation_bug"`
	Infrastructure float64 `json:"infrastructure"`
}

// NewScores builds a normalized score triple. Negative components are
// floored at zero before normalization; an all-zero triple normalizes to the
// neutral prior.
func NewScores(product, automation, infra float64) Scores {
	s := Scores{
		ProductBug:     math.Max(product, 0),
		AutomationBug:  math.Max(automation, 0),
		Infrastructure: math.Max(infra, 0),
	}
	s.normalize()
	return s
}

func (s *Scores) normalize() {
	sum := s.ProductBug + s.AutomationBug + s.Infrastructure
	if sum <= 0 {
		s.ProductBug, s.AutomationBug, s.Infrastructure = 1.0/3, 1.0/3, 1.0/3
		return
	}
	s.ProductBug /= sum
	s.AutomationBug /= sum
	s.Infrastructure /= sum
}

// Primary returns the argmax classification. Ties resolve in the order
// product > automation > infrastructure, which keeps results deterministic.
func (s Scores) Primary() Classification {
	switch {
	case s.ProductBug >= s.AutomationBug && s.ProductBug >= s.Infrastructure:
		return ProductBug
	case s.AutomationBug >= s.Infrastructure:
		return AutomationBug
	default:
		return Infrastructure
	}
}

// Separation returns (max − second-max) / max, a [0,1] measure of how
// decisively the primary classification dominates.
func (s Scores) Separation() float64 {
	first, second := s.topTwo()
	if first == 0 {
		return 0
	}
	return (first - second) / first
}

func (s Scores) topTwo() (first, second float64) {
	vals := [3]float64{s.ProductBug, s.AutomationBug, s.Infrastructure}
	for _, v := range vals {
		if v > first {
			first, second = v, first
		} else if v > second {
			second = v
		}
	}
	return first, second
}

// Sum returns the component total; valid triples sum to 1.0 (±1e-3).
func (s Scores) Sum() float64 {
	return s.ProductBug + s.AutomationBug + s.Infrastructure
}
