// Package upscale plans print-resolution enlargement: it decomposes a required
// scale factor into a short sequence of fixed-ratio passes and sizes the
// output for standard print formats.
package upscale

import (
	"errors"
	"fmt"
	"math"
)

// DefaultMaxPasses bounds the number of passes a plan may use.
const DefaultMaxPasses = 3

// overshootTolerance is the overshoot difference below which two plans are
// considered equally good.
const overshootTolerance = 0.1

var (
	// ErrInfeasible is wrapped by InfeasibleError.
	ErrInfeasible = errors.New("target scale unreachable")
	// ErrInvalidDimensions is returned for non-positive input or target sizes.
	ErrInvalidDimensions = errors.New("invalid dimensions")
)

// DefaultScales is the operator catalog used when none is configured.
var DefaultScales = []float64{2, 3, 4}

// InfeasibleError reports that no combination of at most MaxPasses passes
// reaches the required scale.
type InfeasibleError struct {
	Required     float64
	MaxReachable float64
	MaxPasses    int
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("required scale %.2fx exceeds %.2fx reachable in %d passes", e.Required, e.MaxReachable, e.MaxPasses)
}

func (e *InfeasibleError) Unwrap() error { return ErrInfeasible }

// Plan is an ordered list of pass scales. An empty plan means no enlargement
// is needed.
type Plan struct {
	Passes        []float64 `json:"passes"`
	TotalScale    float64   `json:"totalScale"`
	RequiredScale float64   `json:"requiredScale"`
}

// Empty reports whether the plan has no passes.
func (p Plan) Empty() bool { return len(p.Passes) == 0 }

// Overshoot returns TotalScale / RequiredScale.
func (p Plan) Overshoot() float64 {
	if p.RequiredScale <= 0 {
		return 1
	}
	return p.TotalScale / p.RequiredScale
}

func (p Plan) maxPass() float64 {
	m := 0.0
	for _, s := range p.Passes {
		m = math.Max(m, s)
	}
	return m
}

// RequiredScale returns max(targetW/inputW, targetH/inputH).
func RequiredScale(inputW, inputH, targetW, targetH int) float64 {
	return math.Max(float64(targetW)/float64(inputW), float64(targetH)/float64(inputH))
}

// PlanPasses finds the pass sequence taking an inputW x inputH image to at
// least targetW x targetH.
//
// Tiers of 1, 2, ... maxPasses passes are tried in order and the first tier
// with any combination reaching the required scale wins. Within the tier every
// plan whose overshoot is within 0.1 of the smallest one is a candidate, and
// the candidate with the larger single pass wins, then the one whose first
// pass is larger.
func PlanPasses(inputW, inputH, targetW, targetH int, scales []float64, maxPasses int) (Plan, error) {
	if inputW <= 0 || inputH <= 0 || targetW <= 0 || targetH <= 0 {
		return Plan{}, fmt.Errorf("%w: %dx%d -> %dx%d", ErrInvalidDimensions, inputW, inputH, targetW, targetH)
	}
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}

	required := RequiredScale(inputW, inputH, targetW, targetH)
	if required <= 1 {
		return Plan{TotalScale: 1, RequiredScale: required}, nil
	}

	usable := make([]float64, 0, len(scales))
	largest := 1.0
	for _, s := range scales {
		if s > 1 {
			usable = append(usable, s)
			largest = math.Max(largest, s)
		}
	}

	for passes := 1; passes <= maxPasses && len(usable) > 0; passes++ {
		var tier []Plan
		seq := make([]float64, passes)
		enumerate(usable, seq, 0, func(c []float64) {
			total := product(c)
			if total < required {
				return
			}
			tier = append(tier, Plan{Passes: append([]float64(nil), c...), TotalScale: total, RequiredScale: required})
		})
		if len(tier) > 0 {
			return pick(tier), nil
		}
	}

	return Plan{}, &InfeasibleError{
		Required:     required,
		MaxReachable: math.Pow(largest, float64(maxPasses)),
		MaxPasses:    maxPasses,
	}
}

// enumerate visits every ordered sequence of len(seq) scales, with repetition.
func enumerate(scales, seq []float64, pos int, visit func([]float64)) {
	if pos == len(seq) {
		visit(seq)
		return
	}
	for _, s := range scales {
		seq[pos] = s
		enumerate(scales, seq, pos+1, visit)
	}
}

func product(seq []float64) float64 {
	p := 1.0
	for _, s := range seq {
		p *= s
	}
	return p
}

// pick chooses the best plan of one tier. Only plans within
// overshootTolerance of the tier's smallest overshoot compete; among them the
// larger single pass wins, then the larger first pass, then the
// lexicographically larger sequence. The result does not depend on catalog
// order.
func pick(tier []Plan) Plan {
	least := math.Inf(1)
	for _, p := range tier {
		least = math.Min(least, p.Overshoot())
	}

	var best *Plan
	for i := range tier {
		cand := &tier[i]
		if cand.Overshoot()-least >= overshootTolerance {
			continue
		}
		if best == nil || preferred(*cand, *best) {
			best = cand
		}
	}
	return *best
}

// preferred orders two competing plans with the same pass count.
func preferred(a, b Plan) bool {
	if am, bm := a.maxPass(), b.maxPass(); am != bm {
		return am > bm
	}
	for i := range a.Passes {
		if a.Passes[i] != b.Passes[i] {
			return a.Passes[i] > b.Passes[i]
		}
	}
	return false
}
