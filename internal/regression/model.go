// Package regression maps similarity scores to a MOS-LQO estimate.
package regression

import (
	"fmt"
	"math"

	"github.com/farcloser/cochlea/internal/types"
)

// Features is what a model sees of a comparison.
type Features struct {
	VNSIM  float64   // aggregated similarity in (0, 1]
	FVNSIM []float64 // per-band similarity
}

// Model predicts a MOS-LQO from similarity features.
// Implementations are immutable and safe for concurrent use.
type Model interface {
	Predict(features Features) (float64, error)
	Kind() string
}

// Range is a closed interval.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

//nolint:gochecknoglobals // fixed defaults
var (
	DefaultDomain = Range{Min: 0, Max: 1}
	DefaultOutput = Range{Min: 1, Max: 5}
)

func (r Range) clamp(v float64) float64 {
	return max(r.Min, min(r.Max, v))
}

func (r Range) valid() bool {
	return r.Min < r.Max && !math.IsNaN(r.Min) && !math.IsNaN(r.Max) && !math.IsInf(r.Min, 0) && !math.IsInf(r.Max, 0)
}

// scalar is a model over the aggregated similarity alone.
type scalar struct {
	kind   string
	eval   func(x float64) float64
	domain Range
	output Range
}

func (s *scalar) Kind() string {
	return s.kind
}

func (s *scalar) Predict(features Features) (float64, error) {
	if math.IsNaN(features.VNSIM) {
		return 0, fmt.Errorf("%w: similarity is NaN", types.ErrModel)
	}

	return finish(s.kind, s.eval(s.domain.clamp(features.VNSIM)), s.output)
}

func finish(kind string, raw float64, output Range) (float64, error) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, fmt.Errorf("%w: %s model produced %v", types.ErrModel, kind, raw)
	}

	return output.clamp(raw), nil
}

// monotonicSteps is the sampling density of the load time monotonicity check.
const monotonicSteps = 200

// checkMonotonic verifies that the model does not decrease over its domain.
func checkMonotonic(s *scalar) error {
	prev := math.Inf(-1)

	for i := range monotonicSteps + 1 {
		x := s.domain.Min + (s.domain.Max-s.domain.Min)*float64(i)/monotonicSteps

		y := s.eval(x)
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return fmt.Errorf("%w: %s model is not finite at %v", types.ErrConfiguration, s.kind, x)
		}

		if y < prev-1e-9 {
			return fmt.Errorf("%w: %s model decreases at %v (%v < %v)", types.ErrConfiguration, s.kind, x, y, prev)
		}

		prev = y
	}

	return nil
}

func newScalar(kind string, eval func(float64) float64, domain, output Range) (Model, error) {
	if !domain.valid() || !output.valid() {
		return nil, fmt.Errorf("%w: %s model has an invalid domain %v or output range %v",
			types.ErrConfiguration, kind, domain, output)
	}

	model := &scalar{kind: kind, eval: eval, domain: domain, output: output}
	if err := checkMonotonic(model); err != nil {
		return nil, err
	}

	return model, nil
}
