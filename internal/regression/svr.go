package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/farcloser/cochlea/internal/types"
)

// SupportVector is one weighted support vector of an RBF regression.
type SupportVector struct {
	Coef     float64   `yaml:"coef"`
	Features []float64 `yaml:"features"`
}

// SVR is an RBF kernel support vector regression over the per-band similarities.
// Monotonicity over the whole band space cannot be checked; NewSVR only verifies
// that scores never decrease along the diagonal where every band has the same
// similarity.
type SVR struct {
	gamma   float64
	rho     float64
	vectors []SupportVector
	output  Range
	bands   int
}

// NewSVR validates and builds an RBF regression. Every support vector must have
// exactly bands features.
func NewSVR(gamma, rho float64, vectors []SupportVector, bands int, output Range) (*SVR, error) {
	if gamma <= 0 || math.IsNaN(gamma) {
		return nil, fmt.Errorf("%w: svr gamma must be positive, got %v", types.ErrConfiguration, gamma)
	}

	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: svr model has no support vectors", types.ErrConfiguration)
	}

	if !output.valid() {
		return nil, fmt.Errorf("%w: svr model has an invalid output range %v", types.ErrConfiguration, output)
	}

	kept := make([]SupportVector, len(vectors))

	for i, sv := range vectors {
		if len(sv.Features) != bands {
			return nil, fmt.Errorf("%w: support vector %d has %d features, the engine produces %d bands",
				types.ErrConfiguration, i, len(sv.Features), bands)
		}

		kept[i] = SupportVector{Coef: sv.Coef, Features: append([]float64(nil), sv.Features...)}
	}

	model := &SVR{gamma: gamma, rho: rho, vectors: kept, output: output, bands: bands}
	if err := model.checkDiagonal(); err != nil {
		return nil, err
	}

	return model, nil
}

// checkDiagonal verifies that predictions do not decrease for uniform band
// similarities going from 0 to 1.
func (s *SVR) checkDiagonal() error {
	prev := math.Inf(-1)
	features := Features{FVNSIM: make([]float64, s.bands)}

	for i := range monotonicSteps + 1 {
		x := float64(i) / monotonicSteps
		for band := range features.FVNSIM {
			features.FVNSIM[band] = x
		}

		y, err := s.Predict(features)
		if err != nil {
			return fmt.Errorf("%w: svr model is not finite at %v: %w", types.ErrConfiguration, x, err)
		}

		if y < prev-1e-9 {
			return fmt.Errorf("%w: svr model decreases along the diagonal at %v (%v < %v)",
				types.ErrConfiguration, x, y, prev)
		}

		prev = y
	}

	return nil
}

func (*SVR) Kind() string {
	return KindSVR
}

// Bands returns the feature count the model expects.
func (s *SVR) Bands() int {
	return s.bands
}

func (s *SVR) Predict(features Features) (float64, error) {
	if len(features.FVNSIM) != s.bands {
		return 0, fmt.Errorf("%w: svr expects %d band similarities, got %d",
			types.ErrModel, s.bands, len(features.FVNSIM))
	}

	var sum float64

	for _, sv := range s.vectors {
		d := floats.Distance(features.FVNSIM, sv.Features, 2)
		sum += sv.Coef * math.Exp(-s.gamma*d*d)
	}

	return finish(KindSVR, sum-s.rho, s.output)
}
