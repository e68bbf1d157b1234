package regression

import (
	"fmt"
	"math"

	"github.com/farcloser/cochlea/internal/types"
)

const (
	KindExponential = "exponential"
	KindPolynomial  = "polynomial"
	KindLogistic    = "logistic"
	KindSVR         = "svr"
)

// Exponential fit of the speech model. x0 is the similarity at which the curve
// starts to rise steeply.
const (
	speechA  = 1.155945
	speechB  = 4.68429
	speechX0 = 0.76334
)

// Speech returns the built-in speech mapping.
func Speech() Model {
	model, err := NewExponential(speechA, speechB, speechX0, DefaultDomain, DefaultOutput)
	if err != nil {
		panic(err)
	}

	return model
}

// NewExponential builds a + exp(b (x - x0)), scaled so that the top of the domain
// maps to the top of the output range.
func NewExponential(a, b, x0 float64, domain, output Range) (Model, error) {
	top := a + math.Exp(b*(domain.Max-x0))
	if top <= 0 || math.IsInf(top, 0) || math.IsNaN(top) {
		return nil, fmt.Errorf("%w: exponential model cannot be scaled (a=%v b=%v x0=%v)",
			types.ErrConfiguration, a, b, x0)
	}

	scale := output.Max / top

	return newScalar(KindExponential, func(x float64) float64 {
		return scale * (a + math.Exp(b*(x-x0)))
	}, domain, output)
}

// NewPolynomial builds a polynomial from ascending coefficients (c0 + c1 x + c2 x^2 ...).
func NewPolynomial(coefficients []float64, domain, output Range) (Model, error) {
	if len(coefficients) == 0 {
		return nil, fmt.Errorf("%w: polynomial model has no coefficients", types.ErrConfiguration)
	}

	coefs := append([]float64(nil), coefficients...)

	return newScalar(KindPolynomial, func(x float64) float64 {
		var y float64
		for i := len(coefs) - 1; i >= 0; i-- {
			y = y*x + coefs[i]
		}

		return y
	}, domain, output)
}

// NewLogistic builds min + (max - min) / (1 + exp(-slope (x - midpoint))) over the output range.
func NewLogistic(slope, midpoint float64, domain, output Range) (Model, error) {
	if slope <= 0 {
		return nil, fmt.Errorf("%w: logistic slope must be positive, got %v", types.ErrConfiguration, slope)
	}

	return newScalar(KindLogistic, func(x float64) float64 {
		return output.Min + (output.Max-output.Min)/(1+math.Exp(-slope*(x-midpoint)))
	}, domain, output)
}
