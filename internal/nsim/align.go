package nsim

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/farcloser/cochlea/internal/types"
)

const (
	// minOverlap is the fewest frames two envelopes must share for a lag to be considered.
	minOverlap = 8
	// flatEnvelopeDb is the envelope standard deviation below which timing carries no information.
	flatEnvelopeDb = 0.05
	// minLagCorrelation is the weakest correlation accepted as evidence of a delay.
	minLagCorrelation = 0.5
)

// Envelope returns the mean band level of every frame.
func Envelope(rep *types.Representation) []float64 {
	env := make([]float64, rep.Frames)
	for f, column := range rep.Data {
		env[f] = stat.Mean(column, nil)
	}

	return env
}

// GlobalLag estimates the overall delay of the degraded signal, in frames.
// It picks the lag in [-maxLag, maxLag] with the highest Pearson correlation
// between the overlapping parts of the frame envelopes. Ties keep the lag closest
// to zero. Flat envelopes (silence, stationary tones) and weak correlations yield 0.
func GlobalLag(ref, deg *types.Representation, maxLag int) int {
	if maxLag <= 0 {
		return 0
	}

	refEnv := Envelope(ref)
	degEnv := Envelope(deg)

	if stat.StdDev(refEnv, nil) < flatEnvelopeDb || stat.StdDev(degEnv, nil) < flatEnvelopeDb {
		return 0
	}

	best := 0
	bestScore := math.Inf(-1)

	for _, lag := range lagOrder(maxLag) {
		refStart, degStart := 0, lag
		if lag < 0 {
			refStart, degStart = -lag, 0
		}

		n := min(len(refEnv)-refStart, len(degEnv)-degStart)
		if n < minOverlap {
			continue
		}

		score := stat.Correlation(refEnv[refStart:refStart+n], degEnv[degStart:degStart+n], nil)
		if math.IsNaN(score) {
			continue
		}

		if score > bestScore+1e-12 {
			best, bestScore = lag, score
		}
	}

	if bestScore < minLagCorrelation {
		return 0
	}

	return best
}

// lagOrder lists candidate lags by increasing distance from zero: 0, -1, 1, -2, 2...
func lagOrder(maxLag int) []int {
	lags := make([]int, 0, 2*maxLag+1)
	lags = append(lags, 0)

	for d := 1; d <= maxLag; d++ {
		lags = append(lags, -d, d)
	}

	return lags
}
