// Package aggregate reduces per-patch similarities to file level scores.
package aggregate

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/farcloser/cochlea/internal/types"
)

// Method selects how patch scores are pooled.
type Method string

const (
	Mean       Method = "mean"
	Median     Method = "median"
	Percentile Method = "percentile"
)

// ParseMethod maps a name to a method. The empty string is Mean.
func ParseMethod(name string) (Method, error) {
	switch Method(name) {
	case "", Mean:
		return Mean, nil
	case Median:
		return Median, nil
	case Percentile:
		return Percentile, nil
	default:
		return "", fmt.Errorf("%w: unknown aggregation %q", types.ErrConfiguration, name)
	}
}

// Score pools the patch NSIM values into a single score in (0, 1].
// pct is only used by Percentile and must lie in (0, 1].
func Score(patches []types.PatchSimilarity, method Method, pct float64) (float64, error) {
	if len(patches) == 0 {
		return 0, fmt.Errorf("%w: no patches to aggregate", types.ErrEngine)
	}

	values := make([]float64, len(patches))
	for i, p := range patches {
		values[i] = p.NSIM
	}

	var score float64

	switch method {
	case "", Mean:
		score = stat.Mean(values, nil)
	case Median:
		slices.Sort(values)
		score = stat.Quantile(0.5, stat.Empirical, values, nil)
	case Percentile:
		if pct <= 0 || pct > 1 {
			return 0, fmt.Errorf("%w: percentile must be in (0, 1], got %v", types.ErrConfiguration, pct)
		}

		slices.Sort(values)
		score = stat.Quantile(pct, stat.Empirical, values, nil)
	default:
		return 0, fmt.Errorf("%w: unknown aggregation %q", types.ErrConfiguration, method)
	}

	if math.IsNaN(score) || score <= 0 || score > 1 {
		return 0, fmt.Errorf("%w: aggregated score %v outside (0, 1]", types.ErrEngine, score)
	}

	return score, nil
}

// Bands returns the mean similarity of every band across patches (FVNSIM).
func Bands(patches []types.PatchSimilarity) []float64 {
	if len(patches) == 0 {
		return nil
	}

	bands := len(patches[0].BandNSIM)
	out := make([]float64, bands)
	column := make([]float64, len(patches))

	for b := range bands {
		for i, p := range patches {
			column[i] = p.BandNSIM[b]
		}

		out[b] = stat.Mean(column, nil)
	}

	return out
}
