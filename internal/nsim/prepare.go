package nsim

import (
	"fmt"
	"math"

	"github.com/farcloser/cochlea/internal/types"
)

// Prepare floors both grids at the reference peak minus rangeDb and shifts them
// so that the floor sits at zero. The inputs are not modified.
// After Prepare, reference values lie in [0, rangeDb]; degraded values may exceed
// rangeDb when the degraded signal is louder than the reference.
func Prepare(ref, deg *types.Representation, rangeDb float64) (*types.Representation, *types.Representation, error) {
	if ref.Bands != deg.Bands {
		return nil, nil, fmt.Errorf("%w: band count mismatch %d vs %d", types.ErrEngine, ref.Bands, deg.Bands)
	}

	if rangeDb <= 0 {
		return nil, nil, fmt.Errorf("%w: dynamic range must be positive", types.ErrConfiguration)
	}

	peak := math.Inf(-1)

	for _, column := range ref.Data {
		for _, v := range column {
			peak = max(peak, v)
		}
	}

	floor := peak - rangeDb

	return floored(ref, floor), floored(deg, floor), nil
}

func floored(rep *types.Representation, floor float64) *types.Representation {
	out := &types.Representation{
		Data:       make([][]float64, rep.Frames),
		Frames:     rep.Frames,
		Bands:      rep.Bands,
		CenterHz:   rep.CenterHz,
		HopSeconds: rep.HopSeconds,
	}

	for f, column := range rep.Data {
		shifted := make([]float64, len(column))
		for band, v := range column {
			shifted[band] = max(v, floor) - floor
		}

		out.Data[f] = shifted
	}

	return out
}
