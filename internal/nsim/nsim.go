// Package nsim aligns reference and degraded perceptual grids patch by patch and scores
// them with the neurogram similarity index.
package nsim

import (
	"math"

	"github.com/farcloser/cochlea/internal/types"
)

// Floor is the smallest NSIM reported for a patch. Anti-correlated patches would
// otherwise score zero or below.
const Floor = 1e-6

// 3x3 Gaussian (sigma 0.5) weights by squared distance from the centre cell.
//
//nolint:gochecknoglobals // constant table
var gauss = [3]float64{
	0: 1,
	1: math.Exp(-1 / (2 * 0.25)),
	2: math.Exp(-2 / (2 * 0.25)),
}

// Patch scores one pair of equally sized patches.
// ref and deg are read from frame refStart and degStart respectively, for length frames.
// rangeDb is the intensity range of the prepared grids and sets the stabilising constants.
// It returns the patch NSIM and the per-band means.
func Patch(ref, deg *types.Representation, refStart, degStart, length int, rangeDb float64) (float64, []float64) {
	bands := ref.Bands
	c1 := (0.01 * rangeDb) * (0.01 * rangeDb)
	c3 := (0.03 * rangeDb) * (0.03 * rangeDb) / 2

	perBand := make([]float64, bands)

	var total float64

	for b := range bands {
		var bandSum float64

		for t := range length {
			var sumW, muR, muD, sqR, sqD, cross float64

			for db := -1; db <= 1; db++ {
				nb := b + db
				if nb < 0 || nb >= bands {
					continue
				}

				for dt := -1; dt <= 1; dt++ {
					nt := t + dt
					if nt < 0 || nt >= length {
						continue
					}

					w := gauss[db*db+dt*dt]
					r := ref.Data[refStart+nt][nb]
					d := deg.Data[degStart+nt][nb]

					sumW += w
					muR += w * r
					muD += w * d
					sqR += w * r * r
					sqD += w * d * d
					cross += w * r * d
				}
			}

			muR /= sumW
			muD /= sumW
			varR := max(sqR/sumW-muR*muR, 0)
			varD := max(sqD/sumW-muD*muD, 0)
			cov := cross/sumW - muR*muD

			intensity := (2*muR*muD + c1) / (muR*muR + muD*muD + c1)
			structure := (cov + c3) / (math.Sqrt(varR)*math.Sqrt(varD) + c3)

			bandSum += min(intensity*structure, 1)
		}

		perBand[b] = clamp(bandSum / float64(length))
		total += bandSum
	}

	return clamp(total / float64(bands*length)), perBand
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return Floor
	}

	return max(Floor, min(1, v))
}
