package nsim

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/farcloser/cochlea/internal/types"
)

// Options configures the patch search.
type Options struct {
	PatchSize    int     // frames per patch
	PatchStride  int     // frames between patch starts; PatchSize for non-overlapping
	SearchRadius int     // frames searched on each side of the expected position
	GlobalLag    int     // expected delay of the degraded grid, in frames
	RangeDb      float64 // intensity range of the prepared grids
	Workers      int     // concurrent patch workers; 0 = GOMAXPROCS
	// ActiveFrames marks reference frames carrying content. Patches with no active
	// frame are skipped. Nil keeps every patch.
	ActiveFrames []bool
}

// Starts returns the first frame of every reference patch, and the patch length.
// When the grid is shorter than one patch, a single patch covers it entirely.
func Starts(frames, patchSize, stride int) ([]int, int) {
	if frames <= 0 {
		return nil, 0
	}

	length := min(patchSize, frames)
	stride = max(stride, 1)

	var starts []int
	for s := 0; s+length <= frames; s += stride {
		starts = append(starts, s)
	}

	return starts, length
}

// Compare finds the best match of every selected reference patch in the degraded grid.
// Both grids must have been through Prepare. The output is in reference order.
func Compare(ref, deg *types.Representation, opts Options) ([]types.PatchSimilarity, error) {
	if ref.Bands != deg.Bands {
		return nil, fmt.Errorf("%w: band count mismatch %d vs %d", types.ErrEngine, ref.Bands, deg.Bands)
	}

	if opts.PatchSize < 1 || opts.SearchRadius < 0 || opts.RangeDb <= 0 {
		return nil, fmt.Errorf("%w: invalid patch options %+v", types.ErrConfiguration, opts)
	}

	starts, length := Starts(ref.Frames, opts.PatchSize, opts.PatchStride)
	if len(starts) == 0 || deg.Frames < length {
		return nil, fmt.Errorf("%w: no comparable patch (%d reference frames, %d degraded frames)",
			types.ErrInput, ref.Frames, deg.Frames)
	}

	starts = selectActive(starts, length, opts.ActiveFrames)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]types.PatchSimilarity, len(starts))

	var group errgroup.Group

	group.SetLimit(workers)

	for idx, start := range starts {
		group.Go(func() error {
			results[idx] = bestMatch(ref, deg, idx, start, length, opts)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrEngine, err)
	}

	return results, nil
}

// SearchBounds returns the inclusive range of degraded start frames examined for a
// reference patch, clipped to the degraded grid.
func SearchBounds(refStart, length, degFrames int, opts Options) (int, int) {
	maxStart := degFrames - length
	center := refStart + opts.GlobalLag

	lo := max(0, center-opts.SearchRadius)
	hi := min(maxStart, center+opts.SearchRadius)

	if lo > hi {
		c := max(0, min(maxStart, center))

		return c, c
	}

	return lo, hi
}

func bestMatch(ref, deg *types.Representation, idx, refStart, length int, opts Options) types.PatchSimilarity {
	lo, hi := SearchBounds(refStart, length, deg.Frames, opts)
	center := max(lo, min(hi, refStart+opts.GlobalLag))

	best := types.PatchSimilarity{Index: idx, RefFrame: refStart, NSIM: -1}

	// Walk outwards from the expected position so that ties keep the smallest shift.
	for d := 0; center-d >= lo || center+d <= hi; d++ {
		candidates := []int{center - d, center + d}
		if d == 0 {
			candidates = candidates[:1]
		}

		for _, degStart := range candidates {
			if degStart < lo || degStart > hi {
				continue
			}

			score, bands := Patch(ref, deg, refStart, degStart, length, opts.RangeDb)
			if score > best.NSIM {
				best.DegFrame = degStart
				best.NSIM = score
				best.BandNSIM = bands
			}
		}
	}

	best.Offset = best.DegFrame - best.RefFrame
	best.RefSeconds = float64(best.RefFrame) * ref.HopSeconds
	best.DegSeconds = float64(best.DegFrame) * deg.HopSeconds

	return best
}

func selectActive(starts []int, length int, active []bool) []int {
	if active == nil {
		return starts
	}

	kept := make([]int, 0, len(starts))

	for _, s := range starts {
		for f := s; f < s+length && f < len(active); f++ {
			if active[f] {
				kept = append(kept, s)

				break
			}
		}
	}

	if len(kept) == 0 {
		return starts
	}

	return kept
}
