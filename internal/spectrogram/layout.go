package spectrogram

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/farcloser/cochlea/internal/types"
)

// Layout maps linear FFT bins onto perceptually spaced bands.
// Centres are equally spaced on the ERB-rate scale, so low frequencies get
// narrow bands and high frequencies wide ones, like a gammatone filterbank.
// A Layout is read-only once built and can be shared between goroutines.
type Layout struct {
	SampleRate int
	WindowSize int
	CenterHz   []float64
	// weights[band] holds the triangular filter, indexed from firstBin[band].
	weights  [][]float64
	firstBin []int
}

// ERBRate converts a frequency to the ERB-rate scale (Glasberg & Moore).
func ERBRate(hz float64) float64 {
	return 21.4 * math.Log10(1+0.00437*hz)
}

// ERBRateToHz is the inverse of ERBRate.
func ERBRateToHz(erb float64) float64 {
	return (math.Pow(10, erb/21.4) - 1) / 0.00437
}

// NewLayout builds the band filters for a given analysis geometry.
func NewLayout(sampleRate, windowSize, bands int, minHz, maxHz float64) (*Layout, error) {
	switch {
	case sampleRate <= 0:
		return nil, fmt.Errorf("%w: sample rate must be positive", types.ErrConfiguration)
	case windowSize < 2:
		return nil, fmt.Errorf("%w: window size must be at least 2", types.ErrConfiguration)
	case bands < 1:
		return nil, fmt.Errorf("%w: at least one band is required", types.ErrConfiguration)
	case minHz < 0 || minHz >= maxHz:
		return nil, fmt.Errorf("%w: invalid band range %.1f-%.1f Hz", types.ErrConfiguration, minHz, maxHz)
	case maxHz > float64(sampleRate)/2:
		return nil, fmt.Errorf("%w: band range %.1f Hz exceeds Nyquist (%d Hz)",
			types.ErrConfiguration, maxHz, sampleRate/2)
	}

	lo, hi := ERBRate(minHz), ERBRate(maxHz)

	centers := make([]float64, bands)
	if bands == 1 {
		centers[0] = (lo + hi) / 2
	} else {
		floats.Span(centers, lo, hi)
	}

	step := hi - lo
	if bands > 1 {
		step = centers[1] - centers[0]
	}

	binCount := windowSize/2 + 1
	binHz := float64(sampleRate) / float64(windowSize)

	binERB := make([]float64, binCount)
	for i := range binERB {
		binERB[i] = ERBRate(float64(i) * binHz)
	}

	layout := &Layout{
		SampleRate: sampleRate,
		WindowSize: windowSize,
		CenterHz:   make([]float64, bands),
		weights:    make([][]float64, bands),
		firstBin:   make([]int, bands),
	}

	for band, center := range centers {
		layout.CenterHz[band] = ERBRateToHz(center)

		first, last := -1, -1

		for bin, e := range binERB {
			if math.Abs(e-center) < step {
				if first < 0 {
					first = bin
				}

				last = bin
			}
		}

		if first < 0 {
			// Band narrower than the bin spacing: take the closest bin.
			nearest := int(math.Round(layout.CenterHz[band] / binHz))
			layout.firstBin[band] = min(nearest, binCount-1)
			layout.weights[band] = []float64{1}

			continue
		}

		w := make([]float64, last-first+1)
		for i := range w {
			w[i] = 1 - math.Abs(binERB[first+i]-center)/step
		}

		layout.firstBin[band] = first
		layout.weights[band] = w
	}

	return layout, nil
}

// Bands returns the number of bands.
func (l *Layout) Bands() int {
	return len(l.CenterHz)
}

// apply folds a power spectrum into band energies.
func (l *Layout) apply(power, out []float64) {
	for band, w := range l.weights {
		first := l.firstBin[band]
		out[band] = floats.Dot(w, power[first:first+len(w)])
	}
}
