// Package spectrogram turns a signal into a perceptual time-frequency grid.
package spectrogram

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/farcloser/cochlea/internal/types"
)

// powerFloor keeps log10 finite on digital silence (-120 dB).
const powerFloor = 1e-12

// Params holds the analysis geometry. Layout must match WindowSize.
type Params struct {
	HopSize int
	Layout  *Layout
}

// FrameCount returns how many full analysis windows fit in n samples.
func FrameCount(n, windowSize, hopSize int) int {
	if n < windowSize || hopSize < 1 {
		return 0
	}

	return 1 + (n-windowSize)/hopSize
}

// Compute produces the log band-energy grid of a signal.
// It is a pure function of its inputs; every call allocates its own FFT state.
func Compute(sig types.Signal, params Params) (*types.Representation, error) {
	layout := params.Layout
	if layout == nil {
		return nil, fmt.Errorf("%w: missing band layout", types.ErrEngine)
	}

	if sig.SampleRate != layout.SampleRate {
		return nil, fmt.Errorf("%w: signal rate %d Hz does not match layout rate %d Hz",
			types.ErrEngine, sig.SampleRate, layout.SampleRate)
	}

	windowSize := layout.WindowSize

	frames := FrameCount(len(sig.Samples), windowSize, params.HopSize)
	if frames == 0 {
		return nil, fmt.Errorf("%w: signal too short to analyze: %d samples, need at least %d",
			types.ErrInput, len(sig.Samples), windowSize)
	}

	window := makeHannWindow(windowSize)

	var windowEnergy float64
	for _, w := range window {
		windowEnergy += w * w
	}

	fft := fourier.NewFFT(windowSize)
	fftIn := make([]float64, windowSize)
	coeffs := make([]complex128, windowSize/2+1)
	power := make([]float64, windowSize/2+1)

	rep := &types.Representation{
		Data:       make([][]float64, frames),
		Frames:     frames,
		Bands:      layout.Bands(),
		CenterHz:   append([]float64(nil), layout.CenterHz...),
		HopSeconds: float64(params.HopSize) / float64(sig.SampleRate),
	}

	for frame := range frames {
		pos := frame * params.HopSize

		for i := range windowSize {
			fftIn[i] = sig.Samples[pos+i] * window[i]
		}

		coeffs = fft.Coefficients(coeffs, fftIn)

		for i, c := range coeffs {
			power[i] = (real(c)*real(c) + imag(c)*imag(c)) / windowEnergy
		}

		column := make([]float64, layout.Bands())
		layout.apply(power, column)

		for band, e := range column {
			column[band] = 10 * math.Log10(e+powerFloor)
		}

		rep.Data[frame] = column
	}

	return rep, nil
}

func makeHannWindow(size int) []float64 {
	window := make([]float64, size)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}

	return window
}
