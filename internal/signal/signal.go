// Package signal validates and conforms the reference/degraded pair before analysis.
package signal

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/farcloser/cochlea/internal/types"
)

// Validate checks a raw sample pair and wraps both into signals.
// Samples are copied: callers may reuse their buffers afterwards.
func Validate(reference, degraded []float64, sampleRate int) (types.Signal, types.Signal, error) {
	if sampleRate <= 0 {
		return types.Signal{}, types.Signal{}, fmt.Errorf("%w: sample rate must be positive, got %d",
			types.ErrInput, sampleRate)
	}

	if len(reference) == 0 {
		return types.Signal{}, types.Signal{}, fmt.Errorf("%w: reference signal is empty", types.ErrInput)
	}

	if len(degraded) == 0 {
		return types.Signal{}, types.Signal{}, fmt.Errorf("%w: degraded signal is empty", types.ErrInput)
	}

	if len(reference) != len(degraded) {
		return types.Signal{}, types.Signal{}, fmt.Errorf(
			"%w: reference and degraded must have the same length: %d vs %d",
			types.ErrInput, len(reference), len(degraded),
		)
	}

	if i := firstNonFinite(reference); i >= 0 {
		return types.Signal{}, types.Signal{}, fmt.Errorf("%w: reference sample %d is not finite", types.ErrInput, i)
	}

	if i := firstNonFinite(degraded); i >= 0 {
		return types.Signal{}, types.Signal{}, fmt.Errorf("%w: degraded sample %d is not finite", types.ErrInput, i)
	}

	ref := types.Signal{Samples: append([]float64(nil), reference...), SampleRate: sampleRate}
	deg := types.Signal{Samples: append([]float64(nil), degraded...), SampleRate: sampleRate}

	return ref, deg, nil
}

// Conform validates the pair and brings both signals to the target rate.
// When resample is false, a rate mismatch is an input error.
// Both signals always go through the exact same conversion, and the results are
// truncated to a common length.
func Conform(reference, degraded []float64, sampleRate, targetRate int, resample bool) (types.Signal, types.Signal, error) {
	ref, deg, err := Validate(reference, degraded, sampleRate)
	if err != nil {
		return types.Signal{}, types.Signal{}, err
	}

	if sampleRate == targetRate {
		return ref, deg, nil
	}

	if !resample {
		return types.Signal{}, types.Signal{}, fmt.Errorf("%w: sample rate %d Hz does not match the profile rate %d Hz",
			types.ErrInput, sampleRate, targetRate)
	}

	if ref, err = Resample(ref, targetRate); err != nil {
		return types.Signal{}, types.Signal{}, err
	}

	if deg, err = Resample(deg, targetRate); err != nil {
		return types.Signal{}, types.Signal{}, err
	}

	n := min(len(ref.Samples), len(deg.Samples))
	if n == 0 {
		return types.Signal{}, types.Signal{}, fmt.Errorf("%w: signal too short to resample from %d Hz to %d Hz",
			types.ErrInput, sampleRate, targetRate)
	}

	ref.Samples = ref.Samples[:n]
	deg.Samples = deg.Samples[:n]

	return ref, deg, nil
}

// Resample converts a signal to the target rate with the high quality polyphase preset.
func Resample(sig types.Signal, targetRate int) (types.Signal, error) {
	if targetRate <= 0 {
		return types.Signal{}, fmt.Errorf("%w: target rate must be positive, got %d", types.ErrConfiguration, targetRate)
	}

	if sig.SampleRate == targetRate {
		return sig, nil
	}

	resampler, err := resampling.New(&resampling.Config{
		InputRate:  float64(sig.SampleRate),
		OutputRate: float64(targetRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return types.Signal{}, fmt.Errorf("%w: creating resampler: %w", types.ErrEngine, err)
	}

	out, err := resampler.Process(sig.Samples)
	if err != nil {
		return types.Signal{}, fmt.Errorf("%w: resampling: %w", types.ErrEngine, err)
	}

	tail, err := resampler.Flush()
	if err != nil {
		return types.Signal{}, fmt.Errorf("%w: flushing resampler: %w", types.ErrEngine, err)
	}

	out = append(out, tail...)

	// The filter transient can push a full-scale signal slightly past the rails.
	for i, s := range out {
		out[i] = max(-1, min(1, s))
	}

	return types.Signal{Samples: out, SampleRate: targetRate}, nil
}

func firstNonFinite(samples []float64) int {
	for i, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return i
		}
	}

	return -1
}
