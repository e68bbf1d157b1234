// Package vad finds the parts of a signal that carry content.
package vad

import (
	"math"

	"github.com/farcloser/cochlea/internal/spectrogram"
	"github.com/farcloser/cochlea/internal/types"
)

// silentDb is reported for digital silence, where the log level is -Inf.
const silentDb = -120.0

type Options struct {
	ThresholdDb   float64 // below this = silence (default -60)
	MinDurationMs int     // minimum silence to report (default 1000)
	WindowMs      int     // RMS window size (default 50)
}

func DefaultOptions() Options {
	return Options{
		ThresholdDb:   -60.0,
		MinDurationMs: 1000,
		WindowMs:      50,
	}
}

// ActiveFrames marks the analysis frames whose RMS level is above thresholdDb.
// Frames are laid out exactly as the spectrogram lays them out for the same window and hop.
func ActiveFrames(sig types.Signal, windowSize, hopSize int, thresholdDb float64) []bool {
	frames := spectrogram.FrameCount(len(sig.Samples), windowSize, hopSize)
	threshold := math.Pow(10, thresholdDb/20)
	active := make([]bool, frames)

	for f := range frames {
		active[f] = rms(sig.Samples[f*hopSize:f*hopSize+windowSize]) > threshold
	}

	return active
}

// Detect reports the silence segments of a signal.
func Detect(sig types.Signal, opts Options) *types.SilenceResult {
	if opts.ThresholdDb == 0 {
		opts.ThresholdDb = -60.0
	}

	if opts.MinDurationMs == 0 {
		opts.MinDurationMs = 1000
	}

	if opts.WindowMs == 0 {
		opts.WindowMs = 50
	}

	rate := float64(sig.SampleRate)
	windowSamples := max(sig.SampleRate*opts.WindowMs/1000, 1)
	minSilenceSamples := sig.SampleRate * opts.MinDurationMs / 1000
	threshold := math.Pow(10, opts.ThresholdDb/20)

	var (
		segments     []types.SilenceSegment
		inSilence    bool
		silenceStart int
		silenceSumSq float64
	)

	closeSegment := func(end int) {
		inSilence = false

		length := end - silenceStart
		if length < minSilenceSamples || length == 0 {
			return
		}

		level := 20 * math.Log10(math.Sqrt(silenceSumSq/float64(length)))
		if math.IsInf(level, -1) {
			level = silentDb
		}

		segments = append(segments, types.SilenceSegment{
			StartSample: silenceStart,
			EndSample:   end,
			StartSec:    float64(silenceStart) / rate,
			EndSec:      float64(end) / rate,
			DurationSec: float64(length) / rate,
			RmsDb:       level,
		})
	}

	for start := 0; start < len(sig.Samples); start += windowSamples {
		window := sig.Samples[start:min(start+windowSamples, len(sig.Samples))]
		sumSq := sumSquares(window)
		isSilent := math.Sqrt(sumSq/float64(len(window))) < threshold

		switch {
		case isSilent && !inSilence:
			inSilence = true
			silenceStart = start
			silenceSumSq = sumSq
		case isSilent && inSilence:
			silenceSumSq += sumSq
		case !isSilent && inSilence:
			closeSegment(start)
		default:
		}
	}

	if inSilence {
		closeSegment(len(sig.Samples))
	}

	result := &types.SilenceResult{
		Segments:      segments,
		TotalDuration: sig.Duration(),
	}

	for _, seg := range segments {
		result.TotalSilence += seg.DurationSec
	}

	if len(segments) > 0 {
		if segments[0].StartSample == 0 {
			result.LeadingSec = segments[0].DurationSec
		}

		if last := segments[len(segments)-1]; last.EndSample == len(sig.Samples) {
			result.TrailingSec = last.DurationSec
		}
	}

	return result
}

// Trim cuts the leading and trailing silence of the reference, and the same sample
// range from the degraded signal, so that both stay aligned. Signals that are
// entirely silent are returned unchanged.
func Trim(ref, deg types.Signal, opts Options) (types.Signal, types.Signal) {
	result := Detect(ref, opts)
	if len(result.Segments) == 0 {
		return ref, deg
	}

	start, end := 0, len(ref.Samples)

	if first := result.Segments[0]; first.StartSample == 0 {
		start = first.EndSample
	}

	if last := result.Segments[len(result.Segments)-1]; last.EndSample == len(ref.Samples) && last.StartSample > 0 {
		end = last.StartSample
	}

	if start >= end || end > len(deg.Samples) {
		return ref, deg
	}

	ref.Samples = ref.Samples[start:end]
	deg.Samples = deg.Samples[start:end]

	return ref, deg
}

func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	return math.Sqrt(sumSquares(samples) / float64(len(samples)))
}

func sumSquares(samples []float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s * s
	}

	return sum
}
