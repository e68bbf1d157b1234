// Package media loads audio files into mono sample buffers for the engine.
//
// PCM WAV files are decoded in process. Everything else goes through ffprobe and
// ffmpeg, which must be installed.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/go-audio/wav"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/cochlea/internal/integration/ffmpeg"
	"github.com/farcloser/cochlea/internal/integration/ffprobe"
	"github.com/farcloser/cochlea/internal/types"
)

const (
	DecoderWAV    = "wav"
	DecoderFFmpeg = "ffmpeg"

	wavFormatPCM = 1
)

// Audio is a decoded file.
type Audio struct {
	Samples    []float64 // mono, normalized to [-1, 1]
	SampleRate int
	Channels   int    // channel count of the source, before downmix
	Decoder    string // DecoderWAV or DecoderFFmpeg
}

// Signal returns the audio as an engine signal.
func (a *Audio) Signal() types.Signal {
	return types.Signal{Samples: a.Samples, SampleRate: a.SampleRate}
}

// Load decodes the first audio stream of a file to mono.
func Load(ctx context.Context, path string) (*Audio, error) {
	audio, err := loadWAV(path)
	if err != nil {
		return nil, err
	}

	if audio != nil {
		return audio, nil
	}

	return loadFFmpeg(ctx, path, 0)
}

// loadWAV returns nil without error when the file is not a PCM WAV go-audio can read.
func loadWAV(path string) (*Audio, error) {
	file, err := os.Open(path) //nolint:gosec // CLI tool opens user-specified audio files
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", types.ErrInput, fault.ErrReadFailure, err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() || decoder.WavAudioFormat != wavFormatPCM {
		return nil, nil //nolint:nilnil // not a WAV we handle, caller falls back
	}

	depth := types.BitDepth(decoder.BitDepth)
	if depth != types.Depth16 && depth != types.Depth24 && depth != types.Depth32 {
		return nil, nil //nolint:nilnil // 8-bit and exotic depths go through ffmpeg
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", types.ErrInput, fault.ErrReadFailure, err)
	}

	samples, err := downmixInts(buf.Data, buf.Format.NumChannels, depth)
	if err != nil {
		return nil, err
	}

	return &Audio{
		Samples:    samples,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		Decoder:    DecoderWAV,
	}, nil
}

func loadFFmpeg(ctx context.Context, path string, streamIndex int) (*Audio, error) {
	probeResult, err := ffprobe.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", path, err)
	}

	stream, err := probeResult.AudioStream(streamIndex)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrInput, path, err)
	}

	sampleRate, err := stream.Rate()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrInput, path, err)
	}

	file, err := os.Open(path) //nolint:gosec // CLI tool opens user-specified audio files
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", types.ErrInput, fault.ErrReadFailure, err)
	}
	defer file.Close()

	extractFormat := types.PCMFormat{BitDepth: types.Depth32, Channels: 1}

	var pcm bytes.Buffer

	if err = ffmpeg.ExtractStream(ctx, file, &pcm, streamIndex, &extractFormat); err != nil {
		return nil, fmt.Errorf("extracting PCM from %s: %w", path, err)
	}

	samples, err := DecodeMono(pcm.Bytes(), extractFormat)
	if err != nil {
		return nil, err
	}

	return &Audio{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Decoder:    DecoderFFmpeg,
	}, nil
}
