//nolint:wrapcheck
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/cochlea/internal/media"
	"github.com/farcloser/cochlea/internal/types"
)

var (
	errInvalidBitDepth = errors.New("must be 16, 24, or 32")
	errInvalidChannels = errors.New("must be positive")
	errBothStdin       = errors.New("only one input can be read from stdin")
)

func toBitDepth(v int) (types.BitDepth, error) {
	switch v {
	case 16:
		return types.Depth16, nil
	case 24:
		return types.Depth24, nil
	case 32:
		return types.Depth32, nil
	default:
		return 0, errInvalidBitDepth
	}
}

// rawFormat returns the PCM layout of raw inputs, or nil when inputs are audio files.
func rawFormat(cmd *cli.Command) (*types.PCMFormat, error) {
	sampleRate := cmd.Int("sample-rate")
	if sampleRate <= 0 {
		return nil, nil //nolint:nilnil // no raw layout requested
	}

	bitDepth, err := toBitDepth(cmd.Int("bit-depth"))
	if err != nil {
		return nil, fmt.Errorf("--bit-depth: %w", err)
	}

	channels := cmd.Int("channels")
	if channels <= 0 {
		return nil, fmt.Errorf("--channels: %w", errInvalidChannels)
	}

	return &types.PCMFormat{
		SampleRate: sampleRate,
		BitDepth:   bitDepth,
		Channels:   uint(channels), //nolint:gosec // validated positive value
	}, nil
}

// loadInput decodes one side of the comparison. Raw PCM can come from stdin ("-").
func loadInput(ctx context.Context, source string, format *types.PCMFormat) (*media.Audio, error) {
	if format == nil {
		return media.Load(ctx, source)
	}

	var (
		data []byte
		err  error
	)

	if source == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(source) //nolint:gosec // CLI tool opens user-specified audio files
	}

	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", source, err)
	}

	samples, err := media.DecodeMono(data, *format)
	if err != nil {
		return nil, err
	}

	return &media.Audio{
		Samples:    samples,
		SampleRate: format.SampleRate,
		Channels:   int(format.Channels), //nolint:gosec // small value
		Decoder:    "raw",
	}, nil
}
