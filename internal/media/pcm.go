package media

import (
	"encoding/binary"
	"fmt"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/cochlea/internal/types"
)

const (
	MaxValue16 = 32768.0      // 2^15, 16-bit signed PCM normalization divisor
	MaxValue24 = 8388608.0    // 2^23, 24-bit signed PCM normalization divisor
	MaxValue32 = 2147483648.0 // 2^31, 32-bit signed PCM normalization divisor
)

func maxValue(depth types.BitDepth) (float64, error) {
	switch depth {
	case types.Depth16:
		return MaxValue16, nil
	case types.Depth24:
		return MaxValue24, nil
	case types.Depth32:
		return MaxValue32, nil
	default:
		return 0, fmt.Errorf("%w: unsupported bit depth %d", types.ErrInput, depth)
	}
}

// DecodeMono converts interleaved little-endian PCM to normalized mono samples,
// averaging channels. A trailing partial frame is ignored.
func DecodeMono(data []byte, format types.PCMFormat) ([]float64, error) {
	maxVal, err := maxValue(format.BitDepth)
	if err != nil {
		return nil, err
	}

	if format.Channels == 0 {
		return nil, fmt.Errorf("%w: %w: zero channels", types.ErrInput, fault.ErrReadFailure)
	}

	bytesPerSample := int(format.BitDepth / 8) //nolint:gosec // bit depth and channel count are small constants
	numChannels := int(format.Channels)        //nolint:gosec // bit depth and channel count are small constants
	frameSize := bytesPerSample * numChannels

	frames := len(data) / frameSize
	out := make([]float64, frames)

	for f := range frames {
		var sum float64

		for ch := range numChannels {
			offset := f*frameSize + ch*bytesPerSample

			var raw int32

			switch format.BitDepth {
			case types.Depth16:
				raw = int32(int16(binary.LittleEndian.Uint16(data[offset:])))
			case types.Depth24:
				raw = int32(data[offset]) | int32(data[offset+1])<<8 | int32(data[offset+2])<<16
				if raw&0x800000 != 0 {
					raw |= ^0xFFFFFF
				}
			case types.Depth32:
				raw = int32(binary.LittleEndian.Uint32(data[offset:])) //nolint:gosec // two's complement reinterpretation
			default:
			}

			sum += float64(raw) / maxVal
		}

		out[f] = sum / float64(numChannels)
	}

	return out, nil
}

// downmixInts averages interleaved integer samples to normalized mono.
func downmixInts(data []int, channels int, depth types.BitDepth) ([]float64, error) {
	maxVal, err := maxValue(depth)
	if err != nil {
		return nil, err
	}

	if channels < 1 {
		return nil, fmt.Errorf("%w: %w: zero channels", types.ErrInput, fault.ErrReadFailure)
	}

	frames := len(data) / channels
	out := make([]float64, frames)

	for f := range frames {
		var sum float64
		for ch := range channels {
			sum += float64(data[f*channels+ch]) / maxVal
		}

		out[f] = sum / float64(channels)
	}

	return out, nil
}
