package ffmpeg

import (
	"strconv"
	"time"

	"github.com/farcloser/cochlea/internal/types"
)

const (
	name = "ffmpeg"
	// Decoding long lossless files from slow storage can take a while.
	timeout = 120 * time.Second
)

func bitDepthToFormat(bitDepth types.BitDepth) string {
	// BitDepth 32 = s32le, 24 = s24le, 16 = s16le
	//nolint:gosec // we fine, gosec
	return "s" + strconv.Itoa(int(bitDepth)) + "le"
}

func bitDepthToCodec(bitDepth types.BitDepth) string {
	return "pcm_" + bitDepthToFormat(bitDepth)
}
