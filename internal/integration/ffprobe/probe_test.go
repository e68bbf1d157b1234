package ffprobe

import (
	"errors"
	"testing"

	"github.com/farcloser/primordium/fault"
)

const sample = `{
  "streams": [
    {"index": 0, "codec_name": "mjpeg", "codec_type": "video"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "sample_rate": "48000", "channels": 2, "initial_padding": 1024},
    {"index": 2, "codec_name": "opus", "codec_type": "audio", "sample_rate": "nope", "channels": 1}
  ],
  "format": {"filename": "clip.m4a", "format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "3.000000"}
}`

func TestParse(t *testing.T) {
	result, err := parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}

	stream, err := result.AudioStream(0)
	if err != nil {
		t.Fatal(err)
	}

	if stream.Index != 1 || stream.Channels != 2 || stream.InitialPadding != 1024 {
		t.Fatalf("unexpected stream %+v", stream)
	}

	rate, err := stream.Rate()
	if err != nil || rate != 48000 {
		t.Fatalf("unexpected rate %d, %v", rate, err)
	}

	second, err := result.AudioStream(1)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := second.Rate(); !errors.Is(err, ErrSampleRate) {
		t.Fatalf("expected ErrSampleRate, got %v", err)
	}

	if _, err := result.AudioStream(2); !errors.Is(err, ErrNoAudioStream) {
		t.Fatalf("expected ErrNoAudioStream, got %v", err)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := parse([]byte("{not json")); !errors.Is(err, fault.ErrInvalidJSON) {
		t.Fatalf("expected ErrInvalidJSON, got %v", err)
	}
}
