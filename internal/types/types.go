//nolint:staticcheck // too dumb on Db vs. DB
package types

type BitDepth uint

const (
	Depth16 BitDepth = 16
	Depth24 BitDepth = 24
	Depth32 BitDepth = 32
)

// PCMFormat describes raw interleaved little-endian PCM as produced by the decoders.
type PCMFormat struct {
	SampleRate int
	BitDepth   BitDepth
	Channels   uint
}

// Signal is a mono sample buffer, normalized to [-1, 1].
// It is never mutated once validated.
type Signal struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the signal length in seconds.
func (s Signal) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}

	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// Representation is a perceptual time-frequency grid.
// Data is frame-major: Data[frame][band], values in dB (or dB above floor once prepared).
type Representation struct {
	Data       [][]float64
	Frames     int
	Bands      int
	CenterHz   []float64
	HopSeconds float64
}

// Column returns the band energies of one frame.
func (r *Representation) Column(frame int) []float64 {
	return r.Data[frame]
}

/*
NSIM Interpretation

| NSIM        | Interpretation                                  |
|-------------|-------------------------------------------------|
| 1.0         | Identical patches.                              |
| 0.95 - 1.0  | Transparent. Differences are below audibility.  |
| 0.8 - 0.95  | Audible but mild degradation (codec artifacts). |
| 0.5 - 0.8   | Strong degradation (noise, clipping, dropouts). |
| < 0.5       | Unrelated content or severe damage.             |

Offset is the degraded start frame minus the reference start frame. Positive
offsets mean the degraded signal lags the reference. Large, jumping offsets
between consecutive patches usually mean the content is too stationary for
alignment to matter (pure tones, silence) or the degraded signal is warped.
*/

// PatchSimilarity is the best match found for one reference patch.
type PatchSimilarity struct {
	Index      int       // patch index, reference order
	RefFrame   int       // first frame of the reference patch
	DegFrame   int       // first frame of the matched degraded patch
	Offset     int       // DegFrame - RefFrame
	RefSeconds float64   // RefFrame in seconds
	DegSeconds float64   // DegFrame in seconds
	NSIM       float64   // (0, 1]
	BandNSIM   []float64 // per-band mean similarity within the patch
}

/*
Voice Activity Interpretation

| Frame RMS      | Meaning                                  |
|----------------|------------------------------------------|
| < -60 dBFS     | Silence or noise floor. Patch skipped.   |
| -60 to -45 dB  | Breath, room tone, reverb tails.         |
| > -45 dBFS     | Active content.                          |

Patch selection only drops a patch when every one of its frames is below the
threshold. A recording that is entirely below threshold keeps all patches.
*/

// SilenceSegment is a run of consecutive windows below the activity threshold.
type SilenceSegment struct {
	StartSample int
	EndSample   int
	StartSec    float64
	EndSec      float64
	DurationSec float64
	RmsDb       float64 // actual level during this segment
}

// SilenceResult aggregates the silence segments of a signal.
type SilenceResult struct {
	Segments      []SilenceSegment
	TotalSilence  float64 // total silence duration in seconds
	LeadingSec    float64 // silence at start
	TrailingSec   float64 // silence at end
	TotalDuration float64 // total signal duration in seconds
}
