package cochlea

import (
	"fmt"

	"github.com/farcloser/cochlea/internal/aggregate"
	"github.com/farcloser/cochlea/internal/types"
)

/*
Usage:

engine := cochlea.NewSpeechEngine()
result, err := engine.Run(reference, degraded, 16000)
if err != nil {
    return err
}
fmt.Printf("MOS-LQO %.2f (NSIM %.3f)\n", result.MOSLQO, result.VNSIM)

// Audio mode needs a trained model artifact
engine, err := cochlea.NewAudioEngine("model/libsvm_nu_svr_model.txt")

// Custom profile
cfg := cochlea.SpeechMode()
cfg.Aggregation = cochlea.AggregationPercentile
cfg.Percentile = 0.1
cfg.Resample = false // reject inputs not at 16 kHz
engine, err := cochlea.NewEngine(cfg)

// Inspect the worst patch
worst := result.Patches[0]
for _, p := range result.Patches {
    if p.NSIM < worst.NSIM {
        worst = p
    }
}
fmt.Printf("worst patch at %.2fs: %.3f\n", worst.RefSeconds, worst.NSIM)

*/

// Mode selects a parameter profile.
type Mode string

const (
	ModeSpeech Mode = "speech"
	ModeAudio  Mode = "audio"
)

// ParseMode maps a name to a mode.
func ParseMode(name string) (Mode, error) {
	switch Mode(name) {
	case ModeSpeech, ModeAudio:
		return Mode(name), nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q (want speech or audio)", ErrConfiguration, name)
	}
}

// Aggregation selects how patch similarities are pooled into a single score.
type Aggregation = aggregate.Method

const (
	AggregationMean       = aggregate.Mean
	AggregationMedian     = aggregate.Median
	AggregationPercentile = aggregate.Percentile
)

// Config is the full parameter set of an engine. Obtain one from SpeechMode or
// AudioMode and adjust as needed.
type Config struct {
	Mode Mode

	// Expected input rate of the analysis. Inputs at another rate are resampled
	// when Resample is set (the profile default) and rejected otherwise.
	SampleRate int
	Resample   bool

	// Analysis frames, in samples.
	WindowSize int
	HopSize    int

	// Perceptual bands, ERB spaced between MinFrequency and MaxFrequency (Hz).
	Bands        int
	MinFrequency float64
	MaxFrequency float64

	// Patch geometry, in frames.
	PatchSize    int
	PatchStride  int
	SearchRadius int
	MaxGlobalLag int

	// DynamicRangeDb is the depth below the reference peak that is kept.
	DynamicRangeDb float64

	// Speech content selection: patches whose frames are all below VoiceThresholdDb
	// (dBFS) are skipped.
	VoiceActivity    bool
	VoiceThresholdDb float64

	Aggregation Aggregation
	Percentile  float64 // (0, 1], only with AggregationPercentile

	// ModelPath is the regression artifact. Required in audio mode; in speech mode
	// it replaces the built-in mapping when set.
	ModelPath string

	// Workers bounds patch level parallelism. 0 means GOMAXPROCS.
	Workers int
}

// SpeechMode returns the wideband speech profile.
func SpeechMode() Config {
	return Config{
		Mode:             ModeSpeech,
		SampleRate:       16000,
		Resample:         true,
		WindowSize:       256,
		HopSize:          128,
		Bands:            32,
		MinFrequency:     50,
		MaxFrequency:     8000,
		PatchSize:        20,
		PatchStride:      20,
		SearchRadius:     10,
		MaxGlobalLag:     60,
		DynamicRangeDb:   45,
		VoiceActivity:    true,
		VoiceThresholdDb: -60,
		Aggregation:      AggregationMean,
		Percentile:       0.5,
	}
}

// AudioMode returns the fullband audio profile. It fails when modelPath is empty:
// there is no built-in audio mapping.
func AudioMode(modelPath string) (Config, error) {
	cfg := Config{
		Mode:             ModeAudio,
		SampleRate:       48000,
		Resample:         true,
		WindowSize:       1024,
		HopSize:          512,
		Bands:            32,
		MinFrequency:     50,
		MaxFrequency:     20000,
		PatchSize:        30,
		PatchStride:      30,
		SearchRadius:     15,
		MaxGlobalLag:     90,
		DynamicRangeDb:   45,
		VoiceActivity:    false,
		VoiceThresholdDb: -60,
		Aggregation:      AggregationMean,
		Percentile:       0.5,
		ModelPath:        modelPath,
	}

	if modelPath == "" {
		return cfg, fmt.Errorf("%w: audio mode requires a model path", ErrConfiguration)
	}

	return cfg, nil
}

// ModeConfig returns the profile for a mode.
func ModeConfig(mode Mode, modelPath string) (Config, error) {
	switch mode {
	case ModeSpeech:
		cfg := SpeechMode()
		cfg.ModelPath = modelPath

		return cfg, nil
	case ModeAudio:
		return AudioMode(modelPath)
	default:
		return Config{}, fmt.Errorf("%w: unknown mode %q", ErrConfiguration, mode)
	}
}

// Validate checks the parameter set for consistency.
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", types.ErrConfiguration, fmt.Sprintf(format, args...))
	}

	switch {
	case c.Mode != ModeSpeech && c.Mode != ModeAudio:
		return invalid("unknown mode %q", c.Mode)
	case c.SampleRate <= 0:
		return invalid("sample rate must be positive, got %d", c.SampleRate)
	case c.WindowSize < 2:
		return invalid("window size must be at least 2, got %d", c.WindowSize)
	case c.HopSize < 1 || c.HopSize > c.WindowSize:
		return invalid("hop size must be in [1, %d], got %d", c.WindowSize, c.HopSize)
	case c.Bands < 1:
		return invalid("band count must be positive, got %d", c.Bands)
	case c.MinFrequency <= 0 || c.MinFrequency >= c.MaxFrequency:
		return invalid("frequency range [%v, %v] is empty", c.MinFrequency, c.MaxFrequency)
	case c.MaxFrequency > float64(c.SampleRate)/2:
		return invalid("max frequency %v is above Nyquist for %d Hz", c.MaxFrequency, c.SampleRate)
	case c.PatchSize < 1:
		return invalid("patch size must be positive, got %d", c.PatchSize)
	case c.PatchStride < 1:
		return invalid("patch stride must be positive, got %d", c.PatchStride)
	case c.SearchRadius < 0:
		return invalid("search radius must not be negative, got %d", c.SearchRadius)
	case c.MaxGlobalLag < 0:
		return invalid("max global lag must not be negative, got %d", c.MaxGlobalLag)
	case c.DynamicRangeDb <= 0:
		return invalid("dynamic range must be positive, got %v", c.DynamicRangeDb)
	case c.Workers < 0:
		return invalid("workers must not be negative, got %d", c.Workers)
	case c.Mode == ModeAudio && c.ModelPath == "":
		return invalid("audio mode requires a model path")
	}

	method, err := aggregate.ParseMethod(string(c.Aggregation))
	if err != nil {
		return err
	}

	if method == AggregationPercentile && (c.Percentile <= 0 || c.Percentile > 1) {
		return invalid("percentile must be in (0, 1], got %v", c.Percentile)
	}

	return nil
}
