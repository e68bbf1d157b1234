//nolint:wrapcheck
package cochlea

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/farcloser/cochlea/internal/aggregate"
	"github.com/farcloser/cochlea/internal/nsim"
	"github.com/farcloser/cochlea/internal/regression"
	"github.com/farcloser/cochlea/internal/signal"
	"github.com/farcloser/cochlea/internal/spectrogram"
	"github.com/farcloser/cochlea/internal/types"
	"github.com/farcloser/cochlea/internal/vad"
)

// PatchSimilarity is the best match found for one reference patch.
type PatchSimilarity = types.PatchSimilarity

// Result is the outcome of one comparison.
type Result struct {
	// VNSIM is the aggregated similarity, in (0, 1].
	VNSIM float64 `json:"vnsim"`
	// MOSLQO is the predicted listening quality, in [1, 5].
	MOSLQO float64 `json:"moslqo"`

	// FVNSIM is the similarity of every band, averaged over patches.
	FVNSIM []float64 `json:"fvnsim"`
	// Patches are in reference order.
	Patches []PatchSimilarity `json:"patches,omitempty"`
	// GlobalLag is the estimated delay of the degraded signal, in frames.
	GlobalLag int `json:"global_lag"`

	ProcessingTime time.Duration `json:"-"`
}

// ProcessingTimeSeconds returns the wall clock time of the run.
func (r Result) ProcessingTimeSeconds() float64 {
	return r.ProcessingTime.Seconds()
}

// Engine compares reference/degraded pairs with a fixed configuration.
// It holds no per-run state and is safe for concurrent use.
type Engine struct {
	config Config
	layout *spectrogram.Layout
	model  regression.Model
}

// NewEngine validates the configuration, builds the band layout and loads the model.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	layout, err := spectrogram.NewLayout(cfg.SampleRate, cfg.WindowSize, cfg.Bands, cfg.MinFrequency, cfg.MaxFrequency)
	if err != nil {
		return nil, err
	}

	var model regression.Model

	switch {
	case cfg.ModelPath != "":
		if model, err = regression.Load(cfg.ModelPath, cfg.Bands); err != nil {
			return nil, fmt.Errorf("loading model %q: %w", cfg.ModelPath, err)
		}
	case cfg.Mode == ModeSpeech:
		model = regression.Speech()
	default:
		return nil, fmt.Errorf("%w: no regression model for mode %q", ErrConfiguration, cfg.Mode)
	}

	slog.Debug("engine ready", "mode", cfg.Mode, "rate", cfg.SampleRate, "bands", cfg.Bands, "model", model.Kind())

	return &Engine{config: cfg, layout: layout, model: model}, nil
}

// NewSpeechEngine returns an engine with the speech profile and the built-in mapping.
func NewSpeechEngine() *Engine {
	engine, err := NewEngine(SpeechMode())
	if err != nil {
		panic(err)
	}

	return engine
}

// NewAudioEngine returns an engine with the audio profile and the model at modelPath.
func NewAudioEngine(modelPath string) (*Engine, error) {
	cfg, err := AudioMode(modelPath)
	if err != nil {
		return nil, err
	}

	return NewEngine(cfg)
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// ModelKind names the regression model in use.
func (e *Engine) ModelKind() string {
	return e.model.Kind()
}

// Run compares a degraded signal to its reference. Both are mono, normalized to
// [-1, 1], sampled at sampleRate, and of equal length.
func (e *Engine) Run(reference, degraded []float64, sampleRate uint32) (Result, error) {
	start := time.Now()
	cfg := e.config

	ref, deg, err := signal.Conform(reference, degraded, int(sampleRate), cfg.SampleRate, cfg.Resample)
	if err != nil {
		return Result{}, err
	}

	slog.Debug("engine.Run", "stage", "conform", "samples", len(ref.Samples), "rate", ref.SampleRate)

	refRep, degRep, err := e.transform(ref, deg)
	if err != nil {
		return Result{}, err
	}

	slog.Debug("engine.Run", "stage", "transform", "frames", refRep.Frames, "elapsed", time.Since(start))

	refGrid, degGrid, err := nsim.Prepare(refRep, degRep, cfg.DynamicRangeDb)
	if err != nil {
		return Result{}, err
	}

	lag := nsim.GlobalLag(refGrid, degGrid, cfg.MaxGlobalLag)

	opts := nsim.Options{
		PatchSize:    cfg.PatchSize,
		PatchStride:  cfg.PatchStride,
		SearchRadius: cfg.SearchRadius,
		GlobalLag:    lag,
		RangeDb:      cfg.DynamicRangeDb,
		Workers:      cfg.Workers,
	}

	if cfg.VoiceActivity {
		opts.ActiveFrames = vad.ActiveFrames(ref, cfg.WindowSize, cfg.HopSize, cfg.VoiceThresholdDb)
	}

	patches, err := nsim.Compare(refGrid, degGrid, opts)
	if err != nil {
		return Result{}, err
	}

	slog.Debug("engine.Run", "stage", "compare", "patches", len(patches), "lag", lag, "elapsed", time.Since(start))

	vnsim, err := aggregate.Score(patches, cfg.Aggregation, cfg.Percentile)
	if err != nil {
		return Result{}, err
	}

	fvnsim := aggregate.Bands(patches)

	mos, err := e.model.Predict(regression.Features{VNSIM: vnsim, FVNSIM: fvnsim})
	if err != nil {
		return Result{}, err
	}

	result := Result{
		VNSIM:          vnsim,
		MOSLQO:         mos,
		FVNSIM:         fvnsim,
		Patches:        patches,
		GlobalLag:      lag,
		ProcessingTime: time.Since(start),
	}

	slog.Debug("engine.Run", "stage", "done", "vnsim", vnsim, "moslqo", mos, "elapsed", result.ProcessingTime)

	return result, nil
}

// transform computes both representations concurrently.
func (e *Engine) transform(ref, deg types.Signal) (*types.Representation, *types.Representation, error) {
	params := spectrogram.Params{HopSize: e.config.HopSize, Layout: e.layout}

	var (
		group          errgroup.Group
		refRep, degRep *types.Representation
	)

	group.Go(func() error {
		var err error

		refRep, err = spectrogram.Compute(ref, params)

		return err
	})

	group.Go(func() error {
		var err error

		degRep, err = spectrogram.Compute(deg, params)

		return err
	})

	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	if refRep.Frames != degRep.Frames {
		return nil, nil, fmt.Errorf("%w: frame count mismatch %d vs %d", ErrEngine, refRep.Frames, degRep.Frames)
	}

	return refRep, degRep, nil
}
