package cochlea_test

import (
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/farcloser/cochlea"
)

// speechLike synthesizes a voiced, syllable-modulated signal with a faint noise bed.
func speechLike(seconds float64, rate int) []float64 {
	n := int(seconds * float64(rate))
	out := make([]float64, n)
	rng := rand.New(rand.NewPCG(1, 2))

	for i := range out {
		t := float64(i) / float64(rate)
		envelope := 0.55 + 0.45*math.Sin(2*math.Pi*3.5*t)

		var voiced float64
		for h := 1; h <= 12; h++ {
			voiced += math.Sin(2*math.Pi*140*float64(h)*t) / float64(h)
		}

		out[i] = 0.25*envelope*voiced + 0.002*(rng.Float64()*2-1)
	}

	return out
}

func noise(n int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]float64, n)

	for i := range out {
		out[i] = rng.NormFloat64()
	}

	return out
}

func run(t *testing.T, engine *cochlea.Engine, ref, deg []float64, rate uint32) cochlea.Result {
	t.Helper()

	result, err := engine.Run(ref, deg, rate)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.VNSIM <= 0 || result.VNSIM > 1 || math.IsNaN(result.VNSIM) {
		t.Fatalf("VNSIM %v outside (0, 1]", result.VNSIM)
	}

	if result.MOSLQO < 1 || result.MOSLQO > 5 || math.IsNaN(result.MOSLQO) {
		t.Fatalf("MOS-LQO %v outside [1, 5]", result.MOSLQO)
	}

	if result.ProcessingTimeSeconds() < 0 {
		t.Fatalf("negative processing time %v", result.ProcessingTimeSeconds())
	}

	return result
}

func TestIdentity(t *testing.T) {
	engine := cochlea.NewSpeechEngine()
	ref := speechLike(1, 16000)

	result := run(t, engine, ref, ref, 16000)

	if result.VNSIM < 0.99 {
		t.Fatalf("identical signals scored %v", result.VNSIM)
	}

	if result.MOSLQO < 4.9 {
		t.Fatalf("identical signals predicted %v", result.MOSLQO)
	}

	if len(result.FVNSIM) != 32 {
		t.Fatalf("expected 32 band similarities, got %d", len(result.FVNSIM))
	}

	for i, p := range result.Patches {
		if i > 0 && p.RefFrame <= result.Patches[i-1].RefFrame {
			t.Fatalf("patches not in reference order at %d", i)
		}

		if p.Offset != 0 {
			t.Fatalf("patch %d of an identical pair shifted by %d", i, p.Offset)
		}
	}
}

func TestSilence(t *testing.T) {
	engine := cochlea.NewSpeechEngine()
	silence := make([]float64, 16000)

	result := run(t, engine, silence, silence, 16000)
	if len(result.Patches) == 0 {
		t.Fatal("silent pair produced no patches")
	}
}

func TestDegradationLowersScores(t *testing.T) {
	engine := cochlea.NewSpeechEngine()
	ref := speechLike(2, 16000)
	bed := noise(len(ref), 7)

	prevNSIM, prevMOS := 1.0, 5.0

	for _, level := range []float64{0.002, 0.01, 0.05, 0.2} {
		deg := make([]float64, len(ref))
		for i := range deg {
			deg[i] = ref[i] + level*bed[i]
		}

		result := run(t, engine, ref, deg, 16000)

		if result.VNSIM > prevNSIM+1e-9 {
			t.Fatalf("VNSIM rose from %v to %v at noise level %v", prevNSIM, result.VNSIM, level)
		}

		if result.MOSLQO > prevMOS+1e-9 {
			t.Fatalf("MOS-LQO rose from %v to %v at noise level %v", prevMOS, result.MOSLQO, level)
		}

		prevNSIM, prevMOS = result.VNSIM, result.MOSLQO
	}

	if prevNSIM > 0.9 {
		t.Fatalf("heavy noise still scored %v", prevNSIM)
	}
}

func TestClippedSine(t *testing.T) {
	engine := cochlea.NewSpeechEngine()
	ref := make([]float64, 16000)
	deg := make([]float64, 16000)

	for i := range ref {
		ref[i] = 0.9 * math.Sin(2*math.Pi*440*float64(i)/16000)
		deg[i] = max(-0.3, min(0.3, ref[i]))
	}

	clean := run(t, engine, ref, ref, 16000)
	clipped := run(t, engine, ref, deg, 16000)

	if clipped.VNSIM >= 0.9 {
		t.Fatalf("hard clipping scored %v", clipped.VNSIM)
	}

	if clipped.MOSLQO >= clean.MOSLQO {
		t.Fatalf("clipping did not lower MOS-LQO: %v >= %v", clipped.MOSLQO, clean.MOSLQO)
	}
}

func TestDelayIsCompensated(t *testing.T) {
	engine := cochlea.NewSpeechEngine()
	ref := speechLike(1, 16000)

	// Three analysis hops.
	const delay = 3 * 128

	deg := make([]float64, len(ref))
	copy(deg[delay:], ref)

	result := run(t, engine, ref, deg, 16000)

	if result.GlobalLag != 3 {
		t.Fatalf("expected a global lag of 3 frames, got %d", result.GlobalLag)
	}

	if result.VNSIM < 0.99 {
		t.Fatalf("delayed copy scored %v", result.VNSIM)
	}
}

func TestDeterministic(t *testing.T) {
	engine := cochlea.NewSpeechEngine()
	ref := speechLike(1, 16000)
	deg := make([]float64, len(ref))
	bed := noise(len(ref), 3)

	for i := range deg {
		deg[i] = ref[i] + 0.02*bed[i]
	}

	first := run(t, engine, ref, deg, 16000)
	second := run(t, engine, ref, deg, 16000)

	if first.VNSIM != second.VNSIM || first.MOSLQO != second.MOSLQO {
		t.Fatalf("runs differ: %v/%v vs %v/%v", first.VNSIM, first.MOSLQO, second.VNSIM, second.MOSLQO)
	}

	for i := range first.Patches {
		if first.Patches[i].NSIM != second.Patches[i].NSIM {
			t.Fatalf("patch %d differs", i)
		}
	}
}

func TestShortSignalUsesSinglePatch(t *testing.T) {
	engine := cochlea.NewSpeechEngine()
	ref := speechLike(0.1, 16000)

	result := run(t, engine, ref, ref, 16000)
	if len(result.Patches) != 1 {
		t.Fatalf("expected a single patch, got %d", len(result.Patches))
	}

	if _, err := engine.Run(ref[:100], ref[:100], 16000); !errors.Is(err, cochlea.ErrInput) {
		t.Fatalf("shorter than a window: expected ErrInput, got %v", err)
	}
}

func TestInputErrors(t *testing.T) {
	cfg := cochlea.SpeechMode()
	cfg.Resample = false

	engine, err := cochlea.NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ref := speechLike(0.5, 16000)

	cases := map[string]struct {
		ref, deg []float64
		rate     uint32
	}{
		"length mismatch": {ref, ref[:len(ref)-1], 16000},
		"empty":           {nil, nil, 16000},
		"zero rate":       {ref, ref, 0},
		"rate mismatch":   {ref, ref, 44100},
		"non finite":      {ref, append(append([]float64(nil), ref[:len(ref)-1]...), math.NaN()), 16000},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := engine.Run(tc.ref, tc.deg, tc.rate); !errors.Is(err, cochlea.ErrInput) {
				t.Fatalf("expected ErrInput, got %v", err)
			}
		})
	}
}

func TestResampling(t *testing.T) {
	if !cochlea.SpeechMode().Resample {
		t.Fatal("speech profile should resample by default")
	}

	engine := cochlea.NewSpeechEngine()
	ref := speechLike(1, 8000)

	result := run(t, engine, ref, ref, 8000)
	if result.VNSIM < 0.99 {
		t.Fatalf("resampled identical pair scored %v", result.VNSIM)
	}
}

func TestAudioModeRequiresModel(t *testing.T) {
	if _, err := cochlea.AudioMode(""); !errors.Is(err, cochlea.ErrConfiguration) {
		t.Fatalf("AudioMode: expected ErrConfiguration, got %v", err)
	}

	if _, err := cochlea.NewAudioEngine(""); !errors.Is(err, cochlea.ErrConfiguration) {
		t.Fatalf("NewAudioEngine: expected ErrConfiguration, got %v", err)
	}

	missing := filepath.Join(t.TempDir(), "absent.txt")
	if _, err := cochlea.NewAudioEngine(missing); !errors.Is(err, cochlea.ErrConfiguration) {
		t.Fatalf("missing artifact: expected ErrConfiguration, got %v", err)
	}
}

func TestConfigIsCopy(t *testing.T) {
	engine := cochlea.NewSpeechEngine()

	cfg := engine.Config()
	cfg.SampleRate = 8000
	cfg.Resample = false

	if got := engine.Config(); got.SampleRate != 16000 || !got.Resample {
		t.Fatalf("engine config changed through a copy: %+v", got)
	}
}

func TestAudioModeWithModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	artifact := "schema_version: 1\nkind: logistic\nlogistic: {slope: 20, midpoint: 0.7}\n"

	if err := os.WriteFile(path, []byte(artifact), 0o600); err != nil {
		t.Fatal(err)
	}

	engine, err := cochlea.NewAudioEngine(path)
	if err != nil {
		t.Fatalf("NewAudioEngine failed: %v", err)
	}

	if engine.ModelKind() != "logistic" || engine.Config().SampleRate != 48000 {
		t.Fatalf("unexpected engine %s at %d Hz", engine.ModelKind(), engine.Config().SampleRate)
	}

	ref := speechLike(1, 48000)

	result := run(t, engine, ref, ref, 48000)
	if result.VNSIM < 0.99 || result.MOSLQO < 4.9 {
		t.Fatalf("identical audio scored %v / %v", result.VNSIM, result.MOSLQO)
	}
}

func TestConfigValidate(t *testing.T) {
	mutations := map[string]func(*cochlea.Config){
		"unknown mode":      func(c *cochlea.Config) { c.Mode = "music" },
		"hop above window":  func(c *cochlea.Config) { c.HopSize = c.WindowSize + 1 },
		"no bands":          func(c *cochlea.Config) { c.Bands = 0 },
		"above nyquist":     func(c *cochlea.Config) { c.MaxFrequency = 9000 },
		"inverted range":    func(c *cochlea.Config) { c.MinFrequency = c.MaxFrequency },
		"zero stride":       func(c *cochlea.Config) { c.PatchStride = 0 },
		"negative radius":   func(c *cochlea.Config) { c.SearchRadius = -1 },
		"bad percentile":    func(c *cochlea.Config) { c.Aggregation = cochlea.AggregationPercentile; c.Percentile = 0 },
		"unknown aggregate": func(c *cochlea.Config) { c.Aggregation = "mode" },
		"audio no model":    func(c *cochlea.Config) { c.Mode = cochlea.ModeAudio },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			cfg := cochlea.SpeechMode()
			mutate(&cfg)

			if _, err := cochlea.NewEngine(cfg); !errors.Is(err, cochlea.ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
		})
	}

	if err := cochlea.SpeechMode().Validate(); err != nil {
		t.Fatalf("speech profile invalid: %v", err)
	}
}

func TestConcurrentRuns(t *testing.T) {
	engine := cochlea.NewSpeechEngine()
	ref := speechLike(0.5, 16000)

	want := run(t, engine, ref, ref, 16000)
	done := make(chan float64, 4)

	for range 4 {
		go func() {
			result, err := engine.Run(ref, ref, 16000)
			if err != nil {
				done <- -1

				return
			}

			done <- result.VNSIM
		}()
	}

	for range 4 {
		if got := <-done; got != want.VNSIM {
			t.Fatalf("concurrent run scored %v, want %v", got, want.VNSIM)
		}
	}
}
