package spectrogram

import (
	"errors"
	"math"
	"testing"

	"github.com/farcloser/cochlea/internal/types"
)

func tone(seconds float64, rate int, freq float64) types.Signal {
	n := int(seconds * float64(rate))
	samples := make([]float64, n)

	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}

	return types.Signal{Samples: samples, SampleRate: rate}
}

func speechLayout(t *testing.T) *Layout {
	t.Helper()

	layout, err := NewLayout(16000, 256, 32, 50, 8000)
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}

	return layout
}

func TestLayoutCentersIncreaseAndWiden(t *testing.T) {
	layout := speechLayout(t)

	if layout.Bands() != 32 {
		t.Fatalf("expected 32 bands, got %d", layout.Bands())
	}

	if math.Abs(layout.CenterHz[0]-50) > 1e-6 || math.Abs(layout.CenterHz[31]-8000) > 1e-6 {
		t.Fatalf("unexpected edge centres %.2f / %.2f", layout.CenterHz[0], layout.CenterHz[31])
	}

	prevGap := 0.0

	for i := 1; i < layout.Bands(); i++ {
		gap := layout.CenterHz[i] - layout.CenterHz[i-1]
		if gap <= 0 {
			t.Fatalf("centres not increasing at band %d", i)
		}

		if gap < prevGap {
			t.Fatalf("band spacing shrinks at band %d (%.2f < %.2f)", i, gap, prevGap)
		}

		prevGap = gap
	}

	for band, w := range layout.weights {
		if len(w) == 0 {
			t.Fatalf("band %d has no bins", band)
		}
	}
}

func TestLayoutRejectsInvalidGeometry(t *testing.T) {
	cases := []struct {
		name         string
		rate, window int
		bands        int
		lo, hi       float64
	}{
		{"zero rate", 0, 256, 32, 50, 8000},
		{"tiny window", 16000, 1, 32, 50, 8000},
		{"no bands", 16000, 256, 0, 50, 8000},
		{"inverted range", 16000, 256, 32, 8000, 50},
		{"above nyquist", 16000, 256, 32, 50, 9000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLayout(tc.rate, tc.window, tc.bands, tc.lo, tc.hi)
			if !errors.Is(err, types.ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestERBRoundTrip(t *testing.T) {
	for _, hz := range []float64{0, 50, 440, 1000, 8000, 20000} {
		if got := ERBRateToHz(ERBRate(hz)); math.Abs(got-hz) > 1e-6 {
			t.Errorf("round trip %v -> %v", hz, got)
		}
	}
}

func TestComputeTooShort(t *testing.T) {
	layout := speechLayout(t)
	sig := types.Signal{Samples: make([]float64, 255), SampleRate: 16000}

	_, err := Compute(sig, Params{HopSize: 128, Layout: layout})
	if !errors.Is(err, types.ErrInput) {
		t.Fatalf("expected ErrInput, got %v", err)
	}
}

func TestComputeGeometryAndPeak(t *testing.T) {
	layout := speechLayout(t)
	sig := tone(1, 16000, 1000)

	rep, err := Compute(sig, Params{HopSize: 128, Layout: layout})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if want := FrameCount(16000, 256, 128); rep.Frames != want || len(rep.Data) != want {
		t.Fatalf("expected %d frames, got %d", want, rep.Frames)
	}

	// The loudest band should be the one centred closest to 1 kHz.
	closest := 0
	for band, c := range layout.CenterHz {
		if math.Abs(c-1000) < math.Abs(layout.CenterHz[closest]-1000) {
			closest = band
		}
	}

	column := rep.Column(rep.Frames / 2)
	loudest := 0

	for band, e := range column {
		if e > column[loudest] {
			loudest = band
		}
	}

	if d := loudest - closest; d < -1 || d > 1 {
		t.Fatalf("loudest band %d (%.0f Hz), expected near band %d (%.0f Hz)",
			loudest, layout.CenterHz[loudest], closest, layout.CenterHz[closest])
	}
}

func TestComputeSilenceIsFinite(t *testing.T) {
	layout := speechLayout(t)
	sig := types.Signal{Samples: make([]float64, 4000), SampleRate: 16000}

	rep, err := Compute(sig, Params{HopSize: 128, Layout: layout})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	for _, column := range rep.Data {
		for _, v := range column {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("non-finite energy %v on silence", v)
			}
		}
	}
}

func TestComputeDeterministic(t *testing.T) {
	layout := speechLayout(t)
	sig := tone(0.25, 16000, 440)

	a, err := Compute(sig, Params{HopSize: 128, Layout: layout})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	b, err := Compute(sig, Params{HopSize: 128, Layout: layout})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	for f := range a.Data {
		for band := range a.Data[f] {
			if a.Data[f][band] != b.Data[f][band] {
				t.Fatalf("frame %d band %d differs", f, band)
			}
		}
	}
}

func TestComputeRateMismatch(t *testing.T) {
	layout := speechLayout(t)
	sig := tone(0.25, 8000, 440)

	_, err := Compute(sig, Params{HopSize: 128, Layout: layout})
	if !errors.Is(err, types.ErrEngine) {
		t.Fatalf("expected ErrEngine, got %v", err)
	}
}
