package regression

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/farcloser/cochlea/internal/types"
)

func predict(t *testing.T, model Model, x float64) float64 {
	t.Helper()

	mos, err := model.Predict(Features{VNSIM: x})
	if err != nil {
		t.Fatalf("Predict(%v) failed: %v", x, err)
	}

	return mos
}

func TestSpeechModel(t *testing.T) {
	model := Speech()

	if model.Kind() != KindExponential {
		t.Fatalf("unexpected kind %q", model.Kind())
	}

	if mos := predict(t, model, 1); math.Abs(mos-5) > 1e-9 {
		t.Fatalf("perfect similarity should map to 5, got %v", mos)
	}

	prev := 0.0

	for _, x := range []float64{0, 0.2, 0.5, 0.7, 0.8, 0.9, 0.95, 1} {
		mos := predict(t, model, x)
		if mos < 1 || mos > 5 {
			t.Fatalf("MOS %v out of range at %v", mos, x)
		}

		if mos < prev {
			t.Fatalf("MOS decreases at %v: %v < %v", x, mos, prev)
		}

		prev = mos
	}

	// Inputs outside the domain are clamped, not extrapolated.
	if mos := predict(t, model, 3); math.Abs(mos-5) > 1e-9 {
		t.Fatalf("out of domain input should clamp to 5, got %v", mos)
	}

	if _, err := model.Predict(Features{VNSIM: math.NaN()}); !errors.Is(err, types.ErrModel) {
		t.Fatalf("NaN similarity: expected ErrModel, got %v", err)
	}
}

func TestPolynomial(t *testing.T) {
	model, err := NewPolynomial([]float64{1, 4}, DefaultDomain, DefaultOutput)
	if err != nil {
		t.Fatal(err)
	}

	if mos := predict(t, model, 0.5); mos != 3 {
		t.Fatalf("1 + 4*0.5 should be 3, got %v", mos)
	}

	if _, err := NewPolynomial([]float64{5, -4}, DefaultDomain, DefaultOutput); !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("decreasing polynomial: expected ErrConfiguration, got %v", err)
	}

	if _, err := NewPolynomial(nil, DefaultDomain, DefaultOutput); !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("empty polynomial: expected ErrConfiguration, got %v", err)
	}
}

func TestLogistic(t *testing.T) {
	model, err := NewLogistic(10, 0.5, DefaultDomain, DefaultOutput)
	if err != nil {
		t.Fatal(err)
	}

	if mos := predict(t, model, 0.5); math.Abs(mos-3) > 1e-12 {
		t.Fatalf("midpoint should map to 3, got %v", mos)
	}

	if _, err := NewLogistic(-1, 0.5, DefaultDomain, DefaultOutput); !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("negative slope: expected ErrConfiguration, got %v", err)
	}

	if _, err := NewLogistic(1, 0.5, Range{Min: 1, Max: 0}, DefaultOutput); !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("inverted domain: expected ErrConfiguration, got %v", err)
	}
}

func TestSVR(t *testing.T) {
	vectors := []SupportVector{
		{Coef: 2, Features: []float64{1, 1}},
		{Coef: -1, Features: []float64{0, 0}},
	}

	model, err := NewSVR(1, -2, vectors, 2, DefaultOutput)
	if err != nil {
		t.Fatal(err)
	}

	// 2*exp(0) - 1*exp(-2) + 2
	mos, err := model.Predict(Features{FVNSIM: []float64{1, 1}})
	if err != nil {
		t.Fatal(err)
	}

	if want := 4 - math.Exp(-2); math.Abs(mos-want) > 1e-12 {
		t.Fatalf("got %v, want %v", mos, want)
	}

	if _, err := model.Predict(Features{FVNSIM: []float64{1}}); !errors.Is(err, types.ErrModel) {
		t.Fatalf("feature count mismatch: expected ErrModel, got %v", err)
	}

	if _, err := NewSVR(1, 0, vectors, 3, DefaultOutput); !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("band mismatch: expected ErrConfiguration, got %v", err)
	}
}

func TestSVRRejectsDecreasingDiagonal(t *testing.T) {
	// A negative bump at perfect similarity pulls the score down near 1.
	vectors := []SupportVector{
		{Coef: 2, Features: []float64{0.8, 0.8}},
		{Coef: -3, Features: []float64{1, 1}},
	}

	if _, err := NewSVR(10, -3, vectors, 2, DefaultOutput); !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}

	// The same shape clamped flat by the output range is accepted.
	if _, err := NewSVR(10, 10, vectors, 2, DefaultOutput); err != nil {
		t.Fatalf("flat model rejected: %v", err)
	}
}

func TestParseYAML(t *testing.T) {
	cases := []struct {
		name    string
		doc     string
		wantErr error
		kind    string
	}{
		{
			name: "logistic",
			doc:  "schema_version: 1\nkind: logistic\nlogistic: {slope: 12, midpoint: 0.8}\n",
			kind: KindLogistic,
		},
		{
			name: "polynomial with ranges",
			doc:  "schema_version: 1\nkind: polynomial\ndomain: {min: 0.2, max: 1}\noutput: {min: 1, max: 4.5}\ncoefficients: [0, 4.5]\n",
			kind: KindPolynomial,
		},
		{
			name: "exponential",
			doc:  "schema_version: 1\nkind: exponential\nexponential: {a: 1.1, b: 4.7, x0: 0.76}\n",
			kind: KindExponential,
		},
		{
			name: "svr",
			doc:  "schema_version: 1\nkind: svr\nsvr:\n  gamma: 0.5\n  rho: -3\n  support_vectors:\n    - {coef: 1, features: [1, 1]}\n",
			kind: KindSVR,
		},
		{
			name:    "wrong schema version",
			doc:     "schema_version: 2\nkind: logistic\nlogistic: {slope: 1, midpoint: 0.5}\n",
			wantErr: types.ErrConfiguration,
		},
		{
			name:    "unknown kind",
			doc:     "schema_version: 1\nkind: forest\n",
			wantErr: types.ErrConfiguration,
		},
		{
			name:    "unknown field",
			doc:     "schema_version: 1\nkind: polynomial\ncoefficients: [1]\ntrees: 10\n",
			wantErr: types.ErrConfiguration,
		},
		{
			name:    "svr band mismatch",
			doc:     "schema_version: 1\nkind: svr\nsvr:\n  gamma: 0.5\n  rho: 0\n  support_vectors:\n    - {coef: 1, features: [1, 1, 1]}\n",
			wantErr: types.ErrConfiguration,
		},
		{
			name:    "missing parameters",
			doc:     "schema_version: 1\nkind: logistic\n",
			wantErr: types.ErrConfiguration,
		},
		{
			name:    "not yaml",
			doc:     "{{{",
			wantErr: types.ErrConfiguration,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model, err := ParseYAML([]byte(tc.doc), 2)

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("ParseYAML failed: %v", err)
			}

			if model.Kind() != tc.kind {
				t.Fatalf("expected kind %q, got %q", tc.kind, model.Kind())
			}
		})
	}
}

const libsvmModel = `svm_type nu_svr
kernel_type rbf
gamma 0.5
nr_class 2
total_sv 2
rho -2
SV
1.5 1:1 2:1
-0.5 1:0.2
`

func TestParseLibSVM(t *testing.T) {
	model, err := ParseLibSVM([]byte(libsvmModel), 2)
	if err != nil {
		t.Fatalf("ParseLibSVM failed: %v", err)
	}

	svr, ok := model.(*SVR)
	if !ok {
		t.Fatalf("expected *SVR, got %T", model)
	}

	if svr.Bands() != 2 || len(svr.vectors) != 2 || svr.vectors[1].Features[1] != 0 {
		t.Fatalf("unexpected model %+v", svr)
	}

	bad := map[string]string{
		"classifier":     strings.Replace(libsvmModel, "nu_svr", "c_svc", 1),
		"linear kernel":  strings.Replace(libsvmModel, "rbf", "linear", 1),
		"missing rho":    strings.Replace(libsvmModel, "rho -2\n", "", 1),
		"feature range":  strings.Replace(libsvmModel, "2:1", "3:1", 1),
		"unknown header": strings.Replace(libsvmModel, "nr_class 2", "weights 2", 1),
		"bad value":      strings.Replace(libsvmModel, "gamma 0.5", "gamma half", 1),
	}

	for name, doc := range bad {
		if _, err := ParseLibSVM([]byte(doc), 2); !errors.Is(err, types.ErrConfiguration) {
			t.Errorf("%s: expected ErrConfiguration, got %v", name, err)
		}
	}
}

func TestLoadDispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "model.yaml")
	if err := os.WriteFile(yamlPath, []byte("schema_version: 1\nkind: polynomial\ncoefficients: [1, 4]\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	svmPath := filepath.Join(dir, "libsvm_nu_svr_model.txt")
	if err := os.WriteFile(svmPath, []byte(libsvmModel), 0o600); err != nil {
		t.Fatal(err)
	}

	if model, err := Load(yamlPath, 2); err != nil || model.Kind() != KindPolynomial {
		t.Fatalf("yaml: %v %v", model, err)
	}

	if model, err := Load(svmPath, 2); err != nil || model.Kind() != KindSVR {
		t.Fatalf("libsvm: %v %v", model, err)
	}

	if _, err := Load(filepath.Join(dir, "absent.yaml"), 2); !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("missing file: expected ErrConfiguration, got %v", err)
	}
}
