package regression

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/farcloser/primordium/fault"
	"gopkg.in/yaml.v3"

	"github.com/farcloser/cochlea/internal/types"
)

// SchemaVersion is the only artifact schema this package reads.
const SchemaVersion = 1

// Artifact is the YAML form of a model.
//
//	schema_version: 1
//	kind: logistic
//	domain: {min: 0, max: 1}
//	output: {min: 1, max: 5}
//	logistic: {slope: 12, midpoint: 0.8}
type Artifact struct {
	SchemaVersion int       `yaml:"schema_version"`
	Kind          string    `yaml:"kind"`
	Domain        *Range    `yaml:"domain,omitempty"`
	Output        *Range    `yaml:"output,omitempty"`
	Coefficients  []float64 `yaml:"coefficients,omitempty"`
	Exponential   *struct {
		A  float64 `yaml:"a"`
		B  float64 `yaml:"b"`
		X0 float64 `yaml:"x0"`
	} `yaml:"exponential,omitempty"`
	Logistic *struct {
		Slope    float64 `yaml:"slope"`
		Midpoint float64 `yaml:"midpoint"`
	} `yaml:"logistic,omitempty"`
	SVR *struct {
		Gamma          float64         `yaml:"gamma"`
		Rho            float64         `yaml:"rho"`
		SupportVectors []SupportVector `yaml:"support_vectors"`
	} `yaml:"svr,omitempty"`
}

// Load reads a model artifact. YAML artifacts are recognised by their extension
// (.yaml, .yml); anything else is read as a libsvm text model.
// bands is the number of band similarities the engine produces.
func Load(path string, bands int) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", types.ErrConfiguration, fault.ErrReadFailure, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data, bands)
	default:
		return ParseLibSVM(data, bands)
	}
}

// ParseYAML builds a model from a YAML artifact.
func ParseYAML(data []byte, bands int) (Model, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var artifact Artifact
	if err := decoder.Decode(&artifact); err != nil {
		return nil, fmt.Errorf("%w: decoding model artifact: %w", types.ErrConfiguration, err)
	}

	return artifact.Build(bands)
}

// Build turns a decoded artifact into a model.
func (a *Artifact) Build(bands int) (Model, error) {
	if a.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: unsupported model schema version %d (want %d)",
			types.ErrConfiguration, a.SchemaVersion, SchemaVersion)
	}

	domain, output := DefaultDomain, DefaultOutput
	if a.Domain != nil {
		domain = *a.Domain
	}

	if a.Output != nil {
		output = *a.Output
	}

	switch a.Kind {
	case KindPolynomial:
		return NewPolynomial(a.Coefficients, domain, output)
	case KindExponential:
		if a.Exponential == nil {
			return nil, fmt.Errorf("%w: exponential model without parameters", types.ErrConfiguration)
		}

		return NewExponential(a.Exponential.A, a.Exponential.B, a.Exponential.X0, domain, output)
	case KindLogistic:
		if a.Logistic == nil {
			return nil, fmt.Errorf("%w: logistic model without parameters", types.ErrConfiguration)
		}

		return NewLogistic(a.Logistic.Slope, a.Logistic.Midpoint, domain, output)
	case KindSVR:
		if a.SVR == nil {
			return nil, fmt.Errorf("%w: svr model without parameters", types.ErrConfiguration)
		}

		return NewSVR(a.SVR.Gamma, a.SVR.Rho, a.SVR.SupportVectors, bands, output)
	default:
		return nil, fmt.Errorf("%w: unknown model kind %q", types.ErrConfiguration, a.Kind)
	}
}

// ParseLibSVM reads a libsvm regression model (nu_svr or epsilon_svr, rbf kernel).
// Feature indices are 1-based; absent indices are zero.
func ParseLibSVM(data []byte, bands int) (Model, error) {
	var (
		gamma, rho float64
		svmType    string
		kernel     string
		seenGamma  bool
		seenRho    bool
		vectors    []SupportVector
		inVectors  bool
		lineNo     int
	)

	errMalformed := func(format string, args ...any) error {
		return fmt.Errorf("%w: libsvm model line %d: %s", types.ErrConfiguration, lineNo, fmt.Sprintf(format, args...))
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		lineNo++

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if inVectors {
			sv, err := parseSupportVector(fields, bands)
			if err != nil {
				return nil, errMalformed("%v", err)
			}

			vectors = append(vectors, sv)

			continue
		}

		key := fields[0]

		switch key {
		case "SV":
			inVectors = true
		case "svm_type":
			if len(fields) != 2 {
				return nil, errMalformed("svm_type needs one value")
			}

			svmType = fields[1]
		case "kernel_type":
			if len(fields) != 2 {
				return nil, errMalformed("kernel_type needs one value")
			}

			kernel = fields[1]
		case "gamma", "rho":
			if len(fields) != 2 {
				return nil, errMalformed("%s needs exactly one value", key)
			}

			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, errMalformed("%s: %v", key, err)
			}

			if key == "gamma" {
				gamma, seenGamma = v, true
			} else {
				rho, seenRho = v, true
			}
		case "nr_class", "total_sv", "degree", "coef0", "probA", "probB", "label", "nr_sv":
		default:
			return nil, errMalformed("unexpected header %q", key)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w: %w", types.ErrConfiguration, fault.ErrReadFailure, err)
	}

	if svmType != "nu_svr" && svmType != "epsilon_svr" {
		return nil, fmt.Errorf("%w: unsupported svm_type %q (want nu_svr or epsilon_svr)", types.ErrConfiguration, svmType)
	}

	if kernel != "rbf" {
		return nil, fmt.Errorf("%w: unsupported kernel_type %q (want rbf)", types.ErrConfiguration, kernel)
	}

	if !seenGamma || !seenRho || !inVectors {
		return nil, fmt.Errorf("%w: libsvm model is missing gamma, rho or the SV section", types.ErrConfiguration)
	}

	return NewSVR(gamma, rho, vectors, bands, DefaultOutput)
}

func parseSupportVector(fields []string, bands int) (SupportVector, error) {
	coef, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return SupportVector{}, fmt.Errorf("coefficient: %w", err)
	}

	sv := SupportVector{Coef: coef, Features: make([]float64, bands)}

	for _, field := range fields[1:] {
		idx, value, ok := strings.Cut(field, ":")
		if !ok {
			return SupportVector{}, fmt.Errorf("malformed feature %q", field)
		}

		i, err := strconv.Atoi(idx)
		if err != nil {
			return SupportVector{}, fmt.Errorf("feature index %q: %w", idx, err)
		}

		if i < 1 || i > bands {
			return SupportVector{}, fmt.Errorf("feature index %d outside 1..%d", i, bands)
		}

		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return SupportVector{}, fmt.Errorf("feature %d: %w", i, err)
		}

		sv.Features[i-1] = v
	}

	return sv, nil
}
