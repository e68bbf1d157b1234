// Package diagnose inspects decoded inputs for defects that lower similarity
// scores regardless of the processing under test: clipped runs at full scale
// and DC offset.
package diagnose

import (
	"fmt"
	"math"
)

const (
	// Samples within one 16-bit code of full scale count as clipped.
	fullScale = 1 - 1.0/32768
	// A clipping event needs at least this many consecutive full-scale samples.
	minRun   = 2
	silentDb = -120.0
)

// Severity classifies how much a finding matters.
type Severity string

const (
	SeverityNone     Severity = "no issue"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Bands are ascending thresholds: a value at or above a band is classified with it.
type Bands struct {
	Mild     float64
	Moderate float64
	Severe   float64
}

// Match returns the severity of value and whether any band was reached.
func (b Bands) Match(value float64) (Severity, bool) {
	switch {
	case value >= b.Severe:
		return SeveritySevere, true
	case value >= b.Moderate:
		return SeverityModerate, true
	case value >= b.Mild:
		return SeverityMild, true
	default:
		return SeverityNone, false
	}
}

// Options holds the severity bands. Clipping counts events, DC offset is in dBFS.
type Options struct {
	Clipping Bands
	DCOffset Bands
}

// DefaultOptions returns bands suited to clean digital recordings.
func DefaultOptions() Options {
	return Options{
		Clipping: Bands{Mild: 1, Moderate: 10, Severe: 100},
		DCOffset: Bands{Mild: -40, Moderate: -26, Severe: -13},
	}
}

// Finding is one detected defect.
type Finding struct {
	Check    string
	Severity Severity
	Summary  string
}

// Report describes a mono signal normalized to [-1, 1].
type Report struct {
	Samples        int
	PeakDb         float64
	ClippedSamples int
	ClipEvents     int
	LongestRun     int
	DCOffset       float64
	DCOffsetDb     float64
	Findings       []Finding
}

// Inspect measures samples and classifies what it finds with opts.
func Inspect(samples []float64, opts Options) *Report {
	report := &Report{Samples: len(samples), PeakDb: silentDb, DCOffsetDb: silentDb}
	if len(samples) == 0 {
		return report
	}

	var (
		sum, peak float64
		run       int
	)

	closeRun := func() {
		if run >= minRun {
			report.ClipEvents++
			report.ClippedSamples += run
			report.LongestRun = max(report.LongestRun, run)
		}

		run = 0
	}

	for _, sample := range samples {
		sum += sample

		level := math.Abs(sample)
		peak = max(peak, level)

		if level >= fullScale {
			run++
		} else {
			closeRun()
		}
	}

	closeRun()

	report.DCOffset = sum / float64(len(samples))

	if peak > 0 {
		report.PeakDb = 20 * math.Log10(peak)
	}

	if offset := math.Abs(report.DCOffset); offset > 0 {
		report.DCOffsetDb = max(20*math.Log10(offset), silentDb)
	}

	if severity, detected := opts.Clipping.Match(float64(report.ClipEvents)); detected {
		report.Findings = append(report.Findings, Finding{
			Check:    "clipping",
			Severity: severity,
			Summary: fmt.Sprintf("%d clipping events, longest run %d samples",
				report.ClipEvents, report.LongestRun),
		})
	}

	if severity, detected := opts.DCOffset.Match(report.DCOffsetDb); detected {
		report.Findings = append(report.Findings, Finding{
			Check:    "dc-offset",
			Severity: severity,
			Summary:  fmt.Sprintf("DC offset %.1f dBFS", report.DCOffsetDb),
		})
	}

	return report
}

// Worst returns the most severe finding level.
func (r *Report) Worst() Severity {
	worst := SeverityNone

	for _, finding := range r.Findings {
		if rank(finding.Severity) > rank(worst) {
			worst = finding.Severity
		}
	}

	return worst
}

func rank(severity Severity) int {
	switch severity {
	case SeveritySevere:
		return 3
	case SeverityModerate:
		return 2
	case SeverityMild:
		return 1
	default:
		return 0
	}
}
