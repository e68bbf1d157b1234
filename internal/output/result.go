// Package output provides shared result serialization for cochlea JSON output.
package output

import (
	"github.com/farcloser/cochlea"
	"github.com/farcloser/cochlea/internal/diagnose"
)

/*
MOS-LQO Interpretation

| MOS-LQO   | Rating    | Typical cause                              |
|-----------|-----------|--------------------------------------------|
| >= 4.3    | excellent | Transparent coding, identical content      |
| 3.8 - 4.3 | good      | High bitrate codecs, light noise           |
| 3.0 - 3.8 | fair      | Narrowband or low bitrate codecs           |
| 2.0 - 3.0 | poor      | Heavy noise, clipping, packet loss         |
| < 2.0     | bad       | Unintelligible or unrelated content        |
*/

// Rating names the MOS-LQO band of a score.
func Rating(mos float64) string {
	switch {
	case mos >= 4.3:
		return "excellent"
	case mos >= 3.8:
		return "good"
	case mos >= 3.0:
		return "fair"
	case mos >= 2.0:
		return "poor"
	default:
		return "bad"
	}
}

// ResultToMap converts a comparison result into the canonical map structure
// used for JSON and JSONL serialization.
func ResultToMap(result *cochlea.Result, patches bool) map[string]any {
	meta := map[string]any{
		"vnsim":                   result.VNSIM,
		"moslqo":                  result.MOSLQO,
		"rating":                  Rating(result.MOSLQO),
		"fvnsim":                  result.FVNSIM,
		"global_lag_frames":       result.GlobalLag,
		"patch_count":             len(result.Patches),
		"processing_time_seconds": result.ProcessingTimeSeconds(),
	}

	if patches {
		meta["patches"] = PatchesToList(result.Patches)
	}

	return meta
}

// PatchesToList converts patch similarities, in reference order.
func PatchesToList(patches []cochlea.PatchSimilarity) []any {
	out := make([]any, 0, len(patches))

	for _, p := range patches {
		out = append(out, map[string]any{
			"index":       p.Index,
			"ref_frame":   p.RefFrame,
			"deg_frame":   p.DegFrame,
			"offset":      p.Offset,
			"ref_seconds": p.RefSeconds,
			"deg_seconds": p.DegSeconds,
			"nsim":        p.NSIM,
		})
	}

	return out
}

// ConfigToMap describes the parameter set an engine runs with.
func ConfigToMap(cfg cochlea.Config, modelKind string) map[string]any {
	return map[string]any{
		"mode":           string(cfg.Mode),
		"sample_rate":    cfg.SampleRate,
		"window_size":    cfg.WindowSize,
		"hop_size":       cfg.HopSize,
		"bands":          cfg.Bands,
		"frequency_hz":   []float64{cfg.MinFrequency, cfg.MaxFrequency},
		"patch_size":     cfg.PatchSize,
		"search_radius":  cfg.SearchRadius,
		"voice_activity": cfg.VoiceActivity,
		"aggregation":    string(cfg.Aggregation),
		"model":          modelKind,
		"model_path":     cfg.ModelPath,
	}
}

// DiagnosticsToMap converts an input inspection report.
func DiagnosticsToMap(report *diagnose.Report) map[string]any {
	findings := make([]any, 0, len(report.Findings))

	for _, finding := range report.Findings {
		findings = append(findings, map[string]any{
			"check":    finding.Check,
			"severity": string(finding.Severity),
			"summary":  finding.Summary,
		})
	}

	return map[string]any{
		"peak_db":         report.PeakDb,
		"clip_events":     report.ClipEvents,
		"clipped_samples": report.ClippedSamples,
		"longest_run":     report.LongestRun,
		"dc_offset_db":    report.DCOffsetDb,
		"worst_severity":  string(report.Worst()),
		"findings":        findings,
	}
}
