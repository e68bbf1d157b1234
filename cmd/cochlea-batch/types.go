//nolint:tagliatelle
package main

// Record is a single line in the JSONL report file.
type Record struct {
	Reference string         `json:"reference,omitempty"`
	Degraded  string         `json:"degraded,omitempty"`
	Stem      string         `json:"stem"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timing    *RecordTiming  `json:"timing,omitempty"`
}

// RecordTiming captures per-pair processing durations in milliseconds.
type RecordTiming struct {
	LoadMs    float64 `json:"load_ms"`
	CompareMs float64 `json:"compare_ms"`
	TotalMs   float64 `json:"total_ms"`
}

// digestRecord holds the typed fields needed by the digest command.
type digestRecord struct {
	Stem   string        `json:"stem"`
	Result *digestResult `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
	Timing *RecordTiming `json:"timing,omitempty"`
}

type digestResult struct {
	VNSIM  float64 `json:"vnsim"`
	MOSLQO float64 `json:"moslqo"`
	Rating string  `json:"rating"`
}

// pair is one matched reference/degraded couple.
type pair struct {
	Stem      string
	Reference string
	Degraded  string
}
