//nolint:wrapcheck
package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/cochlea"
	"github.com/farcloser/cochlea/internal/media"
	"github.com/farcloser/cochlea/internal/output"
)

const outputFile = "cochlea-report.jsonl"

var (
	errReportArgs   = errors.New("expected exactly two arguments: reference and degraded directories")
	errNotDirectory = errors.New("not a directory")
	errNoAudioFiles = errors.New("no audio files found")
	errNoPairs      = errors.New("no matching file stems")
	errPairsFailed  = errors.New("some pairs failed")
	errRateMismatch = errors.New("sample rates differ")
)

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Score every reference/degraded pair sharing a file stem and write a JSONL report",
		ArgsUsage: "<reference-dir> <degraded-dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"C"},
				Usage:   "TOML configuration file (missing file is ignored)",
				Value:   "cochlea.toml",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "JSONL report path (a .gz copy is written alongside)",
				Value:   outputFile,
			},
			&cli.BoolFlag{
				Name:  "redact-path",
				Usage: "Strip file paths from the report, keeping stems",
			},
			&cli.StringFlag{
				Name:    "mode",
				Aliases: []string{"m"},
				Usage:   "Parameter profile: speech or audio",
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "Regression model artifact (YAML or libsvm text)",
			},
			&cli.StringFlag{
				Name:  "aggregation",
				Usage: "Patch pooling: mean, median, percentile",
			},
			&cli.FloatFlag{
				Name:  "percentile",
				Usage: "Quantile used by --aggregation percentile",
			},
			&cli.BoolFlag{
				Name:  "resample",
				Usage: "Resample pairs to the profile rate when they differ (default true)",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "Number of pairs scored concurrently",
			},
			&cli.IntFlag{
				Name:  "engine-workers",
				Usage: "Patch workers inside each comparison (0 = all CPUs)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-pair time limit",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 2 {
				return fmt.Errorf("%w: got %d", errReportArgs, cmd.NArg())
			}

			cfg, err := loadConfig(cmd.String("config"))
			if err != nil {
				return err
			}

			cfg.applyFlags(cmd)

			engine, err := cfg.engine()
			if err != nil {
				return err
			}

			return runReport(ctx, engine, &cfg, reportOptions{
				referenceDir: cmd.Args().Get(0),
				degradedDir:  cmd.Args().Get(1),
				output:       cmd.String("output"),
				redact:       cmd.Bool("redact-path"),
			})
		},
	}
}

type reportOptions struct {
	referenceDir string
	degradedDir  string
	output       string
	redact       bool
}

func runReport(ctx context.Context, engine *cochlea.Engine, cfg *batchConfig, opts reportOptions) error {
	refFiles, err := collectAudioFiles(opts.referenceDir, cfg.Batch.Extensions)
	if err != nil {
		return err
	}

	degFiles, err := collectAudioFiles(opts.degradedDir, cfg.Batch.Extensions)
	if err != nil {
		return err
	}

	pairs := matchFiles(refFiles, degFiles)
	if len(pairs) == 0 {
		return errNoPairs
	}

	workers := cfg.Batch.Workers

	fmt.Fprintf(os.Stderr, "Found %d pairs to score (%d workers)\n", len(pairs), workers)

	startTime := time.Now()
	results := make([]Record, len(pairs))

	var progress atomic.Int64

	sem := make(chan struct{}, workers)

	var waitGroup sync.WaitGroup

	for idx, item := range pairs {
		waitGroup.Add(1)

		go func(idx int, item pair) {
			defer waitGroup.Done()

			sem <- struct{}{}

			defer func() { <-sem }()

			results[idx] = processPair(ctx, engine, item, cfg.Batch.Timeout.Duration)

			done := progress.Add(1)
			fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", done, len(pairs), item.Stem)
		}(idx, item)
	}

	waitGroup.Wait()

	failed, err := writeRecords(opts.output, results, opts.redact)
	if err != nil {
		return err
	}

	if err := compressFile(opts.output); err != nil {
		slog.Error("compressing report", "error", err)
	}

	elapsed := time.Since(startTime)

	fmt.Fprintf(os.Stderr, "\nDone: %d pairs in %s (%d failed)\n", len(pairs), elapsed.Truncate(time.Millisecond), failed)
	fmt.Fprintf(os.Stderr, "Report written to %s (and %s.gz)\n\n", opts.output, opts.output)

	if err := runDigest(opts.output); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errPairsFailed, failed, len(pairs))
	}

	return nil
}

// writeRecords writes results in pair order and returns the number of failures.
func writeRecords(path string, results []Record, redact bool) (int, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating output file: %w", err)
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	failed := 0

	for idx := range results {
		record := &results[idx]

		if record.Error != "" {
			failed++
		}

		if redact {
			record.Reference = ""
			record.Degraded = ""
		}

		if err := enc.Encode(record); err != nil {
			slog.Error("writing record", "stem", record.Stem, "error", err)
		}
	}

	return failed, out.Close()
}

func processPair(ctx context.Context, engine *cochlea.Engine, item pair, timeout time.Duration) Record {
	pairStart := time.Now()
	timing := &RecordTiming{}
	record := Record{Stem: item.Stem, Reference: item.Reference, Degraded: item.Degraded, Timing: timing}

	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ref, err := media.Load(ctx, item.Reference)
	if err != nil {
		record.Error = fmt.Sprintf("loading reference: %v", err)

		return record
	}

	deg, err := media.Load(ctx, item.Degraded)
	if err != nil {
		record.Error = fmt.Sprintf("loading degraded: %v", err)

		return record
	}

	timing.LoadMs = durationMs(time.Since(pairStart))

	if ref.SampleRate != deg.SampleRate {
		record.Error = fmt.Sprintf("%v: %d Hz vs %d Hz", errRateMismatch, ref.SampleRate, deg.SampleRate)

		return record
	}

	compareStart := time.Now()

	result, err := engine.Run(ref.Samples, deg.Samples, uint32(ref.SampleRate)) //nolint:gosec // positive

	timing.CompareMs = durationMs(time.Since(compareStart))
	timing.TotalMs = durationMs(time.Since(pairStart))

	if err != nil {
		record.Error = fmt.Sprintf("comparison failed: %v", err)

		return record
	}

	if ctx.Err() != nil {
		record.Error = fmt.Sprintf("comparison failed: %v", ctx.Err())

		return record
	}

	record.Result = output.ResultToMap(&result, false)

	return record
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

func collectAudioFiles(root string, extensions []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%q: %w", root, errNotDirectory)
	}

	var files []string

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		if slices.Contains(extensions, strings.ToLower(filepath.Ext(path))) {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %q: %w", root, err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%q: %w", root, errNoAudioFiles)
	}

	slices.Sort(files)

	return files, nil
}

func stem(path string) string {
	base := filepath.Base(path)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

// matchFiles pairs references with degraded files of the same stem, in reference order.
// The first degraded file of a stem wins.
func matchFiles(references, degraded []string) []pair {
	byStem := make(map[string]string, len(degraded))

	for _, path := range degraded {
		key := stem(path)
		if previous, ok := byStem[key]; ok {
			slog.Warn("duplicate degraded stem", "kept", previous, "ignored", path)

			continue
		}

		byStem[key] = path
	}

	pairs := make([]pair, 0, len(references))

	for _, path := range references {
		key := stem(path)

		match, ok := byStem[key]
		if !ok {
			slog.Warn("no degraded file for reference", "reference", path)

			continue
		}

		pairs = append(pairs, pair{Stem: key, Reference: path, Degraded: match})
	}

	return pairs
}

func compressFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // reading our own output file
	if err != nil {
		return err
	}

	gzFile, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer gzFile.Close()

	gzWriter := gzip.NewWriter(gzFile)

	if _, err := gzWriter.Write(data); err != nil {
		return err
	}

	return gzWriter.Close()
}
