package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/urfave/cli/v3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/farcloser/cochlea/internal/output"
)

var errDigestArgs = errors.New("expected exactly one argument: path to report.jsonl")

func digestCommand() *cli.Command {
	return &cli.Command{
		Name:      "digest",
		Usage:     "Summarize a cochlea JSONL report",
		ArgsUsage: "<report.jsonl>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return errDigestArgs
			}

			return runDigest(cmd.Args().First())
		},
	}
}

func runDigest(reportPath string) error {
	records, err := readRecords(reportPath)
	if err != nil {
		return err
	}

	printDigest(summarize(records))

	return nil
}

func readRecords(path string) ([]digestRecord, error) {
	file, err := os.Open(path) //nolint:gosec // CLI tool opens user-specified report files
	if err != nil {
		return nil, fmt.Errorf("opening report: %w", err)
	}
	defer file.Close()

	var records []digestRecord

	scanner := bufio.NewScanner(file)

	const maxLineSize = 1024 * 1024
	scanner.Buffer(make([]byte, 0, maxLineSize), maxLineSize)

	for scanner.Scan() {
		var rec digestRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			records = append(records, digestRecord{Error: "parse error"})

			continue
		}

		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}

	return records, nil
}

// digestStats aggregates a report. MOS figures only cover successful pairs.
type digestStats struct {
	Total       int
	Failed      int
	SuccessRate float64
	MeanSeconds float64
	MOSMean     float64
	MOSMin      float64
	MOSMax      float64
	MOSStd      float64
	VNSIMMean   float64
	Ratings     map[string]int
	Worst       []digestRecord
}

const worstListed = 5

func summarize(records []digestRecord) digestStats {
	stats := digestStats{Total: len(records), Ratings: map[string]int{}}

	var (
		mos, vnsim []float64
		ok         []digestRecord
		totalMs    float64
	)

	for _, rec := range records {
		if rec.Timing != nil {
			totalMs += rec.Timing.TotalMs
		}

		if rec.Error != "" || rec.Result == nil {
			stats.Failed++

			continue
		}

		mos = append(mos, rec.Result.MOSLQO)
		vnsim = append(vnsim, rec.Result.VNSIM)
		stats.Ratings[output.Rating(rec.Result.MOSLQO)]++
		ok = append(ok, rec)
	}

	if stats.Total > 0 {
		stats.SuccessRate = float64(len(mos)) / float64(stats.Total)
		stats.MeanSeconds = totalMs / 1000 / float64(stats.Total)
	}

	if len(mos) == 0 {
		return stats
	}

	stats.MOSMean = stat.Mean(mos, nil)
	stats.MOSMin = floats.Min(mos)
	stats.MOSMax = floats.Max(mos)
	stats.VNSIMMean = stat.Mean(vnsim, nil)

	if len(mos) > 1 {
		stats.MOSStd = stat.StdDev(mos, nil)
	}

	slices.SortStableFunc(ok, func(a, b digestRecord) int {
		switch {
		case a.Result.MOSLQO < b.Result.MOSLQO:
			return -1
		case a.Result.MOSLQO > b.Result.MOSLQO:
			return 1
		default:
			return 0
		}
	})

	stats.Worst = ok[:min(worstListed, len(ok))]

	return stats
}

//nolint:gochecknoglobals
var ratingOrder = []string{"excellent", "good", "fair", "poor", "bad"}

func printDigest(stats digestStats) {
	fmt.Println("=== Cochlea Report Digest ===")
	fmt.Println()
	fmt.Printf("Total pairs:   %d\n", stats.Total)
	fmt.Printf("Failed:        %d\n", stats.Failed)
	fmt.Printf("Success rate:  %.1f%%\n", stats.SuccessRate*100)
	fmt.Printf("Avg time:      %.2fs/pair\n", stats.MeanSeconds)
	fmt.Println()

	if stats.Total == stats.Failed {
		return
	}

	fmt.Println("--- MOS-LQO ---")
	fmt.Printf("  mean:  %.3f\n", stats.MOSMean)
	fmt.Printf("  range: %.3f - %.3f\n", stats.MOSMin, stats.MOSMax)
	fmt.Printf("  std:   %.3f\n", stats.MOSStd)
	fmt.Printf("  VNSIM mean: %.4f\n", stats.VNSIMMean)
	fmt.Println()

	fmt.Println("--- Ratings ---")

	for _, rating := range ratingOrder {
		fmt.Printf("  %-10s %d\n", rating+":", stats.Ratings[rating])
	}

	fmt.Println()
	fmt.Println("--- Lowest Scores ---")

	for _, rec := range stats.Worst {
		fmt.Printf("  %.3f  %s\n", rec.Result.MOSLQO, rec.Stem)
	}
}
