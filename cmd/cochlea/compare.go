//nolint:wrapcheck
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/farcloser/primordium/format"
	"github.com/urfave/cli/v3"

	"github.com/farcloser/cochlea"
	"github.com/farcloser/cochlea/internal/diagnose"
	"github.com/farcloser/cochlea/internal/output"
	"github.com/farcloser/cochlea/internal/vad"
)

var errCompareArgs = errors.New("expected exactly two arguments: reference and degraded")

func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "mode",
			Aliases: []string{"m"},
			Usage:   "Parameter profile: speech (16 kHz) or audio (48 kHz, requires --model)",
			Value:   string(cochlea.ModeSpeech),
		},
		&cli.StringFlag{
			Name:  "model",
			Usage: "Regression model artifact (YAML or libsvm text)",
		},
		&cli.StringFlag{
			Name:  "aggregation",
			Usage: "Patch pooling: mean, median, percentile",
			Value: string(cochlea.AggregationMean),
		},
		&cli.FloatFlag{
			Name:  "percentile",
			Usage: "Quantile used by --aggregation percentile, in (0, 1]",
			Value: 0.5,
		},
		&cli.BoolFlag{
			Name:  "resample",
			Usage: "Resample inputs to the profile rate when they differ",
			Value: true,
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"j"},
			Usage:   "Concurrent patch workers (0 = all CPUs)",
		},
	}
}

// engineFromFlags builds the engine described by the shared flags.
func engineFromFlags(cmd *cli.Command) (*cochlea.Engine, error) {
	mode, err := cochlea.ParseMode(cmd.String("mode"))
	if err != nil {
		return nil, err
	}

	cfg, err := cochlea.ModeConfig(mode, cmd.String("model"))
	if err != nil {
		return nil, err
	}

	cfg.Aggregation = cochlea.Aggregation(cmd.String("aggregation"))
	cfg.Percentile = cmd.Float("percentile")
	cfg.Resample = cmd.Bool("resample")
	cfg.Workers = cmd.Int("workers")

	return cochlea.NewEngine(cfg)
}

func compareCommand() *cli.Command {
	flags := append(engineFlags(),
		&cli.BoolFlag{
			Name:  "trim",
			Usage: "Cut leading and trailing silence of the reference (and the same span of the degraded)",
		},
		&cli.BoolFlag{
			Name:  "diagnose",
			Usage: "Inspect both inputs for clipping and DC offset",
		},
		&cli.BoolFlag{
			Name:    "patches",
			Aliases: []string{"p"},
			Usage:   "Include per-patch similarities in the output",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: console, json, markdown",
			Value:   "console",
		},
		// Raw PCM input.
		&cli.IntFlag{
			Name:    "sample-rate",
			Aliases: []string{"s"},
			Usage:   "Treat inputs as raw PCM at this rate in Hz (use - for stdin)",
		},
		&cli.IntFlag{
			Name:    "bit-depth",
			Aliases: []string{"b"},
			Usage:   "Raw PCM bit depth (16, 24, or 32)",
			Value:   16,
		},
		&cli.IntFlag{
			Name:    "channels",
			Aliases: []string{"c"},
			Usage:   "Raw PCM channel count, downmixed to mono",
			Value:   1,
		},
	)

	return &cli.Command{
		Name:      "compare",
		Usage:     "Score a degraded recording against its reference",
		ArgsUsage: "<reference> <degraded>",
		Flags:     flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 2 {
				return fmt.Errorf("%w: got %d", errCompareArgs, cmd.NArg())
			}

			refPath, degPath := cmd.Args().Get(0), cmd.Args().Get(1)
			if refPath == "-" && degPath == "-" {
				return errBothStdin
			}

			engine, err := engineFromFlags(cmd)
			if err != nil {
				return err
			}

			raw, err := rawFormat(cmd)
			if err != nil {
				return err
			}

			ref, err := loadInput(ctx, refPath, raw)
			if err != nil {
				return fmt.Errorf("loading reference: %w", err)
			}

			deg, err := loadInput(ctx, degPath, raw)
			if err != nil {
				return fmt.Errorf("loading degraded: %w", err)
			}

			if ref.SampleRate != deg.SampleRate {
				return fmt.Errorf("%w: reference is %d Hz, degraded is %d Hz",
					cochlea.ErrInput, ref.SampleRate, deg.SampleRate)
			}

			refSig, degSig := ref.Signal(), deg.Signal()
			if cmd.Bool("trim") {
				refSig, degSig = vad.Trim(refSig, degSig, vad.DefaultOptions())
			}

			result, err := engine.Run(refSig.Samples, degSig.Samples, uint32(refSig.SampleRate)) //nolint:gosec // positive
			if err != nil {
				return fmt.Errorf("comparison failed: %w", err)
			}

			meta := output.ResultToMap(&result, cmd.Bool("patches"))

			if cmd.Bool("diagnose") {
				opts := diagnose.DefaultOptions()
				meta["diagnostics"] = map[string]any{
					"reference": output.DiagnosticsToMap(diagnose.Inspect(refSig.Samples, opts)),
					"degraded":  output.DiagnosticsToMap(diagnose.Inspect(degSig.Samples, opts)),
				}
			}

			return printMeta(refPath+" vs "+degPath, meta, cmd.String("format"))
		},
	}
}

func printMeta(object string, meta map[string]any, formatName string) error {
	formatter, err := format.GetFormatter(formatName)
	if err != nil {
		return err
	}

	data := &format.Data{
		Object: object,
		Meta:   meta,
	}

	return formatter.PrintAll([]*format.Data{data}, os.Stdout)
}
