//nolint:wrapcheck
package main

import (
	"context"
	"os"

	"github.com/farcloser/primordium/format"
	"github.com/urfave/cli/v3"

	"github.com/farcloser/cochlea/internal/integration/binary"
	"github.com/farcloser/cochlea/internal/output"
)

//nolint:gochecknoglobals // external decoders, effectively const
var decoders = []string{"ffmpeg", "ffprobe"}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Report installation status: external decoders and the regression model",
		Flags: append(engineFlags(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: console, json, markdown",
				Value:   "console",
			},
		),
		Action: func(_ context.Context, cmd *cli.Command) error {
			formatter, err := format.GetFormatter(cmd.String("format"))
			if err != nil {
				return err
			}

			tools := map[string]any{}

			for _, name := range decoders {
				if path, found := binary.Available(name); found {
					tools[name] = path
				} else {
					tools[name] = "missing (only PCM WAV inputs can be read)"
				}
			}

			meta := map[string]any{"decoders": tools}

			engine, engineErr := engineFromFlags(cmd)
			if engineErr == nil {
				meta["engine"] = output.ConfigToMap(engine.Config(), engine.ModelKind())
			} else {
				meta["engine"] = engineErr.Error()
			}

			if err := formatter.PrintAll([]*format.Data{{Object: "installation", Meta: meta}}, os.Stdout); err != nil {
				return err
			}

			return engineErr
		},
	}
}
