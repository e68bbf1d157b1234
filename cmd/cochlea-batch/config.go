package main

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v3"

	"github.com/farcloser/cochlea"
)

var errUnknownKeys = errors.New("unknown configuration keys")

// batchConfig mirrors the optional TOML file. Command line flags take precedence.
//
//	[engine]
//	mode = "audio"
//	model = "models/audio.yaml"
//	aggregation = "percentile"
//	percentile = 0.25
//	resample = false
//	workers = 2
//
//	[batch]
//	workers = 8
//	extensions = [".wav", ".flac"]
//	timeout = "2m"
type batchConfig struct {
	Engine engineSection `toml:"engine"`
	Batch  batchSection  `toml:"batch"`
}

type engineSection struct {
	Mode        string  `toml:"mode"`
	Model       string  `toml:"model"`
	Aggregation string  `toml:"aggregation"`
	Percentile  float64 `toml:"percentile"`
	Resample    bool    `toml:"resample"`
	Workers     int     `toml:"workers"`
}

type batchSection struct {
	Workers    int      `toml:"workers"`
	Extensions []string `toml:"extensions"`
	Timeout    duration `toml:"timeout"`
}

// duration decodes TOML strings such as "90s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	d.Duration = parsed

	return nil
}

func defaultConfig() batchConfig {
	return batchConfig{
		Engine: engineSection{
			Mode:        string(cochlea.ModeSpeech),
			Aggregation: string(cochlea.AggregationMean),
			Percentile:  0.5,
			Resample:    true,
		},
		Batch: batchSection{
			Workers:    runtime.NumCPU(),
			Extensions: []string{".wav", ".flac", ".mp3", ".m4a", ".aac", ".ogg"},
			Timeout:    duration{60 * time.Second},
		},
	}
}

// loadConfig reads path over the defaults. A missing file leaves the defaults untouched.
func loadConfig(path string) (batchConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	meta, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return defaultConfig(), nil
	}

	if err != nil {
		return cfg, fmt.Errorf("%w: %s: %w", cochlea.ErrConfiguration, path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}

		return cfg, fmt.Errorf("%w: %s: %w: %s", cochlea.ErrConfiguration, path, errUnknownKeys, strings.Join(keys, ", "))
	}

	for i, ext := range cfg.Batch.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		cfg.Batch.Extensions[i] = ext
	}

	return cfg, nil
}

// applyFlags overrides file values with the flags the user actually set.
func (c *batchConfig) applyFlags(cmd *cli.Command) {
	if cmd.IsSet("mode") {
		c.Engine.Mode = cmd.String("mode")
	}

	if cmd.IsSet("model") {
		c.Engine.Model = cmd.String("model")
	}

	if cmd.IsSet("aggregation") {
		c.Engine.Aggregation = cmd.String("aggregation")
	}

	if cmd.IsSet("percentile") {
		c.Engine.Percentile = cmd.Float("percentile")
	}

	if cmd.IsSet("resample") {
		c.Engine.Resample = cmd.Bool("resample")
	}

	if cmd.IsSet("engine-workers") {
		c.Engine.Workers = cmd.Int("engine-workers")
	}

	if cmd.IsSet("workers") {
		c.Batch.Workers = cmd.Int("workers")
	}

	if cmd.IsSet("timeout") {
		c.Batch.Timeout = duration{cmd.Duration("timeout")}
	}

	c.Batch.Workers = max(c.Batch.Workers, 1)
}

func (c *batchConfig) engine() (*cochlea.Engine, error) {
	mode, err := cochlea.ParseMode(c.Engine.Mode)
	if err != nil {
		return nil, err
	}

	cfg, err := cochlea.ModeConfig(mode, c.Engine.Model)
	if err != nil {
		return nil, err
	}

	cfg.Aggregation = cochlea.Aggregation(c.Engine.Aggregation)
	cfg.Percentile = c.Engine.Percentile
	cfg.Resample = c.Engine.Resample
	cfg.Workers = c.Engine.Workers

	return cochlea.NewEngine(cfg)
}
