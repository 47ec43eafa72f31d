package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/planetaryhealth/phi/internal/output"
	"github.com/planetaryhealth/phi/pkg/config"
	"github.com/planetaryhealth/phi/pkg/pipeline"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

const (
	metaConfig = "config"
	metaLogger = "logger"
)

func newApp() *cli.App {
	return &cli.App{
		Name:     "phi",
		Usage:    "Planetary Health Index scoring CLI",
		Version:  version,
		Metadata: make(map[string]interface{}),
		Description: `phi turns raw environmental readings for a site into a Planetary Health
Index: metrics are normalized to 0-100, gaps are filled from external
weather and air quality data, chart series are built per pillar, and
pillar scores are combined with a weight profile. Every run also reports
a data quality score.

Pillars: A atmospheric, B biodiversity, C carbon, D degradation, E ecosystem`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"PHI_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, markdown, toon (default from config)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose output",
			},
		},
		Before: func(c *cli.Context) error {
			level := slog.LevelWarn
			if c.Bool("verbose") {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))
			c.App.Metadata[metaLogger] = logger

			// init writes the config, so it must not fail on a broken one.
			if c.Args().First() == "init" {
				return nil
			}
			cfg, path, err := config.LoadOrDefault(c.String("config"))
			if err != nil {
				return err
			}
			if path != "" {
				logger.Debug("loaded config", "path", path)
			}
			c.App.Metadata[metaConfig] = cfg
			return nil
		},
		Commands: []*cli.Command{
			normalizeCmd(),
			supplementCmd(),
			seriesCmd(),
			scoreCmd(),
			batchCmd(),
			catalogCmd(),
			watchCmd(),
			schemaCmd(),
			initCmd(),
			mcpCmd(),
		},
	}
}

func main() {
	app := newApp()
	app.ErrWriter = os.Stderr
	if err := app.Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

// getConfig returns the config loaded in Before, or the defaults when a
// command runs without it.
func getConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

func getLogger(c *cli.Context) *slog.Logger {
	if l, ok := c.App.Metadata[metaLogger].(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newRunner builds a pipeline runner from the active config. Extra options
// are applied after the config's.
func newRunner(c *cli.Context, extra ...pipeline.Option) (*pipeline.Runner, error) {
	opts, err := getConfig(c).RunnerOptions(getLogger(c))
	if err != nil {
		return nil, err
	}
	return pipeline.New(append(opts, extra...)...), nil
}

// newFormatter resolves the output format from the flag, falling back to
// the config.
func newFormatter(c *cli.Context) (*output.Formatter, error) {
	cfg := getConfig(c)
	format := c.String("format")
	if format == "" {
		format = cfg.Output.Format
	}
	colored := cfg.Output.Color && !c.Bool("no-color")
	return output.NewFormatter(output.ParseFormat(format), c.String("output"), colored)
}

// readInput reads a file argument; "-" reads stdin.
func readInput(c *cli.Context, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(c.App.Reader)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// loadInput reads and validates one site bundle.
func loadInput(c *cli.Context, path string) (pipeline.Input, error) {
	data, err := readInput(c, path)
	if err != nil {
		return pipeline.Input{}, err
	}
	in, err := pipeline.Decode(data)
	if err != nil {
		return pipeline.Input{}, fmt.Errorf("%s: %w", path, err)
	}
	return in, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
}
