package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/planetaryhealth/phi/internal/output"
	"github.com/planetaryhealth/phi/pkg/normalize"
	"github.com/urfave/cli/v2"
)

func normalizeCmd() *cli.Command {
	return &cli.Command{
		Name:      "normalize",
		Aliases:   []string{"norm"},
		Usage:     "Score one raw reading on the 0-100 scale",
		ArgsUsage: "<metric> <value|null>",
		Description: `Normalizes a raw reading with the metric catalog. Readings outside the
valid range are clamped; lower-is-better metrics are inverted. Unknown
metric ids use a generic 0-100 higher-is-better range.

Examples:
  phi normalize ndvi 0.72
  phi normalize aqi 42 -f json
  phi normalize tree_cover null`,
		Action: runNormalizeCmd,
	}
}

func runNormalizeCmd(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("expected <metric> <value>, got %d arguments", c.Args().Len())
	}
	metric := c.Args().Get(0)
	value, err := parseReading(c.Args().Get(1))
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	b := normalize.Explain(value, metric)
	if !b.Known {
		getLogger(c).Warn("metric not in catalog, using generic range", "metric", metric)
	}
	return formatter.Output(output.NormalizeView(b, formatter.Colored()))
}

// parseReading parses a CLI reading. "null", "none" and "-" mean missing.
func parseReading(s string) (*float64, error) {
	switch strings.ToLower(s) {
	case "null", "none", "-", "":
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return &v, nil
}
