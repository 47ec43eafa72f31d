package main

import (
	"fmt"

	"github.com/planetaryhealth/phi/internal/mcpserver"
	"github.com/urfave/cli/v2"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes the PHI pipeline
as tools that LLMs can invoke. Weight profiles and quality thresholds
come from the active config.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "phi": {
        "command": "phi",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - normalize_metric     Score one reading on the 0-100 scale
  - supplement_metrics   Fill null metrics from external data
  - build_series         Per-pillar chart series
  - aggregate_scores     Composite PHI from pillar scores
  - score_site           Full pipeline for one site
  - describe_catalog     Metric ranges, units and criticality`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "manifest",
				Usage: "Print the server.json manifest and exit",
			},
		},
		Action: runMCPCmd,
	}
}

func runMCPCmd(c *cli.Context) error {
	if c.Bool("manifest") {
		data, err := mcpserver.GenerateManifest(version)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.App.Writer, string(data))
		return err
	}

	runner, err := newRunner(c)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(c)
	defer cancel()

	server := mcpserver.NewServer(version, mcpserver.WithRunner(runner))
	return server.Run(ctx)
}
