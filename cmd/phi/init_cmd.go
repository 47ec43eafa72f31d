package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/planetaryhealth/phi/pkg/config"
	"github.com/urfave/cli/v2"
)

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize a new phi configuration file",
		Description: `Creates a phi.toml configuration file with the default settings and the
default weight profile. Add [weights.<name>] tables for more profiles.

Examples:
  phi init                        # Creates phi.toml in current directory
  phi init --path .phi/phi.toml   # Creates config in .phi directory
  phi init --force                # Overwrite existing config file`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Value: "phi.toml",
				Usage: "Config file path",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite existing config file",
			},
		},
		Action: runInitCmd,
	}
}

func runInitCmd(c *cli.Context) error {
	outputPath := c.String("path")

	if _, err := os.Stat(outputPath); err == nil && !c.Bool("force") {
		return fmt.Errorf("config file %q already exists (use --force to overwrite)", outputPath)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	}

	content, err := config.DefaultConfig().TOML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, content, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	color.Green("Created %s", outputPath)
	fmt.Fprintln(c.App.Writer, "Edit this file to customize weight profiles and quality thresholds.")
	return nil
}
