package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/planetaryhealth/phi/pkg/pipeline"
	"github.com/planetaryhealth/phi/pkg/watch"
	"github.com/urfave/cli/v2"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Re-score site bundles in a directory when they change",
		ArgsUsage: "[dir]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Value: watch.DefaultDebounce,
				Usage: "Quiet period before a changed bundle is scored",
			},
		},
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	dir := "."
	if c.Args().Len() > 0 {
		dir = c.Args().First()
	}
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	runner, err := newRunner(c)
	if err != nil {
		return err
	}

	watcher, err := watch.NewWatcher(absPath,
		watch.WithDebounce(c.Duration("debounce")),
		watch.WithLogger(getLogger(c)),
	)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()

	ctx, cancel := signalContext(c)
	defer cancel()

	watcher.SetCallback(func(path string) {
		rel, err := filepath.Rel(absPath, path)
		if err != nil {
			rel = path
		}
		fmt.Fprintln(c.App.Writer, watchLine(ctx, runner, path, rel))
	})

	color.Cyan("Watching for changes in %s...", absPath)
	color.Cyan("Press Ctrl+C to stop")

	err = watcher.Start(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(c.App.Writer, "\nStopping watch...")
		return nil
	}
	return err
}

// watchLine scores one changed bundle and summarizes it on a single line.
func watchLine(ctx context.Context, runner *pipeline.Runner, path, label string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return color.RedString("%s: %v", label, err)
	}
	in, err := pipeline.Decode(data)
	if err != nil {
		return color.RedString("%s: %v", label, err)
	}
	rep, err := runner.Run(ctx, in)
	if err != nil {
		return color.RedString("%s: %v", label, err)
	}

	parts := []string{label}
	if c := rep.Composite; c != nil {
		parts = append(parts, fmt.Sprintf("PHI %.2f (%s)", c.Score, c.Interpretation))
	}
	parts = append(parts, fmt.Sprintf("DQS %.2f (%s)", rep.Quality.DQS, rep.Quality.Confidence))
	if n := len(rep.Filled); n > 0 {
		parts = append(parts, fmt.Sprintf("%d filled", n))
	}
	if n := len(rep.Quality.MissingCritical); n > 0 {
		parts = append(parts, fmt.Sprintf("%d critical missing", n))
	}
	return strings.Join(parts, "  ")
}
