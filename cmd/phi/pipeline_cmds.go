package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/fatih/color"
	"github.com/planetaryhealth/phi/internal/output"
	"github.com/planetaryhealth/phi/internal/progress"
	"github.com/planetaryhealth/phi/pkg/catalog"
	"github.com/planetaryhealth/phi/pkg/external"
	"github.com/planetaryhealth/phi/pkg/models"
	"github.com/planetaryhealth/phi/pkg/pipeline"
	"github.com/planetaryhealth/phi/pkg/series"
	"github.com/planetaryhealth/phi/pkg/supplement"
	"github.com/urfave/cli/v2"
)

func supplementCmd() *cli.Command {
	return &cli.Command{
		Name:      "supplement",
		Aliases:   []string{"fill"},
		Usage:     "Fill null metrics from external weather and air quality data",
		ArgsUsage: "<site.json|->",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "external",
				Aliases: []string{"e"},
				Usage:   "External data bundle (JSON); overrides the bundle's own external section",
			},
		},
		Action: runSupplementCmd,
	}
}

func runSupplementCmd(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected one site bundle")
	}
	in, err := loadInput(c, c.Args().First())
	if err != nil {
		return err
	}
	if path := c.String("external"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open external data: %w", err)
		}
		defer f.Close()
		ext, err := external.Decode(f)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		in.External = ext
	}
	if in.External == nil {
		getLogger(c).Warn("no external data given, nothing can be filled")
	}

	formatter, err := newFormatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	engine := supplement.New(supplement.WithLogger(getLogger(c)))
	res := engine.Supplement(in.Pillars, in.External)
	if err := formatter.Output(output.SupplementView(res)); err != nil {
		return err
	}
	if formatter.Format() == output.FormatText {
		formatter.Success("Filled %d metric(s)", len(res.Filled))
	}
	return nil
}

func seriesCmd() *cli.Command {
	return &cli.Command{
		Name:      "series",
		Usage:     "Build per-pillar chart series from a site bundle",
		ArgsUsage: "<site.json|->",
		Description: `Builds one chart axis per metric in bundle order. --all-axes switches
to catalog order and adds every catalog metric the bundle lacks as an
unmeasured axis. --compare aligns the bundle before and after filling
gaps from its external section.

Examples:
  phi series site.json --pillar B
  phi series site.json --all-axes -f json
  phi series site.json --compare`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "pillar",
				Aliases: []string{"p"},
				Usage:   "Only this pillar (name or letter A-E)",
			},
			&cli.BoolFlag{
				Name:  "all-axes",
				Usage: "Use catalog order and show every catalog metric",
			},
			&cli.BoolFlag{
				Name:  "compare",
				Usage: "Compare scores before and after supplementation",
			},
		},
		Action: runSeriesCmd,
	}
}

func runSeriesCmd(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected one site bundle")
	}
	in, err := loadInput(c, c.Args().First())
	if err != nil {
		return err
	}

	var only models.PillarID
	if name := c.String("pillar"); name != "" {
		id, ok := models.ParsePillarID(name)
		if !ok {
			return fmt.Errorf("unknown pillar %q", name)
		}
		only = id
	}

	pillars := in.Pillars
	if c.Bool("all-axes") {
		pillars = catalog.Default().ArrangePillars(pillars, true)
	}

	formatter, err := newFormatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if c.Bool("compare") {
		filled := supplement.New(supplement.WithLogger(getLogger(c))).Supplement(pillars, in.External)
		cmp := series.ComparePillars(pillars, filled.Pillars)
		if only != "" {
			cmp = slices.DeleteFunc(cmp, func(pc series.PillarComparison) bool { return pc.Pillar != only })
		}
		return formatter.Output(output.ComparisonView(cmp, "Measured", "Supplemented", formatter.Colored()))
	}

	all := series.BuildPillars(pillars)
	if only != "" {
		all = slices.DeleteFunc(all, func(ps series.PillarSeries) bool { return ps.Pillar != only })
	}
	return formatter.Output(output.SeriesView(all, formatter.Colored()))
}

func scoreCmd() *cli.Command {
	return &cli.Command{
		Name:      "score",
		Usage:     "Run the full pipeline for one site",
		ArgsUsage: "<site.json|->",
		Description: `Validates the site bundle, fills null metrics from its external section,
builds chart series, combines pillar_scores into the composite PHI and
assesses data quality.

Examples:
  phi score site.json
  phi score site.json --profile forest -f json
  cat site.json | phi score -`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "profile",
				Usage: "Weight profile; overrides the bundle's profile",
			},
			&cli.BoolFlag{
				Name:  "no-supplement",
				Usage: "Skip filling null metrics from external data",
			},
			&cli.Float64Flag{
				Name:  "min-dqs",
				Usage: "Exit with an error when the data quality score is below this value",
			},
		},
		Action: runScoreCmd,
	}
}

func runScoreCmd(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected one site bundle")
	}
	in, err := loadInput(c, c.Args().First())
	if err != nil {
		return err
	}
	if p := c.String("profile"); p != "" {
		in.Profile = p
	}

	var extra []pipeline.Option
	if c.Bool("no-supplement") {
		extra = append(extra, pipeline.WithSupplementation(false))
	}
	runner, err := newRunner(c, extra...)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()
	rep, err := runner.Run(ctx, in)
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()
	if err := formatter.Output(output.ReportView(rep, formatter.Colored())); err != nil {
		return err
	}

	if c.IsSet("min-dqs") && rep.Quality.DQS < c.Float64("min-dqs") {
		return fmt.Errorf("data quality score %.2f is below the required %.2f", rep.Quality.DQS, c.Float64("min-dqs"))
	}
	return nil
}

func batchCmd() *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "Score many sites concurrently",
		ArgsUsage: "<site.json|dir>...",
		Description: `Scores every bundle given. Directories contribute their *.json files.
Results keep the argument order. A bundle that fails to load or score
is reported in its row and does not stop the others.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "Concurrent workers (default from config, 0 = number of CPUs)",
			},
			&cli.BoolFlag{
				Name:  "fail-fast",
				Usage: "Exit with an error if any site failed",
			},
		},
		Action: runBatchCmd,
	}
}

func runBatchCmd(c *cli.Context) error {
	files, err := expandInputs(c.Args().Slice())
	if err != nil {
		return err
	}
	if len(files) == 0 {
		color.Yellow("No site bundles found")
		return nil
	}

	var extra []pipeline.Option
	if c.IsSet("workers") {
		extra = append(extra, pipeline.WithWorkers(c.Int("workers")))
	}
	runner, err := newRunner(c, extra...)
	if err != nil {
		return err
	}

	// Load errors are kept per item so the report lines up with the files.
	inputs := make([]pipeline.Input, 0, len(files))
	positions := make([]int, 0, len(files))
	loadErrs := make(map[int]error)
	for i, path := range files {
		in, err := loadInput(c, path)
		if err != nil {
			loadErrs[i] = err
			continue
		}
		if in.Site.ID == "" && in.Site.Name == "" {
			in.Site.ID = filepath.Base(path)
		}
		inputs = append(inputs, in)
		positions = append(positions, i)
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	tracker := progress.NewTracker("Scoring sites...", len(inputs))
	scored := runner.RunBatch(ctx, inputs, func(res pipeline.BatchResult) {
		if res.Err != nil {
			tracker.Fail()
			return
		}
		tracker.Tick()
	})
	if err := ctx.Err(); err != nil {
		tracker.FinishError(err)
	} else {
		tracker.FinishSuccess()
	}

	results := make([]pipeline.BatchResult, len(files))
	for i, err := range loadErrs {
		results[i] = pipeline.BatchResult{Index: i, Err: err}
	}
	for j, res := range scored {
		res.Index = positions[j]
		results[positions[j]] = res
	}

	formatter, err := newFormatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()
	if err := formatter.Output(output.BatchView(results, formatter.Colored())); err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed > 0 && c.Bool("fail-fast") {
		return fmt.Errorf("%d of %d sites failed", failed, len(results))
	}
	return nil
}

// expandInputs resolves batch arguments: files are kept, directories are
// replaced by their *.json files in name order.
func expandInputs(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errors.New("expected at least one site bundle or directory")
	}
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid path %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.json"))
		if err != nil {
			return nil, err
		}
		slices.Sort(matches)
		files = append(files, matches...)
	}
	return files, nil
}
