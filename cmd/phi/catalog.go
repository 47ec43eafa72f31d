package main

import (
	"fmt"

	"github.com/planetaryhealth/phi/internal/output"
	"github.com/planetaryhealth/phi/pkg/catalog"
	"github.com/planetaryhealth/phi/pkg/models"
	"github.com/planetaryhealth/phi/pkg/pipeline"
	"github.com/urfave/cli/v2"
)

func catalogCmd() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "List pillars and metric ranges, units, polarity and criticality",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "pillar",
				Aliases: []string{"p"},
				Usage:   "Only this pillar (name or letter A-E)",
			},
		},
		Action: runCatalogCmd,
	}
}

func runCatalogCmd(c *cli.Context) error {
	cat := catalog.Default()
	if name := c.String("pillar"); name != "" {
		id, ok := models.ParsePillarID(name)
		if !ok {
			return fmt.Errorf("unknown pillar %q", name)
		}
		p, ok := cat.Pillar(id)
		if !ok {
			return fmt.Errorf("pillar %q is not in the catalog", id)
		}
		sub, err := catalog.New([]catalog.Pillar{p}, cat.MetricsFor(id))
		if err != nil {
			return err
		}
		cat = sub
	}

	formatter, err := newFormatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(output.CatalogView(cat))
}

func schemaCmd() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the JSON Schema of site bundles",
		Action: func(c *cli.Context) error {
			_, err := c.App.Writer.Write(pipeline.Schema())
			return err
		},
	}
}
