package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/planetaryhealth/phi/internal/output"
	"github.com/planetaryhealth/phi/pkg/aggregate"
	"github.com/planetaryhealth/phi/pkg/catalog"
	"github.com/planetaryhealth/phi/pkg/external"
	"github.com/planetaryhealth/phi/pkg/models"
	"github.com/planetaryhealth/phi/pkg/pipeline"
	"github.com/planetaryhealth/phi/pkg/series"
)

// Common input structures for tools.
//
// Metric and external payloads are declared as plain JSON maps so the
// generated input schema accepts every encoding the pipeline accepts; they
// are decoded into the typed models inside the handlers.

// BaseInput is embedded by every tool input.
type BaseInput struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// NormalizeInput is the input of normalize_metric.
type NormalizeInput struct {
	BaseInput
	Metric string   `json:"metric" jsonschema:"Metric id, e.g. ndvi, aod, tree_cover. Unknown ids use a generic 0-100 range."`
	Value  *float64 `json:"value" jsonschema:"Raw reading in the metric's unit. Null scores 0."`
}

// SupplementInput is the input of supplement_metrics.
type SupplementInput struct {
	BaseInput
	Pillars  map[string]map[string]any `json:"pillars" jsonschema:"Pillar name or letter to metric id to value. A value is a number, null, or an object with value, unit, quality."`
	External map[string]any            `json:"external,omitempty" jsonschema:"External bundle with air_quality, weather and soil sections."`
}

// SeriesInput is the input of build_series.
type SeriesInput struct {
	BaseInput
	Pillars  map[string]map[string]any `json:"pillars" jsonschema:"Pillar name or letter to metric id to value."`
	Pillar   string                    `json:"pillar,omitempty" jsonschema:"Return only this pillar's series."`
	AllAxes  bool                      `json:"all_axes,omitempty" jsonschema:"Use catalog order and add every catalog metric missing from the input as an unmeasured axis."`
	Compare  bool                      `json:"compare,omitempty" jsonschema:"Return before/after supplementation comparisons instead of plain series."`
	External map[string]any            `json:"external,omitempty" jsonschema:"External weather and air quality bundle used by compare."`
}

// AggregateInput is the input of aggregate_scores.
type AggregateInput struct {
	BaseInput
	PillarScores map[string]float64 `json:"pillar_scores" jsonschema:"Pillar name or letter to pillar score (0-100)."`
	Weights      map[string]float64 `json:"weights,omitempty" jsonschema:"Inline pillar weights. Take precedence over profile."`
	Profile      string             `json:"profile,omitempty" jsonschema:"Named weight profile. Defaults to the server's default profile."`
}

// ScoreSiteInput is the input of score_site.
type ScoreSiteInput struct {
	BaseInput
	Site         map[string]any            `json:"site,omitempty" jsonschema:"Site metadata: id, name, latitude, longitude, area_ha."`
	Pillars      map[string]map[string]any `json:"pillars" jsonschema:"Pillar name or letter to metric id to value."`
	External     map[string]any            `json:"external,omitempty" jsonschema:"External bundle used to fill null metrics."`
	PillarScores map[string]float64        `json:"pillar_scores,omitempty" jsonschema:"Externally computed pillar scores for the composite."`
	Profile      string                    `json:"profile,omitempty" jsonschema:"Named weight profile."`
	Weights      map[string]float64        `json:"weights,omitempty" jsonschema:"Inline pillar weights."`
}

// CatalogInput is the input of describe_catalog.
type CatalogInput struct {
	BaseInput
	Pillar string `json:"pillar,omitempty" jsonschema:"Only describe this pillar (name or letter A-E)."`
}

// Helper functions

func getFormat(input BaseInput) output.Format {
	switch input.Format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func formatOutput(data any, format output.Format) (string, error) {
	switch format {
	case output.FormatJSON:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out), nil
	case output.FormatMarkdown:
		out, err := output.MarshalTOON(data)
		if err != nil {
			return "", err
		}
		return "```\n" + string(out) + "\n```", nil
	default:
		out, err := output.MarshalTOON(data)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

// recode converts loosely typed tool arguments into a typed model by a JSON
// round trip, so the model's own decoding rules apply.
func recode(src, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func decodePillars(raw map[string]map[string]any) (models.Pillars, error) {
	var p models.Pillars
	if err := recode(raw, &p); err != nil {
		return nil, fmt.Errorf("pillars: %w", err)
	}
	if p == nil {
		p = models.Pillars{}
	}
	return p, nil
}

func decodeExternal(raw map[string]any) (*external.Bundle, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	b, err := external.DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("external: %w", err)
	}
	return b, nil
}

// Tool handlers

func (s *Server) handleNormalizeMetric(ctx context.Context, req *mcp.CallToolRequest, input NormalizeInput) (*mcp.CallToolResult, any, error) {
	if input.Metric == "" {
		return toolError("metric is required")
	}
	return toolResult(s.normalizer.Breakdown(input.Value, input.Metric), getFormat(input.BaseInput))
}

func (s *Server) handleSupplementMetrics(ctx context.Context, req *mcp.CallToolRequest, input SupplementInput) (*mcp.CallToolResult, any, error) {
	pillars, err := decodePillars(input.Pillars)
	if err != nil {
		return toolError(err.Error())
	}
	ext, err := decodeExternal(input.External)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(s.supplementer.Supplement(pillars, ext), getFormat(input.BaseInput))
}

func (s *Server) handleBuildSeries(ctx context.Context, req *mcp.CallToolRequest, input SeriesInput) (*mcp.CallToolResult, any, error) {
	pillars, err := decodePillars(input.Pillars)
	if err != nil {
		return toolError(err.Error())
	}
	var id models.PillarID
	if input.Pillar != "" {
		parsed, ok := models.ParsePillarID(input.Pillar)
		if !ok {
			return toolError(fmt.Sprintf("unknown pillar %q", input.Pillar))
		}
		id = parsed
	}
	if input.AllAxes {
		pillars = s.normalizer.Catalog().ArrangePillars(pillars, true)
	}

	if input.Compare {
		ext, err := decodeExternal(input.External)
		if err != nil {
			return toolError(err.Error())
		}
		filled := s.supplementer.Supplement(pillars, ext)
		cmp := series.ComparePillarsWith(s.normalizer, pillars, filled.Pillars)
		if id != "" {
			cmp = slices.DeleteFunc(cmp, func(pc series.PillarComparison) bool { return pc.Pillar != id })
		}
		return toolResult(cmp, getFormat(input.BaseInput))
	}

	all := series.BuildPillarsWith(s.normalizer, pillars)
	if id == "" {
		return toolResult(all, getFormat(input.BaseInput))
	}
	for _, ps := range all {
		if ps.Pillar == id {
			return toolResult(ps, getFormat(input.BaseInput))
		}
	}
	return toolResult(series.PillarSeries{Pillar: id, Series: series.Series{}}, getFormat(input.BaseInput))
}

func (s *Server) handleAggregateScores(ctx context.Context, req *mcp.CallToolRequest, input AggregateInput) (*mcp.CallToolResult, any, error) {
	if len(input.PillarScores) == 0 {
		return toolError("pillar_scores is required")
	}
	scores, err := aggregate.ParseWeights(input.PillarScores)
	if err != nil {
		return toolError("pillar_scores: " + err.Error())
	}
	profile, weights, err := s.runner.Weights(pipeline.Input{Weights: input.Weights, Profile: input.Profile})
	if err != nil {
		return toolError(err.Error())
	}
	result := struct {
		Profile string `json:"profile"`
		aggregate.Composite
	}{profile, aggregate.Compute(scores, weights)}
	return toolResult(result, getFormat(input.BaseInput))
}

func (s *Server) handleScoreSite(ctx context.Context, req *mcp.CallToolRequest, input ScoreSiteInput) (*mcp.CallToolResult, any, error) {
	doc := map[string]any{"pillars": input.Pillars}
	if input.Pillars == nil {
		doc["pillars"] = map[string]any{}
	}
	if len(input.Site) > 0 {
		doc["site"] = input.Site
	}
	if len(input.External) > 0 {
		doc["external"] = input.External
	}
	if len(input.PillarScores) > 0 {
		doc["pillar_scores"] = input.PillarScores
	}
	if input.Profile != "" {
		doc["profile"] = input.Profile
	}
	if len(input.Weights) > 0 {
		doc["weights"] = input.Weights
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return toolError(err.Error())
	}
	in, err := pipeline.Decode(data)
	if err != nil {
		return toolError(err.Error())
	}
	rep, err := s.runner.Run(ctx, in)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(rep, getFormat(input.BaseInput))
}

// catalogDescription is the describe_catalog payload.
type catalogDescription struct {
	Pillars []catalog.Pillar `json:"pillars"`
	Metrics []catalog.Entry  `json:"metrics"`
}

func (s *Server) handleDescribeCatalog(ctx context.Context, req *mcp.CallToolRequest, input CatalogInput) (*mcp.CallToolResult, any, error) {
	c := s.normalizer.Catalog()
	if input.Pillar == "" {
		return toolResult(catalogDescription{Pillars: c.Pillars(), Metrics: c.Entries()}, getFormat(input.BaseInput))
	}

	id, ok := models.ParsePillarID(input.Pillar)
	if !ok {
		return toolError(fmt.Sprintf("unknown pillar %q", input.Pillar))
	}
	p, ok := c.Pillar(id)
	if !ok {
		return toolError(fmt.Sprintf("pillar %q is not in the catalog", id))
	}
	return toolResult(catalogDescription{Pillars: []catalog.Pillar{p}, Metrics: c.MetricsFor(id)}, getFormat(input.BaseInput))
}
