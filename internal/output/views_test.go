package output

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/planetaryhealth/phi/pkg/catalog"
	"github.com/planetaryhealth/phi/pkg/external"
	"github.com/planetaryhealth/phi/pkg/models"
	"github.com/planetaryhealth/phi/pkg/normalize"
	"github.com/planetaryhealth/phi/pkg/pipeline"
	"github.com/planetaryhealth/phi/pkg/series"
	"github.com/planetaryhealth/phi/pkg/supplement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport(t *testing.T) *pipeline.Report {
	t.Helper()
	in, err := pipeline.Decode([]byte(`{
  "site": {"name": "Kakamega"},
  "pillars": {
    "atmospheric": {"aqi": null, "aod": 0.3},
    "carbon": {"tree_cover": 12.5}
  },
  "external": {"air_quality": {"primary_aqi": 42}},
  "pillar_scores": {"A": 70, "C": 40}
}`))
	require.NoError(t, err)
	rep, err := pipeline.New().Run(context.Background(), in)
	require.NoError(t, err)
	return rep
}

func render(t *testing.T, r Renderable, format Format) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, NewWriterFormatter(format, &buf, false).Output(r))
	return buf.String()
}

func TestReportView(t *testing.T) {
	rep := sampleReport(t)
	doc := ReportView(rep, false)

	assert.Equal(t, "PHI Report: Kakamega", doc.Title)
	assert.Same(t, rep, doc.RenderData())
	// summary, two pillars, supplemented
	assert.Len(t, doc.Sections, 4)

	text := render(t, doc, FormatText)
	for _, want := range []string{"Atmospheric", "Carbon", "aqi", "external", "22.00 (Poor)", "tree_cover"} {
		assert.Contains(t, text, want)
	}

	md := render(t, doc, FormatMarkdown)
	assert.True(t, strings.HasPrefix(md, "# PHI Report: Kakamega\n"))
	assert.Contains(t, md, "| aqi | 42 | US AQI | moderate | external | 92 |")

	js := render(t, doc, FormatJSON)
	assert.Contains(t, js, `"input_digest": "`+rep.InputDigest+`"`)
}

func TestReportView_NoComposite(t *testing.T) {
	rep, err := pipeline.New().Run(context.Background(), pipeline.Input{})
	require.NoError(t, err)

	text := render(t, ReportView(rep, false), FormatText)
	assert.NotContains(t, text, "PHI  ")
	assert.Contains(t, text, "ndvi, tree_cover, soil_moisture, human_modification")
}

func TestBatchView(t *testing.T) {
	results := []pipeline.BatchResult{
		{Index: 0, Report: sampleReport(t)},
		{Index: 1, Err: errors.New("unknown weight profile: \"tundra\"")},
	}
	table := BatchView(results, false)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"1", "Kakamega", "22.00", "Poor"}, table.Rows[0][:4])
	assert.Contains(t, table.Rows[1][6], "tundra")
	assert.Equal(t, "1 failed", table.Footer[6])

	rows, ok := table.RenderData().([]BatchRow)
	require.True(t, ok)
	assert.Equal(t, "", rows[0].Error)
	assert.Nil(t, rows[1].Report)

	assert.Contains(t, render(t, table, FormatJSON), `"error": "unknown weight profile`)
}

func TestNormalizeView(t *testing.T) {
	s := NormalizeView(normalize.Explain(models.Float(0.8), "ndvi"), false)
	text := render(t, s, FormatText)
	assert.Contains(t, text, "higher is better")
	assert.Contains(t, text, "90")

	s = NormalizeView(normalize.Explain(nil, "made_up"), false)
	text = render(t, s, FormatText)
	assert.Contains(t, text, "generic (uncataloged)")
	assert.NotContains(t, text, "Optimal")
}

func TestSupplementView(t *testing.T) {
	res := supplement.Supplement(models.Pillars{
		models.PillarAtmospheric: models.NewPillarMetricSet(models.Metric{ID: "aqi"}),
	}, nil)
	doc := SupplementView(res)

	require.Len(t, doc.Sections, 2)
	md := render(t, doc, FormatMarkdown)
	assert.Contains(t, md, "| aqi | - |")
	assert.Contains(t, md, "## Supplemented")
}

func TestComparisonView(t *testing.T) {
	before := models.Pillars{models.PillarAtmospheric: models.NewPillarMetricSet(
		models.Metric{ID: "aqi"},
		models.Metric{ID: "aod", Value: models.MetricValue{Value: models.Float(0.3)}},
	)}
	after := supplement.Supplement(before, &external.Bundle{AirQuality: &external.AirQuality{PrimaryAQI: external.N(42)}})

	doc := ComparisonView(series.ComparePillars(before, after.Pillars), "Measured", "Supplemented", false)
	require.Len(t, doc.Sections, 1)
	md := render(t, doc, FormatMarkdown)
	assert.Contains(t, md, "| Label | Metric | Measured | Supplemented | Change |")
	assert.Contains(t, md, "| Aqi | aqi | 0 | 92 | +92 |")
	assert.Contains(t, md, "| Aod | aod | 70 | 70 | +0 |")
}

func TestSupplementView_FillCategory(t *testing.T) {
	res := supplement.Supplement(models.Pillars{
		models.PillarAtmospheric: models.NewPillarMetricSet(models.Metric{ID: "aqi"}, models.Metric{ID: "cloud_fraction"}),
	}, &external.Bundle{
		AirQuality: &external.AirQuality{PrimaryAQI: external.N(120)},
		Weather:    &external.Weather{Current: &external.Current{CloudCover: &external.Reading{Value: external.N(50)}}},
	})

	md := render(t, SupplementView(res), FormatMarkdown)
	assert.Contains(t, md, "| atmospheric | aqi | 120 | US AQI | unhealthy_sensitive |")
	assert.Contains(t, md, "| atmospheric | cloud_fraction | 0.5 | fraction | - |")
}

func TestSeriesView(t *testing.T) {
	pillars := series.BuildPillars(models.Pillars{
		models.PillarBiodiversity: models.NewPillarMetricSet(
			models.Metric{ID: "ndvi", Value: models.MetricValue{Value: models.Float(0.8)}},
			models.Metric{ID: "evi"},
		),
	})
	md := render(t, SeriesView(pillars, false), FormatMarkdown)
	assert.Contains(t, md, "| Ndvi | ndvi | 90 | true |")
	assert.Contains(t, md, "| Evi | evi | 0 | false |")
}

func TestCatalogView(t *testing.T) {
	doc := CatalogView(catalog.Default())
	assert.Len(t, doc.Sections, 5)

	md := render(t, doc, FormatMarkdown)
	assert.Contains(t, md, "(A)")
	assert.Contains(t, md, "| aqi | Air Quality Index | 0-500 | lower | US AQI | 0-50 | important |")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "-", FormatValue(nil))
	assert.Equal(t, "0.22", FormatValue(models.Float(0.22)))
	assert.Equal(t, "1200", FormatValue(models.Float(1200)))
}
