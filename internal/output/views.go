package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/planetaryhealth/phi/pkg/catalog"
	"github.com/planetaryhealth/phi/pkg/models"
	"github.com/planetaryhealth/phi/pkg/normalize"
	"github.com/planetaryhealth/phi/pkg/pipeline"
	"github.com/planetaryhealth/phi/pkg/series"
	"github.com/planetaryhealth/phi/pkg/supplement"
)

// FormatValue renders an optional reading, "-" when absent.
func FormatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'g', 6, 64)
}

func scoreCell(score float64, text string, colored bool) string {
	if colored {
		return ScoreColor(score, text)
	}
	return text
}

func pillarTitle(id models.PillarID) string {
	if p, ok := catalog.Default().Pillar(id); ok {
		return p.Name
	}
	return series.Humanize(string(id))
}

// ReportView renders a pipeline report: a summary, one table per pillar and
// the supplemented metrics.
func ReportView(rep *pipeline.Report, colored bool) *Document {
	title := "PHI Report"
	if rep.Site.Name != "" {
		title += ": " + rep.Site.Name
	}

	summary := &Section{Title: "Summary", Lines: [][]string{
		{"Run", rep.RunID},
		{"Input digest", rep.InputDigest},
		{"Generated", rep.GeneratedAt.Format(time.RFC3339)},
	}}
	if c := rep.Composite; c != nil {
		text := fmt.Sprintf("%.2f (%s)", c.Score, c.Interpretation)
		summary.Lines = append(summary.Lines,
			[]string{"Profile", rep.Profile},
			[]string{"PHI", scoreCell(c.Score, text, colored)},
		)
		if c.ESVMultiplier != nil {
			summary.Lines = append(summary.Lines, []string{"ESV multiplier", fmt.Sprintf("%+.4f", *c.ESVMultiplier)})
		}
	}
	q := rep.Quality
	dqs := fmt.Sprintf("%.2f (%s)", q.DQS, q.Confidence)
	if colored {
		dqs = ConfidenceColor(q.Confidence, dqs)
	}
	missing := "none"
	if len(q.MissingCritical) > 0 {
		missing = strings.Join(q.MissingCritical, ", ")
	}
	summary.Lines = append(summary.Lines,
		[]string{"DQS", dqs},
		[]string{"Completeness", fmt.Sprintf("%.0f%% (%d of %d metrics)", q.Completeness*100, q.AvailableCount, q.MetricCount)},
		[]string{"Missing critical", missing},
	)

	doc := &Document{Title: title, Sections: []Renderable{summary}, Data: rep}
	for _, ps := range rep.Series {
		doc.Sections = append(doc.Sections, metricTable(pillarTitle(ps.Pillar), rep.Pillars[ps.Pillar], ps.Series, colored))
	}
	if len(rep.Filled) > 0 {
		doc.Sections = append(doc.Sections, fillTable(rep.Filled))
	}
	return doc
}

func metricTable(title string, set models.PillarMetricSet, s series.Series, colored bool) *Table {
	rows := make([][]string, 0, set.Len())
	for i, m := range set.Metrics() {
		score := "-"
		if i < len(s) {
			score = scoreCell(float64(s[i].Score), strconv.Itoa(s[i].Score), colored)
		}
		source := m.Value.Source
		if source == "" {
			source = "-"
		}
		rows = append(rows, []string{
			m.ID,
			FormatValue(m.Value.Value),
			m.Value.Unit,
			string(m.Value.Quality),
			source,
			score,
		})
	}
	return NewTable(title, []string{"Metric", "Value", "Unit", "Quality", "Source", "Score"}, rows, nil, nil)
}

func fillTable(fills []supplement.Fill) *Table {
	rows := make([][]string, 0, len(fills))
	for _, f := range fills {
		category := f.Category
		if category == "" {
			category = "-"
		}
		rows = append(rows, []string{string(f.Pillar), f.MetricID, strconv.FormatFloat(f.Value, 'g', 6, 64), f.Unit, category})
	}
	return NewTable("Supplemented", []string{"Pillar", "Metric", "Value", "Unit", "Category"}, rows, nil, fills)
}

// BatchRow is the serialized form of one batch result.
type BatchRow struct {
	Index  int              `json:"index"`
	Report *pipeline.Report `json:"report,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// BatchView renders a batch summary, one row per input in input order.
func BatchView(results []pipeline.BatchResult, colored bool) *Table {
	rows := make([][]string, 0, len(results))
	data := make([]BatchRow, 0, len(results))
	failed := 0
	for _, res := range results {
		data = append(data, BatchRow{Index: res.Index, Report: res.Report, Error: res.ErrorText()})
		if res.Err != nil {
			failed++
			rows = append(rows, []string{strconv.Itoa(res.Index + 1), "-", "-", "-", "-", "-", res.ErrorText()})
			continue
		}
		rep := res.Report
		score, band := "-", "-"
		if c := rep.Composite; c != nil {
			score = scoreCell(c.Score, fmt.Sprintf("%.2f", c.Score), colored)
			band = c.Interpretation
		}
		site := rep.Site.Name
		if site == "" {
			site = rep.Site.ID
		}
		rows = append(rows, []string{
			strconv.Itoa(res.Index + 1),
			site,
			score,
			band,
			fmt.Sprintf("%.2f", rep.Quality.DQS),
			rep.Quality.Confidence,
			"",
		})
	}
	footer := []string{"", fmt.Sprintf("%d ok", len(results)-failed), "", "", "", "", fmt.Sprintf("%d failed", failed)}
	return NewTable("Batch", []string{"#", "Site", "PHI", "Band", "DQS", "Confidence", "Error"}, rows, footer, data)
}

// NormalizeView renders one normalization with its intermediate values.
func NormalizeView(b normalize.Breakdown, colored bool) *Section {
	source := "catalog"
	if !b.Known {
		source = "generic (uncataloged)"
	}
	polarity := "higher is better"
	if !b.Entry.HigherIsBetter {
		polarity = "lower is better"
	}
	lines := [][]string{
		{"Metric", b.MetricID},
		{"Range", fmt.Sprintf("[%g, %g] %s", b.Entry.ValidMin, b.Entry.ValidMax, b.Entry.Unit), "(" + source + ")"},
		{"Polarity", polarity},
		{"Raw", FormatValue(b.Raw)},
		{"Clamped", FormatValue(b.Clamped)},
		{"Score", scoreCell(float64(b.Score), strconv.Itoa(b.Score), colored)},
	}
	if b.Entry.OptimalMin != nil && b.Entry.OptimalMax != nil {
		lines = append(lines, []string{"Optimal", fmt.Sprintf("[%g, %g]", *b.Entry.OptimalMin, *b.Entry.OptimalMax), strconv.FormatBool(b.Optimal)})
	}
	return &Section{Title: "Normalization", Lines: lines, Data: b}
}

// SupplementView renders a supplementation result.
func SupplementView(res supplement.Result) *Document {
	doc := &Document{Title: "Supplemented Metrics", Data: res}
	for _, id := range res.Pillars.Ordered() {
		set := res.Pillars[id]
		rows := make([][]string, 0, set.Len())
		for _, m := range set.Metrics() {
			rows = append(rows, []string{m.ID, FormatValue(m.Value.Value), m.Value.Unit, string(m.Value.Quality), m.Value.Source})
		}
		doc.Sections = append(doc.Sections, NewTable(pillarTitle(id), []string{"Metric", "Value", "Unit", "Quality", "Source"}, rows, nil, nil))
	}
	doc.Sections = append(doc.Sections, fillTable(res.Filled))
	return doc
}

// SeriesView renders chart series, one table per pillar.
func SeriesView(pillars []series.PillarSeries, colored bool) *Document {
	doc := &Document{Title: "Chart Series", Data: pillars}
	for _, ps := range pillars {
		rows := make([][]string, 0, len(ps.Series))
		for _, p := range ps.Series {
			rows = append(rows, []string{p.Label, p.MetricID, scoreCell(float64(p.Score), strconv.Itoa(p.Score), colored), strconv.FormatBool(p.Measured)})
		}
		doc.Sections = append(doc.Sections, NewTable(pillarTitle(ps.Pillar), []string{"Label", "Metric", "Score", "Measured"}, rows, nil, nil))
	}
	return doc
}

// ComparisonView renders aligned per-pillar comparisons; labelA and labelB
// name the two sides.
func ComparisonView(cmp []series.PillarComparison, labelA, labelB string, colored bool) *Document {
	doc := &Document{Title: "Series Comparison", Data: cmp}
	for _, pc := range cmp {
		c := pc.Comparison
		rows := make([][]string, 0, len(c.MetricIDs))
		for i, id := range c.MetricIDs {
			rows = append(rows, []string{
				c.Labels[i],
				id,
				scoreCell(float64(c.A[i]), strconv.Itoa(c.A[i]), colored),
				scoreCell(float64(c.B[i]), strconv.Itoa(c.B[i]), colored),
				fmt.Sprintf("%+d", c.B[i]-c.A[i]),
			})
		}
		doc.Sections = append(doc.Sections, NewTable(pillarTitle(pc.Pillar), []string{"Label", "Metric", labelA, labelB, "Change"}, rows, nil, nil))
	}
	return doc
}

// CatalogView renders the metric catalog grouped by pillar.
func CatalogView(c *catalog.Catalog) *Document {
	doc := &Document{
		Title: "Metric Catalog",
		Data: map[string]any{
			"pillars": c.Pillars(),
			"metrics": c.Entries(),
		},
	}
	for _, p := range c.Pillars() {
		rows := make([][]string, 0, len(p.Metrics))
		for _, e := range c.MetricsFor(p.ID) {
			better := "higher"
			if !e.HigherIsBetter {
				better = "lower"
			}
			optimal := "-"
			if e.OptimalMin != nil && e.OptimalMax != nil {
				optimal = fmt.Sprintf("%g-%g", *e.OptimalMin, *e.OptimalMax)
			}
			rows = append(rows, []string{
				e.ID,
				e.Name,
				fmt.Sprintf("%g-%g", e.ValidMin, e.ValidMax),
				better,
				e.Unit,
				optimal,
				string(e.Criticality),
			})
		}
		title := fmt.Sprintf("%s (%s)", p.Name, p.ID.Letter())
		doc.Sections = append(doc.Sections, NewTable(title, []string{"ID", "Name", "Range", "Better", "Unit", "Optimal", "Criticality"}, rows, nil, nil))
	}
	return doc
}
