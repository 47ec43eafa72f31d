// Package series builds chart-ready score series from pillar metric sets.
//
// A series has exactly one point per metric in the set, in the set's order.
// Unmeasured metrics appear with score 0 so chart axes stay stable.
package series

import (
	"strings"

	"github.com/planetaryhealth/phi/pkg/models"
	"github.com/planetaryhealth/phi/pkg/normalize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Point is one axis of a radar chart.
type Point struct {
	Label    string `json:"label"`
	MetricID string `json:"metric"`
	Score    int    `json:"score"`
	Measured bool   `json:"measured"`
}

// Series is an ordered list of points.
type Series []Point

// Labels returns the point labels in order.
func (s Series) Labels() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.Label
	}
	return out
}

// Values returns the point scores in order.
func (s Series) Values() []int {
	out := make([]int, len(s))
	for i, p := range s {
		out[i] = p.Score
	}
	return out
}

// Humanize turns a metric id into a display label: underscores become
// spaces and each word is title-cased.
func Humanize(id string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(id, "_", " "))
}

// Build scores a metric set against the embedded catalog.
func Build(metrics models.PillarMetricSet) Series {
	return BuildWith(normalize.Default(), metrics)
}

// BuildWith scores a metric set with n.
func BuildWith(n *normalize.Normalizer, metrics models.PillarMetricSet) Series {
	out := make(Series, 0, metrics.Len())
	for _, m := range metrics.Metrics() {
		out = append(out, Point{
			Label:    Humanize(m.ID),
			MetricID: m.ID,
			Score:    n.Normalize(m.Value.Value, m.ID),
			Measured: m.Value.HasValue(),
		})
	}
	return out
}

// PillarSeries is the series of one pillar.
type PillarSeries struct {
	Pillar models.PillarID `json:"pillar"`
	Series Series          `json:"series"`
}

// BuildPillars builds a series for every pillar, in display order.
func BuildPillars(pillars models.Pillars) []PillarSeries {
	return BuildPillarsWith(normalize.Default(), pillars)
}

// BuildPillarsWith is BuildPillars with a custom normalizer.
func BuildPillarsWith(n *normalize.Normalizer, pillars models.Pillars) []PillarSeries {
	ids := pillars.Ordered()
	out := make([]PillarSeries, 0, len(ids))
	for _, id := range ids {
		out = append(out, PillarSeries{Pillar: id, Series: BuildWith(n, pillars[id])})
	}
	return out
}

// Comparison aligns two metric sets on a shared axis list, e.g. a site
// against a baseline or the same site before and after supplementation.
type Comparison struct {
	Labels    []string `json:"labels"`
	MetricIDs []string `json:"metrics"`
	A         []int    `json:"a"`
	B         []int    `json:"b"`
}

// Compare builds a comparison over the union of metric ids: a's ids in
// order, then ids only b has. A metric missing from one side scores 0 there.
func Compare(a, b models.PillarMetricSet) Comparison {
	return CompareWith(normalize.Default(), a, b)
}

// CompareWith is Compare with a custom normalizer.
func CompareWith(n *normalize.Normalizer, a, b models.PillarMetricSet) Comparison {
	ids := a.IDs()
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range b.IDs() {
		if !seen[id] {
			ids = append(ids, id)
			seen[id] = true
		}
	}

	c := Comparison{
		Labels:    make([]string, len(ids)),
		MetricIDs: ids,
		A:         make([]int, len(ids)),
		B:         make([]int, len(ids)),
	}
	for i, id := range ids {
		c.Labels[i] = Humanize(id)
		if v, ok := a.Get(id); ok {
			c.A[i] = n.Normalize(v.Value, id)
		}
		if v, ok := b.Get(id); ok {
			c.B[i] = n.Normalize(v.Value, id)
		}
	}
	return c
}

// PillarComparison is the comparison of one pillar.
type PillarComparison struct {
	Pillar     models.PillarID `json:"pillar"`
	Comparison Comparison      `json:"comparison"`
}

// ComparePillars compares each pillar of a with the same pillar of b, over
// every pillar either side has, in display order.
func ComparePillars(a, b models.Pillars) []PillarComparison {
	return ComparePillarsWith(normalize.Default(), a, b)
}

// ComparePillarsWith is ComparePillars with a custom normalizer.
func ComparePillarsWith(n *normalize.Normalizer, a, b models.Pillars) []PillarComparison {
	union := make(models.Pillars, len(a)+len(b))
	for id := range a {
		union[id] = models.PillarMetricSet{}
	}
	for id := range b {
		union[id] = models.PillarMetricSet{}
	}
	ids := union.Ordered()
	out := make([]PillarComparison, 0, len(ids))
	for _, id := range ids {
		out = append(out, PillarComparison{Pillar: id, Comparison: CompareWith(n, a[id], b[id])})
	}
	return out
}
