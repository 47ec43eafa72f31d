// Package normalize converts raw metric readings into comparable 0-100 scores.
//
// A reading is clamped into the metric's valid range, rescaled linearly to
// [0,1], inverted when lower readings are better, and scaled to an integer
// percentage rounded half up. Missing readings score 0.
package normalize

import (
	"math"

	"github.com/planetaryhealth/phi/pkg/catalog"
)

// Normalizer scores readings against a metric catalog. The zero value is not
// usable; construct with New.
type Normalizer struct {
	catalog *catalog.Catalog
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithCatalog scores against a custom catalog instead of the embedded one.
func WithCatalog(c *catalog.Catalog) Option {
	return func(n *Normalizer) {
		if c != nil {
			n.catalog = c
		}
	}
}

// New creates a Normalizer backed by the default catalog.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{catalog: catalog.Default()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Catalog returns the catalog the normalizer scores against.
func (n *Normalizer) Catalog() *catalog.Catalog {
	return n.catalog
}

// Normalize scores value for metricID. A nil or NaN value scores 0. Metric
// ids the catalog does not define are scored permissively against a generic
// [0,100] higher-is-better range.
func (n *Normalizer) Normalize(value *float64, metricID string) int {
	if value == nil || math.IsNaN(*value) {
		return 0
	}
	entry, _ := n.catalog.LookupOrGeneric(metricID)
	return score(*value, entry)
}

// NormalizeFloat is Normalize for a present reading.
func (n *Normalizer) NormalizeFloat(value float64, metricID string) int {
	return n.Normalize(&value, metricID)
}

// Breakdown explains how a score was derived.
type Breakdown struct {
	MetricID string        `json:"metric_id"`
	Known    bool          `json:"known"`
	Entry    catalog.Entry `json:"entry"`
	Raw      *float64      `json:"raw"`
	Clamped  *float64      `json:"clamped,omitempty"`
	Score    int           `json:"score"`
	Optimal  bool          `json:"in_optimal_range"`
}

// Breakdown scores value for metricID and reports the intermediate values.
func (n *Normalizer) Breakdown(value *float64, metricID string) Breakdown {
	entry, known := n.catalog.LookupOrGeneric(metricID)
	b := Breakdown{
		MetricID: metricID,
		Known:    known,
		Entry:    entry,
	}
	if value == nil {
		return b
	}
	raw := *value
	b.Raw = &raw
	if math.IsNaN(raw) {
		return b
	}
	c := clamp(raw, entry.ValidMin, entry.ValidMax)
	b.Clamped = &c
	b.Score = score(raw, entry)
	b.Optimal = entry.InOptimalRange(raw)
	return b
}

func score(v float64, e catalog.Entry) int {
	v = clamp(v, e.ValidMin, e.ValidMax)
	ratio := (v - e.ValidMin) / (e.ValidMax - e.ValidMin)
	if !e.HigherIsBetter {
		ratio = 1 - ratio
	}
	s := int(math.Floor(ratio*100 + 0.5))
	return clampInt(s, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var defaultNormalizer = New()

// Normalize scores value for metricID against the embedded catalog.
func Normalize(value *float64, metricID string) int {
	return defaultNormalizer.Normalize(value, metricID)
}

// NormalizeFloat scores a present reading against the embedded catalog.
func NormalizeFloat(value float64, metricID string) int {
	return defaultNormalizer.NormalizeFloat(value, metricID)
}

// Explain returns the score breakdown against the embedded catalog.
func Explain(value *float64, metricID string) Breakdown {
	return defaultNormalizer.Breakdown(value, metricID)
}

// Default returns the normalizer backed by the embedded catalog.
func Default() *Normalizer {
	return defaultNormalizer
}
