// Package quality scores how complete and trustworthy a metric bundle is.
package quality

import (
	"math"

	"github.com/planetaryhealth/phi/pkg/catalog"
	"github.com/planetaryhealth/phi/pkg/models"
	"gonum.org/v1/gonum/stat"
)

// Confidence levels derived from the data quality score.
const (
	ConfidenceHigh            = "high"
	ConfidenceInvestmentGrade = "investment_grade"
	ConfidenceAcceptable      = "acceptable"
	ConfidenceLow             = "low"
)

// Thresholds are the DQS cut-offs for each confidence level.
type Thresholds struct {
	High            float64 `json:"high" koanf:"high" toml:"high" validate:"lte=100,gtefield=InvestmentGrade"`
	InvestmentGrade float64 `json:"investment_grade" koanf:"investment_grade" toml:"investment_grade" validate:"gtefield=Acceptable"`
	Acceptable      float64 `json:"acceptable" koanf:"acceptable" toml:"acceptable" validate:"gte=0"`
}

// DefaultThresholds returns the standard cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 85, InvestmentGrade: 70, Acceptable: 50}
}

// Level maps a DQS onto a confidence level.
func (t Thresholds) Level(dqs float64) string {
	switch {
	case dqs >= t.High:
		return ConfidenceHigh
	case dqs >= t.InvestmentGrade:
		return ConfidenceInvestmentGrade
	case dqs >= t.Acceptable:
		return ConfidenceAcceptable
	default:
		return ConfidenceLow
	}
}

// Availability scores a metric reading for DQS: good 1, moderate 0.5, poor
// 0.25. A reading whose quality is unknown scores like poor; a missing
// reading scores 0.
func Availability(v models.MetricValue) float64 {
	if !v.HasValue() {
		return 0
	}
	switch v.Quality {
	case models.QualityGood:
		return 1
	case models.QualityModerate:
		return 0.5
	default:
		return 0.25
	}
}

// Assess derives a quality flag for a raw reading from the catalog entry:
// outside the valid range is poor, inside the optimal range is good, and
// anything else is moderate. Entries without an optimal range rate every
// in-range reading good.
func Assess(e catalog.Entry, value *float64) models.Quality {
	if value == nil || math.IsNaN(*value) {
		return models.QualityUnknown
	}
	v := *value
	if v < e.ValidMin || v > e.ValidMax {
		return models.QualityPoor
	}
	if e.OptimalMin == nil || e.OptimalMax == nil {
		return models.QualityGood
	}
	if e.InOptimalRange(v) {
		return models.QualityGood
	}
	return models.QualityModerate
}

// Completeness returns the share of metrics that carry a reading, in [0,1].
// An empty bundle has completeness 0.
func Completeness(pillars models.Pillars) float64 {
	total, available := 0, 0
	for _, set := range pillars {
		for _, m := range set.Metrics() {
			total++
			if m.Value.HasValue() {
				available++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(available) / float64(total)
}

// MetricQuality is the DQS contribution of one catalog metric.
type MetricQuality struct {
	MetricID     string              `json:"metric"`
	Pillar       models.PillarID     `json:"pillar"`
	Present      bool                `json:"present"`
	Available    bool                `json:"available"`
	Quality      models.Quality      `json:"quality"`
	Criticality  catalog.Criticality `json:"criticality"`
	Weight       float64             `json:"weight"`
	Availability float64             `json:"availability"`
}

// Assessment is the data quality summary of a bundle.
type Assessment struct {
	DQS             float64         `json:"dqs"`
	Confidence      string          `json:"confidence"`
	Completeness    float64         `json:"completeness"`
	MetricCount     int             `json:"metric_count"`
	AvailableCount  int             `json:"available_count"`
	MissingCritical []string        `json:"missing_critical"`
	Metrics         []MetricQuality `json:"metrics"`
}

// Assessor computes assessments against a catalog.
type Assessor struct {
	catalog    *catalog.Catalog
	thresholds Thresholds
}

// Option configures an Assessor.
type Option func(*Assessor)

// WithCatalog assesses against a custom catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(a *Assessor) {
		if c != nil {
			a.catalog = c
		}
	}
}

// WithThresholds overrides the confidence cut-offs.
func WithThresholds(t Thresholds) Option {
	return func(a *Assessor) {
		a.thresholds = t
	}
}

// New creates an Assessor backed by the default catalog.
func New(opts ...Option) *Assessor {
	a := &Assessor{catalog: catalog.Default(), thresholds: DefaultThresholds()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assess scores a bundle. Every catalog metric takes part in the DQS,
// weighted by criticality; metrics absent from the bundle count as
// unavailable. Metrics the catalog does not define only affect completeness.
func (a *Assessor) Assess(pillars models.Pillars) Assessment {
	found := index(pillars)
	entries := a.catalog.Entries()

	out := Assessment{
		Completeness:    Completeness(pillars),
		MetricCount:     pillars.MetricCount(),
		MissingCritical: []string{},
		Metrics:         make([]MetricQuality, 0, len(entries)),
	}
	for _, set := range pillars {
		for _, m := range set.Metrics() {
			if m.Value.HasValue() {
				out.AvailableCount++
			}
		}
	}

	scores := make([]float64, 0, len(entries))
	weights := make([]float64, 0, len(entries))
	for _, e := range entries {
		v, present := found[e.ID]
		mq := MetricQuality{
			MetricID:     e.ID,
			Pillar:       e.Pillar,
			Present:      present,
			Available:    v.HasValue(),
			Quality:      models.QualityUnknown,
			Criticality:  e.Criticality,
			Weight:       e.Criticality.Weight(),
			Availability: Availability(v),
		}
		if present {
			mq.Quality = v.Quality
		}
		if e.Criticality == catalog.CriticalityCritical && !mq.Available {
			out.MissingCritical = append(out.MissingCritical, e.ID)
		}
		out.Metrics = append(out.Metrics, mq)
		scores = append(scores, mq.Availability)
		weights = append(weights, mq.Weight)
	}

	if len(scores) > 0 {
		out.DQS = round2(stat.Mean(scores, weights) * 100)
	}
	out.Confidence = a.thresholds.Level(out.DQS)
	return out
}

// MissingCritical lists critical catalog metrics without a reading, in
// catalog order.
func (a *Assessor) MissingCritical(pillars models.Pillars) []string {
	return a.Assess(pillars).MissingCritical
}

// index returns the first value seen for each metric id, scanning pillars in
// display order.
func index(pillars models.Pillars) map[string]models.MetricValue {
	out := make(map[string]models.MetricValue)
	for _, id := range pillars.Ordered() {
		for _, m := range pillars[id].Metrics() {
			if _, seen := out[m.ID]; !seen {
				out[m.ID] = m.Value
			}
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

var defaultAssessor = New()

// DQS assesses a bundle against the embedded catalog.
func DQS(pillars models.Pillars) Assessment {
	return defaultAssessor.Assess(pillars)
}

// MissingCritical lists critical metrics without a reading against the
// embedded catalog.
func MissingCritical(pillars models.Pillars) []string {
	return defaultAssessor.MissingCritical(pillars)
}
