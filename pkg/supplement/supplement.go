// Package supplement fills unmeasured metrics from external weather and
// air-quality data.
//
// Supplementation never mutates its input and never overwrites a measured
// value. Filled metrics are stamped with moderate quality and an "external"
// source so downstream reports can tell them apart from primary readings.
package supplement

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/planetaryhealth/phi/pkg/external"
	"github.com/planetaryhealth/phi/pkg/models"
	"gonum.org/v1/gonum/stat"
)

// SourceExternal is the provenance stamped on supplemented values.
const SourceExternal = "external"

// ErrDuplicateRule is returned when two rules target the same metric.
var ErrDuplicateRule = errors.New("duplicate supplementation rule")

// ErrInvalidRule is returned for a rule without a metric id or extractor.
var ErrInvalidRule = errors.New("invalid supplementation rule")

// Rule fills one metric from the external bundle. Extract returns nil when
// the bundle has no usable reading. Category, if set, labels the filled value
// and is appended to its description.
type Rule struct {
	MetricID    string
	Unit        string
	Description string
	Extract     func(*external.Bundle) *float64
	Category    func(float64) string
}

// Registry is an immutable set of rules keyed by metric id.
type Registry struct {
	rules map[string]Rule
	order []string
}

// NewRegistry builds a registry. Rule order is kept for listing.
func NewRegistry(rules ...Rule) (*Registry, error) {
	r := &Registry{rules: make(map[string]Rule, len(rules))}
	for _, rule := range rules {
		if rule.MetricID == "" || rule.Extract == nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRule, rule.MetricID)
		}
		if _, dup := r.rules[rule.MetricID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRule, rule.MetricID)
		}
		r.rules[rule.MetricID] = rule
		r.order = append(r.order, rule.MetricID)
	}
	return r, nil
}

// Lookup returns the rule for a metric id.
func (r *Registry) Lookup(metricID string) (Rule, bool) {
	if r == nil {
		return Rule{}, false
	}
	rule, ok := r.rules[metricID]
	return rule, ok
}

// Len returns the number of rules.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Rules returns the rules in registration order.
func (r *Registry) Rules() []Rule {
	if r == nil {
		return nil
	}
	out := make([]Rule, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.rules[id])
	}
	return out
}

// DefaultRules returns the built-in rules.
func DefaultRules() []Rule {
	return []Rule{
		{
			MetricID:    "aqi",
			Unit:        "US AQI",
			Description: "Real-time Air Quality Index",
			Extract:     (*external.Bundle).PrimaryAQI,
			Category:    external.AQICategory,
		},
		{
			MetricID:    "uv_index",
			Unit:        "index",
			Description: "UV index",
			Extract:     UVIndex,
			Category:    external.UVCategory,
		},
		{
			MetricID:    "cloud_fraction",
			Unit:        "fraction",
			Description: "Total cloud cover",
			Extract:     (*external.Bundle).CloudFraction,
		},
		{
			MetricID:    "soil_moisture",
			Unit:        "m³/m³",
			Description: "Mean volumetric soil moisture, 0-27 cm",
			Extract:     SoilMoistureMean,
		},
		{
			MetricID:    "lst",
			Unit:        "°C",
			Description: "Current air temperature",
			Extract:     (*external.Bundle).CurrentTemperature,
		},
	}
}

// UVIndex returns today's forecast maximum UV index, falling back to the
// air-quality source's current reading.
func UVIndex(b *external.Bundle) *float64 {
	if v := b.TodayMaxUV(); v != nil {
		return v
	}
	return b.CurrentUV()
}

// SoilMoistureMean averages the soil moisture depth bands that are present.
// Without any band it falls back to the bundle's soil summary, and returns
// nil when that is missing too.
func SoilMoistureMean(b *external.Bundle) *float64 {
	var values []float64
	for _, v := range b.SoilMoistureBands() {
		if v != nil {
			values = append(values, *v)
		}
	}
	if len(values) == 0 {
		return b.SoilSummary()
	}
	mean := stat.Mean(values, nil)
	return &mean
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := NewRegistry(DefaultRules()...)
	if err != nil {
		panic(err)
	}
	return r
})

// DefaultRegistry returns the registry of built-in rules.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

// Fill records one supplemented metric.
type Fill struct {
	Pillar   models.PillarID `json:"pillar"`
	MetricID string          `json:"metric"`
	Value    float64         `json:"value"`
	Unit     string          `json:"unit"`
	Category string          `json:"category,omitempty"`
}

// Result is the outcome of a supplementation pass.
type Result struct {
	Pillars models.Pillars `json:"pillars"`
	Filled  []Fill         `json:"filled"`
}

// Engine applies a registry of rules.
type Engine struct {
	registry *Registry
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry replaces the built-in rules.
func WithRegistry(r *Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithLogger sets the logger used for fill telemetry.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine with the built-in rules.
func New(opts ...Option) *Engine {
	e := &Engine{
		registry: DefaultRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's rules.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Supplement returns a copy of pillars with unmeasured metrics filled from
// ext. Measured metrics, metrics without a rule, and rules that find no
// reading are left untouched. A nil bundle or empty registry yields a plain
// copy.
func (e *Engine) Supplement(pillars models.Pillars, ext *external.Bundle) Result {
	out := pillars.Clone()
	if out == nil {
		out = models.Pillars{}
	}
	res := Result{Pillars: out, Filled: []Fill{}}
	if ext == nil || e.registry.Len() == 0 {
		return res
	}

	for _, pid := range out.Ordered() {
		set := out[pid]
		changed := false
		for _, m := range set.Metrics() {
			if m.Value.Value != nil {
				continue
			}
			rule, ok := e.registry.Lookup(m.ID)
			if !ok {
				continue
			}
			v := e.extract(rule, ext)
			if v == nil {
				continue
			}
			fill := Fill{Pillar: pid, MetricID: m.ID, Value: *v, Unit: rule.Unit}
			desc := rule.Description
			if rule.Category != nil {
				fill.Category = rule.Category(*v)
				desc = fmt.Sprintf("%s (%s)", desc, fill.Category)
			}
			set.Set(m.ID, models.MetricValue{
				Value:       v,
				Unit:        rule.Unit,
				Quality:     models.QualityModerate,
				Description: desc,
				Source:      SourceExternal,
			})
			changed = true
			res.Filled = append(res.Filled, fill)
			e.logger.Debug("metric supplemented", "pillar", pid, "metric", m.ID, "value", *v, "unit", rule.Unit)
		}
		if changed {
			out[pid] = set
		}
	}
	return res
}

// extract runs a rule, turning panics and non-finite results into "no value".
func (e *Engine) extract(rule Rule, ext *external.Bundle) (v *float64) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Warn("supplementation rule failed", "metric", rule.MetricID, "panic", p)
			v = nil
		}
	}()
	got := rule.Extract(ext)
	if got == nil || math.IsNaN(*got) || math.IsInf(*got, 0) {
		return nil
	}
	val := *got
	return &val
}

// Supplement fills unmeasured metrics using the built-in rules.
func Supplement(pillars models.Pillars, ext *external.Bundle) Result {
	return New().Supplement(pillars, ext)
}
