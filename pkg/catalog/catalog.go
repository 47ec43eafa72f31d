// Package catalog holds the static metric configuration: valid ranges,
// polarity, criticality, and the ordered metric lists of each pillar.
//
// The default catalog is embedded at build time, loaded once, and never
// mutated afterwards, so concurrent readers need no synchronization.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/planetaryhealth/phi/pkg/models"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embedded []byte

// ErrInvalidCatalog wraps every validation failure reported by Load.
var ErrInvalidCatalog = errors.New("invalid metric catalog")

// Criticality ranks how much a metric's availability matters for data quality.
type Criticality string

const (
	CriticalityCritical   Criticality = "critical"
	CriticalityImportant  Criticality = "important"
	CriticalitySupporting Criticality = "supporting"
	CriticalityAuxiliary  Criticality = "auxiliary"
)

// Weight returns the criticality weight used in data quality scoring.
func (c Criticality) Weight() float64 {
	switch c {
	case CriticalityCritical:
		return 1.0
	case CriticalityImportant:
		return 0.7
	case CriticalityAuxiliary:
		return 0.2
	default:
		return 0.4
	}
}

// Entry is the configuration of one metric.
type Entry struct {
	ID             string          `yaml:"id" json:"id" validate:"required"`
	Name           string          `yaml:"name" json:"name" validate:"required"`
	Pillar         models.PillarID `yaml:"pillar" json:"pillar" validate:"required"`
	ValidMin       float64         `yaml:"min" json:"min"`
	ValidMax       float64         `yaml:"max" json:"max" validate:"gtfield=ValidMin"`
	HigherIsBetter bool            `yaml:"higher_is_better" json:"higher_is_better"`
	Unit           string          `yaml:"unit" json:"unit"`
	OptimalMin     *float64        `yaml:"optimal_min" json:"optimal_min,omitempty"`
	OptimalMax     *float64        `yaml:"optimal_max" json:"optimal_max,omitempty"`
	Criticality    Criticality     `yaml:"criticality" json:"criticality" validate:"required,oneof=critical important supporting auxiliary"`
}

// GenericEntry is the permissive fallback used for metric ids the catalog
// does not know: range [0,100], higher is better.
func GenericEntry(id string) Entry {
	return Entry{
		ID:             id,
		Name:           id,
		ValidMin:       0,
		ValidMax:       100,
		HigherIsBetter: true,
		Criticality:    CriticalitySupporting,
	}
}

// InOptimalRange reports whether v lies in the entry's optimal range.
// Entries without an optimal range report false.
func (e Entry) InOptimalRange(v float64) bool {
	if e.OptimalMin == nil || e.OptimalMax == nil {
		return false
	}
	return v >= *e.OptimalMin && v <= *e.OptimalMax
}

func (e Entry) clone() Entry {
	out := e
	if e.OptimalMin != nil {
		v := *e.OptimalMin
		out.OptimalMin = &v
	}
	if e.OptimalMax != nil {
		v := *e.OptimalMax
		out.OptimalMax = &v
	}
	return out
}

// Pillar describes one pillar and the display order of its metrics.
type Pillar struct {
	ID          models.PillarID `yaml:"id" json:"id" validate:"required"`
	Name        string          `yaml:"name" json:"name" validate:"required"`
	Description string          `yaml:"description" json:"description"`
	Color       string          `yaml:"color" json:"color" validate:"omitempty,hexcolor"`
	Metrics     []string        `yaml:"metrics" json:"metrics" validate:"required,min=1,unique"`
	CoreMetrics []string        `yaml:"core_metrics" json:"core_metrics" validate:"unique"`
}

func (p Pillar) clone() Pillar {
	out := p
	out.Metrics = append([]string(nil), p.Metrics...)
	out.CoreMetrics = append([]string(nil), p.CoreMetrics...)
	return out
}

type document struct {
	Pillars []Pillar `yaml:"pillars"`
	Metrics []Entry  `yaml:"metrics"`
}

// Catalog is an immutable metric table.
type Catalog struct {
	entries []Entry
	index   map[string]int
	pillars []Pillar
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	return MustLoad(bytes.NewReader(embedded))
})

// Default returns the embedded catalog. It panics on first use if the
// embedded table is invalid.
func Default() *Catalog {
	return defaultCatalog()
}

// MustLoad is Load that panics on error.
func MustLoad(r io.Reader) *Catalog {
	c, err := Load(r)
	if err != nil {
		panic(err)
	}
	return c
}

// Load parses and validates a YAML catalog.
func Load(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return New(doc.Pillars, doc.Metrics)
}

// New builds a catalog from pillar definitions and metric entries. Entries
// keep the given order.
func New(pillars []Pillar, entries []Entry) (*Catalog, error) {
	validate := validator.New()

	c := &Catalog{index: make(map[string]int, len(entries))}

	seenPillar := make(map[models.PillarID]bool)
	for _, p := range pillars {
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("%w: pillar %q: %v", ErrInvalidCatalog, p.ID, err)
		}
		if _, ok := models.ParsePillarID(string(p.ID)); !ok {
			return nil, fmt.Errorf("%w: unknown pillar id %q", ErrInvalidCatalog, p.ID)
		}
		if seenPillar[p.ID] {
			return nil, fmt.Errorf("%w: pillar %q defined twice", ErrInvalidCatalog, p.ID)
		}
		seenPillar[p.ID] = true
	}

	for _, e := range entries {
		if err := validate.Struct(e); err != nil {
			return nil, fmt.Errorf("%w: metric %q: %v", ErrInvalidCatalog, e.ID, err)
		}
		if _, dup := c.index[e.ID]; dup {
			return nil, fmt.Errorf("%w: metric %q defined twice", ErrInvalidCatalog, e.ID)
		}
		if !seenPillar[e.Pillar] {
			return nil, fmt.Errorf("%w: metric %q references undefined pillar %q", ErrInvalidCatalog, e.ID, e.Pillar)
		}
		if e.OptimalMin != nil && e.OptimalMax != nil && *e.OptimalMin > *e.OptimalMax {
			return nil, fmt.Errorf("%w: metric %q optimal range is inverted", ErrInvalidCatalog, e.ID)
		}
		c.index[e.ID] = len(c.entries)
		c.entries = append(c.entries, e.clone())
	}

	// Pillars are stored in the fixed display order regardless of file order.
	for _, id := range models.AllPillars() {
		for _, p := range pillars {
			if p.ID != id {
				continue
			}
			for _, m := range append(append([]string(nil), p.Metrics...), p.CoreMetrics...) {
				i, ok := c.index[m]
				if !ok {
					return nil, fmt.Errorf("%w: pillar %q lists unknown metric %q", ErrInvalidCatalog, p.ID, m)
				}
				if c.entries[i].Pillar != p.ID {
					return nil, fmt.Errorf("%w: pillar %q lists metric %q owned by %q", ErrInvalidCatalog, p.ID, m, c.entries[i].Pillar)
				}
			}
			c.pillars = append(c.pillars, p.clone())
		}
	}

	return c, nil
}

// Lookup returns the entry for a metric id.
func (c *Catalog) Lookup(id string) (Entry, bool) {
	i, ok := c.index[id]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i].clone(), true
}

// LookupOrGeneric returns the entry for id, or GenericEntry(id) when the
// catalog does not define it.
func (c *Catalog) LookupOrGeneric(id string) (Entry, bool) {
	if e, ok := c.Lookup(id); ok {
		return e, true
	}
	return GenericEntry(id), false
}

// Entries returns all entries in catalog order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.clone()
	}
	return out
}

// Len returns the number of metrics.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Pillar returns a pillar definition.
func (c *Catalog) Pillar(id models.PillarID) (Pillar, bool) {
	for _, p := range c.pillars {
		if p.ID == id {
			return p.clone(), true
		}
	}
	return Pillar{}, false
}

// Pillars returns all pillar definitions in display order.
func (c *Catalog) Pillars() []Pillar {
	out := make([]Pillar, len(c.pillars))
	for i, p := range c.pillars {
		out[i] = p.clone()
	}
	return out
}

// MetricsFor returns the entries of a pillar in display order.
func (c *Catalog) MetricsFor(id models.PillarID) []Entry {
	p, ok := c.Pillar(id)
	if !ok {
		return nil
	}
	out := make([]Entry, 0, len(p.Metrics))
	for _, m := range p.Metrics {
		out = append(out, c.entries[c.index[m]].clone())
	}
	return out
}

// Arrange reorders a pillar's metric set into catalog display order. Metrics
// the pillar does not define follow in their original order. With fill set,
// catalog metrics missing from the set are added as unmeasured values so a
// chart always shows every axis.
func (c *Catalog) Arrange(id models.PillarID, set models.PillarMetricSet, fill bool) models.PillarMetricSet {
	var out models.PillarMetricSet
	placed := make(map[string]bool)

	if p, ok := c.Pillar(id); ok {
		for _, m := range p.Metrics {
			if v, ok := set.Get(m); ok {
				out.Set(m, v.Clone())
				placed[m] = true
				continue
			}
			if fill {
				e := c.entries[c.index[m]]
				out.Set(m, models.MetricValue{Unit: e.Unit, Quality: models.QualityUnknown})
				placed[m] = true
			}
		}
	}

	for _, m := range set.Metrics() {
		if !placed[m.ID] {
			out.Set(m.ID, m.Value.Clone())
		}
	}
	return out
}

// ArrangePillars applies Arrange to every pillar. With fill set, catalog
// pillars absent from pillars are added with all their metrics unmeasured.
func (c *Catalog) ArrangePillars(pillars models.Pillars, fill bool) models.Pillars {
	out := make(models.Pillars, len(pillars))
	for id, set := range pillars {
		out[id] = c.Arrange(id, set, fill)
	}
	if fill {
		for _, p := range c.pillars {
			if _, ok := out[p.ID]; !ok {
				out[p.ID] = c.Arrange(p.ID, models.PillarMetricSet{}, true)
			}
		}
	}
	return out
}
