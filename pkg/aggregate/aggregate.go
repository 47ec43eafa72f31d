// Package aggregate combines pillar scores into a composite index.
//
// Pillar scores and weights both come from outside this package. Aggregate
// performs no validation: weights are not required to sum to 1, missing
// pillars are skipped, and the result is not clamped.
package aggregate

import (
	"fmt"
	"math"
	"slices"

	"github.com/planetaryhealth/phi/pkg/models"
)

// DefaultProfile is the name of the built-in equal-weight profile.
const DefaultProfile = "default"

// Weights maps each pillar to its weight in the composite.
type Weights map[models.PillarID]float64

// DefaultWeights returns equal weights for the five pillars.
func DefaultWeights() Weights {
	w := make(Weights, 5)
	for _, p := range models.AllPillars() {
		w[p] = 0.20
	}
	return w
}

// Sum returns the total weight. It is informational only.
func (w Weights) Sum() float64 {
	var s float64
	for _, id := range orderedIDs(w) {
		s += w[id]
	}
	return s
}

// Normalized reports whether the weights sum to 1 within tolerance.
func (w Weights) Normalized() bool {
	return math.Abs(w.Sum()-1) < 1e-6
}

// Clone returns a copy.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// ParseWeights converts a name-keyed weight table, as read from config, into
// Weights. Keys may be pillar names or legacy letters.
func ParseWeights(raw map[string]float64) (Weights, error) {
	w := make(Weights, len(raw))
	for key, v := range raw {
		id, ok := models.ParsePillarID(key)
		if !ok {
			return nil, fmt.Errorf("unknown pillar %q in weights", key)
		}
		if _, dup := w[id]; dup {
			return nil, fmt.Errorf("pillar %q weighted twice", id)
		}
		w[id] = v
	}
	return w, nil
}

// Aggregate returns the weighted sum of pillar scores over pillars present in
// both maps. Terms are added in display pillar order, then other ids sorted,
// so the same input always yields the same bits.
func Aggregate(pillarScores, weights map[models.PillarID]float64) float64 {
	var total float64
	for _, id := range orderedIDs(pillarScores) {
		if w, ok := weights[id]; ok {
			total += w * pillarScores[id]
		}
	}
	return total
}

// orderedIDs returns the keys of m: the five pillars in display order, then
// any other ids sorted.
func orderedIDs(m map[models.PillarID]float64) []models.PillarID {
	ids := make([]models.PillarID, 0, len(m))
	known := make(map[models.PillarID]bool, len(m))
	for _, id := range models.AllPillars() {
		known[id] = true
		if _, ok := m[id]; ok {
			ids = append(ids, id)
		}
	}
	var extra []models.PillarID
	for id := range m {
		if !known[id] {
			extra = append(extra, id)
		}
	}
	slices.Sort(extra)
	return append(ids, extra...)
}

// Composite is an overall score with its inputs and interpretation.
type Composite struct {
	Score          float64                     `json:"score"`
	PillarScores   map[models.PillarID]float64 `json:"pillar_scores"`
	Weights        Weights                     `json:"weights"`
	WeightSum      float64                     `json:"weight_sum"`
	Excluded       []models.PillarID           `json:"excluded,omitempty"`
	Interpretation string                      `json:"interpretation"`
	Color          string                      `json:"color"`
	ESVMultiplier  *float64                    `json:"esv_multiplier"`
}

// Compute aggregates pillar scores and derives the interpretation, display
// color and ESV multiplier of the result. Pillars with a score but no weight
// are listed in Excluded.
func Compute(pillarScores map[models.PillarID]float64, weights Weights) Composite {
	c := Composite{
		Score:        Aggregate(pillarScores, weights),
		PillarScores: make(map[models.PillarID]float64, len(pillarScores)),
		Weights:      weights.Clone(),
		WeightSum:    weights.Sum(),
	}
	for id, s := range pillarScores {
		c.PillarScores[id] = s
		if _, ok := weights[id]; !ok {
			c.Excluded = append(c.Excluded, id)
		}
	}
	slices.Sort(c.Excluded)
	c.Interpretation = Interpret(c.Score)
	c.Color = Color(c.Score)
	if m, ok := ESVMultiplier(c.Score); ok {
		c.ESVMultiplier = &m
	}
	return c
}

// Band is one interpretation range.
type Band struct {
	Min         float64
	Label       string
	Color       string
	Description string
}

// Bands lists the interpretation bands from best to worst.
var Bands = []Band{
	{80, "Excellent", "#27ae60", "Ecosystem in excellent health"},
	{60, "Good", "#2ecc71", "Ecosystem functioning well"},
	{40, "Moderate", "#f39c12", "Some concerns, monitoring needed"},
	{20, "Poor", "#e74c3c", "Significant degradation"},
	{math.Inf(-1), "Critical", "#c0392b", "Urgent intervention needed"},
}

// UnavailableColor is used when no score exists.
const UnavailableColor = "#95a5a6"

// BandFor returns the band containing score.
func BandFor(score float64) Band {
	for _, b := range Bands {
		if score >= b.Min {
			return b
		}
	}
	return Bands[len(Bands)-1]
}

// Interpret returns the band label for score.
func Interpret(score float64) string {
	return BandFor(score).Label
}

// Color returns the band hex color for score.
func Color(score float64) string {
	return BandFor(score).Color
}

const (
	esvSensitivity  = 0.6
	esvAcceleration = 0.15
)

// ESVMultiplier converts an index score into an ecosystem service value
// multiplier: ((phi-50)/100) * k * (1 + a*ln(phi/50)) with k=0.6, a=0.15.
// Scores at or below zero have no multiplier. The result is rounded to four
// decimals.
func ESVMultiplier(phi float64) (float64, bool) {
	if math.IsNaN(phi) || phi <= 0 {
		return 0, false
	}
	phi = math.Max(phi, 1)
	base := (phi - 50) / 100
	m := base * esvSensitivity * (1 + esvAcceleration*math.Log(phi/50))
	if math.IsInf(m, 0) || math.IsNaN(m) {
		return 0, false
	}
	return math.Round(m*10000) / 10000, true
}
