package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// PillarID identifies one of the five top-level environmental categories.
type PillarID string

const (
	PillarAtmospheric  PillarID = "atmospheric"
	PillarBiodiversity PillarID = "biodiversity"
	PillarCarbon       PillarID = "carbon"
	PillarDegradation  PillarID = "degradation"
	PillarEcosystem    PillarID = "ecosystem"
)

// AllPillars returns the pillars in display order.
func AllPillars() []PillarID {
	return []PillarID{
		PillarAtmospheric,
		PillarBiodiversity,
		PillarCarbon,
		PillarDegradation,
		PillarEcosystem,
	}
}

var pillarLetters = map[string]PillarID{
	"a": PillarAtmospheric,
	"b": PillarBiodiversity,
	"c": PillarCarbon,
	"d": PillarDegradation,
	"e": PillarEcosystem,
}

// ParsePillarID resolves a pillar name. Besides the canonical names it
// accepts the single-letter ids (A-E) and the combined "A_atmospheric" keys
// used by older scoring payloads.
func ParsePillarID(s string) (PillarID, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, p := range AllPillars() {
		if key == string(p) {
			return p, true
		}
	}
	if p, ok := pillarLetters[key]; ok {
		return p, true
	}
	if letter, name, found := strings.Cut(key, "_"); found {
		if p, ok := pillarLetters[letter]; ok && string(p) == name {
			return p, true
		}
	}
	return "", false
}

// Letter returns the legacy single-letter id for the pillar.
func (p PillarID) Letter() string {
	for letter, id := range pillarLetters {
		if id == p {
			return strings.ToUpper(letter)
		}
	}
	return ""
}

// Pillars maps each pillar to its metric set.
type Pillars map[PillarID]PillarMetricSet

// Clone returns a deep copy.
func (p Pillars) Clone() Pillars {
	if p == nil {
		return nil
	}
	out := make(Pillars, len(p))
	for id, set := range p {
		out[id] = set.Clone()
	}
	return out
}

// Equal reports whether both hold the same pillars with equal metric sets.
func (p Pillars) Equal(o Pillars) bool {
	if len(p) != len(o) {
		return false
	}
	for id, set := range p {
		other, ok := o[id]
		if !ok || !set.Equal(other) {
			return false
		}
	}
	return true
}

// MetricCount returns the total number of metrics across all pillars.
func (p Pillars) MetricCount() int {
	n := 0
	for _, set := range p {
		n += set.Len()
	}
	return n
}

// Ordered returns the pillar ids present in p in display order. Ids outside
// the fixed five follow, sorted by name.
func (p Pillars) Ordered() []PillarID {
	ids := make([]PillarID, 0, len(p))
	known := make(map[PillarID]bool, len(p))
	for _, id := range AllPillars() {
		known[id] = true
		if _, ok := p[id]; ok {
			ids = append(ids, id)
		}
	}
	var extra []PillarID
	for id := range p {
		if !known[id] {
			extra = append(extra, id)
		}
	}
	slices.Sort(extra)
	return append(ids, extra...)
}

// UnmarshalJSON decodes a pillar object, resolving legacy pillar keys.
func (p *Pillars) UnmarshalJSON(data []byte) error {
	var raw map[string]PillarMetricSet
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Pillars, len(raw))
	for key, set := range raw {
		id, ok := ParsePillarID(key)
		if !ok {
			return fmt.Errorf("unknown pillar %q", key)
		}
		if _, dup := out[id]; dup {
			return fmt.Errorf("pillar %q given more than once", id)
		}
		out[id] = set
	}
	*p = out
	return nil
}
