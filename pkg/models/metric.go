package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnmeasuredGood is returned by MetricValue.Validate when a metric without
// a value claims good quality.
var ErrUnmeasuredGood = errors.New("metric without a value cannot have good quality")

// Quality describes the confidence or provenance of a metric reading.
type Quality string

const (
	QualityGood     Quality = "good"
	QualityModerate Quality = "moderate"
	QualityPoor     Quality = "poor"
	QualityUnknown  Quality = "unknown"
)

// ParseQuality maps a quality tag to a Quality. Anything it does not
// recognize, including the upstream "unavailable" tag, becomes QualityUnknown.
func ParseQuality(s string) Quality {
	switch Quality(strings.ToLower(strings.TrimSpace(s))) {
	case QualityGood:
		return QualityGood
	case QualityModerate:
		return QualityModerate
	case QualityPoor:
		return QualityPoor
	default:
		return QualityUnknown
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (q *Quality) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("quality must be a string: %w", err)
	}
	*q = ParseQuality(s)
	return nil
}

// MetricValue is one measured environmental indicator.
type MetricValue struct {
	Value       *float64 `json:"value"`
	Unit        string   `json:"unit,omitempty"`
	Quality     Quality  `json:"quality"`
	Description string   `json:"description,omitempty"`
	Source      string   `json:"source,omitempty"` // provenance, e.g. "external" for supplemented values
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// HasValue reports whether the metric carries a usable reading.
// NaN readings count as missing.
func (m MetricValue) HasValue() bool {
	return m.Value != nil && !math.IsNaN(*m.Value)
}

// Validate checks the metric's invariants.
func (m MetricValue) Validate() error {
	if !m.HasValue() && m.Quality == QualityGood {
		return ErrUnmeasuredGood
	}
	return nil
}

// Sanitized returns a copy that satisfies Validate: an unmeasured metric
// claiming good quality is downgraded to unknown, and an empty quality
// becomes unknown.
func (m MetricValue) Sanitized() MetricValue {
	out := m.Clone()
	if out.Quality == "" {
		out.Quality = QualityUnknown
	}
	if !out.HasValue() && out.Quality == QualityGood {
		out.Quality = QualityUnknown
	}
	return out
}

// Clone returns a deep copy of the metric value.
func (m MetricValue) Clone() MetricValue {
	out := m
	if m.Value != nil {
		v := *m.Value
		out.Value = &v
	}
	return out
}

// Equal reports whether two metric values hold the same data.
func (m MetricValue) Equal(o MetricValue) bool {
	if m.Unit != o.Unit || m.Quality != o.Quality || m.Description != o.Description || m.Source != o.Source {
		return false
	}
	if m.Value == nil || o.Value == nil {
		return m.Value == nil && o.Value == nil
	}
	return *m.Value == *o.Value
}

// UnmarshalJSON accepts either a full metric object or a bare number/null,
// which is how older pillar payloads encode readings. Bare numbers are
// treated as good-quality observations.
func (m *MetricValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*m = MetricValue{Quality: QualityUnknown}
		return nil
	}
	if !strings.HasPrefix(trimmed, "{") {
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("metric value must be an object, number or null: %w", err)
		}
		*m = MetricValue{Value: &v, Quality: QualityGood}
		return nil
	}

	type plain MetricValue
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = MetricValue(p).Sanitized()
	return nil
}
