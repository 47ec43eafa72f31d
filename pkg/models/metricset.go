package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Metric pairs a metric id with its value.
type Metric struct {
	ID    string
	Value MetricValue
}

// PillarMetricSet maps metric ids to values while remembering insertion
// order, which is the order metrics are displayed in.
type PillarMetricSet struct {
	entries []Metric
	index   map[string]int
}

// NewPillarMetricSet builds a set from metrics in the given order. A repeated
// id replaces the earlier value but keeps its original position.
func NewPillarMetricSet(metrics ...Metric) PillarMetricSet {
	var s PillarMetricSet
	for _, m := range metrics {
		s.Set(m.ID, m.Value)
	}
	return s
}

// Set stores a value for id, appending id if it is new.
func (s *PillarMetricSet) Set(id string, v MetricValue) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[id]; ok {
		s.entries[i].Value = v
		return
	}
	s.index[id] = len(s.entries)
	s.entries = append(s.entries, Metric{ID: id, Value: v})
}

// Get returns the value stored for id.
func (s PillarMetricSet) Get(id string) (MetricValue, bool) {
	i, ok := s.index[id]
	if !ok {
		return MetricValue{}, false
	}
	return s.entries[i].Value, true
}

// Len returns the number of metrics.
func (s PillarMetricSet) Len() int {
	return len(s.entries)
}

// IDs returns metric ids in insertion order.
func (s PillarMetricSet) IDs() []string {
	ids := make([]string, len(s.entries))
	for i, e := range s.entries {
		ids[i] = e.ID
	}
	return ids
}

// Metrics returns a copy of the metrics in insertion order.
func (s PillarMetricSet) Metrics() []Metric {
	out := make([]Metric, len(s.entries))
	for i, e := range s.entries {
		out[i] = Metric{ID: e.ID, Value: e.Value.Clone()}
	}
	return out
}

// Clone returns a deep copy.
func (s PillarMetricSet) Clone() PillarMetricSet {
	return NewPillarMetricSet(s.Metrics()...)
}

// Equal reports whether both sets hold the same metrics in the same order.
func (s PillarMetricSet) Equal(o PillarMetricSet) bool {
	if len(s.entries) != len(o.entries) {
		return false
	}
	for i, e := range s.entries {
		if e.ID != o.entries[i].ID || !e.Value.Equal(o.entries[i].Value) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as a JSON object in insertion order.
func (s PillarMetricSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.ID)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the key order of the document.
func (s *PillarMetricSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("metric set must be a JSON object")
	}

	var out PillarMetricSet
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("metric set key must be a string")
		}
		var v MetricValue
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("metric %q: %w", id, err)
		}
		if _, dup := out.index[id]; dup {
			return fmt.Errorf("metric %q given more than once", id)
		}
		out.Set(id, v.Sanitized())
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}
