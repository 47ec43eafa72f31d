// Package external models the aggregated weather and air-quality payload used
// to fill gaps in satellite metrics.
//
// Every field is optional. Accessors are safe on nil receivers at every level
// and collapse anything missing or malformed to a nil reading.
package external

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Num is a leniently decoded number. Numbers and numeric strings decode to
// their value; anything else decodes to NaN, which accessors report as absent.
type Num float64

// UnmarshalJSON implements json.Unmarshaler. It never fails.
func (n *Num) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		*n = Num(math.NaN())
		return nil
	}
	*n = Num(v)
	return nil
}

// MarshalJSON implements json.Marshaler. Malformed readings encode as null.
func (n Num) MarshalJSON() ([]byte, error) {
	v := float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// Float returns the reading, or nil when n is nil or malformed.
func (n *Num) Float() *float64 {
	if n == nil || math.IsNaN(float64(*n)) {
		return nil
	}
	v := float64(*n)
	return &v
}

// N returns a pointer to v as a Num.
func N(v float64) *Num {
	n := Num(v)
	return &n
}

func first(series []*Num) *float64 {
	if len(series) == 0 {
		return nil
	}
	return series[0].Float()
}

// Reading is a single value with its unit.
type Reading struct {
	Value *Num   `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// UnmarshalJSON accepts a {"value", "unit"} object or a bare number.
// Anything else decodes as an absent reading.
func (r *Reading) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		type plain Reading
		var p plain
		if err := json.Unmarshal(trimmed, &p); err != nil {
			*r = Reading{}
			return nil
		}
		*r = Reading(p)
		return nil
	}
	var n Num
	_ = n.UnmarshalJSON(trimmed)
	*r = Reading{Value: &n}
	return nil
}

// Float returns the reading value.
func (r *Reading) Float() *float64 {
	if r == nil {
		return nil
	}
	return r.Value.Float()
}

// ErrNotObject is returned when an external bundle is not a JSON object.
var ErrNotObject = errors.New("external bundle must be a JSON object")

// Bundle is the aggregated external payload for one location.
type Bundle struct {
	AirQuality *AirQuality `json:"air_quality,omitempty"`
	Weather    *Weather    `json:"weather,omitempty"`
	Soil       *Soil       `json:"soil,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler. The bundle itself must be an
// object; a nested value of the wrong JSON type is dropped and the rest of
// the bundle is kept.
func (b *Bundle) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ErrNotObject
	}
	type plain Bundle
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return err
		}
	}
	*b = Bundle(p)
	return nil
}

// AirQuality holds the merged air-quality readings.
type AirQuality struct {
	PrimaryAQI *Num     `json:"primary_aqi"`
	UVIndex    *Reading `json:"uv_index,omitempty"`
}

// Weather holds current conditions and forecasts. A weather section flagged
// unavailable yields no readings; an absent flag counts as available.
type Weather struct {
	Available *bool    `json:"available,omitempty"`
	Current   *Current `json:"current,omitempty"`
	Hourly    *Hourly  `json:"hourly,omitempty"`
	Daily     *Daily   `json:"daily,omitempty"`
}

// Current holds the current conditions.
type Current struct {
	Temperature *Reading `json:"temperature,omitempty"`
	CloudCover  *Reading `json:"cloud_cover,omitempty"`
}

// Hourly holds hourly series; index 0 is the current hour.
type Hourly struct {
	SoilMoisture0To1cm  []*Num `json:"soil_moisture_0_to_1cm,omitempty"`
	SoilMoisture1To3cm  []*Num `json:"soil_moisture_1_to_3cm,omitempty"`
	SoilMoisture3To9cm  []*Num `json:"soil_moisture_3_to_9cm,omitempty"`
	SoilMoisture9To27cm []*Num `json:"soil_moisture_9_to_27cm,omitempty"`
	CloudCover          []*Num `json:"cloud_cover,omitempty"`
}

// Daily holds daily series; index 0 is today.
type Daily struct {
	UVIndexMax []*Num `json:"uv_index_max,omitempty"`
}

// Soil holds the soil summary.
type Soil struct {
	SoilMoisture *Reading `json:"soil_moisture,omitempty"`
}

// Decode reads a bundle from JSON. Unknown fields are ignored, malformed
// numbers decode as absent readings and values of the wrong JSON type are
// dropped; only invalid JSON or a non-object bundle fails.
func Decode(r io.Reader) (*Bundle, error) {
	var b Bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode external bundle: %w", err)
	}
	return &b, nil
}

// DecodeBytes is Decode over a byte slice. Empty input and JSON null yield a
// nil bundle.
func DecodeBytes(data []byte) (*Bundle, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	return Decode(bytes.NewReader(trimmed))
}

// PrimaryAQI returns the merged US AQI reading.
func (b *Bundle) PrimaryAQI() *float64 {
	if b == nil || b.AirQuality == nil {
		return nil
	}
	return b.AirQuality.PrimaryAQI.Float()
}

// weather returns the weather section, or nil when it is absent or flagged
// unavailable.
func (b *Bundle) weather() *Weather {
	if b == nil || b.Weather == nil {
		return nil
	}
	if a := b.Weather.Available; a != nil && !*a {
		return nil
	}
	return b.Weather
}

// WeatherAvailable reports whether weather readings may be used.
func (b *Bundle) WeatherAvailable() bool {
	return b.weather() != nil
}

// CurrentTemperature returns the current air temperature in °C.
func (b *Bundle) CurrentTemperature() *float64 {
	w := b.weather()
	if w == nil || w.Current == nil {
		return nil
	}
	return w.Current.Temperature.Float()
}

// TodayMaxUV returns the first day's forecast maximum UV index.
func (b *Bundle) TodayMaxUV() *float64 {
	w := b.weather()
	if w == nil || w.Daily == nil {
		return nil
	}
	return first(w.Daily.UVIndexMax)
}

// CloudFraction returns total cloud cover as a 0-1 fraction: the current
// reading, else the current hour of the hourly series.
func (b *Bundle) CloudFraction() *float64 {
	w := b.weather()
	if w == nil {
		return nil
	}
	var pct *float64
	if w.Current != nil {
		pct = w.Current.CloudCover.Float()
	}
	if pct == nil && w.Hourly != nil {
		pct = first(w.Hourly.CloudCover)
	}
	if pct == nil {
		return nil
	}
	v := *pct / 100
	return &v
}

// CurrentUV returns the air-quality source's current UV reading.
func (b *Bundle) CurrentUV() *float64 {
	if b == nil || b.AirQuality == nil {
		return nil
	}
	return b.AirQuality.UVIndex.Float()
}

// SoilMoistureBands returns the current-hour reading of each soil moisture
// depth band (0-1, 1-3, 3-9 and 9-27 cm), with nil for absent bands.
func (b *Bundle) SoilMoistureBands() [4]*float64 {
	var out [4]*float64
	w := b.weather()
	if w == nil || w.Hourly == nil {
		return out
	}
	h := w.Hourly
	out[0] = first(h.SoilMoisture0To1cm)
	out[1] = first(h.SoilMoisture1To3cm)
	out[2] = first(h.SoilMoisture3To9cm)
	out[3] = first(h.SoilMoisture9To27cm)
	return out
}

// SoilSummary returns the precomputed soil moisture summary, if any.
func (b *Bundle) SoilSummary() *float64 {
	if b == nil || b.Soil == nil {
		return nil
	}
	return b.Soil.SoilMoisture.Float()
}

// AQICategory returns the US EPA category for an AQI value.
func AQICategory(aqi float64) string {
	switch {
	case aqi <= 50:
		return "good"
	case aqi <= 100:
		return "moderate"
	case aqi <= 150:
		return "unhealthy_sensitive"
	case aqi <= 200:
		return "unhealthy"
	case aqi <= 300:
		return "very_unhealthy"
	default:
		return "hazardous"
	}
}

// UVCategory returns the WHO exposure category for a UV index.
func UVCategory(uv float64) string {
	switch {
	case uv <= 2:
		return "low"
	case uv <= 5:
		return "moderate"
	case uv <= 7:
		return "high"
	case uv <= 10:
		return "very_high"
	default:
		return "extreme"
	}
}
