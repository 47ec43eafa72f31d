package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/planetaryhealth/phi/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_RequiredRanges(t *testing.T) {
	tests := []struct {
		id             string
		min, max       float64
		higherIsBetter bool
	}{
		{"ndvi", -1, 1, true},
		{"evi", -1, 1, true},
		{"lai", 0, 10, true},
		{"fpar", 0, 1, true},
		{"aod", 0, 1, false},
		{"aqi", 0, 500, false},
		{"uv_index", 0, 15, false},
		{"tree_cover", 0, 100, true},
		{"forest_loss", 0, 1, false},
		{"soil_moisture", 0, 0.6, true},
		{"drought_index", -3, 3, false},
		{"human_modification", 0, 1, false},
		{"nightlights", 0, 300, false},
	}
	c := Default()
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			e, ok := c.Lookup(tt.id)
			require.True(t, ok)
			assert.Equal(t, tt.min, e.ValidMin)
			assert.Equal(t, tt.max, e.ValidMax)
			assert.Equal(t, tt.higherIsBetter, e.HigherIsBetter)
		})
	}
}

func TestDefault_EveryEntryHasValidRange(t *testing.T) {
	for _, e := range Default().Entries() {
		if e.ValidMin >= e.ValidMax {
			t.Errorf("%s: min %v >= max %v", e.ID, e.ValidMin, e.ValidMax)
		}
	}
}

func TestDefault_PillarsInDisplayOrder(t *testing.T) {
	c := Default()
	pillars := c.Pillars()
	require.Len(t, pillars, 5)
	for i, id := range models.AllPillars() {
		assert.Equal(t, id, pillars[i].ID)
	}

	var ids []string
	for _, e := range c.MetricsFor(models.PillarAtmospheric) {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"aod", "aqi", "uv_index", "cloud_fraction"}, ids)
}

func TestCatalog_LookupReturnsCopies(t *testing.T) {
	c := Default()
	e, ok := c.Lookup("aqi")
	require.True(t, ok)
	*e.OptimalMax = 1000

	again, _ := c.Lookup("aqi")
	assert.Equal(t, 50.0, *again.OptimalMax)

	p, _ := c.Pillar(models.PillarCarbon)
	p.Metrics[0] = "mutated"
	again2, _ := c.Pillar(models.PillarCarbon)
	assert.Equal(t, "tree_cover", again2.Metrics[0])
}

func TestCatalog_LookupOrGeneric(t *testing.T) {
	e, known := Default().LookupOrGeneric("mystery_index")
	assert.False(t, known)
	assert.Equal(t, 0.0, e.ValidMin)
	assert.Equal(t, 100.0, e.ValidMax)
	assert.True(t, e.HigherIsBetter)
}

func TestCriticalityWeight(t *testing.T) {
	assert.Equal(t, 1.0, CriticalityCritical.Weight())
	assert.Equal(t, 0.7, CriticalityImportant.Weight())
	assert.Equal(t, 0.4, CriticalitySupporting.Weight())
	assert.Equal(t, 0.2, CriticalityAuxiliary.Weight())
	assert.Equal(t, 0.4, Criticality("").Weight())
}

func TestEntry_InOptimalRange(t *testing.T) {
	e, _ := Default().Lookup("soil_moisture")
	assert.True(t, e.InOptimalRange(0.3))
	assert.False(t, e.InOptimalRange(0.5))

	pop, _ := Default().Lookup("population")
	assert.False(t, pop.InOptimalRange(10), "no optimal range defined")
}

const validPillar = `
pillars:
  - id: carbon
    name: Carbon
    color: "#8e44ad"
    metrics: [tree_cover]
`

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "inverted range",
			doc: validPillar + `
metrics:
  - {id: tree_cover, name: Tree, pillar: carbon, min: 100, max: 0, criticality: critical}
`,
			want: "tree_cover",
		},
		{
			name: "equal bounds",
			doc: validPillar + `
metrics:
  - {id: tree_cover, name: Tree, pillar: carbon, min: 1, max: 1, criticality: critical}
`,
			want: "tree_cover",
		},
		{
			name: "duplicate metric",
			doc: validPillar + `
metrics:
  - {id: tree_cover, name: Tree, pillar: carbon, min: 0, max: 100, criticality: critical}
  - {id: tree_cover, name: Tree, pillar: carbon, min: 0, max: 100, criticality: critical}
`,
			want: "defined twice",
		},
		{
			name: "bad criticality",
			doc: validPillar + `
metrics:
  - {id: tree_cover, name: Tree, pillar: carbon, min: 0, max: 100, criticality: vital}
`,
			want: "tree_cover",
		},
		{
			name: "pillar lists unknown metric",
			doc: validPillar + `
metrics: []
`,
			want: "unknown metric",
		},
		{
			name: "unknown field",
			doc: validPillar + `
metrics:
  - {id: tree_cover, name: Tree, pillar: carbon, min: 0, max: 100, criticality: critical, weight: 2}
`,
			want: "weight",
		},
		{
			name: "unknown pillar",
			doc: `
pillars:
  - {id: oceans, name: Oceans, metrics: [sst]}
metrics:
  - {id: sst, name: SST, pillar: oceans, min: 0, max: 40, criticality: critical}
`,
			want: "oceans",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidCatalog))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad(strings.NewReader("pillars: [oops"))
	})
}

func TestArrange(t *testing.T) {
	c := Default()
	in := models.NewPillarMetricSet(
		models.Metric{ID: "custom_reading", Value: models.MetricValue{Value: models.Float(1)}},
		models.Metric{ID: "soil_moisture", Value: models.MetricValue{Value: models.Float(0.3)}},
		models.Metric{ID: "lst", Value: models.MetricValue{Value: models.Float(22)}},
	)

	got := c.Arrange(models.PillarDegradation, in, false)
	assert.Equal(t, []string{"lst", "soil_moisture", "custom_reading"}, got.IDs())

	filled := c.Arrange(models.PillarDegradation, in, true)
	assert.Equal(t, []string{"lst", "soil_moisture", "water_occurrence", "drought_index", "evaporative_stress", "custom_reading"}, filled.IDs())

	v, _ := filled.Get("drought_index")
	assert.Nil(t, v.Value)
	assert.Equal(t, models.QualityUnknown, v.Quality)
	assert.Equal(t, "index", v.Unit)
}

func TestArrangePillars(t *testing.T) {
	c := Default()
	in := models.Pillars{
		models.PillarAtmospheric: models.NewPillarMetricSet(
			models.Metric{ID: "aqi", Value: models.MetricValue{Value: models.Float(42)}},
			models.Metric{ID: "aod", Value: models.MetricValue{Value: models.Float(0.2)}},
		),
	}

	got := c.ArrangePillars(in, false)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"aod", "aqi"}, got[models.PillarAtmospheric].IDs())

	full := c.ArrangePillars(in, true)
	assert.Len(t, full, len(c.Pillars()))
	for _, p := range c.Pillars() {
		assert.Equal(t, p.Metrics, full[p.ID].IDs(), "pillar %s", p.ID)
	}
	aqi, _ := full[models.PillarAtmospheric].Get("aqi")
	assert.Equal(t, 42.0, *aqi.Value)

	assert.Equal(t, []string{"aqi", "aod"}, in[models.PillarAtmospheric].IDs(), "input untouched")
}
