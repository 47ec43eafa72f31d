package quality

import (
	"strings"
	"testing"

	"github.com/planetaryhealth/phi/pkg/catalog"
	"github.com/planetaryhealth/phi/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allMetrics builds a bundle holding every catalog metric with quality q.
func allMetrics(q models.Quality) models.Pillars {
	out := models.Pillars{}
	for _, p := range catalog.Default().Pillars() {
		var set models.PillarMetricSet
		for _, e := range catalog.Default().MetricsFor(p.ID) {
			set.Set(e.ID, models.MetricValue{Value: models.Float(e.ValidMin), Quality: q})
		}
		out[p.ID] = set
	}
	return out
}

func criticalOnly(q models.Quality) models.Pillars {
	return models.Pillars{
		models.PillarBiodiversity: models.NewPillarMetricSet(models.Metric{ID: "ndvi", Value: models.MetricValue{Value: models.Float(0.5), Quality: q}}),
		models.PillarCarbon:       models.NewPillarMetricSet(models.Metric{ID: "tree_cover", Value: models.MetricValue{Value: models.Float(40), Quality: q}}),
		models.PillarDegradation:  models.NewPillarMetricSet(models.Metric{ID: "soil_moisture", Value: models.MetricValue{Value: models.Float(0.3), Quality: q}}),
		models.PillarEcosystem:    models.NewPillarMetricSet(models.Metric{ID: "human_modification", Value: models.MetricValue{Value: models.Float(0.1), Quality: q}}),
	}
}

func TestDQS(t *testing.T) {
	tests := []struct {
		name       string
		pillars    models.Pillars
		dqs        float64
		confidence string
	}{
		{"everything good", allMetrics(models.QualityGood), 100, ConfidenceHigh},
		{"everything moderate", allMetrics(models.QualityModerate), 50, ConfidenceAcceptable},
		{"everything poor", allMetrics(models.QualityPoor), 25, ConfidenceLow},
		{"nothing", nil, 0, ConfidenceLow},
		{"only critical, good", criticalOnly(models.QualityGood), 30.53, ConfidenceLow},
		{"only critical, moderate", criticalOnly(models.QualityModerate), 15.27, ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := DQS(tt.pillars)
			assert.InDelta(t, tt.dqs, a.DQS, 1e-9)
			assert.Equal(t, tt.confidence, a.Confidence)
		})
	}
}

func TestDQS_Details(t *testing.T) {
	p := criticalOnly(models.QualityGood)
	bio := p[models.PillarBiodiversity]
	bio.Set("evi", models.MetricValue{Quality: models.QualityUnknown})
	bio.Set("custom_reading", models.MetricValue{Value: models.Float(1), Quality: models.QualityGood})
	p[models.PillarBiodiversity] = bio

	a := DQS(p)

	assert.Equal(t, 6, a.MetricCount)
	assert.Equal(t, 5, a.AvailableCount)
	assert.InDelta(t, 5.0/6.0, a.Completeness, 1e-12)
	assert.Empty(t, a.MissingCritical)
	assert.Len(t, a.Metrics, catalog.Default().Len())

	byID := map[string]MetricQuality{}
	for _, m := range a.Metrics {
		byID[m.MetricID] = m
	}
	assert.True(t, byID["evi"].Present)
	assert.False(t, byID["evi"].Available)
	assert.Equal(t, 0.7, byID["evi"].Weight)
	assert.False(t, byID["lai"].Present)
	assert.Equal(t, models.QualityUnknown, byID["lai"].Quality)
	_, listed := byID["custom_reading"]
	assert.False(t, listed, "uncataloged metrics do not enter the DQS")
}

func TestAvailability(t *testing.T) {
	assert.Equal(t, 1.0, Availability(models.MetricValue{Value: models.Float(1), Quality: models.QualityGood}))
	assert.Equal(t, 0.5, Availability(models.MetricValue{Value: models.Float(1), Quality: models.QualityModerate}))
	assert.Equal(t, 0.25, Availability(models.MetricValue{Value: models.Float(1), Quality: models.QualityPoor}))
	assert.Equal(t, 0.25, Availability(models.MetricValue{Value: models.Float(1), Quality: models.QualityUnknown}))
	assert.Equal(t, 0.0, Availability(models.MetricValue{Quality: models.QualityModerate}))
}

func TestMissingCritical(t *testing.T) {
	assert.Equal(t, []string{"ndvi", "tree_cover", "soil_moisture", "human_modification"}, MissingCritical(nil))

	p := criticalOnly(models.QualityGood)
	deg := p[models.PillarDegradation]
	deg.Set("soil_moisture", models.MetricValue{Quality: models.QualityUnknown})
	p[models.PillarDegradation] = deg
	assert.Equal(t, []string{"soil_moisture"}, MissingCritical(p))
}

func TestCompleteness(t *testing.T) {
	assert.Equal(t, 0.0, Completeness(nil))
	assert.Equal(t, 0.0, Completeness(models.Pillars{models.PillarCarbon: {}}))
	assert.Equal(t, 1.0, Completeness(allMetrics(models.QualityPoor)))

	half := models.Pillars{models.PillarCarbon: models.NewPillarMetricSet(
		models.Metric{ID: "tree_cover", Value: models.MetricValue{Value: models.Float(1)}},
		models.Metric{ID: "biomass", Value: models.MetricValue{}},
	)}
	assert.Equal(t, 0.5, Completeness(half))
}

func TestThresholds(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, ConfidenceHigh, th.Level(85))
	assert.Equal(t, ConfidenceInvestmentGrade, th.Level(84.99))
	assert.Equal(t, ConfidenceInvestmentGrade, th.Level(70))
	assert.Equal(t, ConfidenceAcceptable, th.Level(50))
	assert.Equal(t, ConfidenceLow, th.Level(49.99))

	a := New(WithThresholds(Thresholds{High: 20, InvestmentGrade: 10, Acceptable: 5}))
	assert.Equal(t, ConfidenceHigh, a.Assess(criticalOnly(models.QualityGood)).Confidence)
}

func TestAssess(t *testing.T) {
	sm, _ := catalog.Default().Lookup("soil_moisture")
	pop, _ := catalog.Default().Lookup("population")

	assert.Equal(t, models.QualityUnknown, Assess(sm, nil))
	assert.Equal(t, models.QualityPoor, Assess(sm, models.Float(0.9)))
	assert.Equal(t, models.QualityGood, Assess(sm, models.Float(0.3)))
	assert.Equal(t, models.QualityModerate, Assess(sm, models.Float(0.05)))
	assert.Equal(t, models.QualityGood, Assess(pop, models.Float(1200)), "no optimal range")
}

func TestAssessor_WithCatalog(t *testing.T) {
	c, err := catalog.Load(strings.NewReader(`
pillars:
  - {id: carbon, name: Carbon, metrics: [tree_cover, biomass]}
metrics:
  - {id: tree_cover, name: Tree, pillar: carbon, min: 0, max: 100, criticality: critical}
  - {id: biomass, name: Biomass, pillar: carbon, min: 0, max: 500, criticality: auxiliary}
`))
	require.NoError(t, err)

	a := New(WithCatalog(c)).Assess(models.Pillars{models.PillarCarbon: models.NewPillarMetricSet(
		models.Metric{ID: "biomass", Value: models.MetricValue{Value: models.Float(10), Quality: models.QualityGood}},
	)})
	// 0.2 / 1.2
	assert.InDelta(t, 16.67, a.DQS, 1e-9)
	assert.Equal(t, []string{"tree_cover"}, a.MissingCritical)
}
