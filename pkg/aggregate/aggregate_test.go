package aggregate

import (
	"math"
	"testing"

	"github.com/planetaryhealth/phi/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWeights(t *testing.T) {
	w := DefaultWeights()
	assert.Len(t, w, 5)
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)
	assert.True(t, w.Normalized())
	for _, p := range models.AllPillars() {
		assert.Equal(t, 0.20, w[p])
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name    string
		scores  map[models.PillarID]float64
		weights map[models.PillarID]float64
		want    float64
	}{
		{
			name:    "equal weights",
			scores:  map[models.PillarID]float64{models.PillarAtmospheric: 80, models.PillarCarbon: 60},
			weights: map[models.PillarID]float64{models.PillarAtmospheric: 0.5, models.PillarCarbon: 0.5},
			want:    70,
		},
		{
			name:    "pillar without weight is skipped",
			scores:  map[models.PillarID]float64{models.PillarAtmospheric: 80, models.PillarCarbon: 60},
			weights: map[models.PillarID]float64{models.PillarAtmospheric: 0.5},
			want:    40,
		},
		{
			name:    "weight without score is skipped",
			scores:  map[models.PillarID]float64{models.PillarAtmospheric: 80},
			weights: map[models.PillarID]float64{models.PillarAtmospheric: 0.5, models.PillarEcosystem: 0.5},
			want:    40,
		},
		{
			name:    "explicit zero weight",
			scores:  map[models.PillarID]float64{models.PillarAtmospheric: 80},
			weights: map[models.PillarID]float64{models.PillarAtmospheric: 0},
			want:    0,
		},
		{
			name:    "no renormalization or clamping",
			scores:  map[models.PillarID]float64{models.PillarAtmospheric: 90, models.PillarCarbon: 90},
			weights: map[models.PillarID]float64{models.PillarAtmospheric: 1, models.PillarCarbon: 1},
			want:    180,
		},
		{
			name: "empty",
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.scores, tt.weights)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestAggregate_SumsInPillarOrder(t *testing.T) {
	// 1e16 + 1 rounds back to 1e16, so any other summation order gives 1.
	scores := map[models.PillarID]float64{
		models.PillarAtmospheric:  1e16,
		models.PillarBiodiversity: 1,
		models.PillarCarbon:       -1e16,
		"zz_custom":               0.5,
		"aa_custom":               -0.5,
	}
	weights := map[models.PillarID]float64{
		models.PillarAtmospheric:  1,
		models.PillarBiodiversity: 1,
		models.PillarCarbon:       1,
		"zz_custom":               1,
		"aa_custom":               1,
	}
	for range 100 {
		require.Equal(t, 0.0, Aggregate(scores, weights))
	}
	assert.Equal(t, []models.PillarID{models.PillarAtmospheric, models.PillarBiodiversity, models.PillarCarbon, "aa_custom", "zz_custom"},
		orderedIDs(scores))
}

func TestCompute(t *testing.T) {
	scores := map[models.PillarID]float64{
		models.PillarAtmospheric:  70,
		models.PillarBiodiversity: 85,
		"oceans":                  40,
	}
	weights := Weights{models.PillarAtmospheric: 0.5, models.PillarBiodiversity: 0.5}

	c := Compute(scores, weights)

	assert.InDelta(t, 77.5, c.Score, 1e-9)
	assert.Equal(t, "Good", c.Interpretation)
	assert.Equal(t, "#2ecc71", c.Color)
	assert.Equal(t, []models.PillarID{"oceans"}, c.Excluded)
	assert.InDelta(t, 1.0, c.WeightSum, 1e-9)
	require.NotNil(t, c.ESVMultiplier)
	assert.Greater(t, *c.ESVMultiplier, 0.0)

	weights[models.PillarAtmospheric] = 9
	assert.Equal(t, 0.5, c.Weights[models.PillarAtmospheric], "composite keeps its own copy")

	zero := Compute(nil, DefaultWeights())
	assert.Equal(t, 0.0, zero.Score)
	assert.Nil(t, zero.ESVMultiplier)
	assert.Equal(t, "Critical", zero.Interpretation)
}

func TestParseWeights(t *testing.T) {
	w, err := ParseWeights(map[string]float64{"A": 0.3, "biodiversity": 0.7})
	require.NoError(t, err)
	assert.Equal(t, Weights{models.PillarAtmospheric: 0.3, models.PillarBiodiversity: 0.7}, w)

	_, err = ParseWeights(map[string]float64{"oceans": 1})
	assert.Error(t, err)

	_, err = ParseWeights(map[string]float64{"C": 0.5, "carbon": 0.5})
	assert.Error(t, err)
}

func TestInterpret(t *testing.T) {
	tests := []struct {
		score float64
		label string
		color string
	}{
		{100, "Excellent", "#27ae60"},
		{80, "Excellent", "#27ae60"},
		{79.99, "Good", "#2ecc71"},
		{60, "Good", "#2ecc71"},
		{40, "Moderate", "#f39c12"},
		{20, "Poor", "#e74c3c"},
		{19.5, "Critical", "#c0392b"},
		{-10, "Critical", "#c0392b"},
	}
	for _, tt := range tests {
		if got := Interpret(tt.score); got != tt.label {
			t.Errorf("Interpret(%v) = %q, want %q", tt.score, got, tt.label)
		}
		if got := Color(tt.score); got != tt.color {
			t.Errorf("Color(%v) = %q, want %q", tt.score, got, tt.color)
		}
	}
}

func TestESVMultiplier(t *testing.T) {
	tests := []struct {
		phi  float64
		want float64
		ok   bool
	}{
		{50, 0, true},
		{100, 0.3312, true},  // 0.5 * 0.6 * (1 + 0.15*ln 2)
		{25, -0.1344, true},  // -0.25 * 0.6 * (1 + 0.15*ln 0.5)
		{0.5, -0.1215, true}, // clamped to 1
		{0, 0, false},
		{-5, 0, false},
		{math.NaN(), 0, false},
	}
	for _, tt := range tests {
		got, ok := ESVMultiplier(tt.phi)
		if ok != tt.ok {
			t.Errorf("ESVMultiplier(%v) ok = %v, want %v", tt.phi, ok, tt.ok)
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ESVMultiplier(%v) = %v, want %v", tt.phi, got, tt.want)
		}
	}
}

// The log term flattens the curve at very low scores, so monotonicity only
// holds from 10 upwards.
func TestESVMultiplier_Monotonic(t *testing.T) {
	prev := math.Inf(-1)
	for phi := 10.0; phi <= 100; phi++ {
		m, ok := ESVMultiplier(phi)
		require.True(t, ok)
		assert.GreaterOrEqual(t, m, prev, "phi=%v", phi)
		prev = m
	}
}
