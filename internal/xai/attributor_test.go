package xai

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/parlay-evaluator/internal/parlay"
	"github.com/stitts-dev/parlay-evaluator/internal/quantizer"
)

func TestAttribute_SortsByAbsoluteImpactDescending(t *testing.T) {
	keyA := parlay.PairKey{SubjectID: uuid.New(), StatKind: "pass_yards"}
	keyB := parlay.PairKey{SubjectID: uuid.New(), StatKind: "rush_yards"}

	effects := []quantizer.ContextEffect{
		{Name: "small_effect", MeanDeltaBySubjectStat: map[parlay.PairKey]float64{keyA: -1}},
		{Name: "large_effect", MeanDeltaBySubjectStat: map[parlay.PairKey]float64{keyB: 10}},
	}

	factors := Attribute(effects, []float64{0.5, 0.5}, []parlay.PairKey{keyA, keyB}, []float64{45, 20}, 1.0, nil)

	require.Len(t, factors, 2)
	assert.Equal(t, "large_effect", factors[0].Name)
	assert.Equal(t, "positive", factors[0].Direction)
	assert.Equal(t, "negative", factors[1].Direction)
}

func TestAttribute_TruncatesToTop8(t *testing.T) {
	key := parlay.PairKey{SubjectID: uuid.New(), StatKind: "pass_yards"}
	var effects []quantizer.ContextEffect
	for i := 0; i < 12; i++ {
		effects = append(effects, quantizer.ContextEffect{
			Name:                   "effect",
			MeanDeltaBySubjectStat: map[parlay.PairKey]float64{key: float64(i + 1)},
		})
	}

	factors := Attribute(effects, []float64{0.5}, []parlay.PairKey{key}, []float64{45}, 1.0, nil)
	assert.LessOrEqual(t, len(factors), 8)
}

func TestAttribute_RegimeBoostIncludedWhenNotNeutral(t *testing.T) {
	factors := Attribute(nil, nil, nil, nil, 1.25, nil)
	require.Len(t, factors, 1)
	assert.Equal(t, "regime_correlation_boost", factors[0].Name)
}

func TestAttribute_NeutralRegimeBoostOmitted(t *testing.T) {
	factors := Attribute(nil, nil, nil, nil, 1.0, nil)
	assert.Empty(t, factors)
}

func TestAttribute_ImputedPairsSurfaced(t *testing.T) {
	factors := Attribute(nil, nil, nil, nil, 1.0, []parlay.ImputedPair{
		{SubjectA: "a", StatA: "pass_yards", SubjectB: "b", StatB: "rush_yards"},
	})
	require.Len(t, factors, 1)
	assert.Equal(t, "imputed_correlation", factors[0].Name)
}
