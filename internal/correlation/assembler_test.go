package correlation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/parlay-evaluator/internal/marginal"
	"github.com/stitts-dev/parlay-evaluator/internal/parlay"
)

const testClip = 0.98

func twoLegs(dirA, dirB parlay.Direction) []marginal.LegThreshold {
	a := parlay.PairKey{SubjectID: uuid.New(), StatKind: "pass_yards"}
	b := parlay.PairKey{SubjectID: uuid.New(), StatKind: "receiving_yards"}
	return []marginal.LegThreshold{
		{Leg: parlay.Leg{Direction: dirA}, Key: a},
		{Leg: parlay.Leg{Direction: dirB}, Key: b},
	}
}

func TestAssemble_MissingPairImputedToZero(t *testing.T) {
	legs := twoLegs(parlay.Over, parlay.Over)
	snap := parlay.NewCorrelationSnapshot(nil)
	regime := parlay.Regime{CorrBoost: 1.0}

	out := Assemble(context.Background(), legs, snap, regime, testClip, nil)
	require.Len(t, out.ImputedPairs, 1)
	assert.Equal(t, 0.0, out.R.At(0, 1))
	assert.Equal(t, 1.0, out.R.At(0, 0))
}

func TestAssemble_OverOverPreservesSign(t *testing.T) {
	legs := twoLegs(parlay.Over, parlay.Over)
	snap := parlay.NewCorrelationSnapshot(map[parlay.CorrelationKey]float64{
		parlay.NewCorrelationKey(legs[0].Key, legs[1].Key): 0.65,
	})
	regime := parlay.Regime{CorrBoost: 1.0}

	out := Assemble(context.Background(), legs, snap, regime, testClip, nil)
	assert.InDelta(t, 0.65, out.R.At(0, 1), 1e-9)
	assert.Empty(t, out.ImputedPairs)
}

func TestAssemble_UnderFlipsSign(t *testing.T) {
	legs := twoLegs(parlay.Over, parlay.Under)
	snap := parlay.NewCorrelationSnapshot(map[parlay.CorrelationKey]float64{
		parlay.NewCorrelationKey(legs[0].Key, legs[1].Key): 0.65,
	})
	regime := parlay.Regime{CorrBoost: 1.0}

	out := Assemble(context.Background(), legs, snap, regime, testClip, nil)
	assert.InDelta(t, -0.65, out.R.At(0, 1), 1e-9)
}

func TestAssemble_UnderUnderPreservesSign(t *testing.T) {
	legs := twoLegs(parlay.Under, parlay.Under)
	snap := parlay.NewCorrelationSnapshot(map[parlay.CorrelationKey]float64{
		parlay.NewCorrelationKey(legs[0].Key, legs[1].Key): 0.65,
	})
	regime := parlay.Regime{CorrBoost: 1.0}

	out := Assemble(context.Background(), legs, snap, regime, testClip, nil)
	assert.InDelta(t, 0.65, out.R.At(0, 1), 1e-9)
}

func TestAssemble_RegimeBoostAndClip(t *testing.T) {
	legs := twoLegs(parlay.Over, parlay.Over)
	snap := parlay.NewCorrelationSnapshot(map[parlay.CorrelationKey]float64{
		parlay.NewCorrelationKey(legs[0].Key, legs[1].Key): 0.9,
	})
	regime := parlay.Regime{CorrBoost: 1.25}

	out := Assemble(context.Background(), legs, snap, regime, testClip, nil)
	// 0.9 * 1.25 = 1.125, clipped to 0.98.
	assert.InDelta(t, 0.98, out.R.At(0, 1), 1e-9)
}

func TestAssemble_ConfiguredClipBoundIsHonored(t *testing.T) {
	legs := twoLegs(parlay.Over, parlay.Over)
	snap := parlay.NewCorrelationSnapshot(map[parlay.CorrelationKey]float64{
		parlay.NewCorrelationKey(legs[0].Key, legs[1].Key): 0.9,
	})
	regime := parlay.Regime{CorrBoost: 1.0}

	out := Assemble(context.Background(), legs, snap, regime, 0.5, nil)
	assert.InDelta(t, 0.5, out.R.At(0, 1), 1e-9)
}

type fakeLookup struct {
	calls int
	rho   float64
	found bool
}

func (f *fakeLookup) GetPairCorrelation(_ context.Context, _, _ parlay.PairKey) (float64, bool) {
	f.calls++
	return f.rho, f.found
}

func TestAssemble_FallsBackToLiveLookupOnSnapshotMiss(t *testing.T) {
	legs := twoLegs(parlay.Over, parlay.Over)
	snap := parlay.NewCorrelationSnapshot(nil)
	regime := parlay.Regime{CorrBoost: 1.0}
	live := &fakeLookup{rho: 0.5, found: true}

	out := Assemble(context.Background(), legs, snap, regime, testClip, live)
	assert.Equal(t, 1, live.calls)
	assert.Empty(t, out.ImputedPairs)
	assert.InDelta(t, 0.5, out.R.At(0, 1), 1e-9)
}

func TestAssemble_ImputesWhenLiveLookupAlsoMisses(t *testing.T) {
	legs := twoLegs(parlay.Over, parlay.Over)
	snap := parlay.NewCorrelationSnapshot(nil)
	regime := parlay.Regime{CorrBoost: 1.0}
	live := &fakeLookup{found: false}

	out := Assemble(context.Background(), legs, snap, regime, testClip, live)
	assert.Equal(t, 1, live.calls)
	require.Len(t, out.ImputedPairs, 1)
	assert.Equal(t, 0.0, out.R.At(0, 1))
}

func TestAssemble_SnapshotHitNeverConsultsLiveLookup(t *testing.T) {
	legs := twoLegs(parlay.Over, parlay.Over)
	snap := parlay.NewCorrelationSnapshot(map[parlay.CorrelationKey]float64{
		parlay.NewCorrelationKey(legs[0].Key, legs[1].Key): 0.3,
	})
	regime := parlay.Regime{CorrBoost: 1.0}
	live := &fakeLookup{rho: 0.9, found: true}

	out := Assemble(context.Background(), legs, snap, regime, testClip, live)
	assert.Equal(t, 0, live.calls)
	assert.InDelta(t, 0.3, out.R.At(0, 1), 1e-9)
}
