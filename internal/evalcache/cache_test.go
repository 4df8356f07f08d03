package evalcache

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/stitts-dev/parlay-evaluator/internal/parlay"
)

func oneLeg(subject uuid.UUID) []parlay.Leg {
	return []parlay.Leg{
		{Kind: parlay.LegPlayerProp, SubjectID: subject, StatKind: "pass_yards", Line: 250, Direction: parlay.Over, OddsAmerican: -110},
	}
}

func TestKey_DeterministicGivenSameInputs(t *testing.T) {
	subject := uuid.New()
	legs := oneLeg(subject)
	marginals := []parlay.Marginal{{SubjectID: subject, StatKind: "pass_yards", Mean: 260, Stddev: 45}}
	correlations := parlay.NewCorrelationSnapshot(nil)

	k1 := Key(legs, marginals, correlations, 7, 5000)
	k2 := Key(legs, marginals, correlations, 7, 5000)
	assert.Equal(t, k1, k2)
}

func TestKey_DiffersWhenMarginalsDiffer(t *testing.T) {
	subject := uuid.New()
	legs := oneLeg(subject)
	correlations := parlay.NewCorrelationSnapshot(nil)

	k1 := Key(legs, []parlay.Marginal{{SubjectID: subject, StatKind: "pass_yards", Mean: 260, Stddev: 45}}, correlations, 7, 5000)
	k2 := Key(legs, []parlay.Marginal{{SubjectID: subject, StatKind: "pass_yards", Mean: 270, Stddev: 45}}, correlations, 7, 5000)
	assert.NotEqual(t, k1, k2)
}

func TestKey_DiffersWhenCorrelationsDiffer(t *testing.T) {
	a := parlay.PairKey{SubjectID: uuid.New(), StatKind: "pass_yards"}
	b := parlay.PairKey{SubjectID: uuid.New(), StatKind: "receiving_yards"}
	legs := []parlay.Leg{
		{Kind: parlay.LegPlayerProp, SubjectID: a.SubjectID, StatKind: a.StatKind, Line: 250, Direction: parlay.Over, OddsAmerican: -110},
		{Kind: parlay.LegPlayerProp, SubjectID: b.SubjectID, StatKind: b.StatKind, Line: 70, Direction: parlay.Over, OddsAmerican: -110},
	}
	marginals := []parlay.Marginal{
		{SubjectID: a.SubjectID, StatKind: a.StatKind, Mean: 260, Stddev: 45},
		{SubjectID: b.SubjectID, StatKind: b.StatKind, Mean: 75, Stddev: 20},
	}

	withoutCorr := parlay.NewCorrelationSnapshot(nil)
	withCorr := parlay.NewCorrelationSnapshot(map[parlay.CorrelationKey]float64{
		parlay.NewCorrelationKey(a, b): 0.6,
	})

	k1 := Key(legs, marginals, withoutCorr, 7, 5000)
	k2 := Key(legs, marginals, withCorr, 7, 5000)
	assert.NotEqual(t, k1, k2)
}

func TestKey_MarginalOrderDoesNotAffectKey(t *testing.T) {
	a := parlay.PairKey{SubjectID: uuid.New(), StatKind: "pass_yards"}
	b := parlay.PairKey{SubjectID: uuid.New(), StatKind: "receiving_yards"}
	legs := []parlay.Leg{
		{Kind: parlay.LegPlayerProp, SubjectID: a.SubjectID, StatKind: a.StatKind, Line: 250, Direction: parlay.Over, OddsAmerican: -110},
		{Kind: parlay.LegPlayerProp, SubjectID: b.SubjectID, StatKind: b.StatKind, Line: 70, Direction: parlay.Over, OddsAmerican: -110},
	}
	mA := parlay.Marginal{SubjectID: a.SubjectID, StatKind: a.StatKind, Mean: 260, Stddev: 45}
	mB := parlay.Marginal{SubjectID: b.SubjectID, StatKind: b.StatKind, Mean: 75, Stddev: 20}
	correlations := parlay.NewCorrelationSnapshot(nil)

	k1 := Key(legs, []parlay.Marginal{mA, mB}, correlations, 7, 5000)
	k2 := Key(legs, []parlay.Marginal{mB, mA}, correlations, 7, 5000)
	assert.Equal(t, k1, k2)
}
