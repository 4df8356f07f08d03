package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/parlay-evaluator/internal/parlay"
)

func f(v float64) *float64 { return &v }

func TestClassify_Blowout(t *testing.T) {
	r := Classify(parlay.GameContext{Spread: f(14)})
	assert.Equal(t, parlay.RegimeBlowout, r.Label)
	assert.Equal(t, 3.0, r.Nu)
	assert.Equal(t, 1.25, r.CorrBoost)
	require.GreaterOrEqual(t, r.Confidence, 0.5)
	require.LessOrEqual(t, r.Confidence, 0.95)
}

func TestClassify_Shootout(t *testing.T) {
	r := Classify(parlay.GameContext{
		Total:      f(55),
		HomeOffEff: f(0.12),
		AwayOffEff: f(0.10),
	})
	assert.Equal(t, parlay.RegimeShootout, r.Label)
	assert.Equal(t, 4.0, r.Nu)
	assert.Equal(t, 1.15, r.CorrBoost)
}

func TestClassify_Defensive(t *testing.T) {
	r := Classify(parlay.GameContext{
		Total:      f(38),
		HomeDefEff: f(-0.12),
		AwayDefEff: f(-0.11),
	})
	assert.Equal(t, parlay.RegimeDefensive, r.Label)
	assert.Equal(t, 6.0, r.Nu)
}

func TestClassify_OvertimeRisk(t *testing.T) {
	r := Classify(parlay.GameContext{
		Spread: f(1.5),
		Total:  f(47),
	})
	assert.Equal(t, parlay.RegimeOvertimeRisk, r.Label)
	assert.Equal(t, 3.5, r.Nu)
}

func TestClassify_Normal(t *testing.T) {
	r := Classify(parlay.GameContext{
		Spread: f(4),
		Total:  f(45),
	})
	assert.Equal(t, parlay.RegimeNormal, r.Label)
	assert.Equal(t, 5.0, r.Nu)
	assert.Equal(t, 0.6, r.Confidence)
}

func TestClassify_BlowoutTakesPrecedenceOverShootout(t *testing.T) {
	// Spread alone triggers blowout even when total also qualifies for shootout.
	r := Classify(parlay.GameContext{
		Spread:     f(11),
		Total:      f(58),
		HomeOffEff: f(0.2),
		AwayOffEff: f(0.2),
	})
	assert.Equal(t, parlay.RegimeBlowout, r.Label)
}

func TestClassify_NoContextIsNormal(t *testing.T) {
	r := Classify(parlay.GameContext{})
	assert.Equal(t, parlay.RegimeNormal, r.Label)
}
