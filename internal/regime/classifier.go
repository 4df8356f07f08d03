// Package regime maps game-level context to a Regime label, a Student-t
// degrees-of-freedom ν, and a correlation boost, via a first-match rule
// chain that records its reasoning alongside the label.
package regime

import (
	"fmt"
	"math"

	"github.com/stitts-dev/parlay-evaluator/internal/parlay"
	"github.com/stitts-dev/parlay-evaluator/internal/telemetry"
)

// Classify runs the five-rule decision ladder against
// ctx, returning the first matching regime.
func Classify(ctx parlay.GameContext) parlay.Regime {
	log := telemetry.WithComponent("regime")

	var r parlay.Regime
	switch {
	case ctx.Spread != nil && math.Abs(*ctx.Spread) >= 10:
		r = parlay.Regime{
			Label:      parlay.RegimeBlowout,
			Nu:         3.0,
			CorrBoost:  1.25,
			Confidence: confidence(math.Abs(*ctx.Spread), 10, 20),
			Reasoning:  fmt.Sprintf("spread %.1f exceeds blowout threshold of 10", *ctx.Spread),
		}

	case ctx.Total != nil && *ctx.Total >= 52 && avgOffEff(ctx) >= 0.10:
		r = parlay.Regime{
			Label:      parlay.RegimeShootout,
			Nu:         4.0,
			CorrBoost:  1.15,
			Confidence: confidence(*ctx.Total, 52, 65),
			Reasoning:  fmt.Sprintf("total %.1f and avg offensive efficiency %.2f exceed shootout thresholds", *ctx.Total, avgOffEff(ctx)),
		}

	case ctx.Total != nil && *ctx.Total <= 40 && avgDefEff(ctx) <= -0.10:
		r = parlay.Regime{
			Label:      parlay.RegimeDefensive,
			Nu:         6.0,
			CorrBoost:  1.05,
			Confidence: confidence(40-*ctx.Total, 0, 12),
			Reasoning:  fmt.Sprintf("total %.1f and avg defensive efficiency %.2f below defensive thresholds", *ctx.Total, avgDefEff(ctx)),
		}

	case ctx.Spread != nil && math.Abs(*ctx.Spread) <= 3.0 && ctx.Total != nil && *ctx.Total >= 44 && *ctx.Total <= 49:
		r = parlay.Regime{
			Label:      parlay.RegimeOvertimeRisk,
			Nu:         3.5,
			CorrBoost:  1.20,
			Confidence: confidence(3.0-math.Abs(*ctx.Spread), 0, 3),
			Reasoning:  fmt.Sprintf("tight spread %.1f with mid-range total %.1f signals overtime risk", *ctx.Spread, *ctx.Total),
		}

	default:
		r = parlay.Regime{
			Label:      parlay.RegimeNormal,
			Nu:         5.0,
			CorrBoost:  1.00,
			Confidence: 0.6,
			Reasoning:  "no regime-triggering signal present",
		}
	}

	log.WithField("regime", r.Label).WithField("confidence", r.Confidence).Debug("classified game regime")
	return r
}

func avgOffEff(ctx parlay.GameContext) float64 {
	return avgPtr(ctx.HomeOffEff, ctx.AwayOffEff)
}

func avgDefEff(ctx parlay.GameContext) float64 {
	return avgPtr(ctx.HomeDefEff, ctx.AwayDefEff)
}

func avgPtr(a, b *float64) float64 {
	switch {
	case a != nil && b != nil:
		return (*a + *b) / 2
	case a != nil:
		return *a
	case b != nil:
		return *b
	default:
		return 0
	}
}

// confidence normalizes how far signal exceeds threshold against the
// distance to ceiling, clipped to the spec's [0.5, 0.95] band.
func confidence(signal, threshold, ceiling float64) float64 {
	if ceiling <= threshold {
		return 0.5
	}
	frac := (signal - threshold) / (ceiling - threshold)
	c := 0.5 + frac*0.45
	if c < 0.5 {
		return 0.5
	}
	if c > 0.95 {
		return 0.95
	}
	return c
}
