// Package quantizer converts weather/injury/sentiment game context into
// numeric mean adjustments on marginals, plus the sentiment shift later
// applied to the posterior joint probability. Every rule is a
// deterministic pure function with no hidden state.
package quantizer

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/parlay-evaluator/internal/parlay"
	"github.com/stitts-dev/parlay-evaluator/internal/telemetry"
)

// PassingKinds are the stat kinds whose mean is subject to the wind,
// temperature, and precipitation penalties. RushingKinds receive half the
// wind penalty as a boost.
var PassingKinds = map[string]bool{
	"pass_yards": true, "pass_tds": true, "pass_completions": true,
	"receiving_yards": true, "receptions": true, "receiving_tds": true,
}

var RushingKinds = map[string]bool{
	"rush_yards": true, "rush_attempts": true, "rush_tds": true,
}

// ContextEffect names one Feature Quantizer adjustment, attributed later
// by the XAI Attributor.
type ContextEffect struct {
	Name   string
	Detail string
	// MeanDeltaBySubjectStat holds, for each affected (subject, stat)
	// pair, the additive change this effect applied to that marginal's
	// mean, so the effect can be reversed one-at-a-time for attribution.
	MeanDeltaBySubjectStat map[parlay.PairKey]float64
}

// Result is the Feature Quantizer's output: adjusted marginals, the
// named effects that produced the adjustments, and the sentiment shift
// to be applied downstream by the EV/CI Estimator.
type Result struct {
	Marginals      []parlay.Marginal
	Effects        []ContextEffect
	SentimentShift float64
}

// Quantize applies the deterministic weather/injury/sentiment rules from
// the deterministic weather/injury/sentiment rules to a snapshot of marginals for one request. correlations
// is used only to look up teammate correlations for the injury-impact
// rule; it is the same snapshot the Correlation Assembler consumes later.
func Quantize(ctx parlay.GameContext, marginals []parlay.Marginal, correlations *parlay.CorrelationSnapshot) Result {
	log := telemetry.WithComponent("quantizer")

	out := make([]parlay.Marginal, len(marginals))
	copy(out, marginals)

	var effects []ContextEffect

	if ctx.WindMPH != nil {
		effects = append(effects, applyWindPenalty(out, *ctx.WindMPH)...)
	}
	if ctx.TempF != nil {
		effects = append(effects, applyTemperaturePenalty(out, *ctx.TempF)...)
	}
	if ctx.PrecipProb != nil {
		effects = append(effects, applyPrecipPenalty(out, *ctx.PrecipProb)...)
	}
	for _, injury := range ctx.Injuries {
		if eff, ok := applyInjuryImpact(out, injury, correlations); ok {
			effects = append(effects, eff)
		}
	}

	shift := 0.0
	if ctx.Sentiment != nil {
		shift = clamp((*ctx.Sentiment-0.5)*2*0.10, -0.10, 0.10)
	}

	log.WithFields(logrus.Fields{
		"effect_count":    len(effects),
		"sentiment_shift": shift,
	}).Debug("quantized feature context")

	return Result{Marginals: out, Effects: effects, SentimentShift: shift}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// windPenaltyFraction returns the passing-mean penalty fraction for a
// given wind speed (0 below 12mph, linear 2%/mph from
// 12-18, then 12% + 3%/mph above 18, capped at 40%).
func windPenaltyFraction(windMPH float64) float64 {
	var pct float64
	switch {
	case windMPH < 12:
		pct = 0
	case windMPH <= 18:
		pct = (windMPH - 12) * 0.02
	default:
		pct = 0.12 + (windMPH-18)*0.03
	}
	return math.Min(pct, 0.40)
}

func applyWindPenalty(marginals []parlay.Marginal, windMPH float64) []ContextEffect {
	penalty := windPenaltyFraction(windMPH)
	if penalty == 0 {
		return nil
	}

	passDelta := map[parlay.PairKey]float64{}
	rushDelta := map[parlay.PairKey]float64{}

	for i := range marginals {
		m := &marginals[i]
		switch {
		case PassingKinds[m.StatKind]:
			delta := -m.Mean * penalty
			m.Mean += delta
			passDelta[m.Key()] = delta
		case RushingKinds[m.StatKind]:
			// Running game receives a boost equal to half the passing
			// penalty (defenses sell out against the run less in wind).
			boost := m.Mean * penalty * 0.5
			m.Mean += boost
			rushDelta[m.Key()] = boost
		}
	}

	var effects []ContextEffect
	if len(passDelta) > 0 {
		effects = append(effects, ContextEffect{
			Name:                   "wind_passing_penalty",
			Detail:                 fmt.Sprintf("wind %.1f mph: passing penalty %.1f%%", windMPH, penalty*100),
			MeanDeltaBySubjectStat: passDelta,
		})
	}
	if len(rushDelta) > 0 {
		effects = append(effects, ContextEffect{
			Name:                   "wind_rushing_boost",
			Detail:                 fmt.Sprintf("wind %.1f mph: rushing boost %.1f%%", windMPH, penalty*50),
			MeanDeltaBySubjectStat: rushDelta,
		})
	}
	return effects
}

// applyTemperaturePenalty applies the §4.1 "further 0.03x passing penalty
// additive" rule below 25°F, expressed as an additional 3% reduction of
// the (already wind-adjusted) passing mean.
func applyTemperaturePenalty(marginals []parlay.Marginal, tempF float64) []ContextEffect {
	if tempF >= 25 {
		return nil
	}
	delta := map[parlay.PairKey]float64{}
	for i := range marginals {
		m := &marginals[i]
		if !PassingKinds[m.StatKind] {
			continue
		}
		reduction := m.Mean * 0.03
		m.Mean -= reduction
		delta[m.Key()] = -reduction
	}
	if len(delta) == 0 {
		return nil
	}
	return []ContextEffect{{
		Name:                   "cold_temperature_penalty",
		Detail:                 fmt.Sprintf("temp %.0f°F below 25°F threshold: additional passing penalty", tempF),
		MeanDeltaBySubjectStat: delta,
	}}
}

func applyPrecipPenalty(marginals []parlay.Marginal, precipProb float64) []ContextEffect {
	if precipProb <= 0 {
		return nil
	}
	penalty := precipProb * 0.05
	delta := map[parlay.PairKey]float64{}
	for i := range marginals {
		m := &marginals[i]
		if !PassingKinds[m.StatKind] {
			continue
		}
		reduction := m.Mean * penalty
		m.Mean -= reduction
		delta[m.Key()] = -reduction
	}
	if len(delta) == 0 {
		return nil
	}
	return []ContextEffect{{
		Name:                   "precipitation_penalty",
		Detail:                 fmt.Sprintf("precip prob %.0f%%: passing penalty %.1f%%", precipProb*100, penalty*100),
		MeanDeltaBySubjectStat: delta,
	}}
}

// applyInjuryImpact applies the teammate-correlation injury
// rule: for each marginal m, reduce m.Mean by
// severity(status) * impact * rho(player, m.subject, m.stat).
func applyInjuryImpact(marginals []parlay.Marginal, injury parlay.Injury, correlations *parlay.CorrelationSnapshot) (ContextEffect, bool) {
	severity := injury.Status.Severity()
	if severity == 0 || injury.Impact == 0 {
		return ContextEffect{}, false
	}

	delta := map[parlay.PairKey]float64{}
	injuredKey := parlay.PairKey{SubjectID: injury.PlayerID}

	for i := range marginals {
		m := &marginals[i]
		mKey := m.Key()
		if mKey.SubjectID == injury.PlayerID {
			continue
		}
		rho, ok := correlations.Lookup(parlay.PairKey{SubjectID: injuredKey.SubjectID, StatKind: m.StatKind}, mKey)
		if !ok || rho == 0 {
			continue
		}
		reduction := severity * injury.Impact * rho
		m.Mean -= reduction
		delta[mKey] = -reduction
	}

	if len(delta) == 0 {
		return ContextEffect{}, false
	}
	return ContextEffect{
		Name:                   "injury_" + injury.PlayerID.String(),
		Detail:                 fmt.Sprintf("%s (%s, impact %.2f) reduces correlated teammates", injury.PlayerID, injury.Status, injury.Impact),
		MeanDeltaBySubjectStat: delta,
	}, true
}
