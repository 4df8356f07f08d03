// Package evstats turns a copula sampler Output into the priced
// ParlayEvaluation fields: implied probability, EV%, fair odds, Kelly
// fraction, and the Wilson confidence interval.
package evstats

import (
	"math"

	"github.com/stitts-dev/parlay-evaluator/internal/config"
	"github.com/stitts-dev/parlay-evaluator/internal/copula"
	"github.com/stitts-dev/parlay-evaluator/internal/parlay"
)

// wilsonZ95 is the two-sided 95% normal quantile used by the Wilson
// score interval.
const wilsonZ95 = 1.959963984540054

// Estimate derives the priced fields of a ParlayEvaluation from a copula
// sampler Output, the per-leg American odds, and the sentiment shift the
// Feature Quantizer computed.
func Estimate(out copula.Output, oddsAmerican []int, nu, sentimentShift float64, cfg *config.Config) parlay.SimulationResult {
	independence := 1.0
	for _, rate := range out.PerLegHitRate {
		independence *= rate
	}

	corrMultiplier := 0.0
	if independence > 0 {
		corrMultiplier = out.TrueProb / independence
	}

	p := clamp(out.TrueProb+sentimentShift, 0.01, 0.99)

	ciLow, ciHigh := wilsonInterval(out.Successes, out.NSamples)

	return parlay.SimulationResult{
		TrueProb:       p,
		CILow:          ciLow,
		CIHigh:         ciHigh,
		CorrMultiplier: corrMultiplier,
		TailRisk:       1.0 / nu,
		PerLegHitRate:  out.PerLegHitRate,
	}
}

// Price computes the odds-dependent fields (implied probability, EV%,
// fair odds, Kelly fraction, recommendation) given the priced true
// probability and confidence interval from Estimate.
func Price(sim parlay.SimulationResult, oddsAmerican []int, cfg *config.Config) (impliedProb, evPct float64, fairOdds int, kelly float64, recommended bool) {
	payoutMultiple := 1.0
	impliedProb = 1.0
	for _, o := range oddsAmerican {
		decimal := DecimalOdds(o)
		payoutMultiple *= decimal
		impliedProb *= ImpliedProbability(o)
	}

	evPct = (sim.TrueProb*payoutMultiple - 1) * 100

	fairDecimal := 1.0 / sim.TrueProb
	fairOdds = DecimalToAmerican(fairDecimal)

	b := payoutMultiple - 1
	kelly = 0.0
	if b > 0 {
		kelly = math.Max(0, (sim.TrueProb*b-(1-sim.TrueProb))/b)
		kelly = math.Min(kelly, cfg.KellyCap)
	}

	const tolerance = 0.02
	recommended = evPct > 0 && sim.CILow*payoutMultiple > 1-tolerance

	return impliedProb, evPct, fairOdds, kelly, recommended
}

// ImpliedProbability converts American odds to implied probability.
func ImpliedProbability(oddsAmerican int) float64 {
	if oddsAmerican < 0 {
		abs := float64(-oddsAmerican)
		return abs / (abs + 100)
	}
	return 100 / (float64(oddsAmerican) + 100)
}

// DecimalOdds converts American odds to decimal odds.
func DecimalOdds(oddsAmerican int) float64 {
	if oddsAmerican < 0 {
		return 1 + 100/float64(-oddsAmerican)
	}
	return 1 + float64(oddsAmerican)/100
}

// DecimalToAmerican converts decimal odds back to the American convention.
func DecimalToAmerican(decimal float64) int {
	if decimal >= 2.0 {
		return int(math.Round((decimal - 1) * 100))
	}
	return int(math.Round(-100 / (decimal - 1)))
}

// wilsonInterval computes the two-sided 95% Wilson score interval for
// successes out of n Bernoulli trials.
func wilsonInterval(successes, n int) (lo, hi float64) {
	if n == 0 {
		return 0, 0
	}
	p := float64(successes) / float64(n)
	z := wilsonZ95
	z2 := z * z
	denom := 1 + z2/float64(n)
	center := p + z2/(2*float64(n))
	margin := z * math.Sqrt(p*(1-p)/float64(n)+z2/(4*float64(n)*float64(n)))
	lo = (center - margin) / denom
	hi = (center + margin) / denom
	return clamp(lo, 0, 1), clamp(hi, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
