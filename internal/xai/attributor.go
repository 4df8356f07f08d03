// Package xai produces the ranked, signed factor explanation attached to
// every evaluation. Rather than a trained model, each
// factor's impact is a one-at-a-time counterfactual: how much true_prob
// would change if that effect were removed, approximated from the cached
// per-leg hit-rate sensitivities rather than a full Monte Carlo re-run.
package xai

import (
	"math"
	"sort"

	"github.com/stitts-dev/parlay-evaluator/internal/parlay"
	"github.com/stitts-dev/parlay-evaluator/internal/quantizer"
)

const maxFactors = 8

// Attribute builds the ranked factor list from the quantizer's named
// effects plus the regime boost and any imputed correlations, linearizing
// each effect's contribution through the per-leg hit-rate sensitivity
// d(true_prob)/d(mean) ≈ hit_rate × (1 - hit_rate) / stddev (the normal
// density approximation at the threshold).
func Attribute(effects []quantizer.ContextEffect, perLegHitRate []float64, legKeys []parlay.PairKey, legStddevs []float64, regimeBoost float64, imputedPairs []parlay.ImputedPair) []parlay.Factor {
	sensitivity := make(map[parlay.PairKey]float64, len(legKeys))
	for i, key := range legKeys {
		if i >= len(perLegHitRate) || i >= len(legStddevs) || legStddevs[i] <= 0 {
			continue
		}
		h := perLegHitRate[i]
		sensitivity[key] = h * (1 - h) / legStddevs[i]
	}

	var factors []parlay.Factor
	for _, eff := range effects {
		impact := 0.0
		for key, delta := range eff.MeanDeltaBySubjectStat {
			impact += delta * sensitivity[key]
		}
		if impact == 0 {
			continue
		}
		factors = append(factors, parlay.Factor{
			Name:       eff.Name,
			Impact:     impact,
			Direction:  directionOf(impact),
			Detail:     eff.Detail,
			Confidence: confidence(impact, 0.10),
		})
	}

	if regimeBoost != 1.0 {
		boostEffect := regimeBoost - 1.0
		factors = append(factors, parlay.Factor{
			Name:       "regime_correlation_boost",
			Impact:     boostEffect,
			Direction:  directionOf(boostEffect),
			Detail:     "regime-conditional correlation boost applied to all pairwise correlations",
			Confidence: confidence(boostEffect, 0.5),
		})
	}

	for _, pair := range imputedPairs {
		factors = append(factors, parlay.Factor{
			Name:       "imputed_correlation",
			Impact:     0,
			Direction:  "positive",
			Detail:     "no stored correlation for " + pair.SubjectA + "/" + pair.StatA + " vs " + pair.SubjectB + "/" + pair.StatB + "; defaulted to 0",
			Confidence: 0,
		})
	}

	sort.SliceStable(factors, func(i, j int) bool {
		return math.Abs(factors[i].Impact) > math.Abs(factors[j].Impact)
	})

	if len(factors) > maxFactors {
		factors = factors[:maxFactors]
	}
	return factors
}

func directionOf(impact float64) string {
	if impact < 0 {
		return "negative"
	}
	return "positive"
}

// confidence expresses effect magnitude as a fraction of a plausible
// maximum, clipped to [0,1].
func confidence(impact, plausibleMax float64) float64 {
	if plausibleMax <= 0 {
		return 0
	}
	c := math.Abs(impact) / plausibleMax
	return math.Max(0, math.Min(1, c))
}
