// Package marginal builds the standardized per-leg threshold the copula
// sampler tests against, and synthesizes marginals for legs that describe
// the game line itself rather than a player prop.
package marginal

import (
	"github.com/stitts-dev/parlay-evaluator/internal/parlay"
)

// NFL canonical spread/total standard deviations.
const (
	SpreadStddev = 13.86
	TotalStddev  = 10.66
)

// LegThreshold is one leg's standardized copula input: its pair key for
// correlation lookup, and the threshold z such that "win" is
// standardized_sample > z.
type LegThreshold struct {
	Leg       parlay.Leg
	Key       parlay.PairKey
	Z         float64
	Synthetic bool
}

// Build produces a LegThreshold for every leg. Player-prop legs are
// matched against the given marginals by (subject_id, stat_kind);
// moneyline/spread/total legs get a synthetic marginal derived from the
// game context. Returns MARGINAL_MISSING if a player-prop leg has no
// matching marginal.
func Build(legs []parlay.Leg, marginals []parlay.Marginal, ctx parlay.GameContext) ([]LegThreshold, error) {
	byKey := make(map[parlay.PairKey]parlay.Marginal, len(marginals))
	for _, m := range marginals {
		byKey[m.Key()] = m
	}

	out := make([]LegThreshold, 0, len(legs))
	for _, leg := range legs {
		if err := validateLeg(leg); err != nil {
			return nil, err
		}

		if leg.Kind == parlay.LegPlayerProp {
			m, ok := byKey[leg.Key()]
			if !ok {
				return nil, parlay.NewError(parlay.ErrMarginalMissing, "no marginal for player prop leg "+leg.StatKind)
			}
			out = append(out, LegThreshold{
				Leg: leg,
				Key: leg.Key(),
				Z:   threshold(leg, m.Mean, m.Stddev),
			})
			continue
		}

		mean, stddev, err := syntheticMoments(leg, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, LegThreshold{
			Leg:       leg,
			Key:       leg.Key(),
			Z:         threshold(leg, mean, stddev),
			Synthetic: true,
		})
	}
	return out, nil
}

// threshold computes z = sign * (line - mean) / stddev, the standardized
// threshold the copula sampler tests standardized_sample > z against.
func threshold(leg parlay.Leg, mean, stddev float64) float64 {
	return leg.Direction.Sign() * (leg.Line - mean) / stddev
}

func syntheticMoments(leg parlay.Leg, ctx parlay.GameContext) (mean, stddev float64, err error) {
	switch leg.Kind {
	case parlay.LegSpread:
		if ctx.Spread == nil {
			return 0, 0, parlay.NewError(parlay.ErrMarginalMissing, "no projected spread for spread leg")
		}
		return *ctx.Spread, SpreadStddev, nil
	case parlay.LegTotal:
		if ctx.Total == nil {
			return 0, 0, parlay.NewError(parlay.ErrMarginalMissing, "no projected total for total leg")
		}
		return *ctx.Total, TotalStddev, nil
	case parlay.LegMoneyline:
		if ctx.Spread == nil {
			return 0, 0, parlay.NewError(parlay.ErrMarginalMissing, "no projected spread for moneyline leg")
		}
		// Moneyline reuses the spread projection: margin > 0 wins.
		return *ctx.Spread, SpreadStddev, nil
	default:
		return 0, 0, parlay.NewError(parlay.ErrInvalidLeg, "unsupported synthetic leg kind "+string(leg.Kind))
	}
}

func validateLeg(leg parlay.Leg) error {
	if leg.Kind == parlay.LegPlayerProp && leg.StatKind == "" {
		return parlay.NewError(parlay.ErrInvalidLeg, "player_prop leg missing stat_kind")
	}
	if leg.Direction != parlay.Over && leg.Direction != parlay.Under {
		return parlay.NewError(parlay.ErrInvalidLeg, "leg direction must be over or under")
	}
	abs := leg.OddsAmerican
	if abs < 0 {
		abs = -abs
	}
	if leg.OddsAmerican < -10000 || leg.OddsAmerican > 10000 {
		return parlay.NewError(parlay.ErrInvalidLeg, "odds_american out of range")
	}
	if abs < 100 {
		return parlay.NewError(parlay.ErrInvalidLeg, "odds_american falls in forbidden (-100,100) interval")
	}
	return nil
}
