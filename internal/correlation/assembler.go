// Package correlation assembles the square symmetric correlation matrix R
// the PSD repair and copula stages consume, looking up each leg pair in
// the snapshot (falling back to an optional live collaborator on a
// snapshot miss), applying direction sign-flips and the regime's
// correlation boost, and mirroring the result across the diagonal.
package correlation

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/stitts-dev/parlay-evaluator/internal/marginal"
	"github.com/stitts-dev/parlay-evaluator/internal/parlay"
	"github.com/stitts-dev/parlay-evaluator/pkg/snapshot"
)

// Assembled is the correlation assembler's output: the dense symmetric
// matrix and the bookkeeping needed for the explanation.
type Assembled struct {
	R            *mat.SymDense
	ImputedPairs []parlay.ImputedPair
}

// Assemble builds R from the correlations between each pair of legs.
// snap is consulted first; if a pair is missing and live is non-nil, live
// is consulted before the pair is imputed to 0. Each rho is sign-flipped
// per "under" leg, multiplied by the regime's correlation boost, and
// clipped to [-clipBound, clipBound].
func Assemble(ctx context.Context, legs []marginal.LegThreshold, snap *parlay.CorrelationSnapshot, regime parlay.Regime, clipBound float64, live snapshot.PairCorrelationLookup) Assembled {
	n := len(legs)
	r := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		r.SetSym(i, i, 1)
	}

	var imputed []parlay.ImputedPair
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			rho, ok := snap.Lookup(legs[i].Key, legs[j].Key)
			if !ok && live != nil {
				rho, ok = live.GetPairCorrelation(ctx, legs[i].Key, legs[j].Key)
			}
			if !ok {
				imputed = append(imputed, parlay.ImputedPair{
					SubjectA: legs[i].Key.SubjectID.String(),
					StatA:    legs[i].Key.StatKind,
					SubjectB: legs[j].Key.SubjectID.String(),
					StatB:    legs[j].Key.StatKind,
				})
				rho = 0
			}

			if legs[i].Leg.Direction == parlay.Under {
				rho = -rho
			}
			if legs[j].Leg.Direction == parlay.Under {
				rho = -rho
			}

			rho *= regime.CorrBoost
			rho = clamp(rho, -clipBound, clipBound)

			r.SetSym(i, j, rho)
		}
	}

	return Assembled{R: r, ImputedPairs: imputed}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
