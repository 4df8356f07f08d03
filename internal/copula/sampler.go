package copula

import (
	"fmt"
	"math"
	mrand "math/rand"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/stitts-dev/parlay-evaluator/internal/parlay"
)

// Output is the copula sampler's raw result: the joint and per-leg hit
// rates estimated from N Monte Carlo draws. Downstream stages (EV/CI
// Estimator) derive correlation multiplier, confidence interval, and tail
// risk from these.
type Output struct {
	TrueProb      float64
	PerLegHitRate []float64
	Successes     int
	NSamples      int
}

// wSeedSalt decorrelates the chi-squared draw stream from the normal draw
// stream when both are derived from the same caller-supplied seed.
const wSeedSalt = 0x9E3779B97F4A7C15

// Sample draws N standardized Student-t(ν) vectors correlated by l (the
// Cholesky factor of the repaired correlation matrix) and tests each
// against its threshold z. z is compared directly against the Student-t
// samples; no Student-t CDF or per-leg marginal inversion is applied.
// nu is validated against (minNu, maxNu]: at or below minNu it is
// rejected as DEGREES_OF_FREEDOM_TOO_LOW, above maxNu it is clamped down
// rather than rejected, since an overly light-tailed regime assignment is
// a config/regime-tuning concern, not a request error.
func Sample(cache *Cache, l *mat.TriDense, z []float64, nu, minNu, maxNu float64, seed int64, n, N int) (Output, error) {
	if nu <= minNu {
		return Output{}, parlay.NewError(parlay.ErrDegreesOfFreedomTooLow, fmt.Sprintf("nu must exceed %.2f for a defined variance", minNu))
	}
	if nu > maxNu {
		nu = maxNu
	}
	if n > 6 {
		return Output{}, parlay.NewError(parlay.ErrTooManyLegs, "copula sampler supports at most 6 legs")
	}
	if n == 0 {
		return Output{}, nil
	}

	k, err := cache.get(n, N)
	if err != nil {
		return Output{}, parlay.WrapError(parlay.ErrNonRepairableCorrelation, "copula kernel unavailable for this leg count", err)
	}

	zFlat := drawStandardNormals(seed, N, n)
	lFlat := flattenTri(l, n)

	y, err := k.run(zFlat, lFlat, n, N)
	if err != nil {
		return Output{}, parlay.WrapError(parlay.ErrNonRepairableCorrelation, "copula kernel run failed", err)
	}

	s := drawChiScale(seed^wSeedSalt, nu, N)

	jointHits := 0
	perLegHits := make([]int, n)
	for i := 0; i < N; i++ {
		allHit := true
		for j := 0; j < n; j++ {
			t := y[i*n+j] / s[i]
			if t > z[j] {
				perLegHits[j]++
			} else {
				allHit = false
			}
		}
		if allHit {
			jointHits++
		}
	}

	perLegRate := make([]float64, n)
	for j := range perLegRate {
		perLegRate[j] = float64(perLegHits[j]) / float64(N)
	}

	return Output{
		TrueProb:      float64(jointHits) / float64(N),
		PerLegHitRate: perLegRate,
		Successes:     jointHits,
		NSamples:      N,
	}, nil
}

// drawStandardNormals returns N*n iid standard normal draws in row-major
// (sample, leg) order, seeded deterministically from seed.
func drawStandardNormals(seed int64, N, n int) []float64 {
	src := mrand.New(mrand.NewSource(seed))
	out := make([]float64, N*n)
	for i := range out {
		out[i] = src.NormFloat64()
	}
	return out
}

// drawChiScale returns s_i = sqrt(W_i/ν) for N iid chi-squared(ν) draws,
// using a seed stream independent of the normal draws. Reusing one seed
// for both would silently correlate the two draw streams.
func drawChiScale(seed int64, nu float64, N int) []float64 {
	chi := distuv.ChiSquared{K: nu, Src: rand.NewSource(uint64(seed))}
	out := make([]float64, N)
	for i := range out {
		out[i] = math.Sqrt(chi.Rand() / nu)
	}
	return out
}

// flattenTri copies the n x n lower-triangular factor into a row-major
// slice with zeros above the diagonal.
func flattenTri(l *mat.TriDense, n int) []float64 {
	out := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			out[i*n+j] = l.At(i, j)
		}
	}
	return out
}
