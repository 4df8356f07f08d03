// Package psdrepair restores positive-semi-definiteness of the assembled
// correlation matrix and computes its Cholesky factor, escalating from a
// direct attempt through eigenvalue clipping to ridge regularization.
package psdrepair

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/stitts-dev/parlay-evaluator/internal/config"
	"github.com/stitts-dev/parlay-evaluator/internal/parlay"
	"github.com/stitts-dev/parlay-evaluator/internal/telemetry"
)

// Result is the PSD repair's output: the lower-triangular factor L such
// that L·Lᵀ ≈ R, and whether repair had to alter R to get there.
type Result struct {
	L       *mat.TriDense
	Repaired bool
}

// Repair attempts a direct Cholesky of r. On failure it clips negative
// eigenvalues and rescales to a unit diagonal, then retries; if that
// still fails it escalates a ridge term, doubling epsilon from
// cfg.RidgeInitialEpsilon up to cfg.RidgeMaxEpsilon. Returns
// NonRepairableCorrelation if the ridge cap is exceeded.
func Repair(r *mat.SymDense, cfg *config.Config) (Result, error) {
	log := telemetry.WithComponent("psdrepair")

	if l, ok := cholesky(r); ok {
		return Result{L: l, Repaired: false}, nil
	}

	if clipped, ok := eigenClip(r, cfg.EigenvalueFloor); ok {
		if l, ok := cholesky(clipped); ok {
			log.Debug("repaired correlation matrix via eigenvalue clipping")
			return Result{L: l, Repaired: true}, nil
		}
		r = clipped
	}

	eps := cfg.RidgeInitialEpsilon
	var lastErr error
	for eps <= cfg.RidgeMaxEpsilon {
		ridged := applyRidge(r, eps)
		if l, ok := cholesky(ridged); ok {
			log.WithField("epsilon", eps).Debug("repaired correlation matrix via ridge escalation")
			return Result{L: l, Repaired: true}, nil
		}
		lastErr = fmt.Errorf("cholesky factorization failed at ridge epsilon %g", eps)
		eps *= 2
	}

	return Result{}, parlay.WrapError(parlay.ErrNonRepairableCorrelation, "correlation matrix is not PSD-repairable within ridge cap", lastErr)
}

func cholesky(r *mat.SymDense) (*mat.TriDense, bool) {
	var chol mat.Cholesky
	if !chol.Factorize(r) {
		return nil, false
	}
	var l mat.TriDense
	chol.LTo(&l)
	return &l, true
}

// eigenClip computes the symmetric eigendecomposition of r, floors every
// eigenvalue at floor, reconstructs R' = Q·diag(λ')·Qᵀ, then rescales so
// the diagonal is exactly 1 (unit-diagonal correlation matrix).
func eigenClip(r *mat.SymDense, floor float64) (*mat.SymDense, bool) {
	var eig mat.EigenSym
	if !eig.Factorize(r, true) {
		return nil, false
	}

	n, _ := r.Dims()
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	clipped := make([]float64, n)
	for i, v := range values {
		clipped[i] = math.Max(v, floor)
	}

	// reconstructed = Q * diag(clipped) * Q^T
	diag := mat.NewDiagDense(n, clipped)
	var qd mat.Dense
	qd.Mul(&vectors, diag)
	var reconstructed mat.Dense
	reconstructed.Mul(&qd, vectors.T())

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, reconstructed.At(i, j))
		}
	}

	// Rescale off-diagonals so the diagonal is unit (correlation form):
	// rho'_ij = rho_ij / sqrt(d_ii * d_jj).
	d := make([]float64, n)
	for i := 0; i < n; i++ {
		d[i] = math.Sqrt(math.Max(out.At(i, i), floor))
	}
	rescaled := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if i == j {
				rescaled.SetSym(i, j, 1)
				continue
			}
			rescaled.SetSym(i, j, out.At(i, j)/(d[i]*d[j]))
		}
	}

	return rescaled, true
}

func applyRidge(r *mat.SymDense, eps float64) *mat.SymDense {
	n, _ := r.Dims()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := (1 - eps) * r.At(i, j)
			if i == j {
				v += eps
			}
			out.SetSym(i, j, v)
		}
	}
	return out
}
