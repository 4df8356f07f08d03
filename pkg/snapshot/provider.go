// Package snapshot defines the read-only external-collaborator
// interfaces the orchestrator consumes and an in-memory adapter over
// them, plus an optional circuit-breaker-guarded live correlation lookup
// used only when the static snapshot is missing a pair.
package snapshot

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/stitts-dev/parlay-evaluator/internal/parlay"
	"github.com/stitts-dev/parlay-evaluator/internal/telemetry"
)

// MarginalProvider is the read-only external collaborator that supplies
// precomputed player/team marginals for a game.
type MarginalProvider interface {
	GetMarginals(ctx context.Context, gameID string) ([]parlay.Marginal, error)
}

// PairCorrelationLookup is the read-only external collaborator that
// supplies a single pair correlation on demand. A missing pair is not an error: implementations
// return (0, false).
type PairCorrelationLookup interface {
	GetPairCorrelation(ctx context.Context, a, b parlay.PairKey) (rho float64, found bool)
}

// StaticSnapshot is an in-memory MarginalProvider/PairCorrelationLookup
// backed by data already fetched for the request (the common case: the
// caller supplies a frozen snapshot rather than a live collaborator).
type StaticSnapshot struct {
	marginals    []parlay.Marginal
	correlations *parlay.CorrelationSnapshot
}

// NewStaticSnapshot wraps a pre-fetched marginals list and correlation
// snapshot as read-only collaborators.
func NewStaticSnapshot(marginals []parlay.Marginal, correlations *parlay.CorrelationSnapshot) *StaticSnapshot {
	return &StaticSnapshot{marginals: marginals, correlations: correlations}
}

func (s *StaticSnapshot) GetMarginals(_ context.Context, _ string) ([]parlay.Marginal, error) {
	return s.marginals, nil
}

func (s *StaticSnapshot) GetPairCorrelation(_ context.Context, a, b parlay.PairKey) (float64, bool) {
	return s.correlations.Lookup(a, b)
}

// BreakerGuardedLookup wraps a live PairCorrelationLookup collaborator
// with a circuit breaker so a slow or failing live data source degrades
// to "imputed 0" (a value, not an error) instead of stalling the request.
type BreakerGuardedLookup struct {
	live    PairCorrelationLookup
	breaker *gobreaker.CircuitBreaker[float64]
}

// NewBreakerGuardedLookup builds a breaker-guarded wrapper around live,
// tripping after failureThreshold consecutive failures; once open, the
// breaker stays open for timeout before letting a single trial call through.
func NewBreakerGuardedLookup(live PairCorrelationLookup, failureThreshold uint32, timeout time.Duration) *BreakerGuardedLookup {
	log := telemetry.WithComponent("snapshot_breaker")

	settings := gobreaker.Settings{
		Name:        "live-correlation-lookup",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithField("from", from.String()).WithField("to", to.String()).Info("live correlation lookup breaker state changed")
		},
	}

	return &BreakerGuardedLookup{
		live:    live,
		breaker: gobreaker.NewCircuitBreaker[float64](settings),
	}
}

// GetPairCorrelation calls the live collaborator through the breaker. A
// live "not found" is a normal outcome (per PairCorrelationLookup's
// contract) and never counts as a breaker failure; only the live call
// failing to complete within ctx does. Either a breaker-open state or a
// context deadline degrades to (0, false), identical to a static
// snapshot miss.
func (b *BreakerGuardedLookup) GetPairCorrelation(ctx context.Context, a, c parlay.PairKey) (float64, bool) {
	var found bool
	rho, err := b.breaker.Execute(func() (float64, error) {
		v, f := b.live.GetPairCorrelation(ctx, a, c)
		found = f
		return v, ctx.Err()
	})
	if err != nil {
		return 0, false
	}
	return rho, found
}
