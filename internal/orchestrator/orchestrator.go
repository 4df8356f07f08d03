// Package orchestrator composes the Feature Quantizer, Regime Classifier,
// Marginal Builder, Correlation Assembler, PSD Repair, Copula Sampler,
// EV/CI Estimator, and XAI Attributor into the single evaluate() pipeline,
// enforcing the hard deadline between stages and warming the
// copula kernel cache at startup.
package orchestrator

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/stitts-dev/parlay-evaluator/internal/config"
	"github.com/stitts-dev/parlay-evaluator/internal/copula"
	"github.com/stitts-dev/parlay-evaluator/internal/correlation"
	"github.com/stitts-dev/parlay-evaluator/internal/evalcache"
	"github.com/stitts-dev/parlay-evaluator/internal/evstats"
	"github.com/stitts-dev/parlay-evaluator/internal/marginal"
	"github.com/stitts-dev/parlay-evaluator/internal/parlay"
	"github.com/stitts-dev/parlay-evaluator/internal/psdrepair"
	"github.com/stitts-dev/parlay-evaluator/internal/quantizer"
	"github.com/stitts-dev/parlay-evaluator/internal/regime"
	"github.com/stitts-dev/parlay-evaluator/internal/telemetry"
	"github.com/stitts-dev/parlay-evaluator/internal/xai"
	"github.com/stitts-dev/parlay-evaluator/pkg/snapshot"
)

// maxWarmLegs is the widest leg count the startup warmup compiles a
// kernel for; the copula sampler itself enforces the same n<=6 cap.
const maxWarmLegs = 6

// resultCacheTTL bounds how long a cached evaluation survives before the
// underlying marginals/correlations are assumed stale.
const resultCacheTTL = 5 * time.Minute

// breakerResetTimeout is how long the live-correlation-lookup breaker
// stays open before allowing a single trial request through.
const breakerResetTimeout = 30 * time.Second

// Orchestrator owns the shared, write-once kernel cache and the optional
// ambient integrations (result cache, scheduled re-warm, live correlation
// lookup).
type Orchestrator struct {
	cfg        *config.Config
	kernels    *copula.Cache
	cache      *evalcache.Cache
	cron       *cron.Cron
	liveLookup *snapshot.BreakerGuardedLookup
	log        *logrus.Entry
}

// Option configures optional Orchestrator wiring.
type Option func(*Orchestrator)

// WithLiveCorrelationLookup wraps live in a circuit breaker (tripping
// after cfg.CircuitBreakerErrors consecutive failures) and has the
// Correlation Assembler consult it whenever a pair is missing from the
// caller-supplied snapshot, instead of imputing 0 immediately.
func WithLiveCorrelationLookup(live snapshot.PairCorrelationLookup) Option {
	return func(o *Orchestrator) {
		o.liveLookup = snapshot.NewBreakerGuardedLookup(live, o.cfg.CircuitBreakerErrors, breakerResetTimeout)
	}
}

// New builds an Orchestrator, warming the copula kernel cache for every
// leg count from 1 to maxWarmLegs at cfg.DefaultSampleCount, bounded by
// runtime.NumCPU() concurrent compiles. If cfg.EnableResultCache is set,
// it also connects a Redis-backed evaluation cache; if
// cfg.EnableScheduledWarm is set, it starts a cron job that re-warms the
// kernel cache (a no-op once warmed: the kernel cache never evicts, so
// each run finds every kernel already compiled).
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	log := telemetry.WithComponent("orchestrator")

	o := &Orchestrator{
		cfg:     cfg,
		kernels: copula.NewCache(),
		log:     log,
	}

	for _, opt := range opts {
		opt(o)
	}

	if err := o.warmKernels(ctx); err != nil {
		return nil, err
	}

	if cfg.EnableResultCache {
		c, err := evalcache.New(cfg.RedisURL, resultCacheTTL)
		if err != nil {
			log.WithError(err).Warn("result cache unavailable, evaluations will not be cached")
		} else {
			o.cache = c
		}
	}

	if cfg.EnableScheduledWarm {
		o.startScheduledWarm(cfg.ScheduledWarmCron)
	}

	return o, nil
}

func (o *Orchestrator) warmKernels(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for n := 1; n <= maxWarmLegs; n++ {
		n := n
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return o.kernels.Warm(n, o.cfg.DefaultSampleCount)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	o.log.WithField("max_legs", maxWarmLegs).WithField("sample_count", o.cfg.DefaultSampleCount).Info("copula kernel cache warmed")
	return nil
}

func (o *Orchestrator) startScheduledWarm(schedule string) {
	o.cron = cron.New(cron.WithLogger(cron.VerbosePrintfLogger(telemetry.Get())))
	_, err := o.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := o.warmKernels(ctx); err != nil {
			o.log.WithError(err).Warn("scheduled kernel re-warm failed")
		}
	})
	if err != nil {
		o.log.WithError(err).Warn("failed to register scheduled kernel re-warm, skipping")
		o.cron = nil
		return
	}
	o.cron.Start()
}

// Stop releases the orchestrator's background resources, waiting up to 10
// seconds for an in-flight scheduled warm to finish.
func (o *Orchestrator) Stop() {
	if o.cron == nil {
		return
	}
	stopCtx := o.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(10 * time.Second):
	}
}

// deadlineExceeded checks elapsed against the configured hard deadline.
func (o *Orchestrator) deadlineExceeded(start time.Time) bool {
	return time.Since(start) > o.cfg.Deadline()
}

func (o *Orchestrator) degraded(start time.Time, seed int64) parlay.ParlayEvaluation {
	return parlay.ParlayEvaluation{
		Recommended: false,
		Explanation: parlay.Explanation{
			Regime:  parlay.RegimeNormal,
			Factors: []parlay.Factor{},
		},
		SimulationMeta: parlay.SimulationMeta{
			Millis: time.Since(start).Milliseconds(),
			Seed:   seed,
		},
	}
}

// Evaluate runs the full pipeline for one parlay: quantize context onto
// the marginals, classify the regime, build standardized leg thresholds,
// assemble and repair the correlation matrix, sample the copula, price
// the result, and attribute the ranked explanation. If the hard deadline
// (cfg.DeadlineMillis, default 500ms) is exceeded at any stage boundary,
// Evaluate returns a degraded, unrecommended result wrapping
// DEADLINE_EXCEEDED rather than completing a late computation.
func (o *Orchestrator) Evaluate(
	ctx context.Context,
	gameCtx parlay.GameContext,
	legs []parlay.Leg,
	marginals []parlay.Marginal,
	correlations *parlay.CorrelationSnapshot,
	seed int64,
	sampleCount int,
) (parlay.ParlayEvaluation, error) {
	start := time.Now()

	if len(legs) == 0 {
		return parlay.ParlayEvaluation{}, parlay.NewError(parlay.ErrInvalidLeg, "a parlay requires at least one leg")
	}
	if len(legs) > o.cfg.MaxLegs {
		return parlay.ParlayEvaluation{}, parlay.NewError(parlay.ErrTooManyLegs, "parlay exceeds max leg count")
	}
	if seed == 0 {
		seed = o.cfg.DefaultSeed
	}
	if sampleCount <= 0 {
		sampleCount = o.cfg.DefaultSampleCount
	}

	log := telemetry.WithEvaluation(uuid.NewString(), len(legs))

	var cacheKey string
	if o.cache != nil {
		cacheKey = evalcache.Key(legs, marginals, correlations, seed, sampleCount)
		if cached, ok := o.cache.Get(ctx, cacheKey); ok {
			log.Debug("evaluation cache hit")
			return *cached, nil
		}
	}

	quantized := quantizer.Quantize(gameCtx, marginals, correlations)

	if o.deadlineExceeded(start) {
		return o.degraded(start, seed), parlay.NewError(parlay.ErrDeadlineExceeded, "deadline exceeded before regime classification")
	}
	r := regime.Classify(gameCtx)

	if o.deadlineExceeded(start) {
		return o.degraded(start, seed), parlay.NewError(parlay.ErrDeadlineExceeded, "deadline exceeded before marginal build")
	}
	thresholds, err := marginal.Build(legs, quantized.Marginals, gameCtx)
	if err != nil {
		return parlay.ParlayEvaluation{}, err
	}

	if o.deadlineExceeded(start) {
		return o.degraded(start, seed), parlay.NewError(parlay.ErrDeadlineExceeded, "deadline exceeded before correlation assembly")
	}
	var live snapshot.PairCorrelationLookup
	if o.liveLookup != nil {
		live = o.liveLookup
	}
	assembled := correlation.Assemble(ctx, thresholds, correlations, r, o.cfg.CorrelationClip, live)

	if o.deadlineExceeded(start) {
		return o.degraded(start, seed), parlay.NewError(parlay.ErrDeadlineExceeded, "deadline exceeded before PSD repair")
	}
	repaired, err := psdrepair.Repair(assembled.R, o.cfg)
	if err != nil {
		return parlay.ParlayEvaluation{}, err
	}

	if o.deadlineExceeded(start) {
		return o.degraded(start, seed), parlay.NewError(parlay.ErrDeadlineExceeded, "deadline exceeded before copula sampling")
	}

	n := len(legs)
	z := make([]float64, n)
	legKeys := make([]parlay.PairKey, n)
	legStddevs := make([]float64, n)
	oddsAmerican := make([]int, n)
	marginalByKey := make(map[parlay.PairKey]parlay.Marginal, len(quantized.Marginals))
	for _, m := range quantized.Marginals {
		marginalByKey[m.Key()] = m
	}
	for i, lt := range thresholds {
		z[i] = lt.Z
		legKeys[i] = lt.Key
		oddsAmerican[i] = lt.Leg.OddsAmerican
		if m, ok := marginalByKey[lt.Key]; ok {
			legStddevs[i] = m.Stddev
		} else {
			legStddevs[i] = marginal.SpreadStddev
		}
	}

	sampleStart := time.Now()
	out, err := copula.Sample(o.kernels, repaired.L, z, r.Nu, o.cfg.MinNu, o.cfg.MaxNu, seed, n, sampleCount)
	if err != nil {
		return parlay.ParlayEvaluation{}, err
	}
	if elapsed := time.Since(sampleStart); elapsed > o.cfg.LatencyBudget() {
		log.WithField("millis", elapsed.Milliseconds()).Warn("copula sampling exceeded latency budget")
	}

	if o.deadlineExceeded(start) {
		return o.degraded(start, seed), parlay.NewError(parlay.ErrDeadlineExceeded, "deadline exceeded before EV/CI estimation")
	}

	sim := evstats.Estimate(out, oddsAmerican, r.Nu, quantized.SentimentShift, o.cfg)
	impliedProb, evPct, fairOdds, kelly, recommended := evstats.Price(sim, oddsAmerican, o.cfg)

	payoutMultiple := 1.0
	for _, odds := range oddsAmerican {
		payoutMultiple *= evstats.DecimalOdds(odds)
	}
	sportsbookOdds := evstats.DecimalToAmerican(payoutMultiple)

	factors := xai.Attribute(quantized.Effects, out.PerLegHitRate, legKeys, legStddevs, r.CorrBoost, assembled.ImputedPairs)

	eval := parlay.ParlayEvaluation{
		SimulationResult: sim,
		ImpliedProb:      impliedProb,
		EVPct:            evPct,
		FairOddsAmerican: fairOdds,
		SportsbookOdds:   sportsbookOdds,
		KellyFraction:    kelly,
		Recommended:      recommended,
		Explanation: parlay.Explanation{
			Regime:          r.Label,
			RegimeReasoning: r.Reasoning,
			Factors:         factors,
			ImputedPairs:    assembled.ImputedPairs,
		},
		SimulationMeta: parlay.SimulationMeta{
			Millis:   time.Since(start).Milliseconds(),
			NSamples: sampleCount,
			Nu:       r.Nu,
			WarmedUp: true,
			Seed:     seed,
		},
	}

	if o.cache != nil {
		o.cache.Set(ctx, cacheKey, eval)
	}

	log.WithFields(logrus.Fields{
		"regime":      r.Label,
		"true_prob":   eval.TrueProb,
		"recommended": eval.Recommended,
		"millis":      eval.SimulationMeta.Millis,
		"repaired":    repaired.Repaired,
	}).Info("evaluated parlay")

	return eval, nil
}
