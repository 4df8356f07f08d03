// Package evalcache is the optional read-through result cache sitting in
// front of the evaluation pipeline: a cache hit returns a previously
// computed ParlayEvaluation unchanged, it never alters evaluation
// semantics or error outcomes, and a cache miss or Redis error falls
// through to a live evaluation.
package evalcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/parlay-evaluator/internal/parlay"
	"github.com/stitts-dev/parlay-evaluator/internal/telemetry"
)

const keyPrefix = "parlay-eval:"

// Cache is a read-through Redis cache over ParlayEvaluation results.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Entry
}

// New connects to redisURL and returns a Cache, pinging once to fail
// fast on a misconfigured URL.
func New(redisURL string, ttl time.Duration) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Cache{client: client, ttl: ttl, logger: telemetry.WithComponent("evalcache")}, nil
}

// Key derives a deterministic cache key from the inputs that fully
// determine an evaluation's outcome: the legs, the marginals, the
// pairwise correlations, the seed, and the sample count. Two requests
// with the same key always produce the same evaluation; two requests
// with the same legs/seed but different marginals or correlations must
// never collide, so both are hashed directly rather than through an
// opaque version string.
func Key(legs []parlay.Leg, marginals []parlay.Marginal, correlations *parlay.CorrelationSnapshot, seed int64, sampleCount int) string {
	h := sha256.New()

	for _, leg := range legs {
		fmt.Fprintf(h, "leg|%s|%s|%s|%.4f|%s|%d;", leg.Kind, leg.SubjectID, leg.StatKind, leg.Line, leg.Direction, leg.OddsAmerican)
	}

	sortedMarginals := append([]parlay.Marginal(nil), marginals...)
	sort.Slice(sortedMarginals, func(i, j int) bool {
		a, b := sortedMarginals[i], sortedMarginals[j]
		if a.SubjectID != b.SubjectID {
			return a.SubjectID.String() < b.SubjectID.String()
		}
		return a.StatKind < b.StatKind
	})
	for _, m := range sortedMarginals {
		fmt.Fprintf(h, "m|%s|%s|%.6f|%.6f;", m.SubjectID, m.StatKind, m.Mean, m.Stddev)
	}

	for _, p := range correlations.Pairs() {
		fmt.Fprintf(h, "c|%s|%s|%s|%s|%.6f;", p.Key.A.SubjectID, p.Key.A.StatKind, p.Key.B.SubjectID, p.Key.B.StatKind, p.Rho)
	}

	fmt.Fprintf(h, "seed=%d;n=%d", seed, sampleCount)
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns a cached evaluation for key, or (nil, false) on a miss or
// any Redis error (a cache failure degrades to a live evaluation, it
// never surfaces as a request error).
func (c *Cache) Get(ctx context.Context, key string) (*parlay.ParlayEvaluation, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Debug("evaluation cache read failed, falling through to live evaluation")
		}
		return nil, false
	}

	var eval parlay.ParlayEvaluation
	if err := json.Unmarshal([]byte(raw), &eval); err != nil {
		c.logger.WithError(err).Warn("evaluation cache entry unparseable, discarding")
		return nil, false
	}
	return &eval, true
}

// Set stores eval under key with the cache's configured TTL. Errors are
// logged, not returned: a failed write must never fail the request that
// already has a valid evaluation in hand.
func (c *Cache) Set(ctx context.Context, key string, eval parlay.ParlayEvaluation) {
	if c == nil {
		return
	}
	data, err := json.Marshal(eval)
	if err != nil {
		c.logger.WithError(err).Warn("failed to marshal evaluation for caching")
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("failed to write evaluation to cache")
	}
}
