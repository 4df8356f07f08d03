package parlay

import "sort"

// CorrelationSnapshot is the read-only pair-correlation data an
// orchestrator call is given. Missing pairs are not an error: they
// default to 0 and are surfaced as "imputed".
type CorrelationSnapshot struct {
	byKey map[CorrelationKey]float64
}

// NewCorrelationSnapshot builds a snapshot from a map of pair
// correlations keyed by CorrelationKey.
func NewCorrelationSnapshot(pairs map[CorrelationKey]float64) *CorrelationSnapshot {
	cs := &CorrelationSnapshot{byKey: make(map[CorrelationKey]float64, len(pairs))}
	for k, v := range pairs {
		cs.byKey[k] = v
	}
	return cs
}

// Lookup returns the stored correlation between a and b, or (0, false) if
// no pair correlation was provided for them.
func (cs *CorrelationSnapshot) Lookup(a, b PairKey) (float64, bool) {
	if cs == nil {
		return 0, false
	}
	if a == b {
		return 1, true
	}
	rho, ok := cs.byKey[NewCorrelationKey(a, b)]
	return rho, ok
}

// CorrelationPair is one stored pair correlation in canonical key order.
type CorrelationPair struct {
	Key CorrelationKey
	Rho float64
}

// Pairs returns every stored pair correlation in a deterministic order, so
// callers that need to iterate a snapshot reproducibly (e.g. cache key
// derivation) don't depend on Go's randomized map iteration.
func (cs *CorrelationSnapshot) Pairs() []CorrelationPair {
	if cs == nil {
		return nil
	}
	out := make([]CorrelationPair, 0, len(cs.byKey))
	for k, v := range cs.byKey {
		out = append(out, CorrelationPair{Key: k, Rho: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.A != out[j].Key.A {
			return pairKeyLess(out[i].Key.A, out[j].Key.A)
		}
		return pairKeyLess(out[i].Key.B, out[j].Key.B)
	})
	return out
}
