// Package parlay defines the domain model shared by every stage of the
// correlated Monte Carlo parlay evaluator: legs, marginals, correlations,
// game context, regimes, and the final evaluation result.
package parlay

import (
	"github.com/google/uuid"
)

// LegKind is the wager type of a single leg.
type LegKind string

const (
	LegSpread     LegKind = "spread"
	LegTotal      LegKind = "total"
	LegMoneyline  LegKind = "moneyline"
	LegPlayerProp LegKind = "player_prop"
)

// Direction is which side of the line a leg bets.
type Direction string

const (
	Over  Direction = "over"
	Under Direction = "under"
)

// Sign returns +1 for Over and -1 for Under, matching the Marginal
// Builder's standardized-threshold convention.
func (d Direction) Sign() float64 {
	if d == Under {
		return -1
	}
	return 1
}

// Leg is a single wager condition combined into a parlay.
type Leg struct {
	Kind         LegKind
	SubjectID    uuid.UUID
	StatKind     string // required for LegPlayerProp
	Line         float64
	Direction    Direction
	OddsAmerican int
}

// Key identifies the (subject, stat) pair a leg or marginal refers to.
// Synthetic legs (spread/total/moneyline) use the zero UUID and their
// LegKind as the stat kind.
func (l Leg) Key() PairKey {
	if l.Kind == LegPlayerProp {
		return PairKey{SubjectID: l.SubjectID, StatKind: l.StatKind}
	}
	return PairKey{SubjectID: uuid.Nil, StatKind: string(l.Kind)}
}

// DistFamily is the marginal's distributional shape. The Student-t copula
// layer operates on a standardized threshold regardless of family; the
// family is retained for downstream reporting and future calibration.
type DistFamily string

const (
	DistNormal  DistFamily = "normal"
	DistGamma   DistFamily = "gamma"
	DistBeta    DistFamily = "beta"
	DistWeibull DistFamily = "weibull"
)

// Marginal describes a single subject/stat's projected distribution.
type Marginal struct {
	SubjectID  uuid.UUID
	StatKind   string
	DistFamily DistFamily
	Params     map[string]float64
	Mean       float64
	Stddev     float64
	SampleSize int
}

// Key identifies the (subject, stat) pair this marginal describes.
func (m Marginal) Key() PairKey {
	return PairKey{SubjectID: m.SubjectID, StatKind: m.StatKind}
}

// PairKey identifies a (subject, stat) pair for correlation and marginal
// lookups.
type PairKey struct {
	SubjectID uuid.UUID
	StatKind  string
}

// CorrelationKey identifies an unordered pair of PairKeys for correlation
// lookups. Use NewCorrelationKey to build one in canonical order.
type CorrelationKey struct {
	A, B PairKey
}

// NewCorrelationKey returns a CorrelationKey with A and B in a canonical
// (deterministic) order so lookups are direction-independent.
func NewCorrelationKey(a, b PairKey) CorrelationKey {
	if pairKeyLess(b, a) {
		a, b = b, a
	}
	return CorrelationKey{A: a, B: b}
}

func pairKeyLess(a, b PairKey) bool {
	if a.SubjectID != b.SubjectID {
		return a.SubjectID.String() < b.SubjectID.String()
	}
	return a.StatKind < b.StatKind
}

// InjuryStatus is the severity of a reported injury.
type InjuryStatus string

const (
	InjuryOut          InjuryStatus = "out"
	InjuryDoubtful     InjuryStatus = "doubtful"
	InjuryQuestionable InjuryStatus = "questionable"
	InjuryProbable     InjuryStatus = "probable"
)

// Severity returns the Feature Quantizer's injury severity weight.
func (s InjuryStatus) Severity() float64 {
	switch s {
	case InjuryOut:
		return 1.0
	case InjuryDoubtful:
		return 0.75
	case InjuryQuestionable:
		return 0.4
	case InjuryProbable:
		return 0.1
	default:
		return 0.0
	}
}

// Injury is a reported player injury affecting a game's context.
type Injury struct {
	PlayerID uuid.UUID
	Status   InjuryStatus
	Impact   float64 // in [0,1]
}

// GameContext carries the game-level signal the Regime Classifier and
// Feature Quantizer consume. All fields except Injuries are optional
// (nil pointer = not provided).
type GameContext struct {
	Spread     *float64
	Total      *float64
	HomeOffEff *float64
	AwayOffEff *float64
	HomeDefEff *float64
	AwayDefEff *float64
	WindMPH    *float64
	TempF      *float64
	PrecipProb *float64
	Injuries   []Injury
	Sentiment  *float64
}

// RegimeLabel names the classifier's output bucket.
type RegimeLabel string

const (
	RegimeBlowout      RegimeLabel = "BLOWOUT"
	RegimeShootout     RegimeLabel = "SHOOTOUT"
	RegimeDefensive    RegimeLabel = "DEFENSIVE"
	RegimeOvertimeRisk RegimeLabel = "OVERTIME_RISK"
	RegimeNormal       RegimeLabel = "NORMAL"
)

// Regime is the classifier's output: a heavy-tail parameter, a
// correlation boost, and a human-readable rationale.
type Regime struct {
	Label      RegimeLabel
	Nu         float64
	CorrBoost  float64
	Reasoning  string
	Confidence float64
}

// SimulationResult is the raw output of the copula sampler plus the
// correlation-lift statistics derived from it.
type SimulationResult struct {
	TrueProb        float64
	CILow           float64
	CIHigh          float64
	CorrMultiplier  float64
	TailRisk        float64 // 1/nu
	PerLegHitRate   []float64
}

// Factor is one entry in the XAI Attributor's ranked explanation.
type Factor struct {
	Name       string
	Impact     float64 // signed change in true_prob if this effect were removed
	Direction  string  // "positive" | "negative"
	Detail     string
	Confidence float64
}

// ImputedPair names a leg pair whose correlation was not found in the
// snapshot and defaulted to 0.
type ImputedPair struct {
	SubjectA, StatA string
	SubjectB, StatB string
}

// Explanation is the human- and machine-readable rationale attached to
// every ParlayEvaluation.
type Explanation struct {
	Regime          RegimeLabel
	RegimeReasoning string
	Factors         []Factor
	ImputedPairs    []ImputedPair
}

// SimulationMeta records the provenance of the simulation run.
type SimulationMeta struct {
	Millis    int64
	NSamples  int
	Nu        float64
	WarmedUp  bool
	Seed      int64
}

// ParlayEvaluation is the full wire-schema result of evaluating a parlay.
type ParlayEvaluation struct {
	SimulationResult

	ImpliedProb         float64
	EVPct               float64
	FairOddsAmerican    int
	SportsbookOdds      int
	KellyFraction       float64
	Recommended         bool
	Explanation         Explanation
	SimulationMeta      SimulationMeta
}
