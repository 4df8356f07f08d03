// Package wire defines the JSON request/response shapes for the evaluate
// operation and the translation to/from the domain types in
// internal/parlay. Keeping the wire schema separate from the domain model
// means a JSON field rename never forces a change to the simulation code.
package wire

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/stitts-dev/parlay-evaluator/internal/parlay"
)

// LegRequest is one wire-format leg of an EvaluateRequest.
type LegRequest struct {
	Kind         string  `json:"kind"`
	SubjectID    string  `json:"subject_id,omitempty"`
	StatKind     string  `json:"stat_kind,omitempty"`
	Line         float64 `json:"line"`
	Direction    string  `json:"direction"`
	OddsAmerican int     `json:"odds_american"`
}

// InjuryRequest is one wire-format injury entry.
type InjuryRequest struct {
	PlayerID string  `json:"player_id"`
	Status   string  `json:"status"`
	Impact   float64 `json:"impact"`
}

// GameContextRequest is the wire-format game context. Every field but
// Injuries is optional.
type GameContextRequest struct {
	Spread     *float64        `json:"spread,omitempty"`
	Total      *float64        `json:"total,omitempty"`
	HomeOffEff *float64        `json:"home_off_eff,omitempty"`
	AwayOffEff *float64        `json:"away_off_eff,omitempty"`
	HomeDefEff *float64        `json:"home_def_eff,omitempty"`
	AwayDefEff *float64        `json:"away_def_eff,omitempty"`
	WindMPH    *float64        `json:"wind_mph,omitempty"`
	TempF      *float64        `json:"temp_f,omitempty"`
	PrecipProb *float64        `json:"precip_prob,omitempty"`
	Sentiment  *float64        `json:"sentiment,omitempty"`
	Injuries   []InjuryRequest `json:"injuries,omitempty"`
}

// MarginalRequest is one wire-format marginal.
type MarginalRequest struct {
	SubjectID  string             `json:"subject_id"`
	StatKind   string             `json:"stat_kind"`
	DistFamily string             `json:"dist_family"`
	Params     map[string]float64 `json:"params,omitempty"`
	Mean       float64            `json:"mean"`
	Stddev     float64            `json:"stddev"`
	SampleSize int                `json:"sample_size,omitempty"`
}

// CorrelationEntry is one stored pairwise correlation.
type CorrelationEntry struct {
	SubjectA string  `json:"subject_a"`
	StatA    string  `json:"stat_a"`
	SubjectB string  `json:"subject_b"`
	StatB    string  `json:"stat_b"`
	Rho      float64 `json:"rho"`
}

// EvaluateRequest is the full wire-format request to evaluate(), per
// request = { game_context, legs, seed?, sample_count? }.
// Marginals and correlations are supplied inline as a static snapshot
// rather than fetched through a live collaborator, since this CLI has no
// database of its own.
type EvaluateRequest struct {
	GameContext  GameContextRequest `json:"game_context"`
	Legs         []LegRequest       `json:"legs"`
	Marginals    []MarginalRequest  `json:"marginals"`
	Correlations []CorrelationEntry `json:"correlations,omitempty"`
	Seed         int64              `json:"seed,omitempty"`
	SampleCount  int                `json:"sample_count,omitempty"`
}

// ToDomain translates the wire request into the domain types Evaluate
// consumes.
func (r EvaluateRequest) ToDomain() (parlay.GameContext, []parlay.Leg, []parlay.Marginal, *parlay.CorrelationSnapshot, error) {
	ctx, err := r.GameContext.toDomain()
	if err != nil {
		return parlay.GameContext{}, nil, nil, nil, err
	}

	legs := make([]parlay.Leg, 0, len(r.Legs))
	for _, l := range r.Legs {
		leg, err := l.toDomain()
		if err != nil {
			return parlay.GameContext{}, nil, nil, nil, err
		}
		legs = append(legs, leg)
	}

	marginals := make([]parlay.Marginal, 0, len(r.Marginals))
	for _, m := range r.Marginals {
		marginal, err := m.toDomain()
		if err != nil {
			return parlay.GameContext{}, nil, nil, nil, err
		}
		marginals = append(marginals, marginal)
	}

	pairs := make(map[parlay.CorrelationKey]float64, len(r.Correlations))
	for _, c := range r.Correlations {
		a, err := uuid.Parse(c.SubjectA)
		if err != nil {
			return parlay.GameContext{}, nil, nil, nil, fmt.Errorf("correlation subject_a: %w", err)
		}
		b, err := uuid.Parse(c.SubjectB)
		if err != nil {
			return parlay.GameContext{}, nil, nil, nil, fmt.Errorf("correlation subject_b: %w", err)
		}
		key := parlay.NewCorrelationKey(
			parlay.PairKey{SubjectID: a, StatKind: c.StatA},
			parlay.PairKey{SubjectID: b, StatKind: c.StatB},
		)
		pairs[key] = c.Rho
	}

	return ctx, legs, marginals, parlay.NewCorrelationSnapshot(pairs), nil
}

func (g GameContextRequest) toDomain() (parlay.GameContext, error) {
	injuries := make([]parlay.Injury, 0, len(g.Injuries))
	for _, inj := range g.Injuries {
		id, err := uuid.Parse(inj.PlayerID)
		if err != nil {
			return parlay.GameContext{}, fmt.Errorf("injury player_id: %w", err)
		}
		injuries = append(injuries, parlay.Injury{
			PlayerID: id,
			Status:   parlay.InjuryStatus(inj.Status),
			Impact:   inj.Impact,
		})
	}
	return parlay.GameContext{
		Spread:     g.Spread,
		Total:      g.Total,
		HomeOffEff: g.HomeOffEff,
		AwayOffEff: g.AwayOffEff,
		HomeDefEff: g.HomeDefEff,
		AwayDefEff: g.AwayDefEff,
		WindMPH:    g.WindMPH,
		TempF:      g.TempF,
		PrecipProb: g.PrecipProb,
		Sentiment:  g.Sentiment,
		Injuries:   injuries,
	}, nil
}

func (l LegRequest) toDomain() (parlay.Leg, error) {
	var subjectID uuid.UUID
	if l.SubjectID != "" {
		id, err := uuid.Parse(l.SubjectID)
		if err != nil {
			return parlay.Leg{}, fmt.Errorf("leg subject_id: %w", err)
		}
		subjectID = id
	}
	return parlay.Leg{
		Kind:         parlay.LegKind(l.Kind),
		SubjectID:    subjectID,
		StatKind:     l.StatKind,
		Line:         l.Line,
		Direction:    parlay.Direction(l.Direction),
		OddsAmerican: l.OddsAmerican,
	}, nil
}

func (m MarginalRequest) toDomain() (parlay.Marginal, error) {
	id, err := uuid.Parse(m.SubjectID)
	if err != nil {
		return parlay.Marginal{}, fmt.Errorf("marginal subject_id: %w", err)
	}
	family := m.DistFamily
	if family == "" {
		family = string(parlay.DistNormal)
	}
	return parlay.Marginal{
		SubjectID:  id,
		StatKind:   m.StatKind,
		DistFamily: parlay.DistFamily(family),
		Params:     m.Params,
		Mean:       m.Mean,
		Stddev:     m.Stddev,
		SampleSize: m.SampleSize,
	}, nil
}

// FactorResponse is one wire-format ranked explanation factor.
type FactorResponse struct {
	Name       string  `json:"name"`
	Impact     float64 `json:"impact"`
	Direction  string  `json:"direction"`
	Detail     string  `json:"detail"`
	Confidence float64 `json:"confidence"`
}

// ExplanationResponse is the wire-format explanation block.
type ExplanationResponse struct {
	Regime          string           `json:"regime"`
	RegimeReasoning string           `json:"regime_reasoning"`
	Factors         []FactorResponse `json:"factors"`
	ImputedPairs    [][4]string      `json:"imputed_pairs"`
}

// SimulationMetaResponse is the wire-format simulation provenance block.
type SimulationMetaResponse struct {
	Millis   int64   `json:"ms"`
	NSamples int     `json:"n_samples"`
	Nu       float64 `json:"nu"`
	WarmedUp bool    `json:"warmed_up"`
	Seed     int64   `json:"seed"`
}

// EvaluateResponse is the stable wire shape returned for every evaluate() call.
type EvaluateResponse struct {
	Recommended            bool                   `json:"recommended"`
	TrueProbability        float64                `json:"true_probability"`
	ImpliedProbability     float64                `json:"implied_probability"`
	ConfidenceInterval     [2]float64             `json:"confidence_interval"`
	FairOddsAmerican       int                    `json:"fair_odds_american"`
	SportsbookOddsAmerican int                    `json:"sportsbook_odds_american"`
	EVPct                  float64                `json:"ev_pct"`
	CorrelationMultiplier  float64                `json:"correlation_multiplier"`
	TailRiskFactor         float64                `json:"tail_risk_factor"`
	KellyFraction          float64                `json:"kelly_fraction"`
	Explanation            ExplanationResponse    `json:"explanation"`
	SimulationMeta         SimulationMetaResponse `json:"simulation_meta"`
}

// FromDomain translates a ParlayEvaluation into its wire form.
func FromDomain(eval parlay.ParlayEvaluation) EvaluateResponse {
	factors := make([]FactorResponse, 0, len(eval.Explanation.Factors))
	for _, f := range eval.Explanation.Factors {
		factors = append(factors, FactorResponse{
			Name:       f.Name,
			Impact:     f.Impact,
			Direction:  f.Direction,
			Detail:     f.Detail,
			Confidence: f.Confidence,
		})
	}

	imputed := make([][4]string, 0, len(eval.Explanation.ImputedPairs))
	for _, p := range eval.Explanation.ImputedPairs {
		imputed = append(imputed, [4]string{p.SubjectA, p.StatA, p.SubjectB, p.StatB})
	}

	return EvaluateResponse{
		Recommended:            eval.Recommended,
		TrueProbability:        eval.TrueProb,
		ImpliedProbability:     eval.ImpliedProb,
		ConfidenceInterval:     [2]float64{eval.CILow, eval.CIHigh},
		FairOddsAmerican:       eval.FairOddsAmerican,
		SportsbookOddsAmerican: eval.SportsbookOdds,
		EVPct:                  eval.EVPct,
		CorrelationMultiplier:  eval.CorrMultiplier,
		TailRiskFactor:         eval.TailRisk,
		KellyFraction:          eval.KellyFraction,
		Explanation: ExplanationResponse{
			Regime:          string(eval.Explanation.Regime),
			RegimeReasoning: eval.Explanation.RegimeReasoning,
			Factors:         factors,
			ImputedPairs:    imputed,
		},
		SimulationMeta: SimulationMetaResponse{
			Millis:   eval.SimulationMeta.Millis,
			NSamples: eval.SimulationMeta.NSamples,
			Nu:       eval.SimulationMeta.Nu,
			WarmedUp: eval.SimulationMeta.WarmedUp,
			Seed:     eval.SimulationMeta.Seed,
		},
	}
}
