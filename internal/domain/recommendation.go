package domain

import (
	"sort"
	"time"
)

// LegStake es el stake de un lado de un arbitraje.
type LegStake struct {
	ArbitrageLeg
	Stake float64 `json:"stake"`
}

// Rationale explica por qué se generó la recomendación.
type Rationale struct {
	PassedPredicates []string        `json:"passed_predicates"`
	Algorithm        SizingAlgorithm `json:"algorithm"`
	Recovery         bool            `json:"recovery"` // la estrategia de recovery sustituyó a la base
	Note             string          `json:"note,omitempty"`
}

// Recommendation es una apuesta sugerida para un ciclo de evaluación.
// No se persiste: las cuotas pueden moverse antes de aceptarla.
type Recommendation struct {
	InvestorID     string     `json:"investor_id"`
	OpportunityID  string     `json:"opportunity_id"`
	StrategyID     string     `json:"strategy_id"`
	Sport          string     `json:"sport,omitempty"`
	Market         string     `json:"market,omitempty"`
	Selection      string     `json:"selection,omitempty"`
	Odds           int        `json:"odds"`
	Stake          float64    `json:"stake"`
	ExpectedPayout float64    `json:"expected_payout"` // ganancia neta si gana
	Confidence     float64    `json:"confidence"`
	ExpectedValue  float64    `json:"expected_value"`
	Legs           []LegStake `json:"legs,omitempty"`
	Rationale      Rationale  `json:"rationale"`
	GeneratedAt    time.Time  `json:"generated_at"`
}

// EstimateExpectedValue devuelve el EV monetario de un stake:
//
//	EV = p × payout − (1 − p) × stake, con p = confidence/100
//
// Para arbitrajes el payout está garantizado y el EV es el propio payout.
func EstimateExpectedValue(stake, payout, confidence float64, guaranteed bool) float64 {
	if guaranteed {
		return payout
	}
	p := confidence / 100
	return p*payout - (1-p)*stake
}

// RankRecommendations ordena de forma determinista: EV desc, confianza desc,
// id de oportunidad asc.
func RankRecommendations(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.ExpectedValue != b.ExpectedValue {
			return a.ExpectedValue > b.ExpectedValue
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.OpportunityID < b.OpportunityID
	})
}

// TopN devuelve las n primeras recomendaciones. n < 0 significa sin límite.
func TopN(recs []Recommendation, n int) []Recommendation {
	if n < 0 || n >= len(recs) {
		return recs
	}
	return recs[:n]
}
