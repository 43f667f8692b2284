package domain

import "time"

// Outcome es el resultado de una apuesta.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeWin     Outcome = "win"
	OutcomeLoss    Outcome = "loss"
	OutcomePush    Outcome = "push"
)

// Valid devuelve true para un resultado de liquidación (win, loss, push).
func (o Outcome) Valid() bool {
	return o == OutcomeWin || o == OutcomeLoss || o == OutcomePush
}

// Wager es una apuesta aceptada. Nace pending al aceptar una Recommendation y
// es inmutable una vez liquidada.
type Wager struct {
	ID              string     `json:"id"`
	InvestorID      string     `json:"investor_id"`
	OpportunityID   string     `json:"opportunity_id"`
	StrategyID      string     `json:"strategy_id"`
	Stake           float64    `json:"stake"`
	OddsAtPlacement int        `json:"odds_at_placement"` // americana
	Outcome         Outcome    `json:"outcome"`
	Payout          float64    `json:"payout"` // ganancia neta si win
	PlacedAt        time.Time  `json:"placed_at"`
	SettledAt       *time.Time `json:"settled_at,omitempty"`
}

// IsPending devuelve true mientras la apuesta no se ha liquidado.
func (w Wager) IsPending() bool {
	return w.Outcome == OutcomePending
}

// PotentialPayout devuelve la ganancia neta si la apuesta gana.
func (w Wager) PotentialPayout() float64 {
	return FloorCents(Payout(w.Stake, w.OddsAtPlacement))
}
