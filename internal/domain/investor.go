package domain

import "time"

// InvestorStatus es el estado de ejecución del investor.
type InvestorStatus string

const (
	InvestorStopped InvestorStatus = "stopped"
	InvestorRunning InvestorStatus = "running"
)

// Investor es un agente automático con bankroll propio que ejecuta una estrategia.
// Balance y contadores solo cambian a través de la máquina de estados.
type Investor struct {
	ID              string         `yaml:"id" json:"id"`
	Name            string         `yaml:"name" json:"name"`
	StrategyID      string         `yaml:"strategy_id" json:"strategy_id"`
	StartingBalance float64        `yaml:"starting_balance" json:"starting_balance"`
	CurrentBalance  float64        `yaml:"current_balance" json:"current_balance"`
	Status          InvestorStatus `yaml:"status" json:"status"`

	// BetPercentage es el cap por apuesta como fracción del balance (0.05 = 5%).
	// ≤ 0 significa sin cap adicional al propio balance.
	BetPercentage      float64 `yaml:"bet_percentage" json:"bet_percentage"`
	MaxBetsPerWeek     int     `yaml:"max_bets_per_week" json:"max_bets_per_week"`
	BetsPlacedThisWeek int     `yaml:"bets_placed_this_week" json:"bets_placed_this_week"`
	IsRecoveryActive   bool    `yaml:"is_recovery_active" json:"is_recovery_active"`

	CareerWins    int `yaml:"career_wins" json:"career_wins"`
	CareerLosses  int `yaml:"career_losses" json:"career_losses"`
	CareerPushes  int `yaml:"career_pushes" json:"career_pushes"`
	CurrentStreak int `yaml:"current_streak" json:"current_streak"` // +n victorias, -n derrotas

	BetHistory []Wager   `yaml:"-" json:"-"`
	UpdatedAt  time.Time `yaml:"-" json:"updated_at"`
}

// Drawdown devuelve la pérdida respecto al balance inicial, en %.
// Negativo cuando el investor va en ganancias.
func (i Investor) Drawdown() float64 {
	if i.StartingBalance <= 0 {
		return 0
	}
	return (i.StartingBalance - i.CurrentBalance) / i.StartingBalance * 100
}

// RemainingBets devuelve cuántas apuestas quedan esta semana.
// Sin límite configurado (MaxBetsPerWeek ≤ 0) devuelve -1.
func (i Investor) RemainingBets() int {
	if i.MaxBetsPerWeek <= 0 {
		return -1
	}
	return max(0, i.MaxBetsPerWeek-i.BetsPlacedThisWeek)
}

// WeeklyCapReached devuelve true si no quedan apuestas esta semana.
func (i Investor) WeeklyCapReached() bool {
	return i.RemainingBets() == 0
}

// StakeCap devuelve el stake máximo permitido con el balance actual.
func (i Investor) StakeCap() float64 {
	return StakeCap(i.CurrentBalance, i.BetPercentage)
}

// StakeCap devuelve min(balance, balance × betPercentage), nunca negativo.
func StakeCap(balance, betPercentage float64) float64 {
	if balance <= 0 {
		return 0
	}
	if betPercentage <= 0 || betPercentage >= 1 {
		return balance
	}
	return balance * betPercentage
}

// WinRate devuelve el % de victorias sobre apuestas decididas (sin pushes).
func (i Investor) WinRate() float64 {
	decided := i.CareerWins + i.CareerLosses
	if decided == 0 {
		return 0
	}
	return float64(i.CareerWins) / float64(decided) * 100
}

// ProfitLoss devuelve el P&L acumulado (sin contar stakes aún reservados).
func (i Investor) ProfitLoss() float64 {
	return SubMoney(i.CurrentBalance, i.StartingBalance)
}

// Clone devuelve una copia independiente (incluido el historial).
func (i Investor) Clone() Investor {
	c := i
	c.BetHistory = append([]Wager(nil), i.BetHistory...)
	return c
}
