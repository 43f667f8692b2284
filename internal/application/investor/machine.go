package investor

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/stakebot/internal/application/evaluator"
	"github.com/alejandrodnm/stakebot/internal/domain"
	"github.com/google/uuid"
)

// stakeEpsilon absorbe el ruido de float al comparar un stake con el cap.
const stakeEpsilon = 1e-9

// StrategyResolver devuelve la estrategia de un investor y su recovery enlazada.
type StrategyResolver interface {
	Resolve(id string) (domain.Strategy, *domain.Strategy, error)
}

// Machine es la máquina de estados de un investor.
//
// Todas las mutaciones (start/stop, flag de recovery, Accept, Settle) pasan por
// el mismo mutex, así que dos Accept concurrentes nunca leen el mismo balance
// previo a la reserva. La evaluación trabaja sobre una copia sin lock.
//
// persistMu ordena mutación y guardado: el Manager lo mantiene desde que muta
// hasta que el store confirma, así un snapshot viejo nunca pisa a uno nuevo.
type Machine struct {
	mu        sync.Mutex
	persistMu sync.Mutex
	inv       domain.Investor
	pending   map[string]domain.Wager

	strategies StrategyResolver
	eval       *evaluator.Evaluator
	now        func() time.Time
	newID      func() string
}

// NewMachine crea la máquina para inv con sus apuestas pending ya reservadas.
func NewMachine(inv domain.Investor, pending []domain.Wager, strategies StrategyResolver, eval *evaluator.Evaluator) *Machine {
	if inv.Status == "" {
		inv.Status = domain.InvestorStopped
	}
	m := &Machine{
		inv:        inv.Clone(),
		pending:    make(map[string]domain.Wager, len(pending)),
		strategies: strategies,
		eval:       eval,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, w := range pending {
		if w.IsPending() && w.InvestorID == inv.ID {
			m.pending[w.ID] = w
		}
	}
	return m
}

// ID devuelve el id del investor.
func (m *Machine) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inv.ID
}

// Snapshot devuelve una copia del estado actual.
func (m *Machine) Snapshot() domain.Investor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inv.Clone()
}

// Pending devuelve las apuestas pendientes ordenadas por fecha de colocación.
func (m *Machine) Pending() []domain.Wager {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Wager, 0, len(m.pending))
	for _, w := range m.pending {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PlacedAt.Equal(out[j].PlacedAt) {
			return out[i].PlacedAt.Before(out[j].PlacedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Start pasa de stopped a running. No toca el balance.
func (m *Machine) Start() error {
	return m.transition(domain.InvestorStopped, domain.InvestorRunning)
}

// Stop pasa de running a stopped. Las apuestas pendientes siguen vivas.
func (m *Machine) Stop() error {
	return m.transition(domain.InvestorRunning, domain.InvestorStopped)
}

func (m *Machine) transition(from, to domain.InvestorStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inv.Status != from {
		return fmt.Errorf("investor.transition: %s is %s, want %s: %w",
			m.inv.ID, m.inv.Status, from, domain.ErrInvalidTransition)
	}
	m.inv.Status = to
	m.inv.UpdatedAt = m.now().UTC()
	slog.Info("investor status changed", "investor", m.inv.ID, "status", to)
	return nil
}

// SetRecovery activa o desactiva el recovery a mano. Solo se permite si la
// estrategia del investor enlaza una estrategia de recovery. El siguiente
// ciclo de evaluación puede volver a cambiarlo según el drawdown.
func (m *Machine) SetRecovery(active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, linked, err := m.strategies.Resolve(m.inv.StrategyID)
	if err != nil {
		return fmt.Errorf("investor.SetRecovery: %w", err)
	}
	if linked == nil {
		return fmt.Errorf("investor.SetRecovery: strategy %s: %w", m.inv.StrategyID, domain.ErrNoRecoveryStrategy)
	}
	m.inv.IsRecoveryActive = active
	m.inv.UpdatedAt = m.now().UTC()
	return nil
}

// RequestRecommendations evalúa el batch con la estrategia activa del investor.
//
// Falla con ErrNotRunning si el investor está parado. Con el cupo semanal
// agotado devuelve una lista vacía sin error. El flag de recovery se decide
// una vez por llamada y se aplica aquí; el resultado se recorta a las apuestas
// que quedan esta semana.
func (m *Machine) RequestRecommendations(opps []domain.Opportunity) ([]domain.Recommendation, error) {
	m.mu.Lock()
	snapshot := m.inv.Clone()
	m.mu.Unlock()

	if snapshot.Status != domain.InvestorRunning {
		return nil, fmt.Errorf("investor.RequestRecommendations: %s: %w", snapshot.ID, domain.ErrNotRunning)
	}
	if snapshot.WeeklyCapReached() {
		slog.Debug("weekly cap reached", "investor", snapshot.ID, "bets", snapshot.BetsPlacedThisWeek)
		return []domain.Recommendation{}, nil
	}

	base, linked, err := m.strategies.Resolve(snapshot.StrategyID)
	if err != nil {
		return nil, fmt.Errorf("investor.RequestRecommendations: %w", err)
	}

	// Evaluación sin lock: solo lee la copia.
	res, err := m.eval.Evaluate(snapshot, base, linked, opps)
	if err != nil {
		return nil, fmt.Errorf("investor.RequestRecommendations: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if res.RecoveryChanged && m.inv.IsRecoveryActive != res.RecoveryActive {
		m.inv.IsRecoveryActive = res.RecoveryActive
		m.inv.UpdatedAt = m.now().UTC()
		slog.Info("recovery toggled",
			"investor", m.inv.ID,
			"active", res.RecoveryActive,
			"drawdown_pct", fmt.Sprintf("%.2f", snapshot.Drawdown()),
		)
	}

	recs := res.Recommendations
	if remaining := m.inv.RemainingBets(); remaining >= 0 {
		recs = domain.TopN(recs, remaining)
	}
	if recs == nil {
		recs = []domain.Recommendation{}
	}
	return recs, nil
}

// Accept reserva el stake de rec y crea una apuesta pending.
//
// El cap se recalcula con el balance de este momento: si otra aceptación ya
// reservó fondos, un stake que cabía al evaluar puede no caber ahora.
func (m *Machine) Accept(rec domain.Recommendation) (domain.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.InvestorID != m.inv.ID {
		return domain.Wager{}, fmt.Errorf("investor.Accept: %s for %s: %w",
			rec.OpportunityID, m.inv.ID, domain.ErrForeignRecommendation)
	}
	if m.inv.Status != domain.InvestorRunning {
		return domain.Wager{}, fmt.Errorf("investor.Accept: %s: %w", m.inv.ID, domain.ErrNotRunning)
	}
	if m.inv.WeeklyCapReached() {
		return domain.Wager{}, fmt.Errorf("investor.Accept: %s: %w", m.inv.ID, domain.ErrWeeklyCapReached)
	}
	if rec.Stake <= 0 {
		return domain.Wager{}, fmt.Errorf("investor.Accept: %.2f: %w", rec.Stake, domain.ErrInvalidStake)
	}
	if limit := m.inv.StakeCap(); rec.Stake > limit+stakeEpsilon {
		return domain.Wager{}, fmt.Errorf("investor.Accept: stake %.2f > cap %.2f: %w",
			rec.Stake, limit, domain.ErrStakeExceedsCap)
	}

	now := m.now().UTC()
	w := domain.Wager{
		ID:              m.newID(),
		InvestorID:      m.inv.ID,
		OpportunityID:   rec.OpportunityID,
		StrategyID:      rec.StrategyID,
		Stake:           rec.Stake,
		OddsAtPlacement: rec.Odds,
		Outcome:         domain.OutcomePending,
		Payout:          rec.ExpectedPayout,
		PlacedAt:        now,
	}

	m.inv.CurrentBalance = domain.SubMoney(m.inv.CurrentBalance, rec.Stake)
	m.inv.BetsPlacedThisWeek++
	m.inv.UpdatedAt = now
	m.pending[w.ID] = w

	slog.Info("wager placed",
		"investor", m.inv.ID,
		"wager", w.ID,
		"opportunity", w.OpportunityID,
		"stake", w.Stake,
		"balance", m.inv.CurrentBalance,
	)
	return w, nil
}

// Settle liquida una apuesta pending:
//   - win: abona stake + payout (payout ≤ 0 usa el pago de las cuotas)
//   - loss: el stake ya estaba reservado, el balance no cambia
//   - push: devuelve el stake
//
// Una apuesta desconocida o ya liquidada devuelve ErrUnknownWager.
func (m *Machine) Settle(wagerID string, outcome domain.Outcome, payout float64) (domain.Wager, error) {
	if !outcome.Valid() {
		return domain.Wager{}, fmt.Errorf("investor.Settle: %q: %w", outcome, domain.ErrInvalidOutcome)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.pending[wagerID]
	if !ok {
		return domain.Wager{}, fmt.Errorf("investor.Settle: %s for %s: %w", wagerID, m.inv.ID, domain.ErrUnknownWager)
	}

	switch outcome {
	case domain.OutcomeWin:
		if payout <= 0 {
			payout = settlementPayout(w)
		}
		w.Payout = domain.FloorCents(payout)
		m.inv.CurrentBalance = domain.AddMoney(m.inv.CurrentBalance, w.Stake, w.Payout)
		m.inv.CareerWins++
		if m.inv.CurrentStreak > 0 {
			m.inv.CurrentStreak++
		} else {
			m.inv.CurrentStreak = 1
		}
	case domain.OutcomeLoss:
		w.Payout = 0
		m.inv.CareerLosses++
		if m.inv.CurrentStreak < 0 {
			m.inv.CurrentStreak--
		} else {
			m.inv.CurrentStreak = -1
		}
	case domain.OutcomePush:
		w.Payout = 0
		m.inv.CurrentBalance = domain.AddMoney(m.inv.CurrentBalance, w.Stake)
		m.inv.CareerPushes++
	}

	now := m.now().UTC()
	w.Outcome = outcome
	w.SettledAt = &now
	delete(m.pending, wagerID)
	m.inv.BetHistory = append(m.inv.BetHistory, w)
	m.inv.UpdatedAt = now

	slog.Info("wager settled",
		"investor", m.inv.ID,
		"wager", w.ID,
		"outcome", outcome,
		"payout", w.Payout,
		"balance", m.inv.CurrentBalance,
		"streak", m.inv.CurrentStreak,
	)
	return w, nil
}

// settlementPayout deriva la ganancia de las cuotas americanas; sin cuotas
// (arbitraje) usa el payout esperado guardado al colocar la apuesta.
func settlementPayout(w domain.Wager) float64 {
	if p := w.PotentialPayout(); p > 0 {
		return p
	}
	return w.Payout
}

// ResetWeek pone a cero el contador semanal. Lo llama el scheduler externo.
func (m *Machine) ResetWeek() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inv.BetsPlacedThisWeek = 0
	m.inv.UpdatedAt = m.now().UTC()
}
