package investor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/alejandrodnm/stakebot/internal/application/evaluator"
	"github.com/alejandrodnm/stakebot/internal/domain"
	"github.com/alejandrodnm/stakebot/internal/ports"
)

// Manager mantiene una Machine por investor y persiste cada cambio de estado.
// Los stores son opcionales: sin ellos el manager trabaja solo en memoria.
type Manager struct {
	mu       sync.RWMutex
	machines map[string]*Machine

	strategies StrategyResolver
	eval       *evaluator.Evaluator
	investors  ports.InvestorStore
	wagers     ports.WagerStore
}

// NewManager crea un Manager vacío.
func NewManager(strategies StrategyResolver, eval *evaluator.Evaluator, investors ports.InvestorStore, wagers ports.WagerStore) *Manager {
	return &Manager{
		machines:   make(map[string]*Machine),
		strategies: strategies,
		eval:       eval,
		investors:  investors,
		wagers:     wagers,
	}
}

// Load restaura todos los investors del store con sus apuestas pendientes.
func (m *Manager) Load(ctx context.Context) error {
	if m.investors == nil {
		return nil
	}
	list, err := m.investors.ListInvestors(ctx)
	if err != nil {
		return fmt.Errorf("investor.Load: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range list {
		var pending []domain.Wager
		if m.wagers != nil {
			pending, err = m.wagers.ListWagers(ctx, inv.ID, domain.OutcomePending)
			if err != nil {
				return fmt.Errorf("investor.Load: wagers of %s: %w", inv.ID, err)
			}
		}
		m.machines[inv.ID] = NewMachine(inv, pending, m.strategies, m.eval)
	}
	slog.Debug("investors loaded", "count", len(list))
	return nil
}

// Add registra un investor nuevo. Su estrategia tiene que existir.
// Si ya existe un investor con ese id se conserva el estado actual.
func (m *Manager) Add(ctx context.Context, inv domain.Investor) (*Machine, error) {
	if inv.ID == "" {
		return nil, fmt.Errorf("investor.Add: empty id: %w", domain.ErrUnknownInvestor)
	}
	if _, _, err := m.strategies.Resolve(inv.StrategyID); err != nil {
		return nil, fmt.Errorf("investor.Add: %s: %w", inv.ID, err)
	}

	m.mu.Lock()
	if existing, ok := m.machines[inv.ID]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	if inv.CurrentBalance == 0 && len(inv.BetHistory) == 0 {
		inv.CurrentBalance = inv.StartingBalance
	}
	machine := NewMachine(inv, nil, m.strategies, m.eval)
	machine.persistMu.Lock()
	defer machine.persistMu.Unlock()
	m.machines[inv.ID] = machine
	m.mu.Unlock()

	if err := m.persist(ctx, machine); err != nil {
		return nil, fmt.Errorf("investor.Add: %w", err)
	}
	return machine, nil
}

// Get devuelve la máquina del investor.
func (m *Manager) Get(id string) (*Machine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	machine, ok := m.machines[id]
	if !ok {
		return nil, fmt.Errorf("investor.Get: %q: %w", id, domain.ErrUnknownInvestor)
	}
	return machine, nil
}

// List devuelve un snapshot de cada investor ordenado por id.
func (m *Manager) List() []domain.Investor {
	m.mu.RLock()
	machines := make([]*Machine, 0, len(m.machines))
	for _, machine := range m.machines {
		machines = append(machines, machine)
	}
	m.mu.RUnlock()

	out := make([]domain.Investor, 0, len(machines))
	for _, machine := range machines {
		out = append(out, machine.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Running devuelve las máquinas en estado running, ordenadas por id.
func (m *Manager) Running() []*Machine {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Machine, 0, len(m.machines))
	for _, machine := range m.machines {
		if machine.Snapshot().Status == domain.InvestorRunning {
			out = append(out, machine)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Start arranca el investor y persiste el cambio.
func (m *Manager) Start(ctx context.Context, id string) error {
	return m.mutate(ctx, id, "investor.Start", (*Machine).Start)
}

// Stop para el investor y persiste el cambio.
func (m *Manager) Stop(ctx context.Context, id string) error {
	return m.mutate(ctx, id, "investor.Stop", (*Machine).Stop)
}

// SetRecovery cambia el flag de recovery a mano y persiste el cambio.
func (m *Manager) SetRecovery(ctx context.Context, id string, active bool) error {
	return m.mutate(ctx, id, "investor.SetRecovery", func(machine *Machine) error {
		return machine.SetRecovery(active)
	})
}

func (m *Manager) mutate(ctx context.Context, id, op string, fn func(*Machine) error) error {
	machine, err := m.Get(id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	machine.persistMu.Lock()
	defer machine.persistMu.Unlock()
	if err := fn(machine); err != nil {
		return err
	}
	if err := m.persist(ctx, machine); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RequestRecommendations pide recomendaciones para el investor y persiste el
// flag de recovery si el ciclo lo cambió.
func (m *Manager) RequestRecommendations(ctx context.Context, id string, opps []domain.Opportunity) ([]domain.Recommendation, error) {
	machine, err := m.Get(id)
	if err != nil {
		return nil, fmt.Errorf("investor.RequestRecommendations: %w", err)
	}

	before := machine.Snapshot().IsRecoveryActive
	recs, err := machine.RequestRecommendations(opps)
	if err != nil {
		return nil, err
	}
	if machine.Snapshot().IsRecoveryActive != before {
		machine.persistMu.Lock()
		defer machine.persistMu.Unlock()
		if err := m.persist(ctx, machine); err != nil {
			return recs, fmt.Errorf("investor.RequestRecommendations: %w", err)
		}
	}
	return recs, nil
}

// Accept acepta la recomendación para su investor y persiste apuesta y estado.
func (m *Manager) Accept(ctx context.Context, rec domain.Recommendation) (domain.Wager, error) {
	machine, err := m.Get(rec.InvestorID)
	if err != nil {
		return domain.Wager{}, fmt.Errorf("investor.Accept: %w", err)
	}
	machine.persistMu.Lock()
	defer machine.persistMu.Unlock()
	w, err := machine.Accept(rec)
	if err != nil {
		return domain.Wager{}, err
	}
	if err := m.persistWager(ctx, machine, w); err != nil {
		return w, fmt.Errorf("investor.Accept: %w", err)
	}
	return w, nil
}

// Settle liquida una apuesta del investor y persiste apuesta y estado.
func (m *Manager) Settle(ctx context.Context, investorID, wagerID string, outcome domain.Outcome, payout float64) (domain.Wager, error) {
	machine, err := m.Get(investorID)
	if err != nil {
		return domain.Wager{}, fmt.Errorf("investor.Settle: %w", err)
	}
	machine.persistMu.Lock()
	defer machine.persistMu.Unlock()
	w, err := machine.Settle(wagerID, outcome, payout)
	if err != nil {
		return domain.Wager{}, err
	}
	if err := m.persistWager(ctx, machine, w); err != nil {
		return w, fmt.Errorf("investor.Settle: %w", err)
	}
	return w, nil
}

// ResetWeek pone a cero el contador semanal de todos los investors.
func (m *Manager) ResetWeek(ctx context.Context) error {
	m.mu.RLock()
	machines := make([]*Machine, 0, len(m.machines))
	for _, machine := range m.machines {
		machines = append(machines, machine)
	}
	m.mu.RUnlock()

	for _, machine := range machines {
		machine.persistMu.Lock()
		machine.ResetWeek()
		err := m.persist(ctx, machine)
		machine.persistMu.Unlock()
		if err != nil {
			return fmt.Errorf("investor.ResetWeek: %w", err)
		}
	}
	slog.Info("weekly counters reset", "investors", len(machines))
	return nil
}

// persistWager guarda primero la apuesta y después el investor, para que un
// fallo a mitad nunca deje un balance reservado sin su apuesta. El caller
// tiene machine.persistMu.
func (m *Manager) persistWager(ctx context.Context, machine *Machine, w domain.Wager) error {
	if m.wagers != nil {
		if err := m.wagers.SaveWager(ctx, w); err != nil {
			return fmt.Errorf("save wager %s: %w", w.ID, err)
		}
	}
	return m.persist(ctx, machine)
}

// persist guarda el snapshot actual. El caller tiene machine.persistMu.
func (m *Manager) persist(ctx context.Context, machine *Machine) error {
	if m.investors == nil {
		return nil
	}
	snapshot := machine.Snapshot()
	if err := m.investors.SaveInvestor(ctx, snapshot); err != nil {
		return fmt.Errorf("save investor %s: %w", snapshot.ID, err)
	}
	return nil
}
