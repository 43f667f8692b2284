package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/stakebot/internal/application/investor"
	"github.com/alejandrodnm/stakebot/internal/domain"
	"github.com/alejandrodnm/stakebot/internal/ports"
)

// Config contiene la configuración del loop de ciclos.
type Config struct {
	Interval   time.Duration
	Once       bool // un solo ciclo y salir
	AutoAccept bool // paper mode: acepta las recomendaciones automáticamente
	// WeeklyReset pone a cero los contadores al cambiar de semana ISO.
	WeeklyReset bool
}

// InvestorCycle es lo que produjo un ciclo para un investor.
type InvestorCycle struct {
	Investor        domain.Investor
	Recommendations []domain.Recommendation
	Placed          []domain.Wager
	Err             error
}

// CycleResult agrupa el resultado de un ciclo para todos los investors.
type CycleResult struct {
	Opportunities int
	Investors     []InvestorCycle
}

// Engine es el orquestador: fetch de oportunidades → recomendaciones por
// investor → notificación → (opcional) aceptación.
type Engine struct {
	cfg       Config
	feed      ports.OpportunityProvider
	investors *investor.Manager
	notifiers []ports.Notifier
	now       func() time.Time
	lastWeek  int
}

// New crea un Engine con todas las dependencias inyectadas.
func New(cfg Config, feed ports.OpportunityProvider, investors *investor.Manager, notifiers ...ports.Notifier) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	e := &Engine{
		cfg:       cfg,
		feed:      feed,
		investors: investors,
		notifiers: notifiers,
		now:       time.Now,
	}
	e.lastWeek = isoWeek(e.now())
	return e
}

// Run ejecuta ciclos hasta que el contexto se cancele.
// Con cfg.Once solo ejecuta uno.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting",
		"interval", e.cfg.Interval,
		"once", e.cfg.Once,
		"auto_accept", e.cfg.AutoAccept,
	)

	if _, err := e.RunOnce(ctx); err != nil {
		slog.Error("cycle failed", "err", err)
		if e.cfg.Once {
			return err
		}
	}
	if e.cfg.Once {
		return nil
	}

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("engine stopped")
			return nil
		case <-ticker.C:
			if _, err := e.RunOnce(ctx); err != nil {
				slog.Error("cycle failed", "err", err)
			}
		}
	}
}

// RunOnce ejecuta exactamente un ciclo.
func (e *Engine) RunOnce(ctx context.Context) (CycleResult, error) {
	start := time.Now()

	if err := e.maybeResetWeek(ctx); err != nil {
		slog.Warn("weekly reset failed", "err", err)
	}

	opps, err := e.feed.FetchOpportunities(ctx)
	if err != nil {
		return CycleResult{}, fmt.Errorf("engine.RunOnce: fetch opportunities: %w", err)
	}

	machines := e.investors.Running()
	result := CycleResult{
		Opportunities: len(opps),
		Investors:     make([]InvestorCycle, len(machines)),
	}

	// Los investors son independientes: se evalúan en paralelo.
	var wg sync.WaitGroup
	for i, m := range machines {
		wg.Add(1)
		go func(i int, m *investor.Machine) {
			defer wg.Done()
			result.Investors[i] = e.runInvestor(ctx, m, opps)
		}(i, m)
	}
	wg.Wait()

	recs, placed := 0, 0
	for _, ic := range result.Investors {
		recs += len(ic.Recommendations)
		placed += len(ic.Placed)
	}
	slog.Info("cycle complete",
		"opportunities", len(opps),
		"investors", len(machines),
		"recommendations", recs,
		"placed", placed,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return result, nil
}

func (e *Engine) runInvestor(ctx context.Context, m *investor.Machine, opps []domain.Opportunity) InvestorCycle {
	id := m.ID()
	ic := InvestorCycle{}

	recs, err := e.investors.RequestRecommendations(ctx, id, opps)
	if err != nil {
		// parado entre Running() y la evaluación: no es un fallo del ciclo
		if !errors.Is(err, domain.ErrNotRunning) {
			slog.Warn("recommendations failed", "investor", id, "err", err)
			ic.Err = err
		}
		ic.Investor = m.Snapshot()
		return ic
	}
	ic.Recommendations = recs

	for _, n := range e.notifiers {
		if err := n.Notify(ctx, m.Snapshot(), recs); err != nil {
			slog.Warn("notifier error", "investor", id, "err", err)
		}
	}

	if e.cfg.AutoAccept {
		ic.Placed = e.acceptAll(ctx, id, recs)
	}
	ic.Investor = m.Snapshot()
	return ic
}

// acceptAll acepta en orden de ranking. Cada reserva reduce el cap de la
// siguiente, así que los stakes que ya no caben se saltan.
func (e *Engine) acceptAll(ctx context.Context, id string, recs []domain.Recommendation) []domain.Wager {
	var placed []domain.Wager
	for _, rec := range recs {
		w, err := e.investors.Accept(ctx, rec)
		switch {
		case err == nil:
			placed = append(placed, w)
		case errors.Is(err, domain.ErrStakeExceedsCap):
			slog.Debug("stake no longer fits", "investor", id, "opportunity", rec.OpportunityID, "stake", rec.Stake)
		case errors.Is(err, domain.ErrWeeklyCapReached), errors.Is(err, domain.ErrNotRunning):
			return placed
		default:
			slog.Warn("accept failed", "investor", id, "opportunity", rec.OpportunityID, "err", err)
			// la apuesta quedó reservada en memoria aunque no se persistiera
			if w.ID != "" {
				placed = append(placed, w)
			}
		}
	}
	return placed
}

// maybeResetWeek pone a cero los contadores cuando cambia la semana ISO.
func (e *Engine) maybeResetWeek(ctx context.Context) error {
	if !e.cfg.WeeklyReset {
		return nil
	}
	week := isoWeek(e.now())
	if week == e.lastWeek {
		return nil
	}
	e.lastWeek = week
	return e.investors.ResetWeek(ctx)
}

func isoWeek(t time.Time) int {
	year, week := t.ISOWeek()
	return year*100 + week
}
