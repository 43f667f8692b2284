package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/alejandrodnm/stakebot/internal/domain"
	"github.com/alejandrodnm/stakebot/internal/ports"
)

// Catalog guarda las definiciones de estrategia que lee el engine.
// Los links se validan al guardar: la evaluación nunca ve una referencia rota.
type Catalog struct {
	mu         sync.RWMutex
	strategies map[string]domain.Strategy
	store      ports.StrategyStore // opcional
}

// New crea un catálogo vacío. store puede ser nil (solo memoria).
func New(store ports.StrategyStore) *Catalog {
	return &Catalog{
		strategies: make(map[string]domain.Strategy),
		store:      store,
	}
}

// Load lee todas las estrategias del store y valida el conjunto.
// Las de recovery entran primero para que los links resuelvan en una pasada.
func (c *Catalog) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	list, err := c.store.ListStrategies(ctx)
	if err != nil {
		return fmt.Errorf("catalog.Load: %w", err)
	}
	if err := c.putAll(ctx, list, false); err != nil {
		return fmt.Errorf("catalog.Load: %w", err)
	}
	slog.Debug("catalog: strategies loaded", "count", len(list))
	return nil
}

// PutAll valida y guarda un lote de definiciones (p.ej. de un YAML).
func (c *Catalog) PutAll(ctx context.Context, list []domain.Strategy) error {
	return c.putAll(ctx, list, true)
}

func (c *Catalog) putAll(ctx context.Context, list []domain.Strategy, persist bool) error {
	ordered := append([]domain.Strategy(nil), list...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Type == domain.StrategyRecovery && ordered[j].Type != domain.StrategyRecovery
	})
	for _, s := range ordered {
		if err := c.put(ctx, s, persist); err != nil {
			return err
		}
	}
	return nil
}

// Put valida s (y su link) y la guarda.
func (c *Catalog) Put(ctx context.Context, s domain.Strategy) error {
	return c.put(ctx, s, true)
}

func (c *Catalog) put(ctx context.Context, s domain.Strategy, persist bool) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("catalog.Put: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s.LinkedStrategyID != "" {
		linked, ok := c.strategies[s.LinkedStrategyID]
		if !ok {
			return fmt.Errorf("catalog.Put: %s links unknown %s: %w", s.ID, s.LinkedStrategyID, domain.ErrInvalidLink)
		}
		if err := domain.ValidateLink(s, linked); err != nil {
			return fmt.Errorf("catalog.Put: %w", err)
		}
	}

	// Una recovery que otras ya enlazan no puede cambiar de tipo ni
	// enlazar a su vez (cadena).
	if prev, ok := c.strategies[s.ID]; ok && prev.Type == domain.StrategyRecovery && s.Type != domain.StrategyRecovery {
		for _, other := range c.strategies {
			if other.LinkedStrategyID == s.ID {
				return fmt.Errorf("catalog.Put: %s is linked by %s and must stay recovery: %w",
					s.ID, other.ID, domain.ErrInvalidLink)
			}
		}
	}

	if persist && c.store != nil {
		if err := c.store.SaveStrategy(ctx, s); err != nil {
			return fmt.Errorf("catalog.Put: persist %s: %w", s.ID, err)
		}
	}
	c.strategies[s.ID] = s
	return nil
}

// Get devuelve la estrategia por id.
func (c *Catalog) Get(id string) (domain.Strategy, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.strategies[id]
	return s, ok
}

// Resolve devuelve la estrategia y su recovery enlazada (nil si no tiene).
func (c *Catalog) Resolve(id string) (domain.Strategy, *domain.Strategy, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.strategies[id]
	if !ok {
		return domain.Strategy{}, nil, fmt.Errorf("catalog.Resolve: %q: %w", id, domain.ErrUnknownStrategy)
	}
	if s.LinkedStrategyID == "" {
		return s, nil, nil
	}
	linked, ok := c.strategies[s.LinkedStrategyID]
	if !ok {
		return domain.Strategy{}, nil, fmt.Errorf("catalog.Resolve: %s links %q: %w",
			id, s.LinkedStrategyID, domain.ErrUnknownStrategy)
	}
	return s, &linked, nil
}

// List devuelve todas las estrategias ordenadas por id.
func (c *Catalog) List() []domain.Strategy {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Strategy, 0, len(c.strategies))
	for _, s := range c.strategies {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Linked devuelve la recovery enlazada desde id, o nil si no tiene.
func (c *Catalog) Linked(id string) (*domain.Strategy, error) {
	_, linked, err := c.Resolve(id)
	if err != nil {
		return nil, fmt.Errorf("catalog.Linked: %w", err)
	}
	return linked, nil
}
