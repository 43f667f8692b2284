package ports

import (
	"context"

	"github.com/alejandrodnm/stakebot/internal/domain"
)

// StrategyStore persiste las definiciones de estrategias.
type StrategyStore interface {
	SaveStrategy(ctx context.Context, s domain.Strategy) error
	GetStrategy(ctx context.Context, id string) (domain.Strategy, error)
	ListStrategies(ctx context.Context) ([]domain.Strategy, error)
}

// InvestorStore persiste el estado de los investors (balance, contadores, flags).
type InvestorStore interface {
	SaveInvestor(ctx context.Context, inv domain.Investor) error
	// GetInvestor devuelve el investor con su historial de apuestas liquidadas.
	GetInvestor(ctx context.Context, id string) (domain.Investor, error)
	ListInvestors(ctx context.Context) ([]domain.Investor, error)
}

// WagerStore persiste apuestas pending y liquidadas.
type WagerStore interface {
	SaveWager(ctx context.Context, w domain.Wager) error
	GetWager(ctx context.Context, id string) (domain.Wager, error)
	// ListWagers devuelve las apuestas del investor en orden de colocación.
	// Un outcome vacío devuelve todas.
	ListWagers(ctx context.Context, investorID string, outcome domain.Outcome) ([]domain.Wager, error)
}

// Storage agrupa todos los stores y el cierre de la conexión.
type Storage interface {
	StrategyStore
	InvestorStore
	WagerStore

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
