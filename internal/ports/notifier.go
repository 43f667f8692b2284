package ports

import (
	"context"

	"github.com/alejandrodnm/stakebot/internal/domain"
)

// Notifier presenta las recomendaciones de un ciclo para un investor.
type Notifier interface {
	// Notify recibe las recomendaciones ya ordenadas y recortadas.
	Notify(ctx context.Context, inv domain.Investor, recs []domain.Recommendation) error
}
