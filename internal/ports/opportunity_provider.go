package ports

import (
	"context"

	"github.com/alejandrodnm/stakebot/internal/domain"
)

// OpportunityProvider entrega el batch de oportunidades de cada ciclo,
// ya resuelto (cuotas, features y confianza del modelo).
type OpportunityProvider interface {
	FetchOpportunities(ctx context.Context) ([]domain.Opportunity, error)
}
