package oddsfeed

import (
	"context"

	"github.com/alejandrodnm/stakebot/internal/domain"
)

// Static implementa ports.OpportunityProvider con un batch fijo (fixtures,
// -opportunities y ejecuciones offline). Cada fetch devuelve una copia.
type Static struct {
	opps []domain.Opportunity
}

// NewStatic crea un proveedor que siempre entrega el mismo batch.
func NewStatic(opps []domain.Opportunity) *Static {
	return &Static{opps: opps}
}

// FetchOpportunities devuelve el batch filtrando lo inutilizable.
func (s *Static) FetchOpportunities(_ context.Context) ([]domain.Opportunity, error) {
	out := make([]domain.Opportunity, 0, len(s.opps))
	for _, opp := range s.opps {
		if usable(opp) {
			out = append(out, opp)
		}
	}
	return out, nil
}
