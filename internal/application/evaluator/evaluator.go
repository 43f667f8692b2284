package evaluator

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/stakebot/internal/domain"
	"github.com/alejandrodnm/stakebot/internal/domain/sizing"
)

// Config contiene la configuración del evaluator.
type Config struct {
	Workers int // goroutines para evaluación paralela (0 = NumCPU*2)
}

// Exclusion es una oportunidad descartada por un error del árbol de condiciones.
// No aborta el batch.
type Exclusion struct {
	OpportunityID string
	Err           error
}

// Rejection es una oportunidad que pasó las condiciones pero cuyo stake es 0.
type Rejection struct {
	OpportunityID string
	Algorithm     domain.SizingAlgorithm
	Reason        string
}

// Result es la salida de una pasada de evaluación para un investor.
type Result struct {
	Recommendations []domain.Recommendation // ya rankeadas

	// RecoveryActive es el valor del flag tras el check de este ciclo;
	// RecoveryChanged indica si hay que aplicarlo al investor.
	RecoveryActive  bool
	RecoveryChanged bool

	// StrategyID es la estrategia efectiva (base o recovery).
	StrategyID string

	Excluded []Exclusion
	Rejected []Rejection
}

// Evaluator convierte una estrategia y un batch de oportunidades en
// recomendaciones dimensionadas. No tiene estado mutable: es seguro usarlo
// desde varias goroutines.
type Evaluator struct {
	cfg      Config
	registry sizing.Registry
	now      func() time.Time
}

// New crea un Evaluator. Si registry es nil usa los algoritmos estándar.
func New(cfg Config, registry sizing.Registry) *Evaluator {
	if registry == nil {
		registry = sizing.NewDefaultRegistry()
	}
	return &Evaluator{cfg: cfg, registry: registry, now: time.Now}
}

// RecoveryDecision devuelve el valor del flag de recovery para el ciclo:
// activo si el drawdown alcanza el loss_threshold de la estrategia enlazada.
// Sin estrategia enlazada el flag queda apagado.
func RecoveryDecision(inv domain.Investor, linked *domain.Strategy) (active, changed bool) {
	if linked == nil {
		return false, inv.IsRecoveryActive
	}
	active = inv.Drawdown() >= linked.Params.LossThreshold
	return active, active != inv.IsRecoveryActive
}

// Evaluate ejecuta una pasada completa:
//  1. decide el flag de recovery una sola vez
//  2. elige la estrategia efectiva (la recovery la sustituye por completo)
//  3. evalúa condiciones y stake por oportunidad en paralelo
//  4. rankea las recomendaciones
//
// inv es una copia: Evaluate nunca muta el investor.
func (e *Evaluator) Evaluate(inv domain.Investor, base domain.Strategy, linked *domain.Strategy, opps []domain.Opportunity) (Result, error) {
	active, changed := RecoveryDecision(inv, linked)

	effective := base
	if active && linked != nil {
		effective = *linked
	}
	alg := effective.Algorithm()
	if _, ok := e.registry.Get(alg); !ok {
		return Result{}, fmt.Errorf("evaluator.Evaluate: strategy %s algorithm %q: %w",
			effective.ID, alg, domain.ErrInvalidStrategy)
	}

	ev := pass{
		investor:  inv,
		strategy:  effective,
		recovery:  active,
		registry:  e.registry,
		generated: e.now().UTC(),
	}
	outcomes := evaluateConcurrent(ev, opps, e.cfg.Workers)

	res := Result{
		RecoveryActive:  active,
		RecoveryChanged: changed,
		StrategyID:      effective.ID,
	}
	for _, o := range outcomes {
		switch {
		case o.err != nil:
			res.Excluded = append(res.Excluded, Exclusion{OpportunityID: o.opportunityID, Err: o.err})
		case o.rejection != nil:
			res.Rejected = append(res.Rejected, *o.rejection)
		case o.rec != nil:
			res.Recommendations = append(res.Recommendations, *o.rec)
		}
	}
	domain.RankRecommendations(res.Recommendations)

	slog.Debug("evaluation complete",
		"investor", inv.ID,
		"strategy", effective.ID,
		"recovery", active,
		"opportunities", len(opps),
		"recommendations", len(res.Recommendations),
		"excluded", len(res.Excluded),
		"rejected", len(res.Rejected),
	)
	return res, nil
}

// pass agrupa lo que comparten todas las oportunidades de una evaluación.
type pass struct {
	investor  domain.Investor
	strategy  domain.Strategy
	recovery  bool
	registry  sizing.Registry
	generated time.Time
}

// outcome es el resultado de evaluar una oportunidad: exactamente uno de
// err, rejection, rec (o ninguno si no pasó las condiciones).
type outcome struct {
	index         int
	opportunityID string
	err           error
	rejection     *Rejection
	rec           *domain.Recommendation
}

func (p pass) evaluate(opp domain.Opportunity) outcome {
	out := outcome{opportunityID: opp.ID}

	ok, passed, err := p.strategy.Conditions.Evaluate(opp)
	if err != nil {
		out.err = fmt.Errorf("opportunity %s: %w", opp.ID, err)
		return out
	}
	if !ok {
		return out
	}

	alg := p.strategy.Algorithm()
	sized, err := p.registry.Size(alg, sizing.Input{
		Params:         p.strategy.Params,
		Balance:        p.investor.CurrentBalance,
		BetPercentage:  p.investor.BetPercentage,
		RecoveryActive: p.recovery,
		Opportunity:    opp,
	})
	if err != nil {
		out.err = fmt.Errorf("opportunity %s: %w", opp.ID, err)
		return out
	}
	if sized.Rejected || sized.Stake <= 0 {
		out.rejection = &Rejection{OpportunityID: opp.ID, Algorithm: alg, Reason: sized.Reason}
		return out
	}

	confidence, _ := opp.Confidence()
	guaranteed := len(sized.Legs) > 0
	note := ""
	if sized.Capped {
		note = "stake capped"
	}
	out.rec = &domain.Recommendation{
		InvestorID:     p.investor.ID,
		OpportunityID:  opp.ID,
		StrategyID:     p.strategy.ID,
		Sport:          opp.Sport,
		Market:         opp.Market,
		Selection:      opp.Selection,
		Odds:           opp.Odds,
		Stake:          sized.Stake,
		ExpectedPayout: sized.ExpectedPayout,
		Confidence:     confidence,
		ExpectedValue:  domain.EstimateExpectedValue(sized.Stake, sized.ExpectedPayout, confidence, guaranteed),
		Legs:           sized.Legs,
		Rationale: domain.Rationale{
			PassedPredicates: passed,
			Algorithm:        alg,
			Recovery:         p.recovery,
			Note:             note,
		},
		GeneratedAt: p.generated,
	}
	return out
}
