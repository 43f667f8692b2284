package sizing

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/stakebot/internal/domain"
)

// Input es todo lo que un Sizer necesita para calcular un stake.
type Input struct {
	Params         domain.SizingParams
	Balance        float64
	BetPercentage  float64 // cap del investor, fracción del balance
	RecoveryActive bool
	Opportunity    domain.Opportunity
}

// Result es el stake calculado. Un rechazo es un stake 0 con motivo, no un error.
type Result struct {
	Stake          float64
	ExpectedPayout float64 // ganancia neta si gana (garantizada en arbitraje)
	Legs           []domain.LegStake
	KellyFraction  float64 // f* sin fraccionar, solo kelly
	Capped         bool
	Rejected       bool
	Reason         string
}

func reject(format string, args ...any) Result {
	return Result{Rejected: true, Reason: fmt.Sprintf(format, args...)}
}

// Sizer define el contrato de un algoritmo de stake sizing.
// Size devuelve el stake bruto; el Registry aplica el cap y el redondeo.
type Sizer interface {
	// Algorithm devuelve el identificador del algoritmo.
	Algorithm() domain.SizingAlgorithm

	// Size calcula el stake bruto. Debe ser puro: sin efectos secundarios.
	Size(in Input) Result
}

// Registry mantiene los sizers disponibles indexados por algoritmo.
type Registry map[domain.SizingAlgorithm]Sizer

// NewRegistry crea un registry vacío.
func NewRegistry() Registry {
	return make(Registry)
}

// NewDefaultRegistry crea un registry con los cuatro algoritmos estándar.
func NewDefaultRegistry() Registry {
	r := NewRegistry()
	r.Register(FixedPercentage{})
	r.Register(Kelly{})
	r.Register(RecoveryProgressive{})
	r.Register(Arbitrage{})
	return r
}

// Register añade un sizer al registry.
func (r Registry) Register(s Sizer) {
	r[s.Algorithm()] = s
}

// Get devuelve el sizer por algoritmo.
func (r Registry) Get(alg domain.SizingAlgorithm) (Sizer, bool) {
	s, ok := r[alg]
	return s, ok
}

// Size ejecuta el algoritmo y garantiza el invariante del cap:
//
//	0 ≤ stake ≤ min(balance, balance × BetPercentage)
//
// El stake se trunca a céntimos y el payout se deriva del stake final.
func (r Registry) Size(alg domain.SizingAlgorithm, in Input) (Result, error) {
	s, ok := r.Get(alg)
	if !ok {
		return Result{}, fmt.Errorf("sizing.Size: algorithm %q: %w", alg, domain.ErrInvalidStrategy)
	}

	res := s.Size(in)
	if res.Rejected || res.Stake <= 0 || math.IsNaN(res.Stake) {
		if !res.Rejected {
			res = reject("non-positive stake")
		}
		res.Stake = 0
		res.Legs = nil
		return res, nil
	}

	limit := domain.StakeCap(in.Balance, in.BetPercentage)
	if res.Stake > limit {
		scale := limit / res.Stake
		res.Stake = limit
		for i := range res.Legs {
			res.Legs[i].Stake *= scale
		}
		res.Capped = true
	}

	if len(res.Legs) > 0 {
		finalizeLegs(&res)
	} else {
		res.Stake = domain.FloorCents(res.Stake)
		res.ExpectedPayout = domain.FloorCents(domain.Payout(res.Stake, in.Opportunity.Odds))
	}

	if res.Stake <= 0 {
		return reject("stake below one cent after cap"), nil
	}
	return res, nil
}

// finalizeLegs trunca cada lado a céntimos y recalcula total y payout
// garantizado (el menor retorno entre lados menos el total apostado).
func finalizeLegs(res *Result) {
	total := 0.0
	guaranteed := math.Inf(1)
	for i := range res.Legs {
		res.Legs[i].Stake = domain.FloorCents(res.Legs[i].Stake)
		total = domain.AddMoney(total, res.Legs[i].Stake)
		guaranteed = math.Min(guaranteed, res.Legs[i].Stake*res.Legs[i].DecimalOdds)
	}
	res.Stake = total
	res.ExpectedPayout = math.Max(0, domain.FloorCents(guaranteed-total))
}

// percentOf devuelve balance × pct/100.
func percentOf(balance, pct float64) float64 {
	return balance * pct / 100
}

// capByMaxBet aplica params.max_bet_percentage si está configurado.
func capByMaxBet(stake, balance float64, p domain.SizingParams) (float64, bool) {
	if p.MaxBetPercentage <= 0 {
		return stake, false
	}
	limit := percentOf(balance, p.MaxBetPercentage)
	if stake > limit {
		return limit, true
	}
	return stake, false
}
