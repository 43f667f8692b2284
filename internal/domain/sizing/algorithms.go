package sizing

import (
	"github.com/alejandrodnm/stakebot/internal/domain"
)

// FixedPercentage apuesta un porcentaje fijo del balance.
//
//	stake = balance × percentage/100, limitado por max_bet_percentage
type FixedPercentage struct{}

// Algorithm implementa Sizer.
func (FixedPercentage) Algorithm() domain.SizingAlgorithm { return domain.SizingFixedPercentage }

// Size implementa Sizer.
func (FixedPercentage) Size(in Input) Result {
	if in.Params.Percentage <= 0 {
		return reject("percentage not configured")
	}
	stake, capped := capByMaxBet(percentOf(in.Balance, in.Params.Percentage), in.Balance, in.Params)
	return Result{Stake: stake, Capped: capped}
}

// Kelly aplica Kelly fraccional con la confianza del modelo como probabilidad.
//
//	b  = decimalOdds − 1
//	p  = confidence/100, q = 1 − p
//	f* = (b·p − q) / b
//	stake = balance × f* × kelly_fraction
//
// Sin ventaja (f* ≤ 0) nunca se apuesta.
type Kelly struct{}

// Algorithm implementa Sizer.
func (Kelly) Algorithm() domain.SizingAlgorithm { return domain.SizingKelly }

// Size implementa Sizer.
func (Kelly) Size(in Input) Result {
	confidence, ok := in.Opportunity.Confidence()
	if !ok {
		return reject("kelly: opportunity has no numeric confidence")
	}
	dec, err := in.Opportunity.DecimalOdds()
	if err != nil {
		return reject("kelly: %v", err)
	}

	f := KellyFraction(dec, confidence/100)
	if f <= 0 {
		res := reject("kelly: no positive edge (f*=%.4f)", f)
		res.KellyFraction = f
		return res
	}

	fraction := in.Params.KellyFraction
	if fraction <= 0 {
		fraction = 1
	}
	stake, capped := capByMaxBet(in.Balance*f*fraction, in.Balance, in.Params)
	return Result{Stake: stake, KellyFraction: f, Capped: capped}
}

// KellyFraction devuelve f* = (b·p − q)/b para cuotas decimales y probabilidad p.
// Devuelve 0 para entradas inválidas.
func KellyFraction(decimalOdds, p float64) float64 {
	b := decimalOdds - 1
	if b <= 0 || p <= 0 || p > 1 {
		return 0
	}
	q := 1 - p
	return (b*p - q) / b
}

// RecoveryProgressive multiplica el stake fijo mientras el recovery está activo.
//
//	stake = balance × percentage/100 × recovery_multiplier, limitado por max_bet_percentage
type RecoveryProgressive struct{}

// Algorithm implementa Sizer.
func (RecoveryProgressive) Algorithm() domain.SizingAlgorithm {
	return domain.SizingRecoveryProgressive
}

// Size implementa Sizer.
func (RecoveryProgressive) Size(in Input) Result {
	if !in.RecoveryActive {
		return reject("recovery sizing requires active recovery")
	}
	if in.Params.Percentage <= 0 || in.Params.RecoveryMultiplier <= 0 {
		return reject("recovery: percentage and recovery_multiplier must be > 0")
	}
	base := percentOf(in.Balance, in.Params.Percentage)
	stake, capped := capByMaxBet(base*in.Params.RecoveryMultiplier, in.Balance, in.Params)
	return Result{Stake: stake, Capped: capped}
}

// Arbitrage reparte el stake total entre dos lados opuestos para que el
// retorno sea igual gane quien gane:
//
//	s_i = total × (1/o_i) / Σ(1/o_j)  ⇒  s1·o1 = s2·o2
//
// Se rechaza si el margen 1 − Σ(1/o_j) no es positivo.
type Arbitrage struct{}

// Algorithm implementa Sizer.
func (Arbitrage) Algorithm() domain.SizingAlgorithm { return domain.SizingArbitrage }

// Size implementa Sizer.
func (Arbitrage) Size(in Input) Result {
	if !in.Opportunity.IsArbitrage() {
		return reject("arbitrage: opportunity has no opposing legs")
	}
	legs := in.Opportunity.Arbitrage[:2]

	margin := domain.ArbitrageMargin(legs[0].DecimalOdds, legs[1].DecimalOdds)
	if margin <= 0 {
		return reject("arbitrage: no guaranteed profit (margin=%.4f)", margin)
	}
	if in.Params.Percentage <= 0 {
		return reject("arbitrage: percentage not configured")
	}

	total, capped := capByMaxBet(percentOf(in.Balance, in.Params.Percentage), in.Balance, in.Params)
	stakes := SplitArbitrage(total, legs[0].DecimalOdds, legs[1].DecimalOdds)

	out := make([]domain.LegStake, len(legs))
	for i, leg := range legs {
		out[i] = domain.LegStake{ArbitrageLeg: leg, Stake: stakes[i]}
	}
	return Result{Stake: total, Legs: out, Capped: capped}
}

// SplitArbitrage divide total entre cuotas decimales de forma que s_i·o_i sea
// igual para todos los lados.
func SplitArbitrage(total float64, decimalOdds ...float64) []float64 {
	inverse := 0.0
	for _, o := range decimalOdds {
		inverse += 1 / o
	}
	stakes := make([]float64, len(decimalOdds))
	for i, o := range decimalOdds {
		stakes[i] = total * (1 / o) / inverse
	}
	return stakes
}
