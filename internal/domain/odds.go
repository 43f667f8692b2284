package domain

import (
	"fmt"
	"math"
)

// AmericanToDecimal convierte cuotas americanas a decimales.
//
//	+150 → 2.50
//	-150 → 1.667
func AmericanToDecimal(american int) (float64, error) {
	if american == 0 {
		return 0, fmt.Errorf("domain.AmericanToDecimal: %d: %w", american, ErrInvalidOdds)
	}
	if american > 0 {
		return float64(american)/100 + 1, nil
	}
	return 100/float64(-american) + 1, nil
}

// DecimalToAmerican convierte cuotas decimales a americanas (redondeo al entero).
func DecimalToAmerican(decimal float64) (int, error) {
	if decimal <= 1 {
		return 0, fmt.Errorf("domain.DecimalToAmerican: %.4f: %w", decimal, ErrInvalidOdds)
	}
	if decimal >= 2 {
		return int(math.Round((decimal - 1) * 100)), nil
	}
	return int(math.Round(-100 / (decimal - 1))), nil
}

// ImpliedProbability devuelve la probabilidad implícita (0–1) de una cuota americana.
func ImpliedProbability(american int) (float64, error) {
	dec, err := AmericanToDecimal(american)
	if err != nil {
		return 0, err
	}
	return 1 / dec, nil
}

// Payout devuelve la ganancia neta de un stake si la apuesta gana.
// Es la única conversión stake → payout para cuotas americanas:
//
//	odds > 0: stake × odds/100
//	odds < 0: stake × 100/|odds|
//
// Devuelve 0 para odds == 0.
func Payout(stake float64, american int) float64 {
	switch {
	case american > 0:
		return stake * float64(american) / 100
	case american < 0:
		return stake * 100 / float64(-american)
	default:
		return 0
	}
}

// ArbitrageMargin devuelve 1 − Σ(1/o_i) para cuotas decimales.
// Positivo = beneficio garantizado independientemente del resultado.
func ArbitrageMargin(decimalOdds ...float64) float64 {
	if len(decimalOdds) < 2 {
		return 0
	}
	inverse := 0.0
	for _, o := range decimalOdds {
		if o <= 1 {
			return 0
		}
		inverse += 1 / o
	}
	return 1 - inverse
}
