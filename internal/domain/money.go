package domain

import "github.com/shopspring/decimal"

// FloorCents trunca un importe a céntimos. Truncar (nunca redondear hacia arriba)
// garantiza que un stake ya limitado por el cap siga respetándolo.
func FloorCents(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	return decimal.NewFromFloat(amount).RoundFloor(2).InexactFloat64()
}

// AddMoney suma importes monetarios sin acumular error de coma flotante.
func AddMoney(a float64, more ...float64) float64 {
	sum := decimal.NewFromFloat(a)
	for _, m := range more {
		sum = sum.Add(decimal.NewFromFloat(m))
	}
	return sum.Round(2).InexactFloat64()
}

// SubMoney resta b de a con aritmética decimal.
func SubMoney(a, b float64) float64 {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}
