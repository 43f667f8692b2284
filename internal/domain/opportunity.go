package domain

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ArbitrageLeg es un lado de un arbitraje entre dos casas.
type ArbitrageLeg struct {
	Book        string  `yaml:"book" json:"book"`
	Selection   string  `yaml:"selection" json:"selection"`
	DecimalOdds float64 `yaml:"decimal_odds" json:"decimal_odds"`
}

// Opportunity es un evento apostable con sus cuotas y features.
// Llega ya resuelta desde el proveedor de mercado; el engine no la modifica.
type Opportunity struct {
	ID        string             `yaml:"id" json:"id"`
	Sport     string             `yaml:"sport" json:"sport"`
	Market    string             `yaml:"market" json:"market"`
	Selection string             `yaml:"selection" json:"selection"`
	Odds      int                `yaml:"odds" json:"odds"` // americana
	Features  map[string]Feature `yaml:"features" json:"features"`

	// Arbitrage solo existe para oportunidades de arbitraje (dos lados opuestos).
	Arbitrage []ArbitrageLeg `yaml:"arbitrage,omitempty" json:"arbitrage,omitempty"`
}

// UnmarshalYAML decodifica la oportunidad pasando cada feature por
// Feature.UnmarshalYAML, también las nulas: yaml.v3 no llama al unmarshaler
// con ~ y las dejaría en Number(0).
func (o *Opportunity) UnmarshalYAML(node *yaml.Node) error {
	type plain Opportunity
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}

	var raw struct {
		Features map[string]yaml.Node `yaml:"features"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	for name, n := range raw.Features {
		var f Feature
		if err := f.UnmarshalYAML(&n); err != nil {
			return fmt.Errorf("feature %q: %w", name, err)
		}
		p.Features[name] = f
	}

	*o = Opportunity(p)
	return nil
}

// Feature devuelve la feature declarada. Si no existe, solo se derivan
// odds, decimal_odds e implied_probability a partir de Odds; el resto no
// tiene default.
func (o Opportunity) Feature(name string) (Feature, bool) {
	if f, ok := o.Features[name]; ok {
		return f, true
	}
	if o.Odds == 0 {
		return Feature{}, false
	}
	switch name {
	case FeatureOdds:
		return Number(float64(o.Odds)), true
	case FeatureDecimalOdds:
		dec, _ := AmericanToDecimal(o.Odds)
		return Number(dec), true
	case FeatureImpliedProbability:
		p, _ := ImpliedProbability(o.Odds)
		return Number(p), true
	}
	return Feature{}, false
}

// Confidence devuelve la confianza (0–100) si la oportunidad la trae como número.
func (o Opportunity) Confidence() (float64, bool) {
	f, ok := o.Features[FeatureConfidence]
	if !ok || f.Kind != KindNumber {
		return 0, false
	}
	return f.Num, true
}

// DecimalOdds devuelve las cuotas decimales de la selección principal.
func (o Opportunity) DecimalOdds() (float64, error) {
	return AmericanToDecimal(o.Odds)
}

// IsArbitrage devuelve true si la oportunidad trae al menos dos lados.
func (o Opportunity) IsArbitrage() bool {
	return len(o.Arbitrage) >= 2
}
