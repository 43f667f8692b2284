package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// FeatureKind es el tipo declarado de una feature.
type FeatureKind int

const (
	KindNumber FeatureKind = iota
	KindBool
	// KindOpaque guarda cualquier otro valor del feed (texto, objetos, null)
	// tal cual. Ningún predicado lo compara.
	KindOpaque
)

func (k FeatureKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindOpaque:
		return "opaque"
	}
	return "number"
}

// Feature es un valor tipado de una oportunidad (o el umbral de un predicado).
// Nunca se convierte implícitamente entre número, booleano u opaco.
type Feature struct {
	Kind FeatureKind
	Num  float64
	Bool bool
	Raw  string // solo KindOpaque: el valor original
}

// Number crea una feature numérica.
func Number(v float64) Feature { return Feature{Kind: KindNumber, Num: v} }

// Flag crea una feature booleana.
func Flag(v bool) Feature { return Feature{Kind: KindBool, Bool: v} }

// Opaque crea una feature que se transporta sin interpretar.
func Opaque(raw string) Feature { return Feature{Kind: KindOpaque, Raw: raw} }

func (f Feature) String() string {
	switch f.Kind {
	case KindBool:
		return strconv.FormatBool(f.Bool)
	case KindOpaque:
		return f.Raw
	}
	return strconv.FormatFloat(f.Num, 'f', -1, 64)
}

// MarshalJSON escribe la feature como número o booleano JSON. Las opacas se
// reescriben tal como llegaron.
func (f Feature) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case KindBool:
		return json.Marshal(f.Bool)
	case KindOpaque:
		if json.Valid([]byte(f.Raw)) {
			return []byte(f.Raw), nil
		}
		return json.Marshal(f.Raw)
	}
	return json.Marshal(f.Num)
}

// UnmarshalJSON infiere el tipo del token JSON. Lo que no es número ni
// booleano (null incluido) queda opaco: nunca se convierte a 0 o false.
func (f *Feature) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true", "false":
		*f = Flag(string(data) == "true")
		return nil
	case "null":
		*f = Opaque("null")
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		*f = Opaque(string(data))
		return nil
	}
	*f = Number(n)
	return nil
}

// MarshalYAML escribe la feature como escalar YAML.
func (f Feature) MarshalYAML() (any, error) {
	switch f.Kind {
	case KindBool:
		return f.Bool, nil
	case KindOpaque:
		return f.Raw, nil
	}
	return f.Num, nil
}

// UnmarshalYAML infiere el tipo del tag del escalar (!!bool, !!int, !!float).
// Otros escalares (texto, ~) quedan opacos; listas y mapas son un error.
func (f *Feature) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("feature at line %d: expected scalar: %w", node.Line, ErrTypeMismatch)
	}
	switch node.Tag {
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		*f = Flag(b)
	case "!!int", "!!float":
		var n float64
		if err := node.Decode(&n); err != nil {
			return err
		}
		*f = Number(n)
	case "!!null":
		*f = Opaque("null")
	default:
		*f = Opaque(node.Value)
	}
	return nil
}

// Nombres de features que las estrategias suelen referenciar.
const (
	FeatureConfidence         = "confidence"          // 0–100, viene del modelo
	FeatureImpliedProbability = "implied_probability" // 0–1, derivable de Odds
	FeatureExpectedValue      = "expected_value"      // % EV estimado
	FeatureOdds               = "odds"                // americana, derivable
	FeatureDecimalOdds        = "decimal_odds"        // derivable
	FeatureSportsbookCount    = "sportsbook_count"
	FeatureArbitrageEdge      = "arbitrage_edge"
)
