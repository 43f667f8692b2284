package domain

import (
	"fmt"
	"strings"
)

// Operator es el operador de comparación de un predicado.
type Operator int

const (
	OpGreater Operator = iota + 1
	OpGreaterOrEqual
	OpLess
	OpLessOrEqual
	OpEqual
)

var operatorSymbols = map[Operator]string{
	OpGreater:        ">",
	OpGreaterOrEqual: ">=",
	OpLess:           "<",
	OpLessOrEqual:    "<=",
	OpEqual:          "==",
}

func (op Operator) String() string {
	if s, ok := operatorSymbols[op]; ok {
		return s
	}
	return fmt.Sprintf("Operator(%d)", int(op))
}

// ParseOperator interpreta ">", ">=", "<", "<=", "==".
func ParseOperator(s string) (Operator, error) {
	s = strings.TrimSpace(s)
	for op, sym := range operatorSymbols {
		if sym == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("domain.ParseOperator: %q: %w", s, ErrInvalidStrategy)
}

// MarshalText implementa encoding.TextMarshaler (YAML y JSON).
func (op Operator) MarshalText() ([]byte, error) {
	if _, ok := operatorSymbols[op]; !ok {
		return nil, fmt.Errorf("domain.Operator: %d: %w", int(op), ErrInvalidStrategy)
	}
	return []byte(op.String()), nil
}

// UnmarshalText implementa encoding.TextUnmarshaler.
func (op *Operator) UnmarshalText(text []byte) error {
	parsed, err := ParseOperator(string(text))
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}

// Predicate compara una feature de la oportunidad contra un umbral tipado.
type Predicate struct {
	Feature   string   `yaml:"feature" json:"feature"`
	Operator  Operator `yaml:"op" json:"op"`
	Threshold Feature  `yaml:"value" json:"value"`
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %s", p.Feature, p.Operator, p.Threshold)
}

// Evaluate compara la feature referenciada con el umbral.
// Falla con ErrUnknownFeature si la oportunidad no la trae y con ErrTypeMismatch
// si los tipos no coinciden o se ordena un booleano.
func (p Predicate) Evaluate(opp Opportunity) (bool, error) {
	value, ok := opp.Feature(p.Feature)
	if !ok {
		return false, fmt.Errorf("%q on opportunity %s: %w", p.Feature, opp.ID, ErrUnknownFeature)
	}
	if value.Kind == KindOpaque || p.Threshold.Kind == KindOpaque {
		return false, fmt.Errorf("%q: opaque value %s: %w", p.Feature, value, ErrTypeMismatch)
	}
	if value.Kind != p.Threshold.Kind {
		return false, fmt.Errorf("%q is %s, threshold is %s: %w",
			p.Feature, value.Kind, p.Threshold.Kind, ErrTypeMismatch)
	}

	if value.Kind == KindBool {
		if p.Operator != OpEqual {
			return false, fmt.Errorf("%q: operator %s on bool: %w", p.Feature, p.Operator, ErrTypeMismatch)
		}
		return value.Bool == p.Threshold.Bool, nil
	}

	v, t := value.Num, p.Threshold.Num
	switch p.Operator {
	case OpGreater:
		return v > t, nil
	case OpGreaterOrEqual:
		return v >= t, nil
	case OpLess:
		return v < t, nil
	case OpLessOrEqual:
		return v <= t, nil
	case OpEqual:
		return v == t, nil
	default:
		return false, fmt.Errorf("%q: operator %s: %w", p.Feature, p.Operator, ErrInvalidStrategy)
	}
}

// ConditionKind identifica la variante de un nodo.
type ConditionKind int

const (
	ConditionEmpty ConditionKind = iota
	ConditionLeaf
	ConditionAll
	ConditionAny
)

// Condition es un nodo del árbol de condiciones. Variantes:
//   - hoja: Feature/Op/Value (un predicado)
//   - All: AND de los hijos
//   - Any: OR de los hijos
//
// El nodo vacío acepta todo.
type Condition struct {
	Feature string   `yaml:"feature,omitempty" json:"feature,omitempty"`
	Op      Operator `yaml:"op,omitempty" json:"op,omitempty"`
	Value   *Feature `yaml:"value,omitempty" json:"value,omitempty"`

	All []Condition `yaml:"all,omitempty" json:"all,omitempty"`
	Any []Condition `yaml:"any,omitempty" json:"any,omitempty"`
}

// Leaf construye una hoja.
func Leaf(feature string, op Operator, threshold Feature) Condition {
	return Condition{Feature: feature, Op: op, Value: &threshold}
}

// All construye un AND.
func All(children ...Condition) Condition { return Condition{All: children} }

// Any construye un OR.
func Any(children ...Condition) Condition { return Condition{Any: children} }

// Kind devuelve la variante del nodo. Un nodo con más de una variante es
// inválido y se detecta en Validate.
func (c Condition) Kind() ConditionKind {
	switch {
	case c.Feature != "" || c.Value != nil:
		return ConditionLeaf
	case len(c.All) > 0:
		return ConditionAll
	case len(c.Any) > 0:
		return ConditionAny
	default:
		return ConditionEmpty
	}
}

// Predicate devuelve el predicado de una hoja.
func (c Condition) Predicate() Predicate {
	p := Predicate{Feature: c.Feature, Operator: c.Op}
	if c.Value != nil {
		p.Threshold = *c.Value
	}
	return p
}

// IsEmpty devuelve true si el árbol no tiene condiciones.
func (c Condition) IsEmpty() bool {
	return c.Kind() == ConditionEmpty
}

// Validate comprueba la forma del árbol: cada nodo tiene una sola variante,
// las hojas nombran una feature, un operador conocido y un umbral.
func (c Condition) Validate() error {
	variants := 0
	if c.Feature != "" || c.Value != nil || c.Op != 0 {
		variants++
	}
	if len(c.All) > 0 {
		variants++
	}
	if len(c.Any) > 0 {
		variants++
	}
	if variants > 1 {
		return fmt.Errorf("condition mixes leaf/all/any: %w", ErrInvalidStrategy)
	}

	if c.Kind() == ConditionLeaf || c.Op != 0 {
		if c.Feature == "" {
			return fmt.Errorf("predicate without feature: %w", ErrInvalidStrategy)
		}
		if _, ok := operatorSymbols[c.Op]; !ok {
			return fmt.Errorf("predicate %q: missing operator: %w", c.Feature, ErrInvalidStrategy)
		}
		if c.Value == nil {
			return fmt.Errorf("predicate %q: missing value: %w", c.Feature, ErrInvalidStrategy)
		}
		if c.Value.Kind == KindOpaque {
			return fmt.Errorf("predicate %q: value %s is not a number or bool: %w",
				c.Feature, c.Value, ErrInvalidStrategy)
		}
		return nil
	}
	for _, child := range c.All {
		if err := child.Validate(); err != nil {
			return err
		}
	}
	for _, child := range c.Any {
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate decide si la oportunidad pasa el árbol. AND corta en el primer
// false, OR en el primer true. Devuelve las hojas que pasaron (para el
// rationale). Un error en cualquier hoja evaluada invalida el resultado.
func (c Condition) Evaluate(opp Opportunity) (bool, []string, error) {
	var passed []string
	ok, err := c.eval(opp, &passed)
	if err != nil {
		return false, nil, err
	}
	return ok, passed, nil
}

func (c Condition) eval(opp Opportunity, passed *[]string) (bool, error) {
	switch c.Kind() {
	case ConditionLeaf:
		p := c.Predicate()
		ok, err := p.Evaluate(opp)
		if err != nil {
			return false, err
		}
		if ok {
			*passed = append(*passed, p.String())
		}
		return ok, nil
	case ConditionAll:
		for _, child := range c.All {
			ok, err := child.eval(opp, passed)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case ConditionAny:
		for _, child := range c.Any {
			ok, err := child.eval(opp, passed)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return true, nil
	}
}
