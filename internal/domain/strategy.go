package domain

import "fmt"

// StrategyType clasifica la estrategia.
type StrategyType string

const (
	StrategyConservative  StrategyType = "conservative"
	StrategyAggressive    StrategyType = "aggressive"
	StrategyRecovery      StrategyType = "recovery"
	StrategyExpectedValue StrategyType = "expected_value"
	StrategyValueHunting  StrategyType = "value_hunting"
	StrategyArbitrage     StrategyType = "arbitrage"
	StrategyCustom        StrategyType = "custom"
)

// Valid devuelve true si el tipo es uno de los conocidos.
func (t StrategyType) Valid() bool {
	switch t {
	case StrategyConservative, StrategyAggressive, StrategyRecovery,
		StrategyExpectedValue, StrategyValueHunting, StrategyArbitrage, StrategyCustom:
		return true
	}
	return false
}

// SizingAlgorithm selecciona el algoritmo de stake sizing.
type SizingAlgorithm string

const (
	SizingFixedPercentage     SizingAlgorithm = "fixed_percentage"
	SizingKelly               SizingAlgorithm = "kelly"
	SizingRecoveryProgressive SizingAlgorithm = "recovery_progressive"
	SizingArbitrage           SizingAlgorithm = "arbitrage"
)

// DefaultSizing devuelve el algoritmo por defecto de cada tipo de estrategia.
func DefaultSizing(t StrategyType) SizingAlgorithm {
	switch t {
	case StrategyAggressive, StrategyExpectedValue, StrategyValueHunting:
		return SizingKelly
	case StrategyRecovery:
		return SizingRecoveryProgressive
	case StrategyArbitrage:
		return SizingArbitrage
	default:
		return SizingFixedPercentage
	}
}

// SizingParams son los parámetros del algoritmo. Los porcentajes van en
// unidades de % (2 = 2%); KellyFraction y RecoveryMultiplier son factores.
type SizingParams struct {
	Percentage         float64 `yaml:"percentage,omitempty" json:"percentage,omitempty"`
	MaxBetPercentage   float64 `yaml:"max_bet_percentage,omitempty" json:"max_bet_percentage,omitempty"`
	KellyFraction      float64 `yaml:"kelly_fraction,omitempty" json:"kelly_fraction,omitempty"`
	RecoveryMultiplier float64 `yaml:"recovery_multiplier,omitempty" json:"recovery_multiplier,omitempty"`
	LossThreshold      float64 `yaml:"loss_threshold,omitempty" json:"loss_threshold,omitempty"`
}

// Strategy es una regla parametrizada: qué oportunidades aceptar y cuánto apostar.
// El engine solo la lee; se modifica únicamente por ediciones explícitas.
type Strategy struct {
	ID               string          `yaml:"id" json:"id"`
	Name             string          `yaml:"name" json:"name"`
	Type             StrategyType    `yaml:"type" json:"type"`
	Conditions       Condition       `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	Sizing           SizingAlgorithm `yaml:"sizing,omitempty" json:"sizing,omitempty"`
	Params           SizingParams    `yaml:"params" json:"params"`
	LinkedStrategyID string          `yaml:"linked_strategy_id,omitempty" json:"linked_strategy_id,omitempty"`
}

// Algorithm devuelve el algoritmo efectivo (el explícito o el default del tipo).
func (s Strategy) Algorithm() SizingAlgorithm {
	if s.Sizing != "" {
		return s.Sizing
	}
	return DefaultSizing(s.Type)
}

// Validate comprueba la estrategia aislada (sin mirar el enlace).
func (s Strategy) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("strategy without id: %w", ErrInvalidStrategy)
	}
	if !s.Type.Valid() {
		return fmt.Errorf("strategy %s: type %q: %w", s.ID, s.Type, ErrInvalidStrategy)
	}
	switch s.Algorithm() {
	case SizingFixedPercentage, SizingRecoveryProgressive, SizingArbitrage:
		if s.Params.Percentage <= 0 {
			return fmt.Errorf("strategy %s: percentage must be > 0: %w", s.ID, ErrInvalidStrategy)
		}
	case SizingKelly:
		if s.Params.KellyFraction <= 0 || s.Params.KellyFraction > 1 {
			return fmt.Errorf("strategy %s: kelly_fraction must be in (0, 1]: %w", s.ID, ErrInvalidStrategy)
		}
	default:
		return fmt.Errorf("strategy %s: sizing %q: %w", s.ID, s.Sizing, ErrInvalidStrategy)
	}
	if s.Algorithm() == SizingRecoveryProgressive && s.Params.RecoveryMultiplier <= 0 {
		return fmt.Errorf("strategy %s: recovery_multiplier must be > 0: %w", s.ID, ErrInvalidStrategy)
	}
	if s.Type == StrategyRecovery && s.Params.LossThreshold <= 0 {
		return fmt.Errorf("strategy %s: loss_threshold must be > 0: %w", s.ID, ErrInvalidStrategy)
	}
	if err := s.Conditions.Validate(); err != nil {
		return fmt.Errorf("strategy %s: %w", s.ID, err)
	}
	return nil
}

// ValidateLink comprueba el enlace de s hacia linked:
//   - solo se enlazan estrategias de tipo recovery
//   - una recovery no enlaza a otra (sin cadenas)
//   - una estrategia no se enlaza a sí misma
func ValidateLink(s Strategy, linked Strategy) error {
	if s.ID == linked.ID {
		return fmt.Errorf("strategy %s links itself: %w", s.ID, ErrInvalidLink)
	}
	if s.Type == StrategyRecovery {
		return fmt.Errorf("recovery strategy %s cannot link %s: %w", s.ID, linked.ID, ErrInvalidLink)
	}
	if linked.Type != StrategyRecovery {
		return fmt.Errorf("strategy %s links %s of type %s: %w", s.ID, linked.ID, linked.Type, ErrInvalidLink)
	}
	if linked.LinkedStrategyID != "" {
		return fmt.Errorf("strategy %s links %s which links %s: %w",
			s.ID, linked.ID, linked.LinkedStrategyID, ErrInvalidLink)
	}
	return nil
}
