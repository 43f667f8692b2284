package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrategy_Algorithm_DefaultsFromType(t *testing.T) {
	assert.Equal(t, SizingFixedPercentage, Strategy{Type: StrategyConservative}.Algorithm())
	assert.Equal(t, SizingKelly, Strategy{Type: StrategyValueHunting}.Algorithm())
	assert.Equal(t, SizingRecoveryProgressive, Strategy{Type: StrategyRecovery}.Algorithm())
	assert.Equal(t, SizingArbitrage, Strategy{Type: StrategyArbitrage}.Algorithm())
	assert.Equal(t, SizingFixedPercentage, Strategy{Type: StrategyAggressive, Sizing: SizingFixedPercentage}.Algorithm())
}

func TestStrategy_Validate(t *testing.T) {
	ok := Strategy{ID: "s1", Type: StrategyConservative, Params: SizingParams{Percentage: 2}}
	assert.NoError(t, ok.Validate())

	assert.ErrorIs(t, Strategy{Type: StrategyConservative}.Validate(), ErrInvalidStrategy)
	assert.ErrorIs(t, Strategy{ID: "x", Type: "yolo"}.Validate(), ErrInvalidStrategy)
	assert.ErrorIs(t, Strategy{ID: "x", Type: StrategyAggressive, Params: SizingParams{KellyFraction: 2}}.Validate(), ErrInvalidStrategy)
	assert.ErrorIs(t, Strategy{ID: "x", Type: StrategyRecovery, Params: SizingParams{Percentage: 2, RecoveryMultiplier: 1.5}}.Validate(),
		ErrInvalidStrategy, "recovery needs loss_threshold")

	bad := ok
	bad.Conditions = Condition{Feature: FeatureConfidence}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidStrategy)
}

func TestValidateLink(t *testing.T) {
	base := Strategy{ID: "base", Type: StrategyConservative}
	rec := Strategy{ID: "rec", Type: StrategyRecovery}
	other := Strategy{ID: "other", Type: StrategyAggressive}

	assert.NoError(t, ValidateLink(base, rec))
	assert.ErrorIs(t, ValidateLink(base, other), ErrInvalidLink)
	assert.ErrorIs(t, ValidateLink(rec, Strategy{ID: "rec2", Type: StrategyRecovery}), ErrInvalidLink)
	assert.ErrorIs(t, ValidateLink(base, base), ErrInvalidLink)

	chained := rec
	chained.LinkedStrategyID = "rec2"
	assert.ErrorIs(t, ValidateLink(base, chained), ErrInvalidLink)
}
