package domain

import "errors"

// Errores de evaluación. Excluyen una sola oportunidad, nunca abortan el batch.
var (
	ErrUnknownFeature = errors.New("unknown feature")
	ErrTypeMismatch   = errors.New("feature type mismatch")
)

// Errores de definición de estrategias (detectados al guardar).
var (
	ErrInvalidStrategy = errors.New("invalid strategy")
	ErrInvalidLink     = errors.New("invalid strategy link")
	ErrUnknownStrategy = errors.New("unknown strategy")
)

// Errores del investor: el caller usó mal la máquina de estados.
var (
	ErrNotRunning            = errors.New("investor is not running")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrWeeklyCapReached      = errors.New("weekly bet cap reached")
	ErrStakeExceedsCap       = errors.New("stake exceeds bet percentage cap")
	ErrUnknownWager          = errors.New("unknown or settled wager")
	ErrForeignRecommendation = errors.New("recommendation belongs to another investor")
	ErrNoRecoveryStrategy    = errors.New("strategy has no linked recovery strategy")
	ErrUnknownInvestor       = errors.New("unknown investor")
	ErrInvalidStake          = errors.New("stake must be positive")
	ErrInvalidOutcome        = errors.New("invalid settlement outcome")
)

// ErrInvalidOdds se devuelve para cuotas americanas 0 o decimales < 1.
var ErrInvalidOdds = errors.New("invalid odds")
