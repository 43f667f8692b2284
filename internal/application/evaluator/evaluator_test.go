package evaluator

import (
	"fmt"
	"testing"
	"time"

	"github.com/alejandrodnm/stakebot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvaluator(workers int) *Evaluator {
	e := New(Config{Workers: workers}, nil)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }
	return e
}

func makeOpp(id string, odds int, confidence float64) domain.Opportunity {
	return domain.Opportunity{
		ID:       id,
		Sport:    "basketball_nba",
		Odds:     odds,
		Features: map[string]domain.Feature{domain.FeatureConfidence: domain.Number(confidence)},
	}
}

func runningInvestor(balance, betPct float64) domain.Investor {
	return domain.Investor{
		ID:              "inv-1",
		StrategyID:      "base",
		StartingBalance: balance,
		CurrentBalance:  balance,
		Status:          domain.InvestorRunning,
		BetPercentage:   betPct,
	}
}

func TestEvaluate_FixedPercentage(t *testing.T) {
	strategy := domain.Strategy{
		ID:         "base",
		Type:       domain.StrategyConservative,
		Conditions: domain.Leaf(domain.FeatureConfidence, domain.OpGreater, domain.Number(60)),
		Params:     domain.SizingParams{Percentage: 2},
	}

	res, err := newTestEvaluator(0).Evaluate(runningInvestor(1000, 0.05), strategy, nil,
		[]domain.Opportunity{makeOpp("g1", 150, 70)})
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 1)

	rec := res.Recommendations[0]
	assert.Equal(t, 20.0, rec.Stake)
	assert.Equal(t, 30.0, rec.ExpectedPayout)
	assert.Equal(t, "base", rec.StrategyID)
	assert.Equal(t, domain.SizingFixedPercentage, rec.Rationale.Algorithm)
	assert.Equal(t, []string{"confidence > 60"}, rec.Rationale.PassedPredicates)
	assert.False(t, rec.Rationale.Recovery)
	// 0.7×30 − 0.3×20 = 15
	assert.InDelta(t, 15.0, rec.ExpectedValue, 1e-9)
}

func TestEvaluate_Kelly(t *testing.T) {
	strategy := domain.Strategy{
		ID:     "base",
		Type:   domain.StrategyValueHunting,
		Params: domain.SizingParams{KellyFraction: 0.25},
	}

	res, err := newTestEvaluator(0).Evaluate(runningInvestor(1000, 0.10), strategy, nil,
		[]domain.Opportunity{makeOpp("g1", 150, 60)})
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 1)
	assert.Equal(t, 83.33, res.Recommendations[0].Stake)
}

func TestEvaluate_ConditionFailureIsSilent(t *testing.T) {
	strategy := domain.Strategy{
		ID:         "base",
		Type:       domain.StrategyConservative,
		Conditions: domain.Leaf(domain.FeatureConfidence, domain.OpGreater, domain.Number(60)),
		Params:     domain.SizingParams{Percentage: 2},
	}

	res, err := newTestEvaluator(0).Evaluate(runningInvestor(1000, 0.05), strategy, nil,
		[]domain.Opportunity{makeOpp("g1", 150, 55)})
	require.NoError(t, err)
	assert.Empty(t, res.Recommendations)
	assert.Empty(t, res.Excluded)
	assert.Empty(t, res.Rejected)
}

func TestEvaluate_UnknownFeatureExcludesOnlyThatOpportunity(t *testing.T) {
	strategy := domain.Strategy{
		ID:         "base",
		Type:       domain.StrategyConservative,
		Conditions: domain.Leaf("weather_wind", domain.OpLess, domain.Number(20)),
		Params:     domain.SizingParams{Percentage: 2},
	}
	withWind := makeOpp("g2", 150, 70)
	withWind.Features["weather_wind"] = domain.Number(5)

	res, err := newTestEvaluator(0).Evaluate(runningInvestor(1000, 0.05), strategy, nil,
		[]domain.Opportunity{makeOpp("g1", 150, 70), withWind})
	require.NoError(t, err)

	require.Len(t, res.Excluded, 1)
	assert.Equal(t, "g1", res.Excluded[0].OpportunityID)
	assert.ErrorIs(t, res.Excluded[0].Err, domain.ErrUnknownFeature)

	require.Len(t, res.Recommendations, 1)
	assert.Equal(t, "g2", res.Recommendations[0].OpportunityID)
}

func TestEvaluate_KellyWithoutEdgeIsRejected(t *testing.T) {
	strategy := domain.Strategy{
		ID:     "base",
		Type:   domain.StrategyAggressive,
		Params: domain.SizingParams{KellyFraction: 0.5},
	}
	// +100 con 40% de confianza: f* < 0
	res, err := newTestEvaluator(0).Evaluate(runningInvestor(1000, 0.05), strategy, nil,
		[]domain.Opportunity{makeOpp("g1", 100, 40)})
	require.NoError(t, err)
	assert.Empty(t, res.Recommendations)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, domain.SizingKelly, res.Rejected[0].Algorithm)
}

func recoveryPair() (domain.Strategy, domain.Strategy) {
	base := domain.Strategy{
		ID:               "base",
		Type:             domain.StrategyConservative,
		Conditions:       domain.Leaf(domain.FeatureConfidence, domain.OpGreater, domain.Number(60)),
		Params:           domain.SizingParams{Percentage: 2},
		LinkedStrategyID: "rec",
	}
	rec := domain.Strategy{
		ID:         "rec",
		Type:       domain.StrategyRecovery,
		Conditions: domain.Leaf(domain.FeatureConfidence, domain.OpGreater, domain.Number(75)),
		Params:     domain.SizingParams{Percentage: 2, RecoveryMultiplier: 1.5, LossThreshold: 10},
	}
	return base, rec
}

func TestEvaluate_RecoveryActivatesOnDrawdown(t *testing.T) {
	base, rec := recoveryPair()
	inv := runningInvestor(1000, 0.05)
	inv.CurrentBalance = 880 // 12% drawdown

	opps := []domain.Opportunity{makeOpp("g1", 150, 70), makeOpp("g2", 150, 80)}
	res, err := newTestEvaluator(0).Evaluate(inv, base, &rec, opps)
	require.NoError(t, err)

	assert.True(t, res.RecoveryActive)
	assert.True(t, res.RecoveryChanged)
	assert.Equal(t, "rec", res.StrategyID)

	// la recovery sustituye las condiciones: g1 (70) ya no pasa
	require.Len(t, res.Recommendations, 1)
	r := res.Recommendations[0]
	assert.Equal(t, "g2", r.OpportunityID)
	assert.Equal(t, "rec", r.StrategyID)
	assert.True(t, r.Rationale.Recovery)
	assert.Equal(t, domain.SizingRecoveryProgressive, r.Rationale.Algorithm)
	// 880 × 2% × 1.5
	assert.InDelta(t, 26.40, r.Stake, 0.001)

	// el investor de entrada no se toca
	assert.False(t, inv.IsRecoveryActive)
}

func TestEvaluate_RecoveryDeactivatesWhenBalanceRecovers(t *testing.T) {
	base, rec := recoveryPair()
	inv := runningInvestor(1000, 0.05)
	inv.CurrentBalance = 950
	inv.IsRecoveryActive = true

	res, err := newTestEvaluator(0).Evaluate(inv, base, &rec, []domain.Opportunity{makeOpp("g1", 150, 70)})
	require.NoError(t, err)
	assert.False(t, res.RecoveryActive)
	assert.True(t, res.RecoveryChanged)
	assert.Equal(t, "base", res.StrategyID)
	require.Len(t, res.Recommendations, 1)
	assert.Equal(t, 19.0, res.Recommendations[0].Stake) // 2% de 950
}

func TestRecoveryDecision(t *testing.T) {
	_, rec := recoveryPair()
	inv := runningInvestor(1000, 0.05)

	inv.CurrentBalance = 900 // exactamente el umbral
	active, changed := RecoveryDecision(inv, &rec)
	assert.True(t, active)
	assert.True(t, changed)

	inv.IsRecoveryActive = true
	active, changed = RecoveryDecision(inv, &rec)
	assert.True(t, active)
	assert.False(t, changed)

	active, changed = RecoveryDecision(inv, nil)
	assert.False(t, active)
	assert.True(t, changed)
}

func TestEvaluate_RecoveryDecidedOncePerBatch(t *testing.T) {
	base, rec := recoveryPair()
	inv := runningInvestor(1000, 0.05)
	inv.CurrentBalance = 880

	opps := make([]domain.Opportunity, 200)
	for i := range opps {
		opps[i] = makeOpp(fmt.Sprintf("g%03d", i), 120, 80)
	}
	res, err := newTestEvaluator(8).Evaluate(inv, base, &rec, opps)
	require.NoError(t, err)
	require.Len(t, res.Recommendations, len(opps))
	for _, r := range res.Recommendations {
		assert.True(t, r.Rationale.Recovery, r.OpportunityID)
		assert.Equal(t, "rec", r.StrategyID)
	}
}

func TestEvaluate_RankingIsDeterministicAcrossWorkers(t *testing.T) {
	strategy := domain.Strategy{
		ID:     "base",
		Type:   domain.StrategyValueHunting,
		Params: domain.SizingParams{KellyFraction: 0.25},
	}
	opps := []domain.Opportunity{
		makeOpp("c", 150, 60),
		makeOpp("a", 150, 60),
		makeOpp("b", 200, 55),
		makeOpp("d", -110, 70),
		makeOpp("e", 150, 30),
	}

	single, err := newTestEvaluator(1).Evaluate(runningInvestor(1000, 0.10), strategy, nil, opps)
	require.NoError(t, err)
	many, err := newTestEvaluator(16).Evaluate(runningInvestor(1000, 0.10), strategy, nil, opps)
	require.NoError(t, err)
	assert.Equal(t, single.Recommendations, many.Recommendations)

	for i := 1; i < len(single.Recommendations); i++ {
		prev, cur := single.Recommendations[i-1], single.Recommendations[i]
		assert.GreaterOrEqual(t, prev.ExpectedValue, cur.ExpectedValue)
	}
	// a y c son idénticas: desempata el id
	var ids []string
	for _, r := range single.Recommendations {
		if r.OpportunityID == "a" || r.OpportunityID == "c" {
			ids = append(ids, r.OpportunityID)
		}
	}
	assert.Equal(t, []string{"a", "c"}, ids)
}

func TestEvaluate_Arbitrage(t *testing.T) {
	strategy := domain.Strategy{
		ID:     "arb",
		Type:   domain.StrategyArbitrage,
		Params: domain.SizingParams{Percentage: 10},
	}
	opp := domain.Opportunity{
		ID: "arb-1",
		Arbitrage: []domain.ArbitrageLeg{
			{Book: "book_a", Selection: "home", DecimalOdds: 2.10},
			{Book: "book_b", Selection: "away", DecimalOdds: 2.05},
		},
	}

	res, err := newTestEvaluator(0).Evaluate(runningInvestor(1000, 0.5), strategy, nil, []domain.Opportunity{opp})
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 1)

	r := res.Recommendations[0]
	require.Len(t, r.Legs, 2)
	assert.InDelta(t, r.Legs[0].Stake*2.10, r.Legs[1].Stake*2.05, 0.05)
	assert.Greater(t, r.ExpectedPayout, 0.0)
	assert.Equal(t, r.ExpectedPayout, r.ExpectedValue)
}

func TestEvaluate_EmptyBatch(t *testing.T) {
	strategy := domain.Strategy{ID: "base", Type: domain.StrategyConservative, Params: domain.SizingParams{Percentage: 2}}
	res, err := newTestEvaluator(0).Evaluate(runningInvestor(1000, 0.05), strategy, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Recommendations)
}

func TestEvaluate_UnknownAlgorithm(t *testing.T) {
	strategy := domain.Strategy{ID: "base", Type: domain.StrategyCustom, Sizing: "martingale"}
	_, err := newTestEvaluator(0).Evaluate(runningInvestor(1000, 0.05), strategy, nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidStrategy)
}
