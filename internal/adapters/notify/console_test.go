package notify_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alejandrodnm/stakebot/internal/adapters/notify"
	"github.com/alejandrodnm/stakebot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeInvestor() domain.Investor {
	return domain.Investor{
		ID:               "alice",
		Name:             "Alice",
		StrategyID:       "value",
		StartingBalance:  1000,
		CurrentBalance:   880,
		Status:           domain.InvestorRunning,
		MaxBetsPerWeek:   10,
		IsRecoveryActive: true,
		CareerWins:       3,
		CareerLosses:     5,
		CurrentStreak:    -2,
	}
}

func makeRec(id, selection string, odds int, stake, ev float64) domain.Recommendation {
	return domain.Recommendation{
		InvestorID:     "alice",
		OpportunityID:  id,
		StrategyID:     "value",
		Market:         "moneyline",
		Selection:      selection,
		Odds:           odds,
		Stake:          stake,
		ExpectedPayout: domain.FloorCents(domain.Payout(stake, odds)),
		Confidence:     65,
		ExpectedValue:  ev,
		GeneratedAt:    time.Now(),
	}
}

func TestConsole_Notify_Table(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	recs := []domain.Recommendation{
		makeRec("g1", "Lakers", 150, 20, 12.5),
		makeRec("g2", "Celtics", -110, 15.25, 3.1),
	}
	recs[1].Rationale.Recovery = true

	err := n.Notify(context.Background(), makeInvestor(), recs)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Alice (alice)")
	assert.Contains(t, out, "recovery ON")
	assert.Contains(t, out, "moneyline Lakers")
	assert.Contains(t, out, "+150")
	assert.Contains(t, out, "-110")
	assert.Contains(t, out, "$20.00")
	assert.Contains(t, out, "$30.00")
	assert.Contains(t, out, "value (R)")
	assert.Contains(t, out, "Total stake: $35.25")
}

func TestConsole_Notify_Compact(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	recs := []domain.Recommendation{
		makeRec("g1", "A", 150, 20, 4),
		makeRec("g2", "B", 150, 20, 3),
		makeRec("g3", "C", 150, 20, 2),
		makeRec("g4", "D", 150, 20, 1),
	}
	require.NoError(t, n.Notify(context.Background(), makeInvestor(), recs))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "4 recs")
	assert.Contains(t, out, "[REC]")
	assert.Contains(t, out, "moneyline C")
	assert.NotContains(t, out, "moneyline D")
}

func TestConsole_Notify_Empty(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, n.Notify(context.Background(), domain.Investor{ID: "bob"}, nil))
	assert.Contains(t, buf.String(), "bob: no recommendations")
}

func TestConsole_Notify_LongSelectionTruncated(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	recs := []domain.Recommendation{makeRec("g1", strings.Repeat("A", 50), 120, 10, 1)}
	require.NoError(t, n.Notify(context.Background(), makeInvestor(), recs))
	assert.Contains(t, buf.String(), "...")
}

func TestConsole_Notify_Arbitrage(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	rec := domain.Recommendation{
		OpportunityID: "arb1",
		StrategyID:    "arb",
		Stake:         100,
		Legs: []domain.LegStake{
			{ArbitrageLeg: domain.ArbitrageLeg{Book: "fd", DecimalOdds: 2.1}, Stake: 48.78},
			{ArbitrageLeg: domain.ArbitrageLeg{Book: "dk", DecimalOdds: 2.0}, Stake: 51.22},
		},
	}
	require.NoError(t, n.Notify(context.Background(), makeInvestor(), []domain.Recommendation{rec}))
	assert.Contains(t, buf.String(), "arb fd/dk")
}

func TestConsole_PrintLedger(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	winner := domain.Investor{
		ID: "bob", StrategyID: "flat", Status: domain.InvestorStopped,
		StartingBalance: 500, CurrentBalance: 550, CareerWins: 2, CurrentStreak: 2,
	}
	n.PrintLedger([]domain.Investor{makeInvestor(), winner})

	out := buf.String()
	assert.Contains(t, out, "INVESTOR LEDGER (2)")
	assert.Contains(t, out, "-$120.00")
	assert.Contains(t, out, "+$50.00")
	assert.Contains(t, out, "12.0%")
	assert.Contains(t, out, "3/5/0")
	assert.Contains(t, out, "L2")
	assert.Contains(t, out, "W2")
	assert.Contains(t, out, "0/10")
	assert.Contains(t, out, "Total P&L: -$70.00")
}

func TestConsole_PrintLedger_Empty(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf, false).PrintLedger(nil)
	assert.Contains(t, buf.String(), "No investors configured")
}

func TestConsole_PrintWagers(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	placed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	wagers := []domain.Wager{
		{ID: "w1", OpportunityID: "g1", StrategyID: "value", Stake: 20, OddsAtPlacement: 150, Outcome: domain.OutcomeWin, Payout: 30, PlacedAt: placed},
		{ID: "w2", OpportunityID: "g2", StrategyID: "value", Stake: 10, OddsAtPlacement: -110, Outcome: domain.OutcomeLoss, PlacedAt: placed},
		{ID: "w3", OpportunityID: "g3", StrategyID: "value", Stake: 5, OddsAtPlacement: 100, Outcome: domain.OutcomePending, PlacedAt: placed},
	}
	n.PrintWagers(makeInvestor(), wagers)

	out := buf.String()
	assert.Contains(t, out, "3 wagers")
	assert.Contains(t, out, "+$30.00")
	assert.Contains(t, out, "-$10.00")
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "Staked: $35.00  Net settled: +$20.00")
}
