package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alejandrodnm/stakebot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebindDollar(t *testing.T) {
	assert.Equal(t, "SELECT 1", rebindDollar("SELECT 1"))
	assert.Equal(t,
		"SELECT * FROM wagers WHERE investor_id = $1 AND outcome = $2",
		rebindDollar("SELECT * FROM wagers WHERE investor_id = ? AND outcome = ?"))
}

func TestIsPostgresDSN(t *testing.T) {
	assert.True(t, isPostgresDSN("postgres://user:pw@localhost:5432/stakebot?sslmode=disable"))
	assert.True(t, isPostgresDSN("postgresql://localhost/stakebot"))
	assert.False(t, isPostgresDSN("stakebot.db"))
	assert.False(t, isPostgresDSN(":memory:"))
}

func TestOpen_SQLitePath(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	// SQLite no reescribe placeholders
	assert.Equal(t, "id = ?", s.rebind("id = ?"))
}

// Contra un Postgres real: STAKEBOT_TEST_POSTGRES_DSN=postgres://... go test ./...
func TestPostgresStorage_RoundTrip(t *testing.T) {
	dsn := os.Getenv("STAKEBOT_TEST_POSTGRES_DSN")
	if dsn == "" || testing.Short() {
		t.Skip("STAKEBOT_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := Open(dsn)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.ExecContext(ctx, `TRUNCATE strategies, investors, wagers`)
	require.NoError(t, err)

	st := domain.Strategy{
		ID:         "flat",
		Type:       domain.StrategyConservative,
		Conditions: domain.Leaf(domain.FeatureConfidence, domain.OpGreater, domain.Number(60)),
		Params:     domain.SizingParams{Percentage: 2},
	}
	require.NoError(t, s.SaveStrategy(ctx, st))
	got, err := s.GetStrategy(ctx, "flat")
	require.NoError(t, err)
	assert.Equal(t, st, got)

	inv := domain.Investor{
		ID: "alice", StrategyID: "flat", StartingBalance: 1000, CurrentBalance: 987.65,
		Status: domain.InvestorRunning, BetPercentage: 0.05, IsRecoveryActive: true, CurrentStreak: -1,
	}
	require.NoError(t, s.SaveInvestor(ctx, inv))

	placed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	w := domain.Wager{ID: "w1", InvestorID: "alice", OpportunityID: "g1", StrategyID: "flat",
		Stake: 12.35, OddsAtPlacement: 150, Outcome: domain.OutcomeLoss, PlacedAt: placed, SettledAt: &placed}
	require.NoError(t, s.SaveWager(ctx, w))

	loaded, err := s.GetInvestor(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 987.65, loaded.CurrentBalance)
	assert.True(t, loaded.IsRecoveryActive)
	require.Len(t, loaded.BetHistory, 1)
	assert.Equal(t, 12.35, loaded.BetHistory[0].Stake)
}
