package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alejandrodnm/stakebot/internal/adapters/metrics"
	"github.com/alejandrodnm/stakebot/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Notify(t *testing.T) {
	r := metrics.NewRecorder()

	inv := domain.Investor{
		ID: "alice", StartingBalance: 1000, CurrentBalance: 880,
		MaxBetsPerWeek: 10, BetsPlacedThisWeek: 4, IsRecoveryActive: true,
	}
	recs := []domain.Recommendation{
		{OpportunityID: "g1", StrategyID: "chase", Stake: 20},
		{OpportunityID: "g2", StrategyID: "chase", Stake: 12.5},
	}
	require.NoError(t, r.Notify(context.Background(), inv, recs))
	require.NoError(t, r.Notify(context.Background(), inv, nil))

	reg := r.Registry()
	n, err := testutil.GatherAndCount(reg, "stakebot_investor_balance")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	body := scrape(t, r)
	assert.Contains(t, body, `stakebot_investor_balance{investor="alice"} 880`)
	assert.Contains(t, body, `stakebot_investor_drawdown_percent{investor="alice"} 12`)
	assert.Contains(t, body, `stakebot_investor_recovery_active{investor="alice"} 1`)
	assert.Contains(t, body, `stakebot_investor_bets_left{investor="alice"} 6`)
	assert.Contains(t, body, `stakebot_recommendations_total{investor="alice",strategy="chase"} 2`)
	assert.Contains(t, body, `stakebot_recommended_stake_total{investor="alice"} 32.5`)
	assert.Contains(t, body, `stakebot_investor_cycles_total{investor="alice"} 2`)
}

func TestRecorder_Healthz(t *testing.T) {
	srv := httptest.NewServer(metrics.NewRecorder().Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func scrape(t *testing.T, r *metrics.Recorder) string {
	t.Helper()
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}
