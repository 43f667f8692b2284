package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alejandrodnm/stakebot/internal/application/catalog"
	"github.com/alejandrodnm/stakebot/internal/application/evaluator"
	"github.com/alejandrodnm/stakebot/internal/application/investor"
	"github.com/alejandrodnm/stakebot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockFeed struct {
	opps []domain.Opportunity
	err  error
}

func (m *mockFeed) FetchOpportunities(_ context.Context) ([]domain.Opportunity, error) {
	return m.opps, m.err
}

type mockNotifier struct {
	mu       sync.Mutex
	notified map[string][]domain.Recommendation
	err      error
}

func (m *mockNotifier) Notify(_ context.Context, inv domain.Investor, recs []domain.Recommendation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notified == nil {
		m.notified = make(map[string][]domain.Recommendation)
	}
	m.notified[inv.ID] = recs
	return m.err
}

// --- helpers ---

func newTestManager(t *testing.T, investors ...domain.Investor) *investor.Manager {
	t.Helper()
	ctx := context.Background()
	c := catalog.New(nil)
	require.NoError(t, c.Put(ctx, domain.Strategy{
		ID:         "flat",
		Type:       domain.StrategyConservative,
		Conditions: domain.Leaf(domain.FeatureConfidence, domain.OpGreater, domain.Number(60)),
		Params:     domain.SizingParams{Percentage: 2},
	}))
	mgr := investor.NewManager(c, evaluator.New(evaluator.Config{}, nil), nil, nil)
	for _, inv := range investors {
		_, err := mgr.Add(ctx, inv)
		require.NoError(t, err)
	}
	return mgr
}

func makeInvestor(id string, maxBets int) domain.Investor {
	return domain.Investor{
		ID:              id,
		StrategyID:      "flat",
		StartingBalance: 1000,
		BetPercentage:   0.05,
		MaxBetsPerWeek:  maxBets,
	}
}

func makeOpps() []domain.Opportunity {
	mk := func(id string, confidence float64) domain.Opportunity {
		return domain.Opportunity{
			ID:       id,
			Odds:     120,
			Features: map[string]domain.Feature{domain.FeatureConfidence: domain.Number(confidence)},
		}
	}
	return []domain.Opportunity{mk("g1", 70), mk("g2", 80), mk("g3", 40), mk("g4", 90)}
}

// --- tests ---

func TestEngine_RunOnce_NotifiesRunningInvestors(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, makeInvestor("alice", 0), makeInvestor("bob", 0))
	require.NoError(t, mgr.Start(ctx, "alice"))

	notifier := &mockNotifier{}
	e := New(Config{Once: true}, &mockFeed{opps: makeOpps()}, mgr, notifier)

	res, err := e.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Opportunities)
	require.Len(t, res.Investors, 1)

	ic := res.Investors[0]
	assert.Equal(t, "alice", ic.Investor.ID)
	require.Len(t, ic.Recommendations, 3)
	assert.Equal(t, "g4", ic.Recommendations[0].OpportunityID)
	assert.Empty(t, ic.Placed)

	assert.Len(t, notifier.notified["alice"], 3)
	_, notifiedBob := notifier.notified["bob"]
	assert.False(t, notifiedBob)
}

func TestEngine_RunOnce_AutoAcceptRespectsWeeklyCap(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, makeInvestor("alice", 2))
	require.NoError(t, mgr.Start(ctx, "alice"))

	e := New(Config{AutoAccept: true}, &mockFeed{opps: makeOpps()}, mgr)

	res, err := e.RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, res.Investors, 1)
	assert.Len(t, res.Investors[0].Placed, 2)

	snap := res.Investors[0].Investor
	assert.Equal(t, 2, snap.BetsPlacedThisWeek)
	// los stakes se calcularon con el balance del inicio del ciclo
	assert.Equal(t, 960.0, snap.CurrentBalance)

	// cupo agotado: el siguiente ciclo no devuelve nada
	res, err = e.RunOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Investors[0].Recommendations)
	assert.Empty(t, res.Investors[0].Placed)
}

func TestEngine_RunOnce_FeedError(t *testing.T) {
	mgr := newTestManager(t)
	e := New(Config{}, &mockFeed{err: errors.New("timeout")}, mgr)

	_, err := e.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestEngine_NotifierErrorDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, makeInvestor("alice", 0))
	require.NoError(t, mgr.Start(ctx, "alice"))

	e := New(Config{}, &mockFeed{opps: makeOpps()}, mgr, &mockNotifier{err: errors.New("closed")})
	res, err := e.RunOnce(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Investors[0].Recommendations, 3)
}

func TestEngine_WeeklyReset(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, makeInvestor("alice", 1))
	require.NoError(t, mgr.Start(ctx, "alice"))

	now := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC) // viernes
	e := New(Config{AutoAccept: true, WeeklyReset: true}, &mockFeed{opps: makeOpps()}, mgr)
	e.now = func() time.Time { return now }
	e.lastWeek = isoWeek(now)

	res, err := e.RunOnce(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Investors[0].Placed, 1)

	res, err = e.RunOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Investors[0].Placed)

	now = now.AddDate(0, 0, 3) // lunes siguiente
	res, err = e.RunOnce(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Investors[0].Placed, 1)
}

func TestEngine_RunOnceFlag(t *testing.T) {
	mgr := newTestManager(t)
	e := New(Config{Once: true}, &mockFeed{}, mgr)
	assert.NoError(t, e.Run(context.Background()))

	failing := New(Config{Once: true}, &mockFeed{err: errors.New("down")}, mgr)
	assert.Error(t, failing.Run(context.Background()))
}
