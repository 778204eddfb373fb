package monitor_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/auctionhub/auction-core/internal/broadcast"
	"github.com/auctionhub/auction-core/internal/domain"
	"github.com/auctionhub/auction-core/internal/hotstore"
	"github.com/auctionhub/auction-core/internal/monitor"
	"github.com/auctionhub/auction-core/internal/persister"
	"github.com/auctionhub/auction-core/internal/sessionparams"
)

// fakeDurable satisfies both persister.DurableStore and monitor.DurableStore
// so a single instance can back a Persister and a Monitor built for the
// same test, mirroring how hotstore.Fake backs every hot-path test.
type fakeDurable struct {
	mu             sync.Mutex
	upsertCalls    int
	finalizeCalls  int
	lastFinalPrice float64
	lastRankings   []domain.FinalRanking
}

func (f *fakeDurable) UpsertBids(_ context.Context, _ []domain.BidRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	return nil
}

func (f *fakeDurable) EndedActiveSessions(_ context.Context, _ time.Time) ([]domain.Session, error) {
	return nil, nil
}

func (f *fakeDurable) FinalizeSession(_ context.Context, _ string, finalPrice float64, rankings []domain.FinalRanking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalizeCalls++
	f.lastFinalPrice = finalPrice
	f.lastRankings = rankings
	return nil
}

// seedSession writes a session's parameters straight into the fake hot
// store, the same way internal/bidding's tests do, so Finalize never needs
// a durable-store round trip to resolve session params.
func seedSession(t *testing.T, store *hotstore.Fake, sessionID string, s domain.Session) {
	t.Helper()
	fields := map[string]string{
		"product_id":    s.ProductID,
		"reserve_price": strconv.FormatFloat(s.ReservePrice, 'f', -1, 64),
		"inventory":     strconv.Itoa(s.Inventory),
		"alpha":         strconv.FormatFloat(s.Alpha, 'f', -1, 64),
		"beta":          strconv.FormatFloat(s.Beta, 'f', -1, 64),
		"gamma":         strconv.FormatFloat(s.Gamma, 'f', -1, 64),
		"start_time":    strconv.FormatInt(s.StartTime.UnixNano(), 10),
		"end_time":      strconv.FormatInt(s.EndTime.UnixNano(), 10),
		"is_active":     strconv.FormatBool(s.IsActive),
	}
	require.NoError(t, store.SetSessionParams(context.Background(), sessionID, fields, time.Hour))
}

func newHub(t *testing.T) *broadcast.Hub {
	hub := broadcast.NewHub(zap.NewNop())
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func newMonitor(store *hotstore.Fake, durable *fakeDurable, hub *broadcast.Hub) *monitor.Monitor {
	params := sessionparams.NewCache(store, nil)
	p := persister.New(store, durable, time.Hour, zap.NewNop())
	return monitor.New(store, durable, params, p, hub, time.Hour, zap.NewNop())
}

// TestFinalize_ComputesRankingsAndFinalPrice: three bidders scored
// 800/700/650 with inventory (K) 2 finalize with final_price pinned to
// the K-th ranked bidder's price, and only the top K are winners.
func TestFinalize_ComputesRankingsAndFinalPrice(t *testing.T) {
	ctx := context.Background()
	store := hotstore.NewFake()
	now := time.Now()
	seedSession(t, store, "s1", domain.Session{
		ProductID: "p1", ReservePrice: 50, Inventory: 2,
		Alpha: 0.5, Beta: 1000, Gamma: 2,
		StartTime: now.Add(-time.Hour), EndTime: now.Add(-time.Minute), IsActive: true,
	})
	require.NoError(t, store.SubmitBid(ctx, "s1", "u1", 800, 800, now, time.Hour))
	require.NoError(t, store.SubmitBid(ctx, "s1", "u2", 700, 700, now, time.Hour))
	require.NoError(t, store.SubmitBid(ctx, "s1", "u3", 650, 650, now, time.Hour))

	durable := &fakeDurable{}
	hub := newHub(t)
	mon := newMonitor(store, durable, hub)

	require.NoError(t, mon.Finalize(ctx, "s1"))

	assert.Equal(t, 1, durable.finalizeCalls)
	assert.Equal(t, 700.0, durable.lastFinalPrice)
	require.Len(t, durable.lastRankings, 3)

	byUser := make(map[string]domain.FinalRanking, 3)
	for _, r := range durable.lastRankings {
		byUser[r.UserID] = r
	}
	assert.Equal(t, 1, byUser["u1"].Rank)
	assert.True(t, byUser["u1"].IsWinner)
	assert.Equal(t, 2, byUser["u2"].Rank)
	assert.True(t, byUser["u2"].IsWinner)
	assert.Equal(t, 3, byUser["u3"].Rank)
	assert.False(t, byUser["u3"].IsWinner)
}

// TestFinalize_FewerThanKBiddersUsesReserve covers the fallback: when fewer
// bidders than inventory show up, rank never reaches K, so final_price
// stays at the session's reserve price instead of any bidder's price.
func TestFinalize_FewerThanKBiddersUsesReserve(t *testing.T) {
	ctx := context.Background()
	store := hotstore.NewFake()
	now := time.Now()
	seedSession(t, store, "s1", domain.Session{
		ProductID: "p1", ReservePrice: 42, Inventory: 5,
		Alpha: 0.5, Beta: 1000, Gamma: 2,
		StartTime: now.Add(-time.Hour), EndTime: now.Add(-time.Minute), IsActive: true,
	})
	require.NoError(t, store.SubmitBid(ctx, "s1", "u1", 800, 800, now, time.Hour))
	require.NoError(t, store.SubmitBid(ctx, "s1", "u2", 700, 700, now, time.Hour))

	durable := &fakeDurable{}
	hub := newHub(t)
	mon := newMonitor(store, durable, hub)

	require.NoError(t, mon.Finalize(ctx, "s1"))

	assert.Equal(t, 42.0, durable.lastFinalPrice)
	require.Len(t, durable.lastRankings, 2)
	for _, r := range durable.lastRankings {
		assert.True(t, r.IsWinner, "every bidder wins when there are fewer of them than inventory")
	}
}

// TestFinalize_IsIdempotent confirms that re-running Finalize on an
// already-finalized session re-derives and re-writes the identical result.
func TestFinalize_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := hotstore.NewFake()
	now := time.Now()
	seedSession(t, store, "s1", domain.Session{
		ProductID: "p1", ReservePrice: 50, Inventory: 2,
		Alpha: 0.5, Beta: 1000, Gamma: 2,
		StartTime: now.Add(-time.Hour), EndTime: now.Add(-time.Minute), IsActive: true,
	})
	require.NoError(t, store.SubmitBid(ctx, "s1", "u1", 800, 800, now, time.Hour))
	require.NoError(t, store.SubmitBid(ctx, "s1", "u2", 700, 700, now, time.Hour))
	require.NoError(t, store.SubmitBid(ctx, "s1", "u3", 650, 650, now, time.Hour))

	durable := &fakeDurable{}
	hub := newHub(t)
	mon := newMonitor(store, durable, hub)

	require.NoError(t, mon.Finalize(ctx, "s1"))
	firstPrice, firstRankings := durable.lastFinalPrice, durable.lastRankings

	require.NoError(t, mon.Finalize(ctx, "s1"))
	secondPrice, secondRankings := durable.lastFinalPrice, durable.lastRankings

	assert.Equal(t, 2, durable.finalizeCalls)
	assert.Equal(t, firstPrice, secondPrice)
	assert.Equal(t, firstRankings, secondRankings)
}
