package bidding_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/auctionhub/auction-core/internal/bidding"
	"github.com/auctionhub/auction-core/internal/broadcast"
	"github.com/auctionhub/auction-core/internal/domain"
	"github.com/auctionhub/auction-core/internal/hotstore"
	"github.com/auctionhub/auction-core/internal/sessionparams"
	apperr "github.com/auctionhub/auction-core/pkg/errors"
)

// seedSession writes a session's parameters straight into the fake hot
// store, bypassing the durable read-through so these tests never need a
// live database.
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

func newParamsCache(store *hotstore.Fake) *sessionparams.Cache {
	return sessionparams.NewCache(store, nil)
}

func newHub() *broadcast.Hub {
	hub := broadcast.NewHub(zap.NewNop())
	go hub.Run()
	return hub
}

func TestProcessor_SubmitAccepted(t *testing.T) {
	ctx := context.Background()
	store := hotstore.NewFake()
	now := time.Now()
	seedSession(t, store, "s1", domain.Session{
		ProductID: "p1", ReservePrice: 10, Inventory: 2,
		Alpha: 1, Beta: 1, Gamma: 1,
		StartTime: now.Add(-time.Minute), EndTime: now.Add(time.Hour), IsActive: true,
	})

	params := newParamsCache(store)
	hub := newHub()
	defer hub.Stop()
	proc := bidding.NewProcessor(store, params, hub)

	principal := domain.Principal{ID: "u1", Username: "alice", Weight: 2}
	result, err := proc.Submit(ctx, principal, "s1", 50)
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, int64(1), result.Rank)
	assert.Greater(t, result.Score, 0.0)
}

// TestProcessor_RebidUpdatesInPlace covers re-bid idempotence: resubmitting
// a higher price for the same (session_id, user_id) must update the
// existing hot-store entry in place rather than add a second one.
func TestProcessor_RebidUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	store := hotstore.NewFake()
	now := time.Now()
	seedSession(t, store, "s1", domain.Session{
		ProductID: "p1", ReservePrice: 10, Inventory: 2,
		Alpha: 0.5, Beta: 1000, Gamma: 2,
		StartTime: now.Add(-time.Minute), EndTime: now.Add(time.Hour), IsActive: true,
	})
	params := newParamsCache(store)
	hub := newHub()
	defer hub.Stop()
	proc := bidding.NewProcessor(store, params, hub)

	principal := domain.Principal{ID: "u1", Username: "alice", Weight: 1}
	other := domain.Principal{ID: "u2", Username: "bob", Weight: 1}

	_, err := proc.Submit(ctx, other, "s1", 250)
	require.NoError(t, err)

	first, err := proc.Submit(ctx, principal, "s1", 250)
	require.NoError(t, err)

	second, err := proc.Submit(ctx, principal, "s1", 300)
	require.NoError(t, err)
	assert.True(t, second.Accepted)
	assert.Greater(t, second.Score, first.Score)

	_, total, err := store.LeaderboardRange(ctx, "s1", 0, -1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total, "re-bid must update the existing entry in place, not add a duplicate")

	rank, found, err := store.Rank(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(1), rank)
}

func TestProcessor_RejectsBelowReserve(t *testing.T) {
	ctx := context.Background()
	store := hotstore.NewFake()
	now := time.Now()
	seedSession(t, store, "s1", domain.Session{
		ReservePrice: 100, Inventory: 1, Alpha: 1, Beta: 1, Gamma: 1,
		StartTime: now.Add(-time.Minute), EndTime: now.Add(time.Hour), IsActive: true,
	})
	params := newParamsCache(store)
	hub := newHub()
	defer hub.Stop()
	proc := bidding.NewProcessor(store, params, hub)

	_, err := proc.Submit(ctx, domain.Principal{ID: "u1"}, "s1", 10)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPriceBelowReserve))

	// A rejected bid must leave no trace: empty scoreboard, session not
	// marked dirty.
	_, total, err := store.LeaderboardRange(ctx, "s1", 0, -1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
	dirty, err := store.SnapshotAndClearDirty(ctx)
	require.NoError(t, err)
	assert.Empty(t, dirty)
}

func TestProcessor_RejectsEndedSession(t *testing.T) {
	ctx := context.Background()
	store := hotstore.NewFake()
	now := time.Now()
	seedSession(t, store, "s1", domain.Session{
		ReservePrice: 1, Inventory: 1, Alpha: 1, Beta: 1, Gamma: 1,
		StartTime: now.Add(-time.Hour), EndTime: now.Add(-time.Minute), IsActive: true,
	})
	params := newParamsCache(store)
	hub := newHub()
	defer hub.Stop()
	proc := bidding.NewProcessor(store, params, hub)

	_, err := proc.Submit(ctx, domain.Principal{ID: "u1"}, "s1", 10)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindSessionEnded))
}

func TestProcessor_RejectsNotStartedSession(t *testing.T) {
	ctx := context.Background()
	store := hotstore.NewFake()
	now := time.Now()
	seedSession(t, store, "s1", domain.Session{
		ReservePrice: 1, Inventory: 1, Alpha: 1, Beta: 1, Gamma: 1,
		StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour), IsActive: true,
	})
	params := newParamsCache(store)
	hub := newHub()
	defer hub.Stop()
	proc := bidding.NewProcessor(store, params, hub)

	_, err := proc.Submit(ctx, domain.Principal{ID: "u1"}, "s1", 10)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindSessionNotStarted))
}
