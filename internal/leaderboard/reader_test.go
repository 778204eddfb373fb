package leaderboard_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auctionhub/auction-core/internal/hotstore"
	"github.com/auctionhub/auction-core/internal/leaderboard"
	"github.com/auctionhub/auction-core/internal/sessionparams"
)

func seedParams(t *testing.T, store *hotstore.Fake, sessionID string, inventory int) {
	t.Helper()
	now := time.Now()
	fields := map[string]string{
		"product_id":    "p1",
		"reserve_price": "1",
		"inventory":     strconv.Itoa(inventory),
		"alpha":         "1",
		"beta":          "1",
		"gamma":         "1",
		"start_time":    strconv.FormatInt(now.Add(-time.Hour).UnixNano(), 10),
		"end_time":      strconv.FormatInt(now.Add(time.Hour).UnixNano(), 10),
		"is_active":     "true",
	}
	require.NoError(t, store.SetSessionParams(context.Background(), sessionID, fields, time.Hour))
}

func TestReader_PageOrdersAndMarksWinners(t *testing.T) {
	ctx := context.Background()
	store := hotstore.NewFake()
	seedParams(t, store, "s1", 2)

	require.NoError(t, store.SubmitBid(ctx, "s1", "u1", 50, 5, time.Now(), time.Hour))
	require.NoError(t, store.SubmitBid(ctx, "s1", "u2", 90, 15, time.Now(), time.Hour))
	require.NoError(t, store.SubmitBid(ctx, "s1", "u3", 70, 10, time.Now(), time.Hour))
	for _, uid := range []string{"u1", "u2", "u3"} {
		require.NoError(t, store.SetUserIdentity(ctx, uid, "name-"+uid, time.Hour))
	}

	reader := leaderboard.NewReader(store, nil, sessionparams.NewCache(store, nil))
	page, err := reader.Page(ctx, "s1", 1, 50)
	require.NoError(t, err)

	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Entries, 3)
	assert.Equal(t, "u2", page.Entries[0].UserID)
	assert.True(t, page.Entries[0].IsWinner)
	assert.True(t, page.Entries[1].IsWinner)
	assert.False(t, page.Entries[2].IsWinner)
	require.NotNil(t, page.ThresholdScore)
	assert.Equal(t, 10.0, *page.ThresholdScore)
	assert.Equal(t, 90.0, page.HighestBid)
}

func TestReader_EmptyScoreboardReturnsEmptyPage(t *testing.T) {
	ctx := context.Background()
	store := hotstore.NewFake()
	reader := leaderboard.NewReader(store, nil, sessionparams.NewCache(store, nil))

	page, err := reader.Page(ctx, "missing", 1, 50)
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
	assert.Equal(t, 0, page.Total)
}
