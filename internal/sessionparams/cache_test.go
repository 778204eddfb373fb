package sessionparams_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auctionhub/auction-core/internal/domain"
	"github.com/auctionhub/auction-core/internal/hotstore"
	"github.com/auctionhub/auction-core/internal/sessionparams"
)

func TestCache_ActivityCachesStatusWithoutDurableHit(t *testing.T) {
	ctx := context.Background()
	store := hotstore.NewFake()
	now := time.Now()

	cache := sessionparams.NewCache(store, nil)

	fields := map[string]string{
		"product_id":    "p1",
		"reserve_price": "10",
		"inventory":     "1",
		"alpha":         "1",
		"beta":          "1",
		"gamma":         "1",
		"start_time":    strconv.FormatInt(now.Add(-time.Minute).UnixNano(), 10),
		"end_time":      strconv.FormatInt(now.Add(time.Hour).UnixNano(), 10),
		"is_active":     "true",
	}
	require.NoError(t, store.SetSessionParams(ctx, "s1", fields, time.Hour))

	status, err := cache.Activity(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, status)

	raw, ok, err := store.GetSessionActive(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", raw)

	status, err = cache.Activity(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, status)
}

func TestCache_InvalidateForcesEndedSentinel(t *testing.T) {
	ctx := context.Background()
	store := hotstore.NewFake()
	cache := sessionparams.NewCache(store, nil)

	require.NoError(t, cache.Invalidate(ctx, "s1"))
	status, err := cache.Activity(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnded, status)
}
