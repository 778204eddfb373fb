package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/auctionhub/auction-core/internal/domain"
	"github.com/auctionhub/auction-core/pkg/auth"
)

func TestTokenCache_SetGet(t *testing.T) {
	cache := auth.NewTokenCache(time.Minute, 10)
	p := domain.Principal{ID: "u1", Username: "alice", Weight: 1.2}

	cache.Set("tok1", p)
	got, ok := cache.Get("tok1")
	assert.True(t, ok)
	assert.Equal(t, p, got)
}

func TestTokenCache_ExpiresEntries(t *testing.T) {
	cache := auth.NewTokenCache(time.Millisecond, 10)
	cache.Set("tok1", domain.Principal{ID: "u1"})
	time.Sleep(5 * time.Millisecond)

	_, ok := cache.Get("tok1")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestTokenCache_EvictsEarliestOnCapacity(t *testing.T) {
	cache := auth.NewTokenCache(time.Hour, 2)
	cache.Set("tok1", domain.Principal{ID: "u1"})
	time.Sleep(time.Millisecond)
	cache.Set("tok2", domain.Principal{ID: "u2"})
	time.Sleep(time.Millisecond)
	cache.Set("tok3", domain.Principal{ID: "u3"})

	assert.Equal(t, 2, cache.Len())
	_, ok := cache.Get("tok1")
	assert.False(t, ok, "earliest-expiring entry should have been evicted")
	_, ok = cache.Get("tok3")
	assert.True(t, ok)
}
