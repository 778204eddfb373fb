package persister

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/auctionhub/auction-core/internal/domain"
	"github.com/auctionhub/auction-core/internal/hotstore"
)

// failingDurable is a white-box double for DurableStore that fails its
// first failCount calls to UpsertBids, then succeeds. It lives in this
// package (rather than persister_test) so persistSession and
// persistSessionWithRetry, both unexported, can be driven directly.
type failingDurable struct {
	mu        sync.Mutex
	failCount int
	calls     int
	records   []domain.BidRecord
}

func (f *failingDurable) UpsertBids(_ context.Context, records []domain.BidRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failCount {
		return errors.New("durable store unavailable")
	}
	f.records = append(f.records, records...)
	return nil
}

func TestPersistSession_RetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	store := hotstore.NewFake()
	require.NoError(t, store.SubmitBid(ctx, "s1", "u1", 100, 10, time.Now(), time.Hour))

	durable := &failingDurable{failCount: 2}
	p := New(store, durable, time.Hour, zap.NewNop())

	p.persistSession(ctx, "s1")

	assert.Equal(t, 3, durable.calls)
	assert.Len(t, durable.records, 1)

	records, _, err := store.ScanBidMetadata(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, records, "successful upsert must delete the drained metadata keys")
}

func TestPersistSession_ReMarksDirtyOnExhaustion(t *testing.T) {
	ctx := context.Background()
	store := hotstore.NewFake()
	require.NoError(t, store.SubmitBid(ctx, "s1", "u1", 100, 10, time.Now(), time.Hour))
	_, err := store.SnapshotAndClearDirty(ctx)
	require.NoError(t, err)

	durable := &failingDurable{failCount: maxRetriesPerSession + 1}
	p := New(store, durable, time.Hour, zap.NewNop())

	p.persistSession(ctx, "s1")

	assert.Equal(t, maxRetriesPerSession, durable.calls)

	records, _, err := store.ScanBidMetadata(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, records, 1, "metadata must survive so the next tick can retry it")

	sessions, err := store.SnapshotAndClearDirty(ctx)
	require.NoError(t, err)
	assert.Contains(t, sessions, "s1", "exhausting retries must re-queue the session for the next tick")
}

func TestPersistSession_ExportedWrapperMakesASingleAttempt(t *testing.T) {
	ctx := context.Background()
	store := hotstore.NewFake()
	require.NoError(t, store.SubmitBid(ctx, "s1", "u1", 100, 10, time.Now(), time.Hour))

	durable := &failingDurable{failCount: 1}
	p := New(store, durable, time.Hour, zap.NewNop())

	err := p.PersistSession(ctx, "s1")
	require.Error(t, err)
	assert.Equal(t, 1, durable.calls)
}
