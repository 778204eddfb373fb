// Package persister implements the Batch Persister: a ticker-driven job
// that drains the hot store's dirty-session set into the durable store
// via idempotent batched upsert.
package persister

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/auctionhub/auction-core/internal/domain"
	"github.com/auctionhub/auction-core/internal/hotstore"
)

const maxRetriesPerSession = 3

// DurableStore is the subset of internal/durablestore.Client the Batch
// Persister depends on. Narrowing the dependency to this seam, rather than
// the concrete *durablestore.Client, lets persistSessionWithRetry's retry
// and re-mark-dirty behavior be driven by a test double, the same way
// hotstore.Store/hotstore.Fake let the hot-path tests run without Redis.
type DurableStore interface {
	UpsertBids(ctx context.Context, records []domain.BidRecord) error
}

// Persister runs the periodic drain.
type Persister struct {
	hot      hotstore.Store
	durable  DurableStore
	interval time.Duration
	logger   *zap.Logger

	stop chan struct{}
	done chan struct{}
}

func New(hot hotstore.Store, durable DurableStore, interval time.Duration, logger *zap.Logger) *Persister {
	return &Persister{
		hot:      hot,
		durable:  durable,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run blocks until Stop is called, ticking at the configured interval.
func (p *Persister) Run(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Persister) Stop() {
	close(p.stop)
	<-p.done
}

func (p *Persister) tick(ctx context.Context) {
	sessions, err := p.hot.SnapshotAndClearDirty(ctx)
	if err != nil {
		p.logger.Error("failed to snapshot dirty sessions", zap.Error(err))
		return
	}

	for _, sessionID := range sessions {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.persistSession(ctx, sessionID)
		// Yield between sessions so one large backlog cannot monopolize the
		// scheduler ahead of the next tick.
		time.Sleep(time.Millisecond)
	}
}

// PersistSession drains one session's bid-metadata backlog. Exported so the
// Session Monitor can force a persist cycle restricted to a single session
// ahead of finalization.
func (p *Persister) PersistSession(ctx context.Context, sessionID string) error {
	return p.persistSessionWithRetry(ctx, sessionID, 1)
}

func (p *Persister) persistSession(ctx context.Context, sessionID string) {
	if err := p.persistSessionWithRetry(ctx, sessionID, maxRetriesPerSession); err != nil {
		p.logger.Error("batch persist failed after retries, re-queueing session",
			zap.String("session_id", sessionID), zap.Error(err))
		if markErr := p.hot.MarkDirty(ctx, sessionID); markErr != nil {
			p.logger.Error("failed to re-mark session dirty", zap.String("session_id", sessionID), zap.Error(markErr))
		}
	}
}

func (p *Persister) persistSessionWithRetry(ctx context.Context, sessionID string, maxAttempts int) error {
	records, keys, err := p.hot.ScanBidMetadata(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	bidRecords := make([]domain.BidRecord, len(records))
	for i, r := range records {
		bidRecords[i] = domain.BidRecord{
			SessionID: sessionID,
			UserID:    r.UserID,
			Price:     r.Price,
			Score:     r.Score,
			UpdatedAt: r.UpdatedAt,
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := p.durable.UpsertBids(ctx, bidRecords); err != nil {
			lastErr = err
			continue
		}
		if err := p.hot.DeleteKeys(ctx, keys...); err != nil {
			p.logger.Warn("upsert committed but metadata delete failed; keys will be reprocessed",
				zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil
	}
	return lastErr
}
