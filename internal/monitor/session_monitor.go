// Package monitor implements the Session Monitor: a ticker-driven
// finalizer that closes out ended sessions, freezing their final ranking
// exactly once.
package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/auctionhub/auction-core/internal/broadcast"
	"github.com/auctionhub/auction-core/internal/domain"
	"github.com/auctionhub/auction-core/internal/hotstore"
	"github.com/auctionhub/auction-core/internal/persister"
	"github.com/auctionhub/auction-core/internal/sessionparams"
)

// DurableStore is the subset of internal/durablestore.Client the Session
// Monitor depends on. As with persister.DurableStore, narrowing to this
// seam lets Finalize's ranking/final_price computation be unit-tested
// against a fake instead of a live Postgres connection.
type DurableStore interface {
	EndedActiveSessions(ctx context.Context, now time.Time) ([]domain.Session, error)
	FinalizeSession(ctx context.Context, sessionID string, finalPrice float64, rankings []domain.FinalRanking) error
}

type Monitor struct {
	hot       hotstore.Store
	durable   DurableStore
	params    *sessionparams.Cache
	persister *persister.Persister
	hub       *broadcast.Hub
	interval  time.Duration
	logger    *zap.Logger

	stop chan struct{}
	done chan struct{}
}

func New(hot hotstore.Store, durable DurableStore, params *sessionparams.Cache, p *persister.Persister, hub *broadcast.Hub, interval time.Duration, logger *zap.Logger) *Monitor {
	return &Monitor{
		hot:       hot,
		durable:   durable,
		params:    params,
		persister: p,
		hub:       hub,
		interval:  interval,
		logger:    logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (m *Monitor) Run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) Stop() {
	close(m.stop)
	<-m.done
}

func (m *Monitor) tick(ctx context.Context) {
	sessions, err := m.durable.EndedActiveSessions(ctx, time.Now())
	if err != nil {
		m.logger.Error("failed to query ended sessions", zap.Error(err))
		return
	}
	for _, s := range sessions {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := m.Finalize(ctx, s.ID); err != nil {
			m.logger.Error("failed to finalize session", zap.String("session_id", s.ID), zap.Error(err))
		}
	}
}

// Finalize runs one finalization cycle for sessionID. It is idempotent:
// calling it again after the session is already flipped inactive re-derives
// and re-writes the same final ranking, which is a harmless no-op upsert.
func (m *Monitor) Finalize(ctx context.Context, sessionID string) error {
	if err := m.persister.PersistSession(ctx, sessionID); err != nil {
		m.logger.Warn("pre-finalization persist failed, proceeding from hot store state",
			zap.String("session_id", sessionID), zap.Error(err))
	}

	session, err := m.params.Params(ctx, sessionID)
	if err != nil {
		return err
	}

	members, err := m.hot.FullScoreboard(ctx, sessionID)
	if err != nil {
		return err
	}

	userIDs := make([]string, len(members))
	for i, mb := range members {
		userIDs[i] = mb.UserID
	}
	bidHashes, err := m.hot.BidsByUsers(ctx, sessionID, userIDs)
	if err != nil {
		return err
	}

	k := session.Inventory
	rankings := make([]domain.FinalRanking, len(members))
	finalPrice := session.ReservePrice
	for i, mb := range members {
		rank := i + 1
		isWinner := rank <= k
		price := bidHashes[mb.UserID].Price
		rankings[i] = domain.FinalRanking{
			SessionID: sessionID,
			UserID:    mb.UserID,
			Rank:      rank,
			Price:     price,
			Score:     mb.Score,
			IsWinner:  isWinner,
		}
		if rank == k {
			finalPrice = price
		}
	}

	if err := m.durable.FinalizeSession(ctx, sessionID, finalPrice, rankings); err != nil {
		return err
	}
	if err := m.params.Invalidate(ctx, sessionID); err != nil {
		m.logger.Warn("failed to invalidate session activity cache after finalization",
			zap.String("session_id", sessionID), zap.Error(err))
	}

	m.hub.Publish(sessionID, broadcast.TypeSessionFinalized, map[string]interface{}{
		"final_price": finalPrice,
		"rankings":    rankings,
	})
	return nil
}
