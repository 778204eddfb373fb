// Package bidding implements the Bid Processor, the write path of the
// pipeline: validate, score, write-through to the hot store, and notify
// subscribers, all in one request, with no durable-store touch on the
// hot path.
package bidding

import (
	"context"
	"time"

	"github.com/auctionhub/auction-core/internal/broadcast"
	"github.com/auctionhub/auction-core/internal/domain"
	"github.com/auctionhub/auction-core/internal/hotstore"
	"github.com/auctionhub/auction-core/internal/observability"
	"github.com/auctionhub/auction-core/internal/scoring"
	"github.com/auctionhub/auction-core/internal/sessionparams"
	apperr "github.com/auctionhub/auction-core/pkg/errors"
)

// hotKeyTTL covers a session's duration plus a generous finalization
// margin; sized here at a flat ceiling since a session's own end_time is
// already enforced by the activity check before any hot-store write.
const hotKeyTTL = 24 * time.Hour

// Result is the outcome of a successful bid submission.
type Result struct {
	Accepted bool
	Score    float64
	Rank     int64
}

// Processor is the Bid Processor.
type Processor struct {
	hot     hotstore.Store
	params  *sessionparams.Cache
	hub     *broadcast.Hub
	metrics *observability.Collector
}

func NewProcessor(hot hotstore.Store, params *sessionparams.Cache, hub *broadcast.Hub) *Processor {
	return &Processor{hot: hot, params: params, hub: hub, metrics: observability.NewCollector("auction")}
}

// Submit validates and scores a bid, writes it through to the hot store,
// and returns the bidder's live rank.
func (p *Processor) Submit(ctx context.Context, principal domain.Principal, sessionID string, price float64) (Result, error) {
	session, err := p.params.Params(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}

	now := time.Now()
	switch status, err := p.params.Activity(ctx, sessionID); {
	case err != nil:
		return Result{}, err
	case status == domain.StatusInactive:
		return Result{}, apperr.ErrSessionInactive
	case status == domain.StatusNotStarted:
		return Result{}, apperr.ErrSessionNotStarted
	case status == domain.StatusEnded:
		return Result{}, apperr.ErrSessionEnded
	}

	if price < session.ReservePrice {
		return Result{}, apperr.ErrPriceBelowReserve
	}

	responseTime := scoring.ClampResponseTime(now.Sub(session.StartTime).Seconds())
	score := scoring.Score(session.Alpha, session.Beta, session.Gamma, price, responseTime, principal.Weight)

	if err := p.hot.SubmitBid(ctx, sessionID, principal.ID, price, score, now, hotKeyTTL); err != nil {
		return Result{}, err
	}

	rank, found, err := p.hot.Rank(ctx, sessionID, principal.ID)
	if err != nil {
		return Result{}, err
	}
	if !found {
		// SubmitBid just wrote this member; a miss here means the hot
		// store round-tripped through an eviction or failover between the
		// write and the read. Surface it as an internal error rather than
		// silently reporting rank 0.
		return Result{}, apperr.New(apperr.KindInternal, "rank lookup missed immediately after submit")
	}

	p.metrics.BidsAccepted.Inc()
	p.hub.Notify(sessionID)

	return Result{Accepted: true, Score: score, Rank: rank}, nil
}
