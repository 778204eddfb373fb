// Package leaderboard implements the Leaderboard Reader: the paged,
// enriched read path over the hot store, degrading gracefully on
// identity-lookup failure rather than failing the response.
package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/auctionhub/auction-core/internal/domain"
	"github.com/auctionhub/auction-core/internal/durablestore"
	"github.com/auctionhub/auction-core/internal/hotstore"
	"github.com/auctionhub/auction-core/internal/sessionparams"
)

const (
	defaultPageSize  = 50
	maxPageSize      = 200
	identityCacheTTL = 10 * time.Minute
)

type Reader struct {
	hot     hotstore.Store
	durable *durablestore.Client
	params  *sessionparams.Cache
}

func NewReader(hot hotstore.Store, durable *durablestore.Client, params *sessionparams.Cache) *Reader {
	return &Reader{hot: hot, durable: durable, params: params}
}

// Page returns a paged, display-ready leaderboard snapshot for sessionID.
func (r *Reader) Page(ctx context.Context, sessionID string, page, pageSize int) (domain.LeaderboardPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	start := int64((page - 1) * pageSize)
	stop := start + int64(pageSize) - 1

	members, total, err := r.hot.LeaderboardRange(ctx, sessionID, start, stop)
	if err != nil {
		return domain.LeaderboardPage{}, err
	}
	if len(members) == 0 {
		return domain.LeaderboardPage{
			SessionID:  sessionID,
			Entries:    []domain.LeaderboardEntry{},
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages(total, pageSize),
		}, nil
	}

	userIDs := make([]string, len(members))
	for i, m := range members {
		userIDs[i] = m.UserID
	}

	bidHashes, err := r.hot.BidsByUsers(ctx, sessionID, userIDs)
	if err != nil {
		return domain.LeaderboardPage{}, err
	}

	names := r.resolveNames(ctx, userIDs)

	session, err := r.params.Params(ctx, sessionID)
	if err != nil {
		return domain.LeaderboardPage{}, err
	}
	k := session.Inventory

	entries := make([]domain.LeaderboardEntry, 0, len(members))
	for i, m := range members {
		rank := int(start) + i + 1
		bh := bidHashes[m.UserID]
		entries = append(entries, domain.LeaderboardEntry{
			UserID:    m.UserID,
			Username:  names[m.UserID],
			Price:     bh.Price,
			Score:     m.Score,
			Rank:      rank,
			IsWinner:  rank <= k,
			UpdatedAt: bh.UpdatedAt,
		})
	}

	var threshold *float64
	if total >= int64(k) && k > 0 {
		thresholdRank := k - 1 // 0-based index of the K-th entry overall
		if full, _, ferr := r.hot.LeaderboardRange(ctx, sessionID, int64(thresholdRank), int64(thresholdRank)); ferr == nil && len(full) == 1 {
			v := full[0].Score
			threshold = &v
		}
	}

	// Highest bid: the current top entry's price, a cheaper approximation
	// of the true max across the whole scoreboard. A dedicated single-entry
	// range avoids a second full scan.
	highestBid := 0.0
	if page == 1 && len(entries) > 0 {
		highestBid = entries[0].Price
	} else if top, _, ferr := r.hot.LeaderboardRange(ctx, sessionID, 0, 0); ferr == nil && len(top) == 1 {
		if bh, ok := bidHashesSingle(ctx, r.hot, sessionID, top[0].UserID); ok {
			highestBid = bh.Price
		}
	}

	return domain.LeaderboardPage{
		SessionID:      sessionID,
		Entries:        entries,
		Page:           page,
		PageSize:       pageSize,
		Total:          int(total),
		TotalPages:     totalPages(total, pageSize),
		HighestBid:     highestBid,
		ThresholdScore: threshold,
	}, nil
}

func bidHashesSingle(ctx context.Context, hot hotstore.Store, sessionID, userID string) (hotstore.BidHash, bool) {
	m, err := hot.BidsByUsers(ctx, sessionID, []string{userID})
	if err != nil {
		return hotstore.BidHash{}, false
	}
	bh, ok := m[userID]
	return bh, ok
}

// resolveNames degrades gracefully: a failed or missing lookup yields a
// placeholder username rather than failing the whole response.
func (r *Reader) resolveNames(ctx context.Context, userIDs []string) map[string]string {
	names := make(map[string]string, len(userIDs))
	missing := make([]string, 0, len(userIDs))

	for _, uid := range userIDs {
		if cached, ok, err := r.hot.GetUserIdentity(ctx, uid); err == nil && ok {
			names[uid] = cached
		} else {
			missing = append(missing, uid)
		}
	}
	if len(missing) == 0 {
		return names
	}

	resolved, err := r.durable.UsersByIDs(ctx, missing)
	if err != nil {
		for _, uid := range missing {
			names[uid] = placeholderName(uid)
		}
		return names
	}
	for _, uid := range missing {
		if username, ok := resolved[uid]; ok {
			names[uid] = username
			_ = r.hot.SetUserIdentity(ctx, uid, username, identityCacheTTL)
		} else {
			names[uid] = placeholderName(uid)
		}
	}
	return names
}

func placeholderName(userID string) string { return fmt.Sprintf("user-%s", userID) }

func totalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	pages := int(total) / pageSize
	if int(total)%pageSize != 0 {
		pages++
	}
	return pages
}
