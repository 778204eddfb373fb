// Package sessionparams is the Session Parameter Cache: a read-through
// cache over the durable sessions table, plus a shorter-TTL sub-cache for
// activity status so the write path can check start <= now < end without
// a durable-store round trip.
package sessionparams

import (
	"context"
	"strconv"
	"time"

	"github.com/auctionhub/auction-core/internal/domain"
	"github.com/auctionhub/auction-core/internal/durablestore"
	"github.com/auctionhub/auction-core/internal/hotstore"
	apperr "github.com/auctionhub/auction-core/pkg/errors"
)

const (
	activeActivityTTL = 10 * time.Second
	endedActivityTTL  = 5 * time.Minute
	paramsTTL         = 30 * time.Minute
)

// Cache resolves session parameters and activity status, consulting the
// hot store first and falling back to the durable store on miss.
type Cache struct {
	hot     hotstore.Store
	durable *durablestore.Client
}

func NewCache(hot hotstore.Store, durable *durablestore.Client) *Cache {
	return &Cache{hot: hot, durable: durable}
}

// Params returns the immutable scoring and timing parameters for a
// session, populating the hot-store cache on miss.
func (c *Cache) Params(ctx context.Context, sessionID string) (domain.Session, error) {
	fields, ok, err := c.hot.GetSessionParams(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if ok {
		s, perr := decodeParams(sessionID, fields)
		if perr == nil {
			return s, nil
		}
		// Fall through to the durable store on a corrupt cache entry.
	}

	s, err := c.durable.GetSessionParams(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if setErr := c.hot.SetSessionParams(ctx, sessionID, encodeParams(s), paramsTTL); setErr != nil {
		return domain.Session{}, setErr
	}
	return s, nil
}

// Activity returns whether sessionID currently accepts bids, without
// loading the full parameter set. It is backed by its own short-TTL hot
// store cache so repeated write-path calls never hit the durable store.
func (c *Cache) Activity(ctx context.Context, sessionID string) (domain.Status, error) {
	raw, ok, err := c.hot.GetSessionActive(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if ok {
		return decodeActivitySentinel(raw), nil
	}

	s, err := c.Params(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	activity := domain.SessionActivity{Now: time.Now(), Start: s.StartTime, End: s.EndTime, IsActive: s.IsActive}
	status := activity.Status()

	ttl := activeActivityTTL
	if status == domain.StatusEnded || status == domain.StatusInactive {
		ttl = endedActivityTTL
	}
	if err := c.hot.SetSessionActive(ctx, sessionID, encodeActivitySentinel(status), ttl); err != nil {
		return 0, err
	}
	return status, nil
}

// Invalidate overwrites the activity sub-cache with the ended sentinel, so
// Activity reports StatusEnded until that entry expires; the cached
// parameter set is left untouched. Used by the Session Monitor after
// finalization.
func (c *Cache) Invalidate(ctx context.Context, sessionID string) error {
	return c.hot.SetSessionActive(ctx, sessionID, sentinelEnded, endedActivityTTL)
}

func encodeParams(s domain.Session) map[string]string {
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
	return fields
}

func decodeParams(sessionID string, fields map[string]string) (domain.Session, error) {
	get := func(k string) (string, error) {
		v, ok := fields[k]
		if !ok {
			return "", apperr.Newf(apperr.KindInternal, "session params cache missing field %q", k)
		}
		return v, nil
	}

	reserve, err := get("reserve_price")
	if err != nil {
		return domain.Session{}, err
	}
	reservePrice, _ := strconv.ParseFloat(reserve, 64)

	inventoryStr, _ := get("inventory")
	inventory, _ := strconv.Atoi(inventoryStr)

	alphaStr, _ := get("alpha")
	alpha, _ := strconv.ParseFloat(alphaStr, 64)
	betaStr, _ := get("beta")
	beta, _ := strconv.ParseFloat(betaStr, 64)
	gammaStr, _ := get("gamma")
	gamma, _ := strconv.ParseFloat(gammaStr, 64)

	startStr, err := get("start_time")
	if err != nil {
		return domain.Session{}, err
	}
	startNanos, _ := strconv.ParseInt(startStr, 10, 64)
	endStr, err := get("end_time")
	if err != nil {
		return domain.Session{}, err
	}
	endNanos, _ := strconv.ParseInt(endStr, 10, 64)

	activeStr, _ := get("is_active")
	isActive, _ := strconv.ParseBool(activeStr)

	return domain.Session{
		ID:           sessionID,
		ProductID:    fields["product_id"],
		ReservePrice: reservePrice,
		Inventory:    inventory,
		Alpha:        alpha,
		Beta:         beta,
		Gamma:        gamma,
		StartTime:    time.Unix(0, startNanos),
		EndTime:      time.Unix(0, endNanos),
		IsActive:     isActive,
	}, nil
}

const (
	sentinelOpen       = "1"
	sentinelEnded      = "0"
	sentinelNotStarted = "pending"
	sentinelInactive   = "inactive"
)

func encodeActivitySentinel(status domain.Status) string {
	switch status {
	case domain.StatusOpen:
		return sentinelOpen
	case domain.StatusNotStarted:
		return sentinelNotStarted
	case domain.StatusInactive:
		return sentinelInactive
	default:
		return sentinelEnded
	}
}

func decodeActivitySentinel(raw string) domain.Status {
	switch raw {
	case sentinelOpen:
		return domain.StatusOpen
	case sentinelNotStarted:
		return domain.StatusNotStarted
	case sentinelInactive:
		return domain.StatusInactive
	default:
		return domain.StatusEnded
	}
}
