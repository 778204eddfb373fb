// Package hotstore is the typed facade over the in-memory hot store: sorted
// scoreboards, per-bid hashes, the dirty-session set, and short-TTL session
// caches. It is the only package in the pipeline that speaks Redis.
package hotstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	apperr "github.com/auctionhub/auction-core/pkg/errors"
)

// BidHash is the defensively-parsed view of a bid or bid_metadata hash.
// Dynamic-typed payloads crossing the hot-store boundary (hashes with
// stringified numbers) are parsed here, once, so downstream code never
// sees raw strings.
type BidHash struct {
	UserID    string
	Price     float64
	Score     float64
	UpdatedAt time.Time
}

// ScoredMember is one (user_id, score) pair from a sorted-scoreboard range.
type ScoredMember struct {
	UserID string
	Score  float64
}

// Store is the interface the write and read paths depend on. The concrete
// Redis client and the in-memory fake (see fake.go) both satisfy it.
type Store interface {
	SubmitBid(ctx context.Context, sessionID, userID string, price, score float64, updatedAt time.Time, ttl time.Duration) error
	Rank(ctx context.Context, sessionID, userID string) (rank int64, found bool, err error)
	LeaderboardRange(ctx context.Context, sessionID string, start, stop int64) ([]ScoredMember, int64, error)
	FullScoreboard(ctx context.Context, sessionID string) ([]ScoredMember, error)
	BidsByUsers(ctx context.Context, sessionID string, userIDs []string) (map[string]BidHash, error)

	SnapshotAndClearDirty(ctx context.Context) ([]string, error)
	MarkDirty(ctx context.Context, sessionID string) error

	ScanBidMetadata(ctx context.Context, sessionID string) ([]BidHash, []string, error)
	DeleteKeys(ctx context.Context, keys ...string) error

	GetSessionParams(ctx context.Context, sessionID string) (map[string]string, bool, error)
	SetSessionParams(ctx context.Context, sessionID string, fields map[string]string, ttl time.Duration) error

	GetSessionActive(ctx context.Context, sessionID string) (string, bool, error)
	SetSessionActive(ctx context.Context, sessionID string, value string, ttl time.Duration) error

	GetUserIdentity(ctx context.Context, userID string) (string, bool, error)
	SetUserIdentity(ctx context.Context, userID, username string, ttl time.Duration) error

	Ping(ctx context.Context) error
}

// Client wraps a pooled go-redis client. Pool size, dial and call timeouts
// all come from config; a connection error always surfaces as
// hot_store_unavailable so callers never have to know the driver. A
// circuit breaker sits in front of every round-trip: once the store starts
// failing, callers fail fast instead of stacking up on dial timeouts.
type Client struct {
	rdb     *redis.Client
	breaker *gobreaker.CircuitBreaker
}

// Config configures the underlying connection pool.
type Config struct {
	Addr           string
	MaxConnections int
	DialTimeout    time.Duration
	CallTimeout    time.Duration
	Logger         *zap.Logger
}

func NewClient(cfg Config) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		PoolSize:     cfg.MaxConnections,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.CallTimeout,
		WriteTimeout: cfg.CallTimeout,
		// KeepAlive defaults to the OS TCP keepalive interval in go-redis;
		// left at its default (15s) rather than disabled.
	})

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "hot-store",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("hot store circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{rdb: rdb, breaker: breaker}
}

// exec runs one hot-store round-trip through the circuit breaker. fn must
// swallow redis.Nil itself (a miss is not a failure); any error it returns
// counts against the breaker and surfaces as hot_store_unavailable, as do
// the breaker's own open-state rejections.
func (c *Client) exec(fn func() error) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err == nil {
		return nil
	}
	return apperr.New(apperr.KindHotStoreUnavailable, "hot store call failed").WithCause(err)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.exec(func() error {
		return c.rdb.Ping(ctx).Err()
	})
}

// SubmitBid performs the write path's single pipelined multi-op update:
// scoreboard upsert, bid-hash upsert, TTL refresh on both, dirty-session
// marker, and the persister-facing metadata hash, issued in order within
// one pipeline so they are applied atomically relative to any other
// pipeline on the same connection.
func (c *Client) SubmitBid(ctx context.Context, sessionID, userID string, price, score float64, updatedAt time.Time, ttl time.Duration) error {
	rankingKey := RankingKey(sessionID)
	bidKey := BidKey(sessionID, userID)
	metaKey := BidMetadataKey(sessionID, userID)
	updatedAtStr := strconv.FormatInt(updatedAt.UnixNano(), 10)

	return c.exec(func() error {
		_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZAdd(ctx, rankingKey, redis.Z{Score: score, Member: userID})
			pipe.HSet(ctx, bidKey, map[string]interface{}{
				"price":      strconv.FormatFloat(price, 'f', -1, 64),
				"score":      strconv.FormatFloat(score, 'f', -1, 64),
				"updated_at": updatedAtStr,
			})
			pipe.Expire(ctx, rankingKey, ttl)
			pipe.Expire(ctx, bidKey, ttl)
			pipe.SAdd(ctx, DirtySessionsKey, sessionID)
			pipe.HSet(ctx, metaKey, map[string]interface{}{
				"user_id":    userID,
				"bid_price":  strconv.FormatFloat(price, 'f', -1, 64),
				"bid_score":  strconv.FormatFloat(score, 'f', -1, 64),
				"updated_at": updatedAtStr,
			})
			pipe.Expire(ctx, metaKey, ttl)
			return nil
		})
		return err
	})
}

// Rank returns the 1-based descending rank of userID in sessionID's
// scoreboard.
func (c *Client) Rank(ctx context.Context, sessionID, userID string) (int64, bool, error) {
	var (
		rank  int64
		found bool
	)
	err := c.exec(func() error {
		r, err := c.rdb.ZRevRank(ctx, RankingKey(sessionID), userID).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		rank, found = r+1, true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return rank, found, nil
}

// LeaderboardRange returns the [start, stop] (0-based, inclusive) page of
// the descending scoreboard together with its total size, fetched in one
// pipelined round-trip.
func (c *Client) LeaderboardRange(ctx context.Context, sessionID string, start, stop int64) ([]ScoredMember, int64, error) {
	key := RankingKey(sessionID)
	var (
		members []ScoredMember
		total   int64
	)
	err := c.exec(func() error {
		var zRes *redis.ZSliceCmd
		var cardRes *redis.IntCmd
		_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			zRes = pipe.ZRevRangeWithScores(ctx, key, start, stop)
			cardRes = pipe.ZCard(ctx, key)
			return nil
		})
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		members = make([]ScoredMember, 0, len(zRes.Val()))
		for _, z := range zRes.Val() {
			uid, _ := z.Member.(string)
			members = append(members, ScoredMember{UserID: uid, Score: z.Score})
		}
		total = cardRes.Val()
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

// FullScoreboard returns every (user_id, score) pair in descending order,
// used by the Session Monitor to freeze the final ranking.
func (c *Client) FullScoreboard(ctx context.Context, sessionID string) ([]ScoredMember, error) {
	members, _, err := c.LeaderboardRange(ctx, sessionID, 0, -1)
	return members, err
}

// BidsByUsers batches the per-bid hash lookups for a page of user ids into
// a single pipelined round-trip, never N sequential calls.
func (c *Client) BidsByUsers(ctx context.Context, sessionID string, userIDs []string) (map[string]BidHash, error) {
	if len(userIDs) == 0 {
		return map[string]BidHash{}, nil
	}
	result := make(map[string]BidHash, len(userIDs))
	err := c.exec(func() error {
		cmds := make(map[string]*redis.MapStringStringCmd, len(userIDs))
		_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, uid := range userIDs {
				cmds[uid] = pipe.HGetAll(ctx, BidKey(sessionID, uid))
			}
			return nil
		})
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		for uid, cmd := range cmds {
			fields := cmd.Val()
			if len(fields) == 0 {
				continue
			}
			bh, perr := parseBidHash(uid, fields)
			if perr != nil {
				continue
			}
			result[uid] = bh
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func parseBidHash(userID string, fields map[string]string) (BidHash, error) {
	price, priceKey := parseFloatEither(fields, "price", "bid_price")
	score, scoreKey := parseFloatEither(fields, "score", "bid_score")
	if !priceKey || !scoreKey {
		return BidHash{}, fmt.Errorf("incomplete bid hash for %s", userID)
	}
	var updatedAt time.Time
	if raw, ok := fields["updated_at"]; ok {
		if nanos, err := strconv.ParseInt(raw, 10, 64); err == nil {
			updatedAt = time.Unix(0, nanos)
		}
	}
	return BidHash{UserID: userID, Price: price, Score: score, UpdatedAt: updatedAt}, nil
}

func parseFloatEither(fields map[string]string, primary, alt string) (float64, bool) {
	raw, ok := fields[primary]
	if !ok {
		raw, ok = fields[alt]
	}
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// SnapshotAndClearDirty atomically reads and clears the dirty-session set.
// A bid that arrives mid-iteration re-adds its session to the (now empty)
// set, which the next Batch Persister tick will pick up.
func (c *Client) SnapshotAndClearDirty(ctx context.Context) ([]string, error) {
	var sessions []string
	err := c.exec(func() error {
		var membersCmd *redis.StringSliceCmd
		_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			membersCmd = pipe.SMembers(ctx, DirtySessionsKey)
			pipe.Del(ctx, DirtySessionsKey)
			return nil
		})
		if err != nil {
			return err
		}
		sessions = membersCmd.Val()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *Client) MarkDirty(ctx context.Context, sessionID string) error {
	return c.exec(func() error {
		return c.rdb.SAdd(ctx, DirtySessionsKey, sessionID).Err()
	})
}

// ScanBidMetadata cursor-scans (never KEYS) every bid_metadata hash for a
// session, decoding each into a BidHash.
func (c *Client) ScanBidMetadata(ctx context.Context, sessionID string) ([]BidHash, []string, error) {
	var (
		records []BidHash
		keys    []string
	)
	err := c.exec(func() error {
		var cursor uint64
		pattern := BidMetadataPattern(sessionID)
		for {
			var batch []string
			var err error
			batch, cursor, err = c.rdb.Scan(ctx, cursor, pattern, 200).Result()
			if err != nil {
				return err
			}
			keys = append(keys, batch...)
			if cursor == 0 {
				break
			}
		}
		if len(keys) == 0 {
			return nil
		}

		cmds := make(map[string]*redis.MapStringStringCmd, len(keys))
		_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, k := range keys {
				cmds[k] = pipe.HGetAll(ctx, k)
			}
			return nil
		})
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		records = make([]BidHash, 0, len(keys))
		for _, k := range keys {
			fields := cmds[k].Val()
			if len(fields) == 0 {
				continue
			}
			userID := fields["user_id"]
			bh, perr := parseBidHash(userID, fields)
			if perr != nil {
				continue
			}
			records = append(records, bh)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return records, keys, nil
}

func (c *Client) DeleteKeys(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.exec(func() error {
		return c.rdb.Del(ctx, keys...).Err()
	})
}

func (c *Client) GetSessionParams(ctx context.Context, sessionID string) (map[string]string, bool, error) {
	var fields map[string]string
	err := c.exec(func() error {
		f, err := c.rdb.HGetAll(ctx, SessionParamsKey(sessionID)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		fields = f
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if len(fields) == 0 {
		return nil, false, nil
	}
	return fields, true, nil
}

func (c *Client) SetSessionParams(ctx context.Context, sessionID string, fields map[string]string, ttl time.Duration) error {
	asIface := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		asIface[k] = v
	}
	return c.exec(func() error {
		_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, SessionParamsKey(sessionID), asIface)
			pipe.Expire(ctx, SessionParamsKey(sessionID), ttl)
			return nil
		})
		return err
	})
}

func (c *Client) GetSessionActive(ctx context.Context, sessionID string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := c.exec(func() error {
		v, err := c.rdb.Get(ctx, SessionActiveKey(sessionID)).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		value, found = v, true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return value, found, nil
}

func (c *Client) SetSessionActive(ctx context.Context, sessionID string, value string, ttl time.Duration) error {
	return c.exec(func() error {
		return c.rdb.Set(ctx, SessionActiveKey(sessionID), value, ttl).Err()
	})
}

func (c *Client) GetUserIdentity(ctx context.Context, userID string) (string, bool, error) {
	var (
		username string
		found    bool
	)
	err := c.exec(func() error {
		v, err := c.rdb.HGet(ctx, UserKey(userID), "username").Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		username, found = v, true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return username, found, nil
}

func (c *Client) SetUserIdentity(ctx context.Context, userID, username string, ttl time.Duration) error {
	key := UserKey(userID)
	return c.exec(func() error {
		_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, map[string]interface{}{"username": username})
			pipe.Expire(ctx, key, ttl)
			return nil
		})
		return err
	})
}

func (c *Client) Close() error { return c.rdb.Close() }

var _ Store = (*Client)(nil)
