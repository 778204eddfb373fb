// Package durablestore is the typed facade over the system of record
// (Postgres via database/sql + lib/pq). Checkout order is LIFO: a small
// free-list hands out the most recently released *sql.Conn first so warm
// connections are reused, while actual connection lifecycle (dialing,
// health, max lifetime) stays with database/sql itself.
package durablestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"

	apperr "github.com/auctionhub/auction-core/pkg/errors"
)

// PoolConfig configures one of two profiles: "proxied" (a connection
// pooler such as pgbouncer sits in front, so borrowed connections skip
// pre-ping) and "direct" (the process talks to Postgres itself, so borrowed
// connections are pre-pinged and idle ones recycled after 5 minutes). The
// profile does not change the pool size: both take it from PoolSize and
// PoolOverflow as given.
type PoolConfig struct {
	DSN            string
	Proxied        bool
	PoolSize       int
	PoolOverflow   int
	CheckoutWait   time.Duration
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
}

// Pool wraps a *sql.DB with a LIFO free-list of pre-established
// connections layered on top. database/sql already pools at the driver
// level; this layer exists only to express most-recently-released-first
// reuse and to enforce a hard checkout timeout distinct from query
// timeout.
type Pool struct {
	db           *sql.DB
	mu           sync.Mutex
	free         []*sql.Conn
	maxPool      int
	maxOverflow  int
	outstanding  int
	checkoutWait time.Duration
	queryTimeout time.Duration
	prePing      bool
}

// Open establishes the underlying *sql.DB, sizing it from cfg.PoolSize and
// cfg.PoolOverflow in either profile.
// It does not block on connectivity; callers that need a fail-fast startup
// should call Ping.
func Open(cfg PoolConfig) (*Pool, error) {
	db, err := sql.Open("postgres", dsnWithConnectTimeout(cfg.DSN, cfg.ConnectTimeout))
	if err != nil {
		return nil, apperr.New(apperr.KindDurableUnavailable, "failed to open durable store").WithCause(err)
	}

	maxOpen := cfg.PoolSize + cfg.PoolOverflow
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(cfg.PoolSize)
	db.SetConnMaxLifetime(30 * time.Minute)
	if !cfg.Proxied {
		// Direct connections to Postgres are pre-pinged on checkout and
		// idle-recycled sooner; a proxy (pgbouncer) would otherwise mask a
		// dead backend connection until the query fails.
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	return &Pool{
		db:           db,
		maxPool:      cfg.PoolSize,
		maxOverflow:  cfg.PoolOverflow,
		checkoutWait: cfg.CheckoutWait,
		queryTimeout: cfg.QueryTimeout,
		prePing:      !cfg.Proxied,
	}, nil
}

// dsnWithConnectTimeout threads the configured connect deadline through to
// lib/pq's connect_timeout parameter, honoring either DSN form (URL or
// key=value) and never overriding one already present.
func dsnWithConnectTimeout(dsn string, timeout time.Duration) string {
	secs := int(timeout.Seconds())
	if secs <= 0 || strings.Contains(dsn, "connect_timeout") {
		return dsn
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return fmt.Sprintf("%s%sconnect_timeout=%d", dsn, sep, secs)
	}
	return fmt.Sprintf("%s connect_timeout=%d", dsn, secs)
}

func (p *Pool) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return apperr.New(apperr.KindDurableUnavailable, "durable store unreachable").WithCause(err)
	}
	return nil
}

// Checkout returns a free connection from the LIFO stack if one is
// available, otherwise opens a new one (up to maxPool+maxOverflow, a limit
// database/sql itself already enforces via SetMaxOpenConns). Callers must
// call Release when done; Release pushes the connection back onto the
// stack so the next Checkout reuses the warmest connection first.
func (p *Pool) Checkout(ctx context.Context) (*sql.Conn, error) {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		conn := p.free[n-1]
		p.free = p.free[:n-1]
		p.outstanding++
		p.mu.Unlock()

		if p.prePing {
			if err := conn.PingContext(ctx); err != nil {
				_ = conn.Close()
				p.mu.Lock()
				p.outstanding--
				p.mu.Unlock()
				return p.dialNew(ctx)
			}
		}
		return conn, nil
	}
	p.mu.Unlock()
	return p.dialNew(ctx)
}

func (p *Pool) dialNew(ctx context.Context) (*sql.Conn, error) {
	checkoutCtx, cancel := context.WithTimeout(ctx, p.checkoutWait)
	defer cancel()

	conn, err := p.db.Conn(checkoutCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.New(apperr.KindUpstreamTimeout, "durable store pool checkout timed out").WithCause(err)
		}
		return nil, apperr.New(apperr.KindDurableUnavailable, "failed to acquire durable store connection").WithCause(err)
	}
	p.mu.Lock()
	p.outstanding++
	p.mu.Unlock()
	return conn, nil
}

// Release returns conn to the LIFO free-list, or closes it outright if the
// pool is already holding maxPool idle connections (the overflow portion
// of the pool is never kept warm).
func (p *Pool) Release(conn *sql.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outstanding--
	if len(p.free) >= p.maxPool {
		go conn.Close()
		return
	}
	p.free = append(p.free, conn)
}

// Close drains the free-list and closes the underlying *sql.DB.
func (p *Pool) Close() error {
	p.mu.Lock()
	free := p.free
	p.free = nil
	p.mu.Unlock()
	for _, c := range free {
		_ = c.Close()
	}
	return p.db.Close()
}

// QueryTimeout exposes the configured query deadline for callers building
// a context.
func (p *Pool) QueryTimeout() time.Duration { return p.queryTimeout }

// DB returns the underlying *sql.DB for callers that want database/sql's
// own pooling (e.g. for Prepare'd statements) instead of explicit
// Checkout/Release. Client's own methods, batch writes included, all go
// through Checkout/Release rather than this accessor.
func (p *Pool) DB() *sql.DB { return p.db }
