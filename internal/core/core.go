// Package core wires the public API (authenticate, submit_bid,
// get_leaderboard, subscribe, finalize_session) over the component set in
// internal/. Global mutable state (pools, caches, the subscriber
// registry) is constructed once and passed explicitly rather than reached
// for via package-level globals.
package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/auctionhub/auction-core/internal/bidding"
	"github.com/auctionhub/auction-core/internal/broadcast"
	"github.com/auctionhub/auction-core/internal/config"
	"github.com/auctionhub/auction-core/internal/domain"
	"github.com/auctionhub/auction-core/internal/durablestore"
	"github.com/auctionhub/auction-core/internal/hotstore"
	"github.com/auctionhub/auction-core/internal/leaderboard"
	"github.com/auctionhub/auction-core/internal/monitor"
	"github.com/auctionhub/auction-core/internal/persister"
	"github.com/auctionhub/auction-core/internal/sessionparams"
	"github.com/auctionhub/auction-core/pkg/auth"
	apperr "github.com/auctionhub/auction-core/pkg/errors"
)

// Core is the assembled runtime. It owns every long-lived resource in the
// pipeline and is the single place that knows the startup order: durable
// pool, hot store, session param cache, token cache, broadcaster,
// background jobs, torn down in reverse.
type Core struct {
	cfg *config.Config
	log *zap.Logger

	durablePool *durablestore.Pool
	durable     *durablestore.Client
	hot         hotstore.Store
	params      *sessionparams.Cache
	tokens      *auth.TokenCache
	validator   *auth.Validator
	hub         *broadcast.Hub

	processor *bidding.Processor
	reader    *leaderboard.Reader
	persist   *persister.Persister
	mon       *monitor.Monitor
}

// New assembles every component but does not start background jobs; call
// Start for that.
func New(cfg *config.Config, log *zap.Logger) (*Core, error) {
	durablePool, err := durablestore.Open(durablestore.PoolConfig{
		DSN:            cfg.DurableDSN,
		Proxied:        cfg.ProxyMode,
		PoolSize:       cfg.DurablePoolSize,
		PoolOverflow:   cfg.DurablePoolOverflow,
		CheckoutWait:   cfg.DurablePoolTimeout,
		ConnectTimeout: cfg.DurableConnectTimeout,
		QueryTimeout:   cfg.DurableQueryTimeout,
	})
	if err != nil {
		return nil, err
	}
	durableClient := durablestore.NewClient(durablePool)

	hotClient := hotstore.NewClient(hotstore.Config{
		Addr:           cfg.HotStoreAddr,
		MaxConnections: cfg.HotStoreMaxConnections,
		DialTimeout:    cfg.HotStoreDialTimeout,
		CallTimeout:    cfg.HotStoreCallTimeout,
		Logger:         log,
	})

	paramsCache := sessionparams.NewCache(hotClient, durableClient)
	tokenCache := auth.NewTokenCache(cfg.TokenCacheTTL, cfg.TokenCacheMaxEntries)

	validator, err := auth.NewValidator(auth.JWTConfig{SecretKey: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	if err != nil {
		return nil, err
	}

	hub := broadcast.NewHub(log)

	processor := bidding.NewProcessor(hotClient, paramsCache, hub)
	reader := leaderboard.NewReader(hotClient, durableClient, paramsCache)
	hub.SetSnapshotProvider(func(ctx context.Context, sessionID string) (interface{}, error) {
		return reader.Page(ctx, sessionID, 1, 0)
	})
	batchPersister := persister.New(hotClient, durableClient, time.Duration(cfg.BatchIntervalSeconds)*time.Second, log)
	sessionMonitor := monitor.New(hotClient, durableClient, paramsCache, batchPersister, hub, time.Duration(cfg.MonitorIntervalSeconds)*time.Second, log)

	return &Core{
		cfg:         cfg,
		log:         log,
		durablePool: durablePool,
		durable:     durableClient,
		hot:         hotClient,
		params:      paramsCache,
		tokens:      tokenCache,
		validator:   validator,
		hub:         hub,
		processor:   processor,
		reader:      reader,
		persist:     batchPersister,
		mon:         sessionMonitor,
	}, nil
}

// Start launches the broadcaster's fan-out loop and the two background
// jobs. Construction order in New already satisfies the durable-pool →
// hot-store → cache → token-cache → broadcaster → background-jobs
// sequencing; Start only needs to kick off the goroutines.
func (c *Core) Start(ctx context.Context) {
	go c.hub.Run()
	go c.persist.Run(ctx)
	go c.mon.Run(ctx)
}

// Shutdown tears down in the reverse of the startup order.
func (c *Core) Shutdown() {
	c.mon.Stop()
	c.persist.Stop()
	c.hub.Stop()
	if err := c.hot.(interface{ Close() error }).Close(); err != nil {
		c.log.Warn("hot store close failed", zap.Error(err))
	}
	if err := c.durable.Close(); err != nil {
		c.log.Warn("durable store close failed", zap.Error(err))
	}
}

// Authenticate resolves an opaque bearer token to a Principal, consulting
// the Token Cache before falling through to JWT validation.
func (c *Core) Authenticate(ctx context.Context, token string) (domain.Principal, error) {
	if cached, ok := c.tokens.Get(token); ok {
		return cached, nil
	}

	claims, err := c.validator.ValidateToken(token)
	if err != nil {
		return domain.Principal{}, apperr.ErrAuthFailed.WithCause(err)
	}
	principal := domain.Principal{
		ID:       claims.UserID,
		Username: claims.Username,
		Weight:   claims.Weight,
		IsAdmin:  claims.IsAdmin,
	}
	c.tokens.Set(token, principal)
	return principal, nil
}

// SubmitBid runs the write path.
func (c *Core) SubmitBid(ctx context.Context, principal domain.Principal, sessionID string, price float64) (bidding.Result, error) {
	return c.processor.Submit(ctx, principal, sessionID, price)
}

// GetLeaderboard runs the read path.
func (c *Core) GetLeaderboard(ctx context.Context, sessionID string, page, pageSize int) (domain.LeaderboardPage, error) {
	return c.reader.Page(ctx, sessionID, page, pageSize)
}

// Subscribe returns a channel-only broadcaster subscription and its
// cancel function.
func (c *Core) Subscribe(sessionID string) (<-chan []byte, func()) {
	client, unsubscribe := c.hub.Subscribe(sessionID)
	client.Start()
	return client.Recv(), unsubscribe
}

// FinalizeSession runs one finalization cycle directly, for administrative
// use ahead of the Session Monitor's own tick. Idempotent.
func (c *Core) FinalizeSession(ctx context.Context, sessionID string) error {
	return c.mon.Finalize(ctx, sessionID)
}

// Hub exposes the broadcaster for the HTTP layer's websocket upgrade path.
func (c *Core) Hub() *broadcast.Hub { return c.hub }

// EnsureSchema applies the durable store's DDL; called once at startup.
func (c *Core) EnsureSchema(ctx context.Context) error {
	return durablestore.EnsureSchema(ctx, c.durablePool)
}
