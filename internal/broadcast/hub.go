// Package broadcast is the Push Broadcaster: a per-session fan-out hub.
// Every accepted bid and every finalization publishes a snapshot to all
// sockets currently subscribed to that session_id.
package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/auctionhub/auction-core/internal/observability"
)

// Snapshot is the payload pushed to subscribers: either an incremental
// leaderboard change or a terminal finalization notice.
type Snapshot struct {
	SessionID string          `json:"session_id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

const (
	TypeLeaderboardUpdate = "LEADERBOARD_UPDATE"
	TypeSessionFinalized  = "SESSION_FINALIZED"
)

// SnapshotProvider builds the current first-page leaderboard snapshot for
// a session, so Notify can push the same shape the read path serves. Wired
// once at assembly time, before Run starts.
type SnapshotProvider func(ctx context.Context, sessionID string) (interface{}, error)

// Hub maintains active subscribers keyed by session_id and fans out
// snapshots published for that session.
type Hub struct {
	subscribers map[string]map[*Client]bool
	mu          sync.RWMutex

	register   chan *Client
	unregister chan *Client
	publish    chan *Snapshot
	notify     chan string

	snapshot SnapshotProvider

	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	metrics *observability.Collector
}

func NewHub(logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		subscribers: make(map[string]map[*Client]bool),
		register:    make(chan *Client, 100),
		unregister:  make(chan *Client, 100),
		publish:     make(chan *Snapshot, 1000),
		notify:      make(chan string, 256),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
		metrics:     observability.NewCollector("auction"),
	}
}

// Run is the hub's single-goroutine event loop. It must be started once,
// typically from core.Core.Start, and stopped via Stop at shutdown.
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return
		case c := <-h.register:
			h.addSubscriber(c)
		case c := <-h.unregister:
			h.removeSubscriber(c)
		case snap := <-h.publish:
			h.fanOut(snap)
		case sessionID := <-h.notify:
			h.emitSnapshot(sessionID)
		case <-ticker.C:
			h.pingAll()
		}
	}
}

func (h *Hub) Stop() { h.cancel() }

// Publish enqueues a snapshot for fan-out to sessionID's subscribers. It
// never blocks the caller (the Bid Processor's hot path): when the publish
// queue is full, the snapshot being published is dropped (and counted)
// rather than stalling the caller; snapshots already queued are kept.
func (h *Hub) Publish(sessionID, eventType string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to marshal broadcast payload", zap.Error(err))
		return
	}
	snap := &Snapshot{SessionID: sessionID, Type: eventType, Data: payload, Timestamp: time.Now().Unix()}
	select {
	case h.publish <- snap:
	default:
		h.metrics.SnapshotsDropped.Inc()
		h.logger.Warn("publish queue full, snapshot dropped", zap.String("session_id", sessionID))
	}
}

// SetSnapshotProvider wires the leaderboard read path into the hub. Must be
// called before Run starts.
func (h *Hub) SetSnapshotProvider(p SnapshotProvider) { h.snapshot = p }

// Notify enqueues a leaderboard-changed signal for sessionID. The fan-out
// loop resolves the current paged snapshot and pushes it to every
// subscriber. Never blocks the caller: with no subscribers it is a no-op,
// and a full notify queue drops the signal (notifications are best-effort
// and coalesce naturally under load, since every later bid enqueues a
// fresher signal).
func (h *Hub) Notify(sessionID string) {
	h.mu.RLock()
	n := len(h.subscribers[sessionID])
	h.mu.RUnlock()
	if n == 0 || h.snapshot == nil {
		return
	}
	select {
	case h.notify <- sessionID:
	default:
		h.metrics.SnapshotsDropped.Inc()
	}
}

func (h *Hub) emitSnapshot(sessionID string) {
	ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
	defer cancel()

	page, err := h.snapshot(ctx, sessionID)
	if err != nil {
		h.logger.Warn("failed to build leaderboard snapshot", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	payload, err := json.Marshal(page)
	if err != nil {
		h.logger.Error("failed to marshal leaderboard snapshot", zap.Error(err))
		return
	}
	h.fanOut(&Snapshot{SessionID: sessionID, Type: TypeLeaderboardUpdate, Data: payload, Timestamp: time.Now().Unix()})
}

// Subscribe builds a channel-only subscriber, used by the Core API's
// subscribe(session_id) operation when the caller wants a Go channel
// rather than a websocket (e.g. server-side streaming, tests). The caller
// must call Start on the returned Client to register it with the hub,
// exactly as a websocket Client does.
func (h *Hub) Subscribe(sessionID string) (*Client, func()) {
	c := newInternalClient(sessionID, h)
	return c, func() { h.unregister <- c }
}

func (h *Hub) addSubscriber(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers[c.sessionID] == nil {
		h.subscribers[c.sessionID] = make(map[*Client]bool)
	}
	h.subscribers[c.sessionID][c] = true
	h.metrics.ActiveSubscribers.Inc()
}

func (h *Hub) removeSubscriber(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.subscribers[c.sessionID]
	if clients == nil {
		return
	}
	if _, ok := clients[c]; ok {
		delete(clients, c)
		close(c.send)
		if len(clients) == 0 {
			delete(h.subscribers, c.sessionID)
		}
		h.metrics.ActiveSubscribers.Dec()
	}
}

func (h *Hub) fanOut(snap *Snapshot) {
	h.mu.RLock()
	clients := h.subscribers[snap.SessionID]
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		h.logger.Error("failed to marshal snapshot", zap.Error(err))
		return
	}

	for c := range clients {
		select {
		case c.send <- data:
			h.metrics.SnapshotsSent.Inc()
		default:
			// Slow subscriber: drop it rather than block the fan-out loop.
			h.metrics.SnapshotsDropped.Inc()
			go func(c *Client) { h.unregister <- c }(c)
		}
	}
}

func (h *Hub) pingAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.subscribers {
		for c := range clients {
			select {
			case c.send <- []byte(`{"type":"ping"}`):
			default:
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sessionID, clients := range h.subscribers {
		for c := range clients {
			close(c.send)
			if c.conn != nil {
				c.conn.Close()
			}
		}
		delete(h.subscribers, sessionID)
	}
}
