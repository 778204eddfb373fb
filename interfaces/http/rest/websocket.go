package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/auctionhub/auction-core/internal/broadcast"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The leaderboard stream is read by browser clients on arbitrary
	// origins in development; production deployments front this with a
	// same-origin proxy, matching the CORS posture of the REST routes.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Subscribe handles GET /api/v1/sessions/{sessionID}/stream, upgrading to a
// websocket and registering the connection with the Push Broadcaster.
func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := broadcast.NewClient(sessionID, h.core.Hub(), conn, h.logger)
	client.Start()
}
