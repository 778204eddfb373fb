package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/auctionhub/auction-core/interfaces/http/rest/middleware"
	"github.com/auctionhub/auction-core/internal/core"
	"github.com/auctionhub/auction-core/internal/observability"
)

// bidRateLimitPerMinute bounds how many bids a single authenticated user
// may submit per minute, ahead of the hot path rather than inside it.
const bidRateLimitPerMinute = 120

// Router builds the chi router fronting the core API. The core write and
// read paths do not depend on this package; it is transport wiring only.
type Router struct {
	core       *core.Core
	logger     *zap.Logger
	enableCORS bool
}

func NewRouter(c *core.Core, logger *zap.Logger, enableCORS bool) *Router {
	return &Router{core: c, logger: logger, enableCORS: enableCORS}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Logger)

	if rt.enableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/health", rt.healthCheck)
	r.Method(http.MethodGet, "/metrics", observability.NewCollector("auction").Handler())

	h := NewHandlers(rt.core, rt.logger)

	r.Route("/api/v1/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/leaderboard", h.GetLeaderboard)
		r.Get("/stream", h.Subscribe)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(rt.core))
			r.Post("/finalize", h.FinalizeSession)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(bidRateLimitPerMinute))
				r.Post("/bids", h.SubmitBid)
			})
		})
	})

	return r
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
