package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/auctionhub/auction-core/interfaces/http/rest/middleware"
	"github.com/auctionhub/auction-core/internal/core"
	apperr "github.com/auctionhub/auction-core/pkg/errors"
)

type Handlers struct {
	core   *core.Core
	logger *zap.Logger
}

func NewHandlers(c *core.Core, logger *zap.Logger) *Handlers {
	return &Handlers{core: c, logger: logger}
}

type submitBidRequest struct {
	Price float64 `json:"price" validate:"gt=0"`
}

// SubmitBid handles POST /api/v1/sessions/{sessionID}/bids.
func (h *Handlers) SubmitBid(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		middleware.RespondError(w, apperr.ErrAuthFailed)
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	var req submitBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.RespondError(w, apperr.New(apperr.KindValidation, "malformed request body"))
		return
	}
	if err := validateStruct(req); err != nil {
		middleware.RespondError(w, err)
		return
	}

	result, err := h.core.SubmitBid(r.Context(), principal, sessionID, req.Price)
	if err != nil {
		middleware.RespondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetLeaderboard handles GET /api/v1/sessions/{sessionID}/leaderboard.
func (h *Handlers) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	snapshot, err := h.core.GetLeaderboard(r.Context(), sessionID, page, pageSize)
	if err != nil {
		middleware.RespondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// FinalizeSession handles POST /api/v1/sessions/{sessionID}/finalize, an
// administrative escape hatch that runs the same idempotent finalization
// the Session Monitor would run on its own tick.
func (h *Handlers) FinalizeSession(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok || !principal.IsAdmin {
		middleware.RespondError(w, apperr.ErrAuthFailed)
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.core.FinalizeSession(r.Context(), sessionID); err != nil {
		middleware.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
