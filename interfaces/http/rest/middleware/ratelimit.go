package middleware

import (
	"net/http"

	"github.com/auctionhub/auction-core/pkg/auth"
	apperr "github.com/auctionhub/auction-core/pkg/errors"
)

// RateLimit rejects requests once the authenticated principal exceeds
// requestsPerMinute submissions. Must sit behind Authenticate so a
// Principal is already in context.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	limiter := auth.NewUserLimiter(requestsPerMinute)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				RespondError(w, apperr.ErrAuthFailed)
				return
			}
			if !limiter.Allow(principal.ID) {
				RespondError(w, apperr.New(apperr.KindValidation, "rate limit exceeded, slow down"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
