// Package middleware holds the thin HTTP-layer concerns (auth extraction,
// per-user rate limiting) that sit in front of the Core API. HTTP framing is
// illustrative wiring around the hot-path pipeline, not the subject of the
// core design itself.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/auctionhub/auction-core/internal/core"
	"github.com/auctionhub/auction-core/internal/domain"
	apperr "github.com/auctionhub/auction-core/pkg/errors"
)

type principalKey struct{}

// Authenticate resolves the bearer token via the core's Token Cache and
// stashes the resulting Principal in the request context.
func Authenticate(c *core.Core) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				RespondError(w, apperr.ErrAuthFailed)
				return
			}
			token := strings.TrimPrefix(header, "Bearer ")
			token = strings.TrimSpace(token)

			principal, err := c.Authenticate(r.Context(), token)
			if err != nil {
				RespondError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext retrieves the Principal stashed by Authenticate.
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(domain.Principal)
	return p, ok
}

func RespondError(w http.ResponseWriter, err error) {
	appErr, ok := apperr.As(err)
	status := http.StatusInternalServerError
	kind := apperr.KindInternal
	if ok {
		status = appErr.HTTPStatus
		kind = appErr.Kind
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + string(kind) + `"}`))
}
