package middleware

import (
	"net/http"
	"strings"

	"github.com/bazario-dev/bazario-backend/api/responses"
	"github.com/bazario-dev/bazario-backend/pkg/auth"
	"github.com/bazario-dev/bazario-backend/pkg/config"
	"github.com/bazario-dev/bazario-backend/pkg/errors"
	"github.com/bazario-dev/bazario-backend/pkg/logger"
)

// Auth parses the Bearer token and stores its claims on the context. The
// request is rejected when the token is missing or invalid.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				responses.WriteError(r.Context(), w, logg,
					errors.New(errors.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims, err := auth.ParseAccessToken(cfg, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				responses.WriteError(r.Context(), w, logg,
					errors.Wrap(errors.CodeUnauthorized, err, "invalid access token"))
				return
			}

			ctx := withClaims(r.Context(), claims)
			ctx = logg.WithUserID(ctx, claims.UserID.String())
			ctx = logg.WithActorRole(ctx, claims.Role.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
