package middleware

import (
	"context"

	"github.com/bazario-dev/bazario-backend/pkg/auth"
)

type ctxKey string

const claimsKey ctxKey = "auth_claims"

func withClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the authenticated caller, or nil on public
// routes.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}
