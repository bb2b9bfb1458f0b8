package middleware

import (
	"fmt"
	"net/http"

	"github.com/bazario-dev/bazario-backend/api/responses"
	"github.com/bazario-dev/bazario-backend/pkg/errors"
	"github.com/bazario-dev/bazario-backend/pkg/logger"
)

// Recoverer converts panics into opaque 500 responses.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					err := fmt.Errorf("panic: %v", rec)
					responses.WriteError(r.Context(), w, logg,
						errors.Wrap(errors.CodeInternal, err, "internal server error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
