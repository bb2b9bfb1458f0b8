package health

import (
	"net/http"

	"github.com/bazario-dev/bazario-backend/api/responses"
	"github.com/bazario-dev/bazario-backend/pkg/db"
	"github.com/bazario-dev/bazario-backend/pkg/errors"
	"github.com/bazario-dev/bazario-backend/pkg/logger"
	"github.com/bazario-dev/bazario-backend/pkg/redis"
)

func Live() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Ready reports whether the process can serve traffic: db and redis both
// have to answer.
func Ready(database *db.Client, cache *redis.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := database.Ping(ctx); err != nil {
			responses.WriteError(ctx, w, logg,
				errors.Wrap(errors.CodeDependency, err, "database unavailable"))
			return
		}
		if err := cache.Ping(ctx); err != nil {
			responses.WriteError(ctx, w, logg,
				errors.Wrap(errors.CodeDependency, err, "redis unavailable"))
			return
		}

		responses.WriteSuccess(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
