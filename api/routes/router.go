package routes

import (
	"fmt"

	"github.com/go-chi/chi/v5"

	"github.com/bazario-dev/bazario-backend/api/controllers/health"
	"github.com/bazario-dev/bazario-backend/api/controllers/orders"
	"github.com/bazario-dev/bazario-backend/api/controllers/webhooks"
	"github.com/bazario-dev/bazario-backend/api/middleware"
	"github.com/bazario-dev/bazario-backend/internal/settlement"
	"github.com/bazario-dev/bazario-backend/pkg/config"
	"github.com/bazario-dev/bazario-backend/pkg/db"
	"github.com/bazario-dev/bazario-backend/pkg/logger"
	"github.com/bazario-dev/bazario-backend/pkg/redis"
)

type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Redis      *redis.Client
	Settlement *settlement.Service
}

func NewRouter(params Params) (*chi.Mux, error) {
	if params.Config == nil || params.Logger == nil || params.DB == nil || params.Settlement == nil {
		return nil, fmt.Errorf("routes: missing dependencies")
	}

	logg := params.Logger
	router := chi.NewRouter()

	router.Use(middleware.RequestID(logg))
	router.Use(middleware.Recoverer(logg))
	router.Use(middleware.Logging(logg))

	router.Route("/health", func(r chi.Router) {
		r.Get("/live", health.Live())
		r.Get("/ready", health.Ready(params.DB, params.Redis, logg))
	})

	router.Route("/api/v1", func(r chi.Router) {
		// The gateway cannot carry a user token; the callback authenticates
		// itself with its HMAC signature.
		r.Post("/orders/{orderID}/payment-callback",
			webhooks.PaymentCallback(params.Settlement, params.Redis, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(params.Config.JWT, logg))

			r.Post("/orders", orders.Create(params.Settlement, logg))
			r.Get("/orders", orders.List(params.Settlement, logg))
			r.Get("/orders/{orderID}", orders.Get(params.Settlement, logg))
			r.Post("/orders/{orderID}/cancel", orders.Cancel(params.Settlement, logg))
			r.Post("/orders/{orderID}/complete", orders.Complete(params.Settlement, logg))
		})
	})

	return router, nil
}
