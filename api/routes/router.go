package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayurkart/storefront-backend/api/controllers"
	ordercontrollers "github.com/ayurkart/storefront-backend/api/controllers/orders"
	"github.com/ayurkart/storefront-backend/api/middleware"
	"github.com/ayurkart/storefront-backend/internal/cancellation"
	"github.com/ayurkart/storefront-backend/internal/deletion"
	"github.com/ayurkart/storefront-backend/internal/refunds"
	"github.com/ayurkart/storefront-backend/pkg/auth"
	"github.com/ayurkart/storefront-backend/pkg/config"
	"github.com/ayurkart/storefront-backend/pkg/db"
	"github.com/ayurkart/storefront-backend/pkg/logger"
	"github.com/ayurkart/storefront-backend/pkg/redis"
)

// Services groups the order workflows exposed over HTTP.
type Services struct {
	Cancellation cancellation.Service
	Deletion     deletion.Service
	Refunds      refunds.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	admins middleware.AdminChecker,
	dlq controllers.DLQLister,
	services Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
		middleware.Preflight(),
	)

	readiness := map[string]controllers.Pinger{}
	if dbP != nil {
		readiness["db"] = dbP
	}
	if redisClient != nil {
		readiness["redis"] = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	verifier := auth.NewVerifier(cfg.JWT)

	r.Route("/functions/v1", func(r chi.Router) {
		r.Use(middleware.Auth(verifier, logg))
		if redisClient != nil {
			r.Use(middleware.Idempotency(redisClient, logg))
		}

		r.Post("/cancel-order", ordercontrollers.CancelOrder(services.Cancellation, logg))
		r.Post("/delete-order", ordercontrollers.DeleteOrder(services.Deletion, logg))
		r.Post("/process-refund", ordercontrollers.ProcessRefund(services.Refunds, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(verifier, logg))
		r.Use(middleware.RequireAdmin(admins, logg))
		r.Get("/outbox/dlq", controllers.AdminOutboxDLQ(dlq, logg))
	})

	return r
}
