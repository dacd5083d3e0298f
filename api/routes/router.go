package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/calebreyes/taskdeck-backend/api/controllers"
	"github.com/calebreyes/taskdeck-backend/api/middleware"
	"github.com/calebreyes/taskdeck-backend/pkg/config"
	"github.com/calebreyes/taskdeck-backend/pkg/db"
	"github.com/calebreyes/taskdeck-backend/pkg/logger"
	"github.com/calebreyes/taskdeck-backend/pkg/redis"
)

// NewRouter assembles the management API: health probes plus project-scoped
// webhook subscription CRUD and the test-delivery endpoint.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	subscriptionService controllers.SubscriptionService,
	testDeliverer controllers.TestDeliverer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/projects/{projectID}/webhooks", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Post("/", controllers.CreateWebhook(subscriptionService, logg))
		r.Get("/", controllers.ListWebhooks(subscriptionService, logg))

		r.Route("/{webhookID}", func(r chi.Router) {
			r.Get("/", controllers.GetWebhook(subscriptionService, logg))
			r.Patch("/", controllers.UpdateWebhook(subscriptionService, logg))
			r.Delete("/", controllers.DeleteWebhook(subscriptionService, logg))
			r.Post("/test", controllers.TestWebhook(subscriptionService, testDeliverer, logg))
		})
	})

	return r
}
