package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/lojinha-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/lojinha-backend/api/controllers/webhooks"
	"github.com/angelmondragon/lojinha-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/lojinha-backend/internal/checkout"
	"github.com/angelmondragon/lojinha-backend/internal/orders"
	"github.com/angelmondragon/lojinha-backend/internal/payments"
	mercadopagowebhook "github.com/angelmondragon/lojinha-backend/internal/webhooks/mercadopago"
	"github.com/angelmondragon/lojinha-backend/pkg/config"
	"github.com/angelmondragon/lojinha-backend/pkg/db"
	"github.com/angelmondragon/lojinha-backend/pkg/logger"
	"github.com/angelmondragon/lojinha-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	checkoutService checkoutsvc.Service,
	paymentsService payments.Service,
	ordersRepo orders.Repository,
	webhookService *mercadopagowebhook.Service,
	webhookGuard *mercadopagowebhook.IdempotencyGuard,
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
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	// Gateway-facing endpoints carry no session; notifications are verified
	// against the gateway API and returns are advisory.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/mercadopago", webhookcontrollers.MercadoPagoWebhook(webhookService, webhookGuard, logg))
	})
	r.Route("/api/v1/payments/return", func(r chi.Router) {
		r.Get("/success", controllers.PaymentReturn(checkoutService, logg, "success"))
		r.Get("/failure", controllers.PaymentReturn(checkoutService, logg, "failure"))
		r.Get("/pending", controllers.PaymentReturn(checkoutService, logg, "pending"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Post("/checkout", controllers.Checkout(checkoutService, logg))

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", controllers.MyPayments(paymentsService, logg))
			r.Get("/{paymentId}", controllers.PaymentDetail(paymentsService, logg))
			r.Get("/by-order/{orderId}", controllers.PaymentsByOrder(paymentsService, ordersRepo, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))

		r.Patch("/payments/{paymentId}/status", controllers.AdminUpdatePaymentStatus(paymentsService, logg))
	})

	return r
}
