package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/craftline/storefront-backend/api/controllers"
	"github.com/craftline/storefront-backend/api/middleware"
	"github.com/craftline/storefront-backend/internal/cancellation"
	checkoutsvc "github.com/craftline/storefront-backend/internal/checkout"
	"github.com/craftline/storefront-backend/internal/notifications"
	"github.com/craftline/storefront-backend/internal/orders"
	"github.com/craftline/storefront-backend/internal/payments"
	"github.com/craftline/storefront-backend/internal/stores"
	"github.com/craftline/storefront-backend/pkg/db"
	"github.com/craftline/storefront-backend/pkg/logger"
	"github.com/craftline/storefront-backend/pkg/redis"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *redis.Client
	Checkout      checkoutsvc.Service
	Verification  payments.VerificationService
	Refunds       payments.RefundService
	Ledger        orders.Ledger
	Cancellation  *cancellation.Orchestrator
	Notifications notifications.Service
	Stores        *stores.Repository
	Credentials   *payments.CredentialResolver
	Metrics       prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(deps.Logger),
		middleware.RequestID(deps.Logger),
		middleware.Logging(deps.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(deps.Logger, deps.DB, deps.Redis))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(deps.Redis, deps.Logger))

		r.Route("/stores/{storeId}", func(r chi.Router) {
			r.Post("/checkout", controllers.Checkout(deps.Checkout, deps.Logger))
			r.Get("/orders", controllers.ListOrders(deps.Ledger, deps.Logger))
			r.Put("/gateway-credentials", controllers.UpdateStoreGatewayCredentials(deps.Stores, deps.Credentials, deps.Logger))

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(deps.Notifications, deps.Logger))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, deps.Logger))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, deps.Logger))
			})
		})

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Get("/", controllers.OrderDetail(deps.Ledger, deps.Logger))
			r.Post("/payment/verify", controllers.VerifyPayment(deps.Verification, deps.Logger))
			r.Patch("/status", controllers.UpdateOrderStatus(deps.Ledger, deps.Logger))
			r.Delete("/", controllers.CancelOrder(deps.Cancellation, deps.Logger))
			r.Post("/refunds", controllers.RefundOrder(deps.Refunds, deps.Logger))
		})
	})

	return r
}
