package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/api/controllers"
	"github.com/naijamart/storefront-backend/api/middleware"
	"github.com/naijamart/storefront-backend/internal/coupons"
	"github.com/naijamart/storefront-backend/internal/fulfillment"
	"github.com/naijamart/storefront-backend/internal/inventory"
	"github.com/naijamart/storefront-backend/internal/notifications"
	"github.com/naijamart/storefront-backend/internal/orders"
	"github.com/naijamart/storefront-backend/internal/payments"
	"github.com/naijamart/storefront-backend/internal/tickets"
	"github.com/naijamart/storefront-backend/internal/wallet"
	"github.com/naijamart/storefront-backend/pkg/config"
	"github.com/naijamart/storefront-backend/pkg/enums"
	"github.com/naijamart/storefront-backend/pkg/logger"
	pkgredis "github.com/naijamart/storefront-backend/pkg/redis"
)

// Store backs idempotency replay and request throttling.
type Store interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// TxRunner opens a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Deps carries everything the HTTP surface needs. Nil services answer 503.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	Store   Store
	Tx      TxRunner
	Pingers map[string]controllers.Pinger
	Metrics prometheus.Gatherer

	Orders        orders.Service
	Payments      payments.Service
	Fulfillment   fulfillment.Service
	Wallet        wallet.Service
	Tickets       tickets.Service
	Notifications notifications.Service
	Coupons       coupons.Service
	Inventory     inventory.Service
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Pingers))
	})
	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{}))
	}

	verifyPolicy := middleware.NewRateLimitPolicy("verify", cfg.App.VerifyRateWindow, cfg.App.VerifyRateLimit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/track/{orderNumber}", controllers.TrackOrder(d.Orders, logg))
		r.Post("/payments/webhook", controllers.PaymentWebhook(d.Payments, logg))
		r.With(middleware.RateLimit(verifyPolicy, d.Store, logg)).Get("/payments/verify", controllers.VerifyPayment(d.Payments, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(d.Store, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", controllers.CreateOrder(d.Payments, logg))
				r.Get("/", controllers.ListMyOrders(d.Orders, logg))
				r.Get("/{orderId}", controllers.GetMyOrder(d.Orders, logg))
			})
			r.Post("/coupons/validate", controllers.ValidateCoupon(d.Coupons, logg))

			r.Route("/wallet", func(r chi.Router) {
				r.Get("/", controllers.WalletBalance(d.Wallet, logg))
				r.Get("/transactions", controllers.WalletTransactions(d.Wallet, logg))
			})

			r.Route("/tickets", func(r chi.Router) {
				r.Post("/", controllers.CreateTicket(d.Tickets, logg))
				r.Get("/", controllers.ListTickets(d.Tickets, logg))
				r.Get("/{ticketId}", controllers.GetTicket(d.Tickets, logg))
				r.Post("/{ticketId}/reopen", controllers.ReopenTicket(d.Tickets, logg))
				r.Post("/{ticketId}/messages", controllers.AddTicketMessage(d.Tickets, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(d.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(d.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(d.Notifications, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
		r.Use(middleware.Idempotency(d.Store, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminListOrders(d.Orders, logg))
			r.Post("/bulk-status", controllers.AdminBulkOrderStatus(d.Fulfillment, logg))
			r.Get("/{orderId}", controllers.AdminGetOrder(d.Orders, logg))
			r.Patch("/{orderId}/status", controllers.AdminUpdateOrderStatus(d.Fulfillment, logg))
		})
		r.Post("/users/{userId}/wallet/credit", controllers.AdminWalletCredit(d.Wallet, d.Tx, logg))
		r.Patch("/tickets/{ticketId}/status", controllers.AdminUpdateTicketStatus(d.Tickets, logg))
		r.Post("/products/{productId}/stock", controllers.AdminAdjustStock(d.Inventory, logg))
	})

	return r
}
