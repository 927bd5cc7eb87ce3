// Package app wires the domain services shared by the api and cron binaries.
package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/naijamart/storefront-backend/internal/cart"
	"github.com/naijamart/storefront-backend/internal/coupons"
	"github.com/naijamart/storefront-backend/internal/fulfillment"
	"github.com/naijamart/storefront-backend/internal/inventory"
	"github.com/naijamart/storefront-backend/internal/loyalty"
	"github.com/naijamart/storefront-backend/internal/notifications"
	"github.com/naijamart/storefront-backend/internal/orders"
	"github.com/naijamart/storefront-backend/internal/payments"
	"github.com/naijamart/storefront-backend/internal/tickets"
	"github.com/naijamart/storefront-backend/internal/users"
	"github.com/naijamart/storefront-backend/internal/wallet"
	"github.com/naijamart/storefront-backend/pkg/config"
	"github.com/naijamart/storefront-backend/pkg/db"
	"github.com/naijamart/storefront-backend/pkg/gateway"
	"github.com/naijamart/storefront-backend/pkg/logger"
	"github.com/naijamart/storefront-backend/pkg/metrics"
	"github.com/naijamart/storefront-backend/pkg/outbox"
	"github.com/naijamart/storefront-backend/pkg/outbox/idempotency"
	"github.com/naijamart/storefront-backend/pkg/redis"
)

type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Redis      *redis.Client
	Registerer prometheus.Registerer
}

type Services struct {
	Orders        orders.Service
	Payments      payments.Service
	Fulfillment   fulfillment.Service
	Wallet        wallet.Service
	Tickets       tickets.Service
	Notifications notifications.Service
	Coupons       coupons.Service
	Inventory     inventory.Service

	OutboxRepo        *outbox.Repository
	NotificationsRepo notifications.Repository
}

// Build constructs every domain service over one database and redis client.
func Build(p Params) (*Services, error) {
	cfg, logg := p.Config, p.Logger
	conn := p.DB.DB()
	orderMetrics := metrics.NewOrderMetrics(p.Registerer)

	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, logg)
	ordersRepo := orders.NewRepository(conn)

	ordersSvc, err := orders.NewService(ordersRepo)
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}
	cartRepo, err := cart.NewRepository(conn)
	if err != nil {
		return nil, fmt.Errorf("cart repository: %w", err)
	}
	loyaltyRecorder, err := loyalty.NewRecorder(conn)
	if err != nil {
		return nil, fmt.Errorf("loyalty recorder: %w", err)
	}
	inventorySvc, err := inventory.NewService(inventory.ServiceParams{
		Repo:    inventory.NewRepository(conn),
		Logger:  logg,
		Metrics: orderMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("inventory service: %w", err)
	}
	couponSvc, err := coupons.NewService(coupons.ServiceParams{
		Repo:   coupons.NewRepository(conn),
		Logger: logg,
	})
	if err != nil {
		return nil, fmt.Errorf("coupon service: %w", err)
	}
	walletSvc, err := wallet.NewService(wallet.ServiceParams{
		Repo:   wallet.NewRepository(conn),
		Logger: logg,
	})
	if err != nil {
		return nil, fmt.Errorf("wallet service: %w", err)
	}

	guard, err := idempotency.NewManager(p.Redis, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return nil, fmt.Errorf("webhook guard: %w", err)
	}

	var gw payments.Gateway
	if !cfg.Payments.BypassGateway {
		client, err := gateway.NewClient(cfg.Payments.GatewaySecretKey, gateway.WithBaseURL(cfg.Payments.GatewayBaseURL))
		if err != nil {
			return nil, fmt.Errorf("payment gateway: %w", err)
		}
		gw = client
	}

	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		TxRunner:      p.DB,
		Orders:        ordersRepo,
		Cart:          cartRepo,
		Users:         users.NewRepository(conn),
		Inventory:     inventorySvc,
		Coupons:       couponSvc,
		Wallet:        walletSvc,
		Loyalty:       loyaltyRecorder,
		Outbox:        emitter,
		Gateway:       gw,
		Guard:         guard,
		Logger:        logg,
		Metrics:       orderMetrics,
		BypassGateway: cfg.Payments.BypassGateway,
		CallbackURL:   cfg.Payments.CallbackURL,
		WebhookSecret: cfg.Payments.GatewaySecretKey,
		InitTimeout:   cfg.Payments.InitTimeout,
		VerifyTimeout: cfg.Payments.VerifyTimeout,
		VerifyRetries: cfg.Payments.VerifyRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("payments service: %w", err)
	}

	fulfillmentSvc, err := fulfillment.NewService(fulfillment.ServiceParams{
		TxRunner: p.DB,
		Orders:   ordersRepo,
		Outbox:   emitter,
		Logger:   logg,
	})
	if err != nil {
		return nil, fmt.Errorf("fulfillment service: %w", err)
	}

	ticketSvc, err := tickets.NewService(tickets.ServiceParams{
		TxRunner:       p.DB,
		Repo:           tickets.NewRepository(conn),
		Outbox:         emitter,
		Logger:         logg,
		AutoCloseAfter: cfg.Tickets.AutoCloseAfter,
	})
	if err != nil {
		return nil, fmt.Errorf("tickets service: %w", err)
	}

	notificationsRepo := notifications.NewRepository(conn)
	notificationsSvc, err := notifications.NewService(notifications.ServiceParams{
		Repo:   notificationsRepo,
		Users:  users.NewRepository(conn),
		Logger: logg,
		Senders: []notifications.Sender{
			notifications.NewEmailLogSender(logg),
			notifications.NewSMSLogSender(logg),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("notifications service: %w", err)
	}

	return &Services{
		Orders:            ordersSvc,
		Payments:          paymentsSvc,
		Fulfillment:       fulfillmentSvc,
		Wallet:            walletSvc,
		Tickets:           ticketSvc,
		Notifications:     notificationsSvc,
		Coupons:           couponSvc,
		Inventory:         inventorySvc,
		OutboxRepo:        outboxRepo,
		NotificationsRepo: notificationsRepo,
	}, nil
}
