package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/internal/cart"
	"github.com/naijamart/storefront-backend/internal/coupons"
	"github.com/naijamart/storefront-backend/internal/inventory"
	"github.com/naijamart/storefront-backend/internal/loyalty"
	"github.com/naijamart/storefront-backend/internal/orders"
	"github.com/naijamart/storefront-backend/internal/wallet"
	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/gateway"
	"github.com/naijamart/storefront-backend/pkg/logger"
	"github.com/naijamart/storefront-backend/pkg/metrics"
	"github.com/naijamart/storefront-backend/pkg/outbox"
)

const (
	defaultGatewayTimeout = 15 * time.Second
	defaultVerifyRetries  = 1
	webhookConsumer       = "payment-webhook"
)

// Service places orders and reconciles their payments.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*CreateResult, error)
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	ReconcileStale(ctx context.Context, olderThan time.Time, limit int) (*ReconcileSummary, error)
}

// Gateway is the part of the payment gateway client the reconciler uses.
type Gateway interface {
	Initialize(ctx context.Context, req gateway.InitializeRequest) (*gateway.Session, error)
	Verify(ctx context.Context, reference string) (*gateway.Transaction, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type webhookGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

type ServiceParams struct {
	TxRunner  txRunner
	Orders    orders.Repository
	Cart      cart.Repository
	Users     userReader
	Inventory inventory.Service
	Coupons   coupons.Service
	Wallet    wallet.Service
	Loyalty   loyalty.Recorder
	Outbox    outbox.Emitter
	Gateway   Gateway
	Guard     webhookGuard
	Logger    *logger.Logger
	Metrics   *metrics.OrderMetrics

	// BypassGateway confirms internal references without calling the gateway.
	// It must be set explicitly.
	BypassGateway bool
	CallbackURL   string
	WebhookSecret string
	InitTimeout   time.Duration
	VerifyTimeout time.Duration
	VerifyRetries uint64
	RetryBackoff  time.Duration

	Now func() time.Time
	IDs orders.IDSource
}

type service struct {
	tx        txRunner
	orders    orders.Repository
	cart      cart.Repository
	users     userReader
	inventory inventory.Service
	coupons   coupons.Service
	wallet    wallet.Service
	loyalty   loyalty.Recorder
	outbox    outbox.Emitter
	gateway   Gateway
	guard     webhookGuard
	logg      *logger.Logger
	metrics   *metrics.OrderMetrics

	bypass        bool
	callbackURL   string
	webhookSecret string
	initTimeout   time.Duration
	verifyTimeout time.Duration
	verifyRetries uint64
	retryBackoff  time.Duration

	now func() time.Time
	ids orders.IDSource
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.TxRunner == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Cart == nil:
		return nil, fmt.Errorf("cart repository required")
	case params.Users == nil:
		return nil, fmt.Errorf("users reader required")
	case params.Inventory == nil:
		return nil, fmt.Errorf("inventory service required")
	case params.Coupons == nil:
		return nil, fmt.Errorf("coupon service required")
	case params.Wallet == nil:
		return nil, fmt.Errorf("wallet service required")
	case params.Loyalty == nil:
		return nil, fmt.Errorf("loyalty recorder required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Gateway == nil && !params.BypassGateway:
		return nil, fmt.Errorf("payment gateway required unless bypass is enabled")
	}
	if strings.TrimSpace(params.CallbackURL) == "" {
		return nil, fmt.Errorf("callback url required")
	}

	svc := &service{
		tx:            params.TxRunner,
		orders:        params.Orders,
		cart:          params.Cart,
		users:         params.Users,
		inventory:     params.Inventory,
		coupons:       params.Coupons,
		wallet:        params.Wallet,
		loyalty:       params.Loyalty,
		outbox:        params.Outbox,
		gateway:       params.Gateway,
		guard:         params.Guard,
		logg:          params.Logger,
		metrics:       params.Metrics,
		bypass:        params.BypassGateway,
		callbackURL:   strings.TrimSpace(params.CallbackURL),
		webhookSecret: params.WebhookSecret,
		initTimeout:   params.InitTimeout,
		verifyTimeout: params.VerifyTimeout,
		verifyRetries: params.VerifyRetries,
		retryBackoff:  params.RetryBackoff,
		now:           params.Now,
		ids:           params.IDs,
	}
	if svc.initTimeout <= 0 {
		svc.initTimeout = defaultGatewayTimeout
	}
	if svc.verifyTimeout <= 0 {
		svc.verifyTimeout = defaultGatewayTimeout
	}
	if svc.verifyRetries == 0 {
		svc.verifyRetries = defaultVerifyRetries
	}
	if svc.retryBackoff <= 0 {
		svc.retryBackoff = 250 * time.Millisecond
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}
