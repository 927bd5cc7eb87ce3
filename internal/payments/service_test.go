package payments

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/internal/cart"
	"github.com/naijamart/storefront-backend/internal/coupons"
	"github.com/naijamart/storefront-backend/internal/inventory"
	"github.com/naijamart/storefront-backend/internal/loyalty"
	"github.com/naijamart/storefront-backend/internal/orders"
	"github.com/naijamart/storefront-backend/internal/users"
	"github.com/naijamart/storefront-backend/internal/wallet"
	"github.com/naijamart/storefront-backend/pkg/db/dbtest"
	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/enums"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
	"github.com/naijamart/storefront-backend/pkg/gateway"
	"github.com/naijamart/storefront-backend/pkg/logger"
	"github.com/naijamart/storefront-backend/pkg/outbox"
)

const callbackURL = "https://shop.example.com/checkout/verify"

type gormTx struct{ db *gorm.DB }

func (g gormTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type fakeGateway struct {
	mu          sync.Mutex
	initErr     error
	initCalls   int
	verifyCalls int
	failVerify  int
	amounts     map[string]int64
	statuses    map[string]gateway.TransactionStatus
	overpay     int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{amounts: map[string]int64{}, statuses: map[string]gateway.TransactionStatus{}}
}

func (f *fakeGateway) Initialize(_ context.Context, req gateway.InitializeRequest) (*gateway.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	if f.initErr != nil {
		return nil, f.initErr
	}
	f.amounts[req.Reference] = gateway.ToMinor(req.AmountNaira)
	return &gateway.Session{
		AuthorizationURL: "https://pay.example.com/" + req.Reference,
		AccessCode:       "ac_" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (f *fakeGateway) Verify(_ context.Context, reference string) (*gateway.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	if f.failVerify > 0 {
		f.failVerify--
		return nil, context.DeadlineExceeded
	}
	status, ok := f.statuses[reference]
	if !ok {
		status = gateway.StatusSuccess
	}
	paidAt := time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC)
	return &gateway.Transaction{
		Status:      status,
		Reference:   reference,
		AmountMinor: f.amounts[reference] + f.overpay,
		PaidAt:      &paidAt,
	}, nil
}

func (f *fakeGateway) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyCalls
}

type memoryGuard struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (g *memoryGuard) CheckAndMarkProcessed(_ context.Context, consumer, eventID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := consumer + ":" + eventID
	if g.seen[key] {
		return true, nil
	}
	g.seen[key] = true
	return false, nil
}

func (g *memoryGuard) Delete(_ context.Context, consumer, eventID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, consumer+":"+eventID)
	return nil
}

type harness struct {
	db      *gorm.DB
	svc     Service
	gw      *fakeGateway
	guard   *memoryGuard
	user    models.User
	product models.Product
}

func newHarness(t *testing.T, price int64, balance int64, configure func(*ServiceParams)) *harness {
	t.Helper()
	db := dbtest.Open(t)
	logg := logger.Nop()

	user := models.User{Email: uuid.NewString() + "@example.com", FirstName: "Ada", LastName: "Obi", WalletBalance: balance}
	require.NoError(t, db.Create(&user).Error)
	product := models.Product{Name: "Ankara Tote", SKU: "TOTE-1", Price: price, Stock: 5, IsActive: true}
	require.NoError(t, db.Create(&product).Error)

	cartRepo, err := cart.NewRepository(db)
	require.NoError(t, err)
	inv, err := inventory.NewService(inventory.ServiceParams{Repo: inventory.NewRepository(db), Logger: logg})
	require.NoError(t, err)
	couponSvc, err := coupons.NewService(coupons.ServiceParams{Repo: coupons.NewRepository(db), Logger: logg})
	require.NoError(t, err)
	walletSvc, err := wallet.NewService(wallet.ServiceParams{Repo: wallet.NewRepository(db), Logger: logg})
	require.NoError(t, err)
	recorder, err := loyalty.NewRecorder(db)
	require.NoError(t, err)

	h := &harness{db: db, gw: newFakeGateway(), guard: &memoryGuard{seen: map[string]bool{}}, user: user, product: product}
	params := ServiceParams{
		TxRunner:      gormTx{db: db},
		Orders:        orders.NewRepository(db),
		Cart:          cartRepo,
		Users:         users.NewRepository(db),
		Inventory:     inv,
		Coupons:       couponSvc,
		Wallet:        walletSvc,
		Loyalty:       recorder,
		Outbox:        outbox.NewService(outbox.NewRepository(db), logg),
		Gateway:       h.gw,
		Guard:         h.guard,
		Logger:        logg,
		CallbackURL:   callbackURL,
		WebhookSecret: "whsec",
		VerifyRetries: 1,
		RetryBackoff:  time.Millisecond,
	}
	if configure != nil {
		configure(&params)
	}
	h.svc, err = NewService(params)
	require.NoError(t, err)
	h.addToCart(t, 1)
	return h
}

func (h *harness) addToCart(t *testing.T, qty int) {
	t.Helper()
	require.NoError(t, h.db.Create(&models.CartItem{UserID: h.user.ID, ProductID: h.product.ID, Quantity: qty}).Error)
}

func (h *harness) input(method enums.PaymentMethod) CreateInput {
	return CreateInput{
		ShippingAddress: models.ShippingAddress{FullName: "Ada Obi", Phone: "08030000000", Street: "1 Marina", City: "Lagos", State: "Lagos", Country: "NG"},
		PaymentMethod:   method,
	}
}

func (h *harness) stock(t *testing.T) int {
	t.Helper()
	var p models.Product
	require.NoError(t, h.db.First(&p, "id = ?", h.product.ID).Error)
	return p.Stock
}

func (h *harness) reloadUser(t *testing.T) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, h.db.First(&u, "id = ?", h.user.ID).Error)
	return u
}

func (h *harness) countEvents(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func (h *harness) cartSize(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&models.CartItem{}).Where("user_id = ?", h.user.ID).Count(&n).Error)
	return n
}

func (h *harness) seedCoupon(t *testing.T, code string) models.Coupon {
	t.Helper()
	c := models.Coupon{
		Code:       code,
		Type:       enums.CouponTypePercentage,
		Value:      10,
		ExpiryDate: time.Now().Add(24 * time.Hour),
		UsageLimit: 10,
		IsActive:   true,
	}
	require.NoError(t, h.db.Create(&c).Error)
	return c
}

func TestCreateWalletExactBalancePaysImmediately(t *testing.T) {
	h := newHarness(t, 10000, 10000, nil)
	ctx := context.Background()

	res, err := h.svc.Create(ctx, h.user.ID, h.input(enums.PaymentMethodWallet))
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	assert.Equal(t, enums.PaymentStatusPaid, res.Order.PaymentStatus)
	assert.Equal(t, enums.DeliveryStatusProcessing, res.Order.DeliveryStatus)
	assert.Equal(t, int64(10000), res.Order.Total)
	assert.Equal(t, "WDR-"+res.Order.OrderNumber, res.Reference)
	assert.Nil(t, res.PaymentURL)

	user := h.reloadUser(t)
	assert.Equal(t, int64(0), user.WalletBalance)
	assert.Equal(t, int64(10000), user.TotalSpent)
	assert.Equal(t, 4, h.stock(t))
	assert.Equal(t, int64(0), h.cartSize(t))
	assert.Equal(t, int64(1), h.countEvents(t, enums.EventOrderPaid))
	assert.Equal(t, int64(1), h.countEvents(t, enums.EventLoyaltyUpdated))
	assert.Equal(t, int64(1), h.countEvents(t, enums.EventStockCommitted))
	assert.Equal(t, 0, h.gw.calls())
}

func TestCreateWalletShortByOneWritesNothing(t *testing.T) {
	h := newHarness(t, 10001, 10000, nil)

	_, err := h.svc.Create(context.Background(), h.user.ID, h.input(enums.PaymentMethodWallet))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBusinessRule))

	var count int64
	require.NoError(t, h.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, int64(10000), h.reloadUser(t).WalletBalance)
	assert.Equal(t, int64(1), h.cartSize(t))
	assert.Equal(t, 5, h.stock(t))
}

func TestCreateRejectsEmptyCart(t *testing.T) {
	h := newHarness(t, 4000, 0, nil)
	require.NoError(t, h.db.Where("user_id = ?", h.user.ID).Delete(&models.CartItem{}).Error)

	_, err := h.svc.Create(context.Background(), h.user.ID, h.input(enums.PaymentMethodCard))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreateCashOnDeliveryStaysPending(t *testing.T) {
	h := newHarness(t, 4000, 0, nil)

	res, err := h.svc.Create(context.Background(), h.user.ID, h.input(enums.PaymentMethodCashOnDelivery))
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, res.Order.PaymentStatus)
	assert.Equal(t, enums.DeliveryStatusPending, res.Order.DeliveryStatus)
	assert.Equal(t, res.Order.OrderNumber, res.Reference)
	assert.Equal(t, int64(1), h.countEvents(t, enums.EventOrderPlaced))
	assert.Equal(t, int64(0), h.countEvents(t, enums.EventOrderPaid))
	assert.Equal(t, 5, h.stock(t))
	assert.Equal(t, 0, h.gw.initCalls)
}

func TestCreateCouponRejectionIsSoft(t *testing.T) {
	h := newHarness(t, 4000, 0, nil)
	in := h.input(enums.PaymentMethodCashOnDelivery)
	in.CouponCode = "nope"

	res, err := h.svc.Create(context.Background(), h.user.ID, in)
	require.NoError(t, err)
	require.NotNil(t, res.CouponRejected)
	assert.Equal(t, string(coupons.ReasonNotFound), *res.CouponRejected)
	assert.Zero(t, res.Order.CouponDiscount)
	assert.Nil(t, res.Order.CouponCode)
}

func TestCreateClaimsCoupon(t *testing.T) {
	h := newHarness(t, 8000, 0, nil)
	coupon := h.seedCoupon(t, "SAVE10")
	in := h.input(enums.PaymentMethodCashOnDelivery)
	in.CouponCode = " save10 "

	res, err := h.svc.Create(context.Background(), h.user.ID, in)
	require.NoError(t, err)
	assert.Nil(t, res.CouponRejected)
	assert.Equal(t, int64(800), res.Order.CouponDiscount)
	assert.Equal(t, int64(7200), res.Order.Total)
	require.NotNil(t, res.Order.CouponCode)
	assert.Equal(t, "SAVE10", *res.Order.CouponCode)

	var stored models.Coupon
	require.NoError(t, h.db.First(&stored, "id = ?", coupon.ID).Error)
	assert.Equal(t, 1, stored.UsageCount)
}

func TestCreateGatewayInitFailureRollsBack(t *testing.T) {
	h := newHarness(t, 8000, 0, nil)
	coupon := h.seedCoupon(t, "SAVE10")
	h.gw.initErr = errors.New("gateway down")
	in := h.input(enums.PaymentMethodCard)
	in.CouponCode = "SAVE10"

	_, err := h.svc.Create(context.Background(), h.user.ID, in)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentInit))

	var count int64
	require.NoError(t, h.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, h.db.Model(&models.OrderItem{}).Count(&count).Error)
	assert.Zero(t, count)

	var stored models.Coupon
	require.NoError(t, h.db.First(&stored, "id = ?", coupon.ID).Error)
	assert.Equal(t, 0, stored.UsageCount)
	assert.Equal(t, int64(1), h.cartSize(t))
}

func TestCardOrderReturnsPaymentSession(t *testing.T) {
	h := newHarness(t, 4000, 0, nil)

	res, err := h.svc.Create(context.Background(), h.user.ID, h.input(enums.PaymentMethodCard))
	require.NoError(t, err)
	require.NotNil(t, res.PaymentURL)
	require.NotNil(t, res.AccessCode)
	assert.Equal(t, res.Order.OrderNumber, res.Reference)
	assert.Equal(t, "https://pay.example.com/"+res.Reference, *res.PaymentURL)
	assert.Equal(t, enums.PaymentStatusPending, res.Order.PaymentStatus)
	assert.Equal(t, int64(0), h.cartSize(t))
}

func TestVerifyAppliesEffectsOnce(t *testing.T) {
	h := newHarness(t, 4000, 0, nil)
	ctx := context.Background()
	res, err := h.svc.Create(ctx, h.user.ID, h.input(enums.PaymentMethodCard))
	require.NoError(t, err)

	first, err := h.svc.Verify(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, first.Outcome)
	assert.True(t, first.Success)
	require.NotNil(t, first.Order)
	assert.Equal(t, enums.PaymentStatusPaid, first.Order.PaymentStatus)

	second, err := h.svc.Verify(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyPaid, second.Outcome)
	assert.True(t, second.AlreadyPaid)
	assert.True(t, second.Success)

	assert.Equal(t, 4, h.stock(t))
	assert.Equal(t, res.Order.Total, h.reloadUser(t).TotalSpent)
	assert.Equal(t, int64(1), h.countEvents(t, enums.EventOrderPaid))
	assert.Equal(t, int64(1), h.trackingCount(t, res.Order.ID, enums.DeliveryStatusProcessing))
}

func (h *harness) addShopper(t *testing.T) models.User {
	t.Helper()
	u := models.User{Email: uuid.NewString() + "@example.com", FirstName: "Tunde", LastName: "Ade"}
	require.NoError(t, h.db.Create(&u).Error)
	require.NoError(t, h.db.Create(&models.CartItem{UserID: u.ID, ProductID: h.product.ID, Quantity: 1}).Error)
	return u
}

func (h *harness) trackingCount(t *testing.T, orderID uuid.UUID, status enums.DeliveryStatus) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&models.TrackingEvent{}).Where("order_id = ? AND status = ?", orderID, status).Count(&n).Error)
	return n
}

func TestConcurrentCreateClaimsSingleUseCouponOnce(t *testing.T) {
	h := newHarness(t, 8000, 0, nil)
	coupon := h.seedCoupon(t, "ONCE")
	require.NoError(t, h.db.Model(&models.Coupon{}).Where("id = ?", coupon.ID).Update("usage_limit", 1).Error)
	other := h.addShopper(t)
	ctx := context.Background()

	shoppers := []uuid.UUID{h.user.ID, other.ID}
	results := make([]*CreateResult, len(shoppers))
	errs := make([]error, len(shoppers))
	var wg sync.WaitGroup
	for i, userID := range shoppers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := h.input(enums.PaymentMethodCard)
			in.CouponCode = "ONCE"
			results[i], errs[i] = h.svc.Create(ctx, userID, in)
		}()
	}
	wg.Wait()

	var discounts []int64
	rejected := 0
	for i := range shoppers {
		require.NoError(t, errs[i])
		discounts = append(discounts, results[i].Order.CouponDiscount)
		if results[i].CouponRejected != nil {
			rejected++
		}
	}
	assert.ElementsMatch(t, []int64{0, 800}, discounts)
	assert.Equal(t, 1, rejected)

	var stored models.Coupon
	require.NoError(t, h.db.First(&stored, "id = ?", coupon.ID).Error)
	assert.Equal(t, 1, stored.UsageCount)

	for _, res := range results {
		first, err := h.svc.Verify(ctx, res.Reference)
		require.NoError(t, err)
		assert.Equal(t, OutcomeConfirmed, first.Outcome)
		again, err := h.svc.Verify(ctx, res.Reference)
		require.NoError(t, err)
		assert.Equal(t, OutcomeAlreadyPaid, again.Outcome)
	}

	var settled models.Coupon
	require.NoError(t, h.db.First(&settled, "id = ?", coupon.ID).Error)
	assert.Equal(t, 1, settled.UsageCount)
}

func TestConcurrentVerifyAppliesEffectsOnce(t *testing.T) {
	h := newHarness(t, 4000, 0, nil)
	ctx := context.Background()
	res, err := h.svc.Create(ctx, h.user.ID, h.input(enums.PaymentMethodCard))
	require.NoError(t, err)

	const callers = 6
	outcomes := make([]Outcome, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := h.svc.Verify(ctx, res.Reference)
			errs[i] = err
			if out != nil {
				outcomes[i] = out.Outcome
			}
		}()
	}
	wg.Wait()

	confirmed := 0
	for i := range callers {
		require.NoError(t, errs[i])
		switch outcomes[i] {
		case OutcomeConfirmed:
			confirmed++
		case OutcomeAlreadyPaid:
		default:
			t.Fatalf("unexpected outcome %q", outcomes[i])
		}
	}
	assert.Equal(t, 1, confirmed)
	assert.Equal(t, 4, h.stock(t))
	assert.Equal(t, res.Order.Total, h.reloadUser(t).TotalSpent)
	assert.Equal(t, int64(1), h.countEvents(t, enums.EventOrderPaid))
	assert.Equal(t, int64(1), h.trackingCount(t, res.Order.ID, enums.DeliveryStatusProcessing))
}

func TestVerifyRetriesTransportFailure(t *testing.T) {
	h := newHarness(t, 4000, 0, nil)
	ctx := context.Background()
	res, err := h.svc.Create(ctx, h.user.ID, h.input(enums.PaymentMethodCard))
	require.NoError(t, err)
	h.gw.failVerify = 1

	out, err := h.svc.Verify(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, out.Outcome)
	assert.Equal(t, 2, h.gw.calls())
}

func TestVerifyTimeoutLeavesOrderPendingThenSucceeds(t *testing.T) {
	h := newHarness(t, 4000, 0, nil)
	ctx := context.Background()
	res, err := h.svc.Create(ctx, h.user.ID, h.input(enums.PaymentMethodCard))
	require.NoError(t, err)
	h.gw.failVerify = 2

	out, err := h.svc.Verify(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTransient, out.Outcome)
	assert.False(t, out.Success)
	assert.Equal(t, enums.PaymentStatusPending, out.Order.PaymentStatus)
	assert.Equal(t, 5, h.stock(t))

	out, err = h.svc.Verify(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, out.Outcome)
	assert.Equal(t, 4, h.stock(t))
	assert.Equal(t, int64(1), h.countEvents(t, enums.EventOrderPaid))
}

func TestVerifyAmountMismatchDeclines(t *testing.T) {
	h := newHarness(t, 4000, 0, nil)
	ctx := context.Background()
	res, err := h.svc.Create(ctx, h.user.ID, h.input(enums.PaymentMethodCard))
	require.NoError(t, err)
	h.gw.overpay = -100

	out, err := h.svc.Verify(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeclined, out.Outcome)
	assert.Equal(t, messageMismatch, out.Message)
	assert.Equal(t, enums.PaymentStatusPending, out.Order.PaymentStatus)
}

func TestVerifyGatewayDeclineKeepsPending(t *testing.T) {
	h := newHarness(t, 4000, 0, nil)
	ctx := context.Background()
	res, err := h.svc.Create(ctx, h.user.ID, h.input(enums.PaymentMethodCard))
	require.NoError(t, err)
	h.gw.statuses[res.Reference] = gateway.StatusFailed

	out, err := h.svc.Verify(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeclined, out.Outcome)
	assert.Equal(t, enums.PaymentStatusPending, out.Order.PaymentStatus)
}

func TestVerifyUnknownReference(t *testing.T) {
	h := newHarness(t, 4000, 0, nil)

	out, err := h.svc.Verify(context.Background(), "ORD-20260101-NOPE00")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, out.Outcome)
	assert.False(t, out.Success)

	_, err = h.svc.Verify(context.Background(), "  ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestVerifyCashOnDeliveryIsNotOnline(t *testing.T) {
	h := newHarness(t, 4000, 0, nil)
	ctx := context.Background()
	res, err := h.svc.Create(ctx, h.user.ID, h.input(enums.PaymentMethodCashOnDelivery))
	require.NoError(t, err)

	out, err := h.svc.Verify(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeclined, out.Outcome)
	assert.Equal(t, messageNotOnline, out.Message)
	assert.Equal(t, 0, h.gw.calls())
}

func TestBypassModeConfirmsDevReference(t *testing.T) {
	h := newHarness(t, 4000, 0, func(p *ServiceParams) {
		p.Gateway = nil
		p.BypassGateway = true
	})
	ctx := context.Background()

	res, err := h.svc.Create(ctx, h.user.ID, h.input(enums.PaymentMethodBankTransfer))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Reference, devReferencePrefix))
	require.NotNil(t, res.PaymentURL)
	assert.Contains(t, *res.PaymentURL, "reference="+res.Reference)
	assert.Equal(t, int64(5000), res.Order.Total)

	out, err := h.svc.Verify(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, out.Outcome)
	assert.Equal(t, 0, h.gw.calls())
}

func TestHandleWebhookVerifiesAndDeduplicates(t *testing.T) {
	h := newHarness(t, 4000, 0, nil)
	ctx := context.Background()
	res, err := h.svc.Create(ctx, h.user.ID, h.input(enums.PaymentMethodCard))
	require.NoError(t, err)

	body := []byte(`{"event":"charge.success","data":{"id":4411,"reference":"` + res.Reference + `","status":"success"}}`)

	err = h.svc.HandleWebhook(ctx, body, "deadbeef")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	assert.Equal(t, 0, h.gw.calls())

	sig := gateway.Sign("whsec", body)
	require.NoError(t, h.svc.HandleWebhook(ctx, body, sig))
	assert.Equal(t, 1, h.gw.calls())

	require.NoError(t, h.svc.HandleWebhook(ctx, body, sig))
	assert.Equal(t, 1, h.gw.calls())

	var order models.Order
	require.NoError(t, h.db.First(&order, "id = ?", res.Order.ID).Error)
	assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
}

func TestHandleWebhookTransientFailureAllowsRedelivery(t *testing.T) {
	h := newHarness(t, 4000, 0, nil)
	ctx := context.Background()
	res, err := h.svc.Create(ctx, h.user.ID, h.input(enums.PaymentMethodCard))
	require.NoError(t, err)
	h.gw.failVerify = 2

	body := []byte(`{"event":"charge.success","data":{"id":77,"reference":"` + res.Reference + `"}}`)
	sig := gateway.Sign("whsec", body)

	err = h.svc.HandleWebhook(ctx, body, sig)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	require.NoError(t, h.svc.HandleWebhook(ctx, body, sig))
	assert.Equal(t, int64(1), h.countEvents(t, enums.EventOrderPaid))
}

func TestHandleWebhookIgnoresOtherEvents(t *testing.T) {
	h := newHarness(t, 4000, 0, nil)
	body := []byte(`{"event":"transfer.success","data":{"id":1,"reference":"x"}}`)

	require.NoError(t, h.svc.HandleWebhook(context.Background(), body, gateway.Sign("whsec", body)))
	assert.Equal(t, 0, h.gw.calls())
}

func TestReconcileStaleConfirmsAndCancels(t *testing.T) {
	h := newHarness(t, 4000, 0, nil)
	ctx := context.Background()
	coupon := h.seedCoupon(t, "SAVE10")

	paid, err := h.svc.Create(ctx, h.user.ID, h.input(enums.PaymentMethodCard))
	require.NoError(t, err)

	h.addToCart(t, 2)
	in := h.input(enums.PaymentMethodCard)
	in.CouponCode = "SAVE10"
	abandoned, err := h.svc.Create(ctx, h.user.ID, in)
	require.NoError(t, err)
	h.gw.statuses[abandoned.Reference] = gateway.StatusAbandoned

	summary, err := h.svc.ReconcileStale(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Scanned)
	assert.Equal(t, 1, summary.Confirmed)
	assert.Equal(t, 1, summary.Failed)

	var confirmed models.Order
	require.NoError(t, h.db.First(&confirmed, "id = ?", paid.Order.ID).Error)
	assert.Equal(t, enums.PaymentStatusPaid, confirmed.PaymentStatus)

	var cancelled models.Order
	require.NoError(t, h.db.First(&cancelled, "id = ?", abandoned.Order.ID).Error)
	assert.Equal(t, enums.PaymentStatusFailed, cancelled.PaymentStatus)
	assert.Equal(t, enums.DeliveryStatusCancelled, cancelled.DeliveryStatus)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.False(t, cancelled.CouponRedeemed)

	var stored models.Coupon
	require.NoError(t, h.db.First(&stored, "id = ?", coupon.ID).Error)
	assert.Equal(t, 0, stored.UsageCount)
	assert.Equal(t, int64(1), h.countEvents(t, enums.EventOrderPaymentFailed))

	again, err := h.svc.ReconcileStale(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Zero(t, again.Scanned)
}
