package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/internal/orders"
	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/enums"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
	"github.com/naijamart/storefront-backend/pkg/gateway"
)

// Verify reconciles one payment reference. It is safe to call any number of
// times and from several callers at once: only the caller that moves the
// order out of pending applies the payment effects.
func (s *service) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	ctx = s.logg.WithField(ctx, "reference", reference)

	result, err := s.verify(ctx, reference)
	if err != nil {
		return nil, err
	}
	s.metrics.IncVerification(string(result.Outcome))
	return result, nil
}

func (s *service) verify(ctx context.Context, reference string) (*VerifyResult, error) {
	order, err := s.orders.FindByReference(ctx, reference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order == nil {
		return newVerifyResult(OutcomeNotFound, messageNotFound, nil), nil
	}
	ctx = s.logg.WithOrder(ctx, order.OrderNumber)

	if early := checkVerifiable(order); early != nil {
		return early, nil
	}

	if s.bypass && isInternalReference(reference) {
		return s.confirm(ctx, order, reference, s.now().UTC())
	}
	if s.gateway == nil {
		return newVerifyResult(OutcomeTransient, messageTransient, order), nil
	}

	txn, err := s.fetchTransaction(ctx, gatewayReference(order, reference))
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "gateway verification unavailable")
		return newVerifyResult(OutcomeTransient, messageTransient, order), nil
	}
	return s.applyTransaction(ctx, order, txn)
}

// checkVerifiable returns a final result for orders that must not be sent to
// the gateway at all.
func checkVerifiable(order *models.Order) *VerifyResult {
	switch {
	case order.PaymentStatus == enums.PaymentStatusPaid:
		return newVerifyResult(OutcomeAlreadyPaid, messageAlreadyPaid, order)
	case order.PaymentStatus != enums.PaymentStatusPending:
		return newVerifyResult(OutcomeDeclined, fmt.Sprintf("order payment is %s", order.PaymentStatus), order)
	case !order.PaymentMethod.UsesGateway():
		return newVerifyResult(OutcomeDeclined, messageNotOnline, order)
	}
	return nil
}

// applyTransaction maps the gateway's answer onto the order. Only a success
// for the exact order total confirms; anything else leaves it pending.
func (s *service) applyTransaction(ctx context.Context, order *models.Order, txn *gateway.Transaction) (*VerifyResult, error) {
	if !txn.Succeeded() {
		message := txn.Message
		if message == "" {
			message = fmt.Sprintf("payment %s", txn.Status)
		}
		s.logg.Info(s.logg.WithField(ctx, "gateway_status", txn.Status), "gateway reported payment not successful")
		return newVerifyResult(OutcomeDeclined, message, order), nil
	}
	if expected := gateway.ToMinor(order.Total); txn.AmountMinor != expected {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"expected_minor": expected,
			"paid_minor":     txn.AmountMinor,
		})
		s.logg.Error(logCtx, "gateway amount does not match order total", pkgerrors.New(pkgerrors.CodeBusinessRule, messageMismatch))
		return newVerifyResult(OutcomeDeclined, messageMismatch, order), nil
	}
	paidAt := s.now().UTC()
	if txn.PaidAt != nil {
		paidAt = txn.PaidAt.UTC()
	}
	reference := txn.Reference
	if reference == "" {
		reference = gatewayReference(order, order.OrderNumber)
	}
	return s.confirm(ctx, order, reference, paidAt)
}

func (s *service) confirm(ctx context.Context, order *models.Order, reference string, paidAt time.Time) (*VerifyResult, error) {
	var won bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		won, err = s.settle(ctx, tx, order, reference, paidAt)
		return err
	})
	if err != nil {
		return nil, err
	}

	reloaded, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
	}
	if reloaded == nil {
		reloaded = order
	}
	if !won {
		return newVerifyResult(OutcomeAlreadyPaid, messageAlreadyPaid, reloaded), nil
	}
	return newVerifyResult(OutcomeConfirmed, messageConfirmed, reloaded), nil
}

// fetchTransaction calls the gateway with a per-attempt timeout, retrying
// transport failures a bounded number of times.
func (s *service) fetchTransaction(ctx context.Context, reference string) (*gateway.Transaction, error) {
	backoff := retry.WithMaxRetries(s.verifyRetries, retry.NewConstant(s.retryBackoff))
	var txn *gateway.Transaction
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
		defer cancel()
		start := time.Now()
		got, err := s.gateway.Verify(attemptCtx, reference)
		s.metrics.ObserveGateway("verify", err, time.Since(start))
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				return err
			}
			return retry.RetryableError(err)
		}
		txn = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func gatewayReference(order *models.Order, fallback string) string {
	if order.PaymentReference != nil && *order.PaymentReference != "" && !strings.HasPrefix(*order.PaymentReference, devReferencePrefix) {
		return *order.PaymentReference
	}
	if orders.IsOrderNumber(fallback) {
		return fallback
	}
	return order.OrderNumber
}
