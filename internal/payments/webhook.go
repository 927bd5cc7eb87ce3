package payments

import (
	"context"

	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
	"github.com/naijamart/storefront-backend/pkg/gateway"
)

// HandleWebhook authenticates a gateway callback and reconciles the payment
// it announces. Deliveries are deduplicated by event id; the marker is
// dropped again when processing fails so the gateway's retry is not lost.
func (s *service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if s.webhookSecret == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signing secret not configured")
	}
	if !gateway.VerifySignature(s.webhookSecret, body, signature) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature")
	}
	event, err := gateway.ParseWebhook(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"webhook_event": event.Event, "reference": event.Data.Reference})
	if event.Event != gateway.EventChargeSuccess {
		s.logg.Info(ctx, "ignoring webhook event")
		return nil
	}
	if event.Data.Reference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook reference missing")
	}

	key := event.DedupKey()
	if s.guard != nil {
		seen, err := s.guard.CheckAndMarkProcessed(ctx, webhookConsumer, key)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "webhook dedup unavailable, processing anyway")
		} else if seen {
			s.logg.Info(ctx, "duplicate webhook delivery skipped")
			return nil
		}
	}

	result, err := s.Verify(ctx, event.Data.Reference)
	if err == nil && result.Outcome == OutcomeTransient {
		err = pkgerrors.New(pkgerrors.CodeDependency, result.Message)
	}
	if err != nil {
		if s.guard != nil {
			if delErr := s.guard.Delete(ctx, webhookConsumer, key); delErr != nil {
				s.logg.Error(ctx, "failed to clear webhook dedup marker", delErr)
			}
		}
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "outcome", result.Outcome), "webhook processed")
	return nil
}
