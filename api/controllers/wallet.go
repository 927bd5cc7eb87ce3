package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/api/responses"
	"github.com/naijamart/storefront-backend/api/validators"
	"github.com/naijamart/storefront-backend/internal/wallet"
	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

const walletName = "wallet service"

// WalletBalance returns the caller's current balance in Naira.
func WalletBalance(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return userHandler(svc != nil, walletName, logg, func(r *http.Request, userID uuid.UUID) (any, error) {
		balance, err := svc.Balance(r.Context(), userID)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"balance": balance}, nil
	})
}

// WalletTransactions lists the caller's ledger rows, newest first.
func WalletTransactions(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return userHandler(svc != nil, walletName, logg, func(r *http.Request, userID uuid.UUID) (any, error) {
		params, err := pageParams(r)
		if err != nil {
			return nil, err
		}
		return svc.Transactions(r.Context(), userID, params)
	})
}

type walletCreditRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Reference   string `json:"reference" validate:"omitempty,max=64"`
	Description string `json:"description" validate:"omitempty,max=255"`
}

// AdminWalletCredit tops up a customer's wallet. The balance change and its
// ledger row commit together.
func AdminWalletCredit(svc wallet.Service, tx txRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || tx == nil {
			serviceUnavailable(w, r, logg, walletName)
			return
		}
		actorID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		userID, err := validators.ParseUUIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req walletCreditRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		description := strings.TrimSpace(req.Description)
		if description == "" {
			description = "Admin credit"
		}

		var txn *models.WalletTransaction
		err = tx.WithTx(r.Context(), func(db *gorm.DB) error {
			created, err := svc.Credit(r.Context(), db, wallet.CreditInput{
				UserID:      userID,
				Amount:      req.Amount,
				Reference:   strings.TrimSpace(req.Reference),
				Description: description,
			})
			txn = created
			return err
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			logCtx := logg.WithFields(r.Context(), map[string]any{
				"actor_id":       actorID.String(),
				"target_user_id": userID.String(),
				"amount":         req.Amount,
			})
			logg.Info(logCtx, "admin wallet credit")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, txn)
	}
}
