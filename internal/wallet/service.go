package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/pkg/db"
	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/enums"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
	"github.com/naijamart/storefront-backend/pkg/logger"
	"github.com/naijamart/storefront-backend/pkg/pagination"
)

// ErrInsufficientBalance is returned when a debit would take the balance
// below zero. Nothing is written in that case.
var ErrInsufficientBalance = pkgerrors.New(pkgerrors.CodeBusinessRule, "insufficient wallet balance")

// Service is the wallet ledger. Every balance change appends exactly one
// transaction row in the same database transaction.
type Service interface {
	Debit(ctx context.Context, tx *gorm.DB, input DebitInput) (*models.WalletTransaction, error)
	Credit(ctx context.Context, tx *gorm.DB, input CreditInput) (*models.WalletTransaction, error)
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	Transactions(ctx context.Context, userID uuid.UUID, params pagination.Params) (*pagination.Page[models.WalletTransaction], error)
	Reconcile(ctx context.Context, userID uuid.UUID) (*Reconciliation, error)
	Audit(ctx context.Context, limit int) ([]Reconciliation, error)
}

type DebitInput struct {
	UserID      uuid.UUID
	Amount      int64
	Reference   string
	OrderID     *uuid.UUID
	Description string
}

type CreditInput struct {
	UserID      uuid.UUID
	Amount      int64
	Reference   string
	OrderID     *uuid.UUID
	Description string
}

// Reconciliation compares the stored balance with the sum of ledger rows.
type Reconciliation struct {
	UserID    uuid.UUID `json:"userId"`
	Balance   int64     `json:"balance"`
	LedgerSum int64     `json:"ledgerSum"`
	Drift     int64     `json:"drift"`
}

type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

type service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: params.Repo, logg: params.Logger}, nil
}

func (s *service) Debit(ctx context.Context, tx *gorm.DB, input DebitInput) (*models.WalletTransaction, error) {
	if err := validateMovement(input.UserID, input.Amount); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)

	ok, err := repo.DebitIfSufficient(ctx, input.UserID, input.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "debit wallet")
	}
	if !ok {
		if _, found, lookupErr := repo.Balance(ctx, input.UserID); lookupErr == nil && !found {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, ErrInsufficientBalance
	}

	return s.append(ctx, repo, &models.WalletTransaction{
		UserID:      input.UserID,
		Type:        enums.WalletTxnDebit,
		Amount:      -input.Amount,
		Reference:   referenceOr(input.Reference, "WDR"),
		OrderID:     input.OrderID,
		Description: input.Description,
	})
}

func (s *service) Credit(ctx context.Context, tx *gorm.DB, input CreditInput) (*models.WalletTransaction, error) {
	if err := validateMovement(input.UserID, input.Amount); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)

	ok, err := repo.AddBalance(ctx, input.UserID, input.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "credit wallet")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	return s.append(ctx, repo, &models.WalletTransaction{
		UserID:      input.UserID,
		Type:        enums.WalletTxnCredit,
		Amount:      input.Amount,
		Reference:   referenceOr(input.Reference, "WCR"),
		OrderID:     input.OrderID,
		Description: input.Description,
	})
}

func (s *service) append(ctx context.Context, repo Repository, txn *models.WalletTransaction) (*models.WalletTransaction, error) {
	balance, _, err := repo.Balance(ctx, txn.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read wallet balance")
	}
	txn.BalanceAfter = balance
	if err := repo.InsertTransaction(ctx, txn); err != nil {
		if db.IsUniqueViolation(err, "uq_wallet_transactions_reference") || db.IsUniqueViolation(err, "wallet_transactions.reference") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "wallet reference already used")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record wallet transaction")
	}
	return txn, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	balance, found, err := s.repo.Balance(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read wallet balance")
	}
	if !found {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return balance, nil
}

func (s *service) Transactions(ctx context.Context, userID uuid.UUID, params pagination.Params) (*pagination.Page[models.WalletTransaction], error) {
	query := listParams{UserID: userID, Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}
	rows, next, err := s.repo.ListTransactions(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list wallet transactions")
	}
	page := pagination.NewPage(rows, next)
	return &page, nil
}

func (s *service) Reconcile(ctx context.Context, userID uuid.UUID) (*Reconciliation, error) {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum, err := s.repo.SumTransactions(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum wallet transactions")
	}
	return &Reconciliation{UserID: userID, Balance: balance, LedgerSum: sum, Drift: balance - sum}, nil
}

// Audit lists users whose balance no longer matches their ledger.
func (s *service) Audit(ctx context.Context, limit int) ([]Reconciliation, error) {
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	rows, err := s.repo.ListDrift(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "audit wallets")
	}
	for _, row := range rows {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id":    row.UserID.String(),
			"balance":    row.Balance,
			"ledger_sum": row.LedgerSum,
			"drift":      row.Drift,
		})
		s.logg.Warn(logCtx, "wallet balance drifted from ledger")
	}
	return rows, nil
}

func validateMovement(userID uuid.UUID, amount int64) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	return nil
}

func referenceOr(ref, prefix string) string {
	ref = strings.TrimSpace(ref)
	if ref != "" {
		return ref
	}
	return prefix + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
