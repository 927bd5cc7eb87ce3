package wallet

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/pagination"
)

// Repository persists balances on users and the append-only transaction log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Balance(ctx context.Context, userID uuid.UUID) (int64, bool, error)
	DebitIfSufficient(ctx context.Context, userID uuid.UUID, amount int64) (bool, error)
	AddBalance(ctx context.Context, userID uuid.UUID, amount int64) (bool, error)
	InsertTransaction(ctx context.Context, txn *models.WalletTransaction) error
	ListTransactions(ctx context.Context, params listParams) ([]models.WalletTransaction, *pagination.Cursor, error)
	SumTransactions(ctx context.Context, userID uuid.UUID) (int64, error)
	ListDrift(ctx context.Context, limit int) ([]Reconciliation, error)
}

type listParams struct {
	UserID uuid.UUID
	Limit  int
	Cursor *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Balance(ctx context.Context, userID uuid.UUID) (int64, bool, error) {
	var balances []int64
	if err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Pluck("wallet_balance", &balances).Error; err != nil {
		return 0, false, err
	}
	if len(balances) == 0 {
		return 0, false, nil
	}
	return balances[0], true, nil
}

// DebitIfSufficient reports false when the balance could not cover amount.
func (r *repository) DebitIfSufficient(ctx context.Context, userID uuid.UUID, amount int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND wallet_balance >= ?", userID, amount).
		Update("wallet_balance", gorm.Expr("wallet_balance - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) AddBalance(ctx context.Context, userID uuid.UUID, amount int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("wallet_balance", gorm.Expr("wallet_balance + ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) InsertTransaction(ctx context.Context, txn *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, params listParams) ([]models.WalletTransaction, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.WalletTransaction{}).Where("user_id = ?", params.UserID)
	return pagination.Fetch(query, params.Limit, params.Cursor, func(t models.WalletTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
}

func (r *repository) SumTransactions(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", userID).
		Scan(&sum).Error
	return sum, err
}

// ListDrift returns users whose stored balance differs from their ledger sum.
func (r *repository) ListDrift(ctx context.Context, limit int) ([]Reconciliation, error) {
	var rows []Reconciliation
	err := r.db.WithContext(ctx).Raw(`
		SELECT u.id AS user_id,
		       u.wallet_balance AS balance,
		       COALESCE(SUM(t.amount), 0) AS ledger_sum
		FROM users u
		LEFT JOIN wallet_transactions t ON t.user_id = u.id
		GROUP BY u.id, u.wallet_balance
		HAVING u.wallet_balance <> COALESCE(SUM(t.amount), 0)
		LIMIT ?`, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Drift = rows[i].Balance - rows[i].LedgerSum
	}
	return rows, nil
}
