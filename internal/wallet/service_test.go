package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/pkg/db/dbtest"
	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/enums"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
	"github.com/naijamart/storefront-backend/pkg/logger"
	"github.com/naijamart/storefront-backend/pkg/pagination"
)

func setup(t *testing.T) (*gorm.DB, Service) {
	t.Helper()
	db := dbtest.Open(t)
	svc, err := NewService(ServiceParams{Repo: NewRepository(db), Logger: logger.Nop()})
	require.NoError(t, err)
	return db, svc
}

func seedUser(t *testing.T, db *gorm.DB, svc Service, balance int64) models.User {
	t.Helper()
	user := models.User{Email: uuid.NewString() + "@example.com", FirstName: "Ada", LastName: "Obi"}
	require.NoError(t, db.Create(&user).Error)
	if balance > 0 {
		_, err := svc.Credit(context.Background(), nil, CreditInput{UserID: user.ID, Amount: balance, Description: "top up"})
		require.NoError(t, err)
	}
	return user
}

func TestDebitExactBalanceSucceeds(t *testing.T) {
	db, svc := setup(t)
	user := seedUser(t, db, svc, 10000)

	txn, err := svc.Debit(context.Background(), nil, DebitInput{UserID: user.ID, Amount: 10000, Reference: "WAL-ORD-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(-10000), txn.Amount)
	assert.Equal(t, int64(0), txn.BalanceAfter)
	assert.Equal(t, enums.WalletTxnDebit, txn.Type)

	balance, err := svc.Balance(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestDebitOverBalanceWritesNothing(t *testing.T) {
	db, svc := setup(t)
	user := seedUser(t, db, svc, 10000)

	_, err := svc.Debit(context.Background(), nil, DebitInput{UserID: user.ID, Amount: 10001, Reference: "WAL-ORD-2"})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBusinessRule))

	balance, err := svc.Balance(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), balance)

	var count int64
	require.NoError(t, db.Model(&models.WalletTransaction{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDebitUnknownUser(t *testing.T) {
	_, svc := setup(t)
	_, err := svc.Debit(context.Background(), nil, DebitInput{UserID: uuid.New(), Amount: 5})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestBalanceMatchesLedgerAfterMovements(t *testing.T) {
	db, svc := setup(t)
	user := seedUser(t, db, svc, 5000)
	ctx := context.Background()

	_, err := svc.Debit(ctx, nil, DebitInput{UserID: user.ID, Amount: 1200})
	require.NoError(t, err)
	_, err = svc.Credit(ctx, nil, CreditInput{UserID: user.ID, Amount: 300, Description: "refund"})
	require.NoError(t, err)
	_, err = svc.Debit(ctx, nil, DebitInput{UserID: user.ID, Amount: 4100})
	require.NoError(t, err)

	rec, err := svc.Reconcile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.Balance)
	assert.Equal(t, rec.Balance, rec.LedgerSum)
	assert.Zero(t, rec.Drift)
}

func TestDuplicateReferenceIsConflict(t *testing.T) {
	db, svc := setup(t)
	user := seedUser(t, db, svc, 0)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Credit(ctx, tx, CreditInput{UserID: user.ID, Amount: 100, Reference: "PROMO-1"})
		return err
	})
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Credit(ctx, tx, CreditInput{UserID: user.ID, Amount: 100, Reference: "PROMO-1"})
		return err
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestAuditReportsDrift(t *testing.T) {
	db, svc := setup(t)
	healthy := seedUser(t, db, svc, 700)
	drifted := seedUser(t, db, svc, 700)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", drifted.ID).Update("wallet_balance", 900).Error)

	rows, err := svc.Audit(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, drifted.ID, rows[0].UserID)
	assert.Equal(t, int64(200), rows[0].Drift)
	assert.NotEqual(t, healthy.ID, rows[0].UserID)
}

func TestTransactionsPaginates(t *testing.T) {
	db, svc := setup(t)
	user := seedUser(t, db, svc, 0)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.Credit(ctx, nil, CreditInput{UserID: user.ID, Amount: 10})
		require.NoError(t, err)
	}

	page, err := svc.Transactions(ctx, user.ID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.NotEmpty(t, page.Cursor)

	_, err = svc.Transactions(ctx, user.ID, pagination.Params{Limit: 2, Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
