package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naijamart/storefront-backend/pkg/db/dbtest"
	"github.com/naijamart/storefront-backend/pkg/db/models"
)

func TestItemsAndClearAreScopedToUser(t *testing.T) {
	db := dbtest.Open(t)
	repo, err := NewRepository(db)
	require.NoError(t, err)
	ctx := context.Background()

	owner, other := uuid.New(), uuid.New()
	for _, item := range []models.CartItem{
		{UserID: owner, ProductID: uuid.New(), Quantity: 1},
		{UserID: owner, ProductID: uuid.New(), Quantity: 2},
		{UserID: other, ProductID: uuid.New(), Quantity: 3},
	} {
		item := item
		require.NoError(t, db.Create(&item).Error)
	}

	items, err := repo.Items(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	removed, err := repo.Clear(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	items, err = repo.Items(ctx, other)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
