package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/maxmove/maxmove-backend/pkg/db/models"
	"github.com/maxmove/maxmove-backend/pkg/enums"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  driver_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  payment_status TEXT NOT NULL DEFAULT 'unpaid',
  delivered_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		DriverID:      uuid.New(),
		AmountCents:   1500,
		PaymentStatus: enums.OrderPaymentStatusUnpaid,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestOrdersRepositoryFindByID(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	seeded := seedOrder(t, db)

	found, err := repo.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, seeded.CustomerID, found.CustomerID)
	assert.Equal(t, int64(1500), found.AmountCents)

	missing, err := repo.FindByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrdersRepositoryUpdatePaymentStatus(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	seeded := seedOrder(t, db)

	require.NoError(t, repo.UpdatePaymentStatus(context.Background(), seeded.ID, enums.OrderPaymentStatusPaid))

	found, err := repo.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, enums.OrderPaymentStatusPaid, found.PaymentStatus)
}
