package ledger

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

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  driver_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  platform_fee_cents INTEGER NOT NULL,
  driver_fee_cents INTEGER NOT NULL,
  tip_cents INTEGER NOT NULL DEFAULT 0,
  payment_method TEXT NOT NULL,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  is_cash INTEGER NOT NULL DEFAULT 0,
  cash_fee_paid INTEGER NOT NULL DEFAULT 0,
  stripe_payment_intent_id TEXT UNIQUE,
  metadata TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedTransaction(t *testing.T, repo Repository, mutate func(*models.Transaction)) *models.Transaction {
	t.Helper()

	txn := &models.Transaction{
		ID:               uuid.New(),
		OrderID:          uuid.New(),
		CustomerID:       uuid.New(),
		DriverID:         uuid.New(),
		AmountCents:      1500,
		PlatformFeeCents: 100,
		DriverFeeCents:   225,
		PaymentMethod:    enums.PaymentMethodCard,
		PaymentStatus:    enums.PaymentStatusPending,
	}
	if mutate != nil {
		mutate(txn)
	}
	require.NoError(t, repo.Create(context.Background(), txn))
	return txn
}

func TestLedgerRepositoryFindByPaymentIntentID(t *testing.T) {
	repo := NewRepository(setupLedgerTestDB(t))
	intentID := "pi_" + uuid.NewString()
	seeded := seedTransaction(t, repo, func(txn *models.Transaction) {
		txn.StripePaymentIntentID = &intentID
	})

	found, err := repo.FindByPaymentIntentID(context.Background(), intentID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, seeded.ID, found.ID)
	assert.Equal(t, int64(1500), found.AmountCents)

	missing, err := repo.FindByPaymentIntentID(context.Background(), "pi_unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)

	blank, err := repo.FindByPaymentIntentID(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, blank)
}

func TestLedgerRepositoryFindPendingCardByOrderID(t *testing.T) {
	repo := NewRepository(setupLedgerTestDB(t))
	pending := seedTransaction(t, repo, nil)

	// A settled card row and a cash row on the same order must not match.
	seedTransaction(t, repo, func(txn *models.Transaction) {
		txn.OrderID = pending.OrderID
		txn.PaymentStatus = enums.PaymentStatusFailed
	})
	seedTransaction(t, repo, func(txn *models.Transaction) {
		txn.OrderID = pending.OrderID
		txn.PaymentMethod = enums.PaymentMethodCash
		txn.PaymentStatus = enums.PaymentStatusCompleted
		txn.IsCash = true
	})

	found, err := repo.FindPendingCardByOrderID(context.Background(), pending.OrderID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, pending.ID, found.ID)

	none, err := repo.FindPendingCardByOrderID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestLedgerRepositoryListOutstandingCashFees(t *testing.T) {
	repo := NewRepository(setupLedgerTestDB(t))
	driverID := uuid.New()

	owed := seedTransaction(t, repo, func(txn *models.Transaction) {
		txn.DriverID = driverID
		txn.PaymentMethod = enums.PaymentMethodCash
		txn.PaymentStatus = enums.PaymentStatusCompleted
		txn.IsCash = true
	})
	// Settled fee, other driver, and card rows are all excluded.
	seedTransaction(t, repo, func(txn *models.Transaction) {
		txn.DriverID = driverID
		txn.PaymentMethod = enums.PaymentMethodCash
		txn.PaymentStatus = enums.PaymentStatusCompleted
		txn.IsCash = true
		txn.CashFeePaid = true
	})
	seedTransaction(t, repo, func(txn *models.Transaction) {
		txn.PaymentMethod = enums.PaymentMethodCash
		txn.PaymentStatus = enums.PaymentStatusCompleted
		txn.IsCash = true
	})
	seedTransaction(t, repo, func(txn *models.Transaction) {
		txn.DriverID = driverID
		txn.PaymentStatus = enums.PaymentStatusCompleted
	})

	txns, err := repo.ListOutstandingCashFees(context.Background(), driverID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, owed.ID, txns[0].ID)
	assert.Equal(t, int64(325), txns[0].FeeOwedCents())
}

func TestLedgerRepositoryUpdatePersistsStatus(t *testing.T) {
	repo := NewRepository(setupLedgerTestDB(t))
	txn := seedTransaction(t, repo, nil)

	txn.PaymentStatus = enums.PaymentStatusCompleted
	require.NoError(t, repo.Update(context.Background(), txn))

	reloaded, err := repo.FindByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, enums.PaymentStatusCompleted, reloaded.PaymentStatus)
}

func TestLedgerRepositoryWithTxRollsBack(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)

	var seededID uuid.UUID
	err := db.Transaction(func(tx *gorm.DB) error {
		txn := seedTransaction(t, repo.WithTx(tx), nil)
		seededID = txn.ID
		return gorm.ErrInvalidTransaction
	})
	require.Error(t, err)

	found, err := repo.FindByID(context.Background(), seededID)
	require.NoError(t, err)
	assert.Nil(t, found)
}
