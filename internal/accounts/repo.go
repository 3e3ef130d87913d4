package accounts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maxmove/maxmove-backend/pkg/db/models"
)

// Repository manages persistence for payment accounts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, account *models.PaymentAccount) error
	Update(ctx context.Context, account *models.PaymentAccount) error
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.PaymentAccount, error)
	FindByConnectAccountID(ctx context.Context, connectAccountID string) (*models.PaymentAccount, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment account repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, account *models.PaymentAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) Update(ctx context.Context, account *models.PaymentAccount) error {
	return r.db.WithContext(ctx).Save(account).Error
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.PaymentAccount, error) {
	var account models.PaymentAccount
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindByConnectAccountID(ctx context.Context, connectAccountID string) (*models.PaymentAccount, error) {
	if connectAccountID == "" {
		return nil, nil
	}
	var account models.PaymentAccount
	if err := r.db.WithContext(ctx).
		Where("stripe_connect_account_id = ?", connectAccountID).
		First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}
