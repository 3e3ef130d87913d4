package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentAccount links a user to their processor-side objects: a customer for
// charges and, for drivers, a connected account for payouts. One row per user,
// created lazily on the first payment-related action.
type PaymentAccount struct {
	ID                          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                      uuid.UUID       `gorm:"column:user_id;type:uuid;not null;unique"`
	StripeCustomerID            *string         `gorm:"column:stripe_customer_id;unique"`
	StripeConnectAccountID      *string         `gorm:"column:stripe_connect_account_id;unique"`
	ConnectOnboardingCompleted  bool            `gorm:"column:connect_onboarding_completed;not null;default:false"`
	ConnectCapabilities         json.RawMessage `gorm:"column:connect_capabilities;type:jsonb"`
	CreatedAt                   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
