package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/maxmove/maxmove-backend/pkg/enums"
)

// Transaction is one ledger row per payment attempt. Amounts and the fee
// breakdown are immutable once written; corrections require a new row. Only
// the webhook reconciler (card) and the fee settlement handler (cash) mutate
// status fields.
type Transaction struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID               uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	CustomerID            uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	DriverID              uuid.UUID           `gorm:"column:driver_id;type:uuid;not null;index"`
	AmountCents           int64               `gorm:"column:amount_cents;not null"`
	PlatformFeeCents      int64               `gorm:"column:platform_fee_cents;not null"`
	DriverFeeCents        int64               `gorm:"column:driver_fee_cents;not null"`
	TipCents              int64               `gorm:"column:tip_cents;not null;default:0"`
	PaymentMethod         enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	PaymentStatus         enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	IsCash                bool                `gorm:"column:is_cash;not null;default:false"`
	CashFeePaid           bool                `gorm:"column:cash_fee_paid;not null;default:false"`
	StripePaymentIntentID *string             `gorm:"column:stripe_payment_intent_id;unique"`
	Metadata              json.RawMessage     `gorm:"column:metadata;type:jsonb"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// FeeOwedCents is the platform plus driver fee a cash delivery still owes.
func (t *Transaction) FeeOwedCents() int64 {
	return t.PlatformFeeCents + t.DriverFeeCents
}
