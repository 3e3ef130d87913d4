package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/maxmove/maxmove-backend/pkg/enums"
)

// Order is owned by the delivery subsystem. The payments core reads it at
// charge time and updates payment_status when the outcome is reconciled.
type Order struct {
	ID            uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID    uuid.UUID                `gorm:"column:customer_id;type:uuid;not null;index"`
	DriverID      uuid.UUID                `gorm:"column:driver_id;type:uuid;not null;index"`
	AmountCents   int64                    `gorm:"column:amount_cents;not null"`
	PaymentStatus enums.OrderPaymentStatus `gorm:"column:payment_status;type:order_payment_status;not null;default:'unpaid'"`
	DeliveredAt   *time.Time               `gorm:"column:delivered_at"`
	CreatedAt     time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
