package enums

import "fmt"

// OrderPaymentStatus mirrors the single authoritative transaction outcome on the order row.
type OrderPaymentStatus string

const (
	OrderPaymentStatusUnpaid OrderPaymentStatus = "unpaid"
	OrderPaymentStatusPaid   OrderPaymentStatus = "paid"
	OrderPaymentStatusFailed OrderPaymentStatus = "payment_failed"
)

var validOrderPaymentStatuses = []OrderPaymentStatus{
	OrderPaymentStatusUnpaid,
	OrderPaymentStatusPaid,
	OrderPaymentStatusFailed,
}

// String implements fmt.Stringer.
func (o OrderPaymentStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is known.
func (o OrderPaymentStatus) IsValid() bool {
	for _, candidate := range validOrderPaymentStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderPaymentStatus converts raw input into an OrderPaymentStatus.
func ParseOrderPaymentStatus(value string) (OrderPaymentStatus, error) {
	for _, candidate := range validOrderPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order payment status %q", value)
}
