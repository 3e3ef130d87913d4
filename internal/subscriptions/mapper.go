package subscriptions

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/maxmove/maxmove-backend/pkg/db/models"
	"github.com/maxmove/maxmove-backend/pkg/enums"
	pkgerrors "github.com/maxmove/maxmove-backend/pkg/errors"
)

// BuildFromStripe maps a Stripe subscription into the canonical model.
func BuildFromStripe(stripeSub *stripe.Subscription, driverID uuid.UUID, priceID string, isPremium bool) (*models.Subscription, error) {
	if stripeSub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}

	metadata, err := marshalMetadata(stripeSub.Metadata)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal metadata")
	}

	startTS, endTS := periodFromItems(stripeSub)
	var price *string
	if strings.TrimSpace(priceID) != "" {
		price = &priceID
	}

	return &models.Subscription{
		DriverID:             driverID,
		StripeSubscriptionID: stripeSub.ID,
		IsPremium:            isPremium,
		Status:               mapStripeStatus(stripeSub.Status),
		PriceID:              price,
		CurrentPeriodStart:   toTimePtr(startTS),
		CurrentPeriodEnd:     toTime(endTS),
		CancelAtPeriodEnd:    stripeSub.CancelAtPeriodEnd,
		CanceledAt:           toTimePtr(stripeSub.CanceledAt),
		Metadata:             metadata,
	}, nil
}

// UpdateFromStripe mutates the stored subscription with fresh Stripe data.
// Amount-bearing identity fields (driver, premium flag) stay untouched except
// that a remotely canceled subscription drops the premium flag.
func UpdateFromStripe(target *models.Subscription, stripeSub *stripe.Subscription, priceID *string) error {
	if target == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "target subscription is nil")
	}
	if stripeSub == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}

	metadata, err := marshalMetadata(stripeSub.Metadata)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal metadata")
	}

	target.StripeSubscriptionID = stripeSub.ID
	target.Status = mapStripeStatus(stripeSub.Status)
	if priceID != nil {
		target.PriceID = priceID
	}
	startTS, endTS := periodFromItems(stripeSub)
	target.CurrentPeriodStart = toTimePtr(startTS)
	target.CurrentPeriodEnd = toTime(endTS)
	target.CancelAtPeriodEnd = stripeSub.CancelAtPeriodEnd
	target.CanceledAt = toTimePtr(stripeSub.CanceledAt)
	target.Metadata = metadata
	// The final deleted payload of a deferred cancellation still carries
	// cancel_at_period_end=true, so any canceled status drops premium.
	if target.Status == enums.SubscriptionStatusCanceled {
		target.IsPremium = false
	}
	return nil
}

// DriverIDFromMetadata extracts the driver ID attached when the subscription was created.
func DriverIDFromMetadata(metadata map[string]string) (uuid.UUID, error) {
	if metadata == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription metadata is required")
	}
	raw, ok := metadata["driver_id"]
	if !ok || strings.TrimSpace(raw) == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "driver_id missing from metadata")
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid driver_id metadata")
	}
	return id, nil
}

// PriceIDFromItems pulls the price attached to the first subscription item.
func PriceIDFromItems(stripeSub *stripe.Subscription) string {
	if stripeSub == nil || stripeSub.Items == nil || len(stripeSub.Items.Data) == 0 {
		return ""
	}
	if stripeSub.Items.Data[0].Price != nil {
		return stripeSub.Items.Data[0].Price.ID
	}
	return ""
}

func marshalMetadata(meta map[string]string) (json.RawMessage, error) {
	if len(meta) == 0 {
		return json.RawMessage("{}"), nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func toTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

func toTimePtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

// periodFromItems reads the billing period off the first subscription item,
// where newer Stripe API versions report it.
func periodFromItems(stripeSub *stripe.Subscription) (int64, int64) {
	if stripeSub == nil || stripeSub.Items == nil || len(stripeSub.Items.Data) == 0 {
		return 0, 0
	}
	item := stripeSub.Items.Data[0]
	return item.CurrentPeriodStart, item.CurrentPeriodEnd
}

func mapStripeStatus(status stripe.SubscriptionStatus) enums.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return enums.SubscriptionStatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusPaused:
		return enums.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return enums.SubscriptionStatusCanceled
	case stripe.SubscriptionStatusIncomplete:
		return enums.SubscriptionStatusIncomplete
	default:
		return enums.SubscriptionStatusIncomplete
	}
}
