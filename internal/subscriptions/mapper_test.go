package subscriptions

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/maxmove/maxmove-backend/pkg/db/models"
	"github.com/maxmove/maxmove-backend/pkg/enums"
)

func TestMapStripeStatus(t *testing.T) {
	cases := map[stripe.SubscriptionStatus]enums.SubscriptionStatus{
		stripe.SubscriptionStatusActive:            enums.SubscriptionStatusActive,
		stripe.SubscriptionStatusTrialing:          enums.SubscriptionStatusActive,
		stripe.SubscriptionStatusPastDue:           enums.SubscriptionStatusPastDue,
		stripe.SubscriptionStatusUnpaid:            enums.SubscriptionStatusPastDue,
		stripe.SubscriptionStatusCanceled:          enums.SubscriptionStatusCanceled,
		stripe.SubscriptionStatusIncompleteExpired: enums.SubscriptionStatusCanceled,
		stripe.SubscriptionStatusIncomplete:        enums.SubscriptionStatusIncomplete,
	}
	for raw, want := range cases {
		if got := mapStripeStatus(raw); got != want {
			t.Errorf("status %s: expected %s, got %s", raw, want, got)
		}
	}
}

func TestUpdateFromStripeImmediateCancelDropsPremium(t *testing.T) {
	target := &models.Subscription{
		DriverID:             uuid.New(),
		StripeSubscriptionID: "sub_1",
		Status:               enums.SubscriptionStatusActive,
		IsPremium:            true,
	}
	remote := &stripe.Subscription{
		ID:     "sub_1",
		Status: stripe.SubscriptionStatusCanceled,
	}

	if err := UpdateFromStripe(target, remote, nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	if target.IsPremium {
		t.Fatal("immediate cancellation must drop premium")
	}
	if target.Status != enums.SubscriptionStatusCanceled {
		t.Fatalf("expected canceled, got %s", target.Status)
	}
}

func TestUpdateFromStripeDeferredCancelDropsPremium(t *testing.T) {
	target := &models.Subscription{
		DriverID:             uuid.New(),
		StripeSubscriptionID: "sub_1",
		Status:               enums.SubscriptionStatusActive,
		IsPremium:            true,
	}
	// The deleted payload at period end keeps cancel_at_period_end set.
	remote := &stripe.Subscription{
		ID:                "sub_1",
		Status:            stripe.SubscriptionStatusCanceled,
		CancelAtPeriodEnd: true,
	}

	if err := UpdateFromStripe(target, remote, nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	if target.IsPremium {
		t.Fatal("period-end cancellation must drop premium")
	}
}

func TestDriverIDFromMetadata(t *testing.T) {
	driverID := uuid.New()

	got, err := DriverIDFromMetadata(map[string]string{"driver_id": driverID.String()})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != driverID {
		t.Fatalf("expected %s, got %s", driverID, got)
	}

	if _, err := DriverIDFromMetadata(nil); err == nil {
		t.Fatal("expected error on nil metadata")
	}
	if _, err := DriverIDFromMetadata(map[string]string{"driver_id": "not-a-uuid"}); err == nil {
		t.Fatal("expected error on malformed id")
	}
}
