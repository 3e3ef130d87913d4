package fees

import (
	"testing"

	"github.com/maxmove/maxmove-backend/pkg/config"
	pkgerrors "github.com/maxmove/maxmove-backend/pkg/errors"
)

func testPolicy(t *testing.T) *Policy {
	t.Helper()
	policy, err := NewPolicy(config.PaymentsConfig{
		PlatformFeeCents:     100,
		StandardDriverFeePct: 15,
		PremiumDriverFeePct:  5,
	})
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	return policy
}

func TestComputeStandardDriver(t *testing.T) {
	policy := testPolicy(t)

	got, err := policy.Compute(1000, false, 200)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if got.PlatformFeeCents != 100 {
		t.Fatalf("expected flat platform fee 100, got %d", got.PlatformFeeCents)
	}
	if got.DriverFeeCents != 150 {
		t.Fatalf("expected 15%% driver fee 150, got %d", got.DriverFeeCents)
	}
	if got.DriverFeePercent != 15 {
		t.Fatalf("expected percent 15, got %d", got.DriverFeePercent)
	}
	if got.TotalChargeCents != 1300 {
		t.Fatalf("expected total 1000+100+200=1300, got %d", got.TotalChargeCents)
	}
	if got.ApplicationFeeCents() != 250 {
		t.Fatalf("expected application fee 250, got %d", got.ApplicationFeeCents())
	}
}

func TestComputePremiumDriver(t *testing.T) {
	policy := testPolicy(t)

	got, err := policy.Compute(1000, true, 0)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if got.DriverFeeCents != 50 {
		t.Fatalf("expected 5%% driver fee 50, got %d", got.DriverFeeCents)
	}
	if got.TotalChargeCents != 1100 {
		t.Fatalf("expected total 1100, got %d", got.TotalChargeCents)
	}
}

func TestComputeZeroAmount(t *testing.T) {
	policy := testPolicy(t)

	got, err := policy.Compute(0, false, 0)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if got.DriverFeeCents != 0 {
		t.Fatalf("expected zero driver fee, got %d", got.DriverFeeCents)
	}
	if got.PlatformFeeCents != 100 {
		t.Fatalf("expected flat platform fee 100, got %d", got.PlatformFeeCents)
	}
	if got.TotalChargeCents != 100 {
		t.Fatalf("expected total 100, got %d", got.TotalChargeCents)
	}
}

func TestComputeRoundsHalfUp(t *testing.T) {
	policy := testPolicy(t)

	cases := []struct {
		name    string
		amount  int64
		premium bool
		want    int64
	}{
		{name: "exact half rounds up", amount: 10, premium: false, want: 2},     // 1.5
		{name: "below half rounds down", amount: 999, premium: true, want: 50},  // 49.95
		{name: "above half rounds up", amount: 333, premium: true, want: 17},    // 16.65
		{name: "standard fraction", amount: 333, premium: false, want: 50},      // 49.95
		{name: "premium half", amount: 30, premium: true, want: 2},              // 1.5
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := policy.Compute(tc.amount, tc.premium, 0)
			if err != nil {
				t.Fatalf("compute: %v", err)
			}
			if got.DriverFeeCents != tc.want {
				t.Fatalf("amount %d premium=%v: expected driver fee %d, got %d",
					tc.amount, tc.premium, tc.want, got.DriverFeeCents)
			}
		})
	}
}

func TestComputeRejectsInvalidInput(t *testing.T) {
	policy := testPolicy(t)

	_, err := policy.Compute(-500, false, 0)
	if err == nil {
		t.Fatal("expected error for negative amount")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := policy.Compute(1000, false, -1); err == nil {
		t.Fatal("expected error for negative tip")
	}
}

func TestNewPolicyValidatesConfig(t *testing.T) {
	_, err := NewPolicy(config.PaymentsConfig{PlatformFeeCents: -1})
	if err == nil {
		t.Fatal("expected error for negative platform fee")
	}
	_, err = NewPolicy(config.PaymentsConfig{StandardDriverFeePct: 101})
	if err == nil {
		t.Fatal("expected error for percent over 100")
	}
}
