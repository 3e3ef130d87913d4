package fees

import (
	"github.com/shopspring/decimal"

	"github.com/maxmove/maxmove-backend/pkg/config"
	pkgerrors "github.com/maxmove/maxmove-backend/pkg/errors"
)

// Policy computes the fee breakdown for a delivery charge. All amounts are
// integer minor units; the driver fee rounds half-up.
type Policy struct {
	platformFeeCents int64
	standardPct      int64
	premiumPct       int64
}

// Breakdown is the itemized result of a fee computation.
type Breakdown struct {
	AmountCents      int64 `json:"amount_cents"`
	PlatformFeeCents int64 `json:"platform_fee_cents"`
	DriverFeeCents   int64 `json:"driver_fee_cents"`
	DriverFeePercent int64 `json:"driver_fee_percent"`
	TipCents         int64 `json:"tip_cents"`
	TotalChargeCents int64 `json:"total_charge_cents"`
}

// NewPolicy builds a fee policy from configuration.
func NewPolicy(cfg config.PaymentsConfig) (*Policy, error) {
	if cfg.PlatformFeeCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "platform fee must be non-negative")
	}
	if cfg.StandardDriverFeePct < 0 || cfg.StandardDriverFeePct > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "standard driver fee percent out of range")
	}
	if cfg.PremiumDriverFeePct < 0 || cfg.PremiumDriverFeePct > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "premium driver fee percent out of range")
	}
	return &Policy{
		platformFeeCents: cfg.PlatformFeeCents,
		standardPct:      cfg.StandardDriverFeePct,
		premiumPct:       cfg.PremiumDriverFeePct,
	}, nil
}

// Compute derives the fee breakdown for a delivery amount. Premium drivers
// pay the reduced commission percentage.
func (p *Policy) Compute(amountCents int64, premiumDriver bool, tipCents int64) (Breakdown, error) {
	if amountCents < 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-negative")
	}
	if tipCents < 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "tip must be non-negative")
	}

	pct := p.standardPct
	if premiumDriver {
		pct = p.premiumPct
	}

	driverFee := decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromInt(pct)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()

	return Breakdown{
		AmountCents:      amountCents,
		PlatformFeeCents: p.platformFeeCents,
		DriverFeeCents:   driverFee,
		DriverFeePercent: pct,
		TipCents:         tipCents,
		TotalChargeCents: amountCents + p.platformFeeCents + tipCents,
	}, nil
}

// ApplicationFeeCents is the slice of a card charge the platform retains:
// the flat platform fee plus the driver commission.
func (b Breakdown) ApplicationFeeCents() int64 {
	return b.PlatformFeeCents + b.DriverFeeCents
}
