package ledger

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maxmove/maxmove-backend/internal/fees"
	"github.com/maxmove/maxmove-backend/pkg/db/models"
	"github.com/maxmove/maxmove-backend/pkg/enums"
	pkgerrors "github.com/maxmove/maxmove-backend/pkg/errors"
)

// Service records payment attempts and enforces the transaction state
// machine: amounts are immutable, pending transitions once to completed or
// failed, and the cash fee flag only moves from unpaid to paid.
type Service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository required")
	}
	return &Service{repo: repo}, nil
}

// Repo exposes the underlying repository for transactional composition.
func (s *Service) Repo() Repository {
	return s.repo
}

// WithTx returns a service bound to the given transaction so ledger writes
// can be paired with order updates atomically.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{repo: s.repo.WithTx(tx)}
}

// CardAttemptInput captures the immutable data a card payment attempt requires.
type CardAttemptInput struct {
	OrderID         uuid.UUID
	CustomerID      uuid.UUID
	DriverID        uuid.UUID
	Breakdown       fees.Breakdown
	PaymentIntentID string
	Metadata        json.RawMessage
}

// RecordCardAttempt writes the pending ledger row for a card payment intent.
// A second attempt while one is still pending is rejected.
func (s *Service) RecordCardAttempt(ctx context.Context, input CardAttemptInput) (*models.Transaction, error) {
	if input.OrderID == uuid.Nil || input.CustomerID == uuid.Nil || input.DriverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order, customer and driver ids are required")
	}
	if input.PaymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}

	pending, err := s.repo.FindPendingCardByOrderID(ctx, input.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending attempts")
	}
	if pending != nil {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "a pending card payment already exists for this order")
	}

	txn := &models.Transaction{
		OrderID:               input.OrderID,
		CustomerID:            input.CustomerID,
		DriverID:              input.DriverID,
		AmountCents:           input.Breakdown.AmountCents,
		PlatformFeeCents:      input.Breakdown.PlatformFeeCents,
		DriverFeeCents:        input.Breakdown.DriverFeeCents,
		TipCents:              input.Breakdown.TipCents,
		PaymentMethod:         enums.PaymentMethodCard,
		PaymentStatus:         enums.PaymentStatusPending,
		StripePaymentIntentID: &input.PaymentIntentID,
		Metadata:              input.Metadata,
	}
	if err := s.repo.Create(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist transaction")
	}
	return txn, nil
}

// CashPaymentInput captures the data for a completed cash delivery.
type CashPaymentInput struct {
	OrderID    uuid.UUID
	CustomerID uuid.UUID
	DriverID   uuid.UUID
	Breakdown  fees.Breakdown
	Metadata   json.RawMessage
}

// RecordCashPayment writes the completed cash ledger row. The fee portion
// remains owed until the driver settles it.
func (s *Service) RecordCashPayment(ctx context.Context, input CashPaymentInput) (*models.Transaction, error) {
	if input.OrderID == uuid.Nil || input.CustomerID == uuid.Nil || input.DriverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order, customer and driver ids are required")
	}

	txn := &models.Transaction{
		OrderID:          input.OrderID,
		CustomerID:       input.CustomerID,
		DriverID:         input.DriverID,
		AmountCents:      input.Breakdown.AmountCents,
		PlatformFeeCents: input.Breakdown.PlatformFeeCents,
		DriverFeeCents:   input.Breakdown.DriverFeeCents,
		TipCents:         input.Breakdown.TipCents,
		PaymentMethod:    enums.PaymentMethodCash,
		PaymentStatus:    enums.PaymentStatusCompleted,
		IsCash:           true,
		CashFeePaid:      false,
		Metadata:         input.Metadata,
	}
	if err := s.repo.Create(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist transaction")
	}
	return txn, nil
}

// ApplyOutcome transitions a transaction to the terminal target status.
// It reports whether the row changed; observing a terminal state already in
// place is a no-op so replayed or reordered webhooks cannot flip outcomes.
func ApplyOutcome(txn *models.Transaction, target enums.PaymentStatus) (bool, error) {
	if txn == nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "transaction is required")
	}
	if !target.IsTerminal() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "target status must be terminal")
	}
	if txn.PaymentStatus.IsTerminal() {
		return false, nil
	}
	txn.PaymentStatus = target
	return true, nil
}

// MarkCashFeePaid flips the cash fee flag for the transaction. Paid stays
// paid; repeated settlement notifications are no-ops.
func (s *Service) MarkCashFeePaid(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	txn, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	if txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	if !txn.IsCash {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "transaction is not a cash payment")
	}
	if txn.CashFeePaid {
		return txn, nil
	}
	txn.CashFeePaid = true
	if err := s.repo.Update(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cash fee flag")
	}
	return txn, nil
}

// FindPendingCardAttempt returns the open card attempt for the order, if any.
func (s *Service) FindPendingCardAttempt(ctx context.Context, orderID uuid.UUID) (*models.Transaction, error) {
	txn, err := s.repo.FindPendingCardByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending attempts")
	}
	return txn, nil
}

// FindByID loads a single transaction.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	txn, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	if txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	return txn, nil
}

// ListByOrderID returns all payment attempts recorded for an order.
func (s *Service) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Transaction, error) {
	txns, err := s.repo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	return txns, nil
}

// ListOutstandingCashFees returns the driver's completed cash transactions
// with unsettled fees.
func (s *Service) ListOutstandingCashFees(ctx context.Context, driverID uuid.UUID) ([]models.Transaction, error) {
	txns, err := s.repo.ListOutstandingCashFees(ctx, driverID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list outstanding cash fees")
	}
	return txns, nil
}

// OutstandingCashFeeBalance sums the fee portions the driver still owes.
func (s *Service) OutstandingCashFeeBalance(ctx context.Context, driverID uuid.UUID) (int64, error) {
	txns, err := s.ListOutstandingCashFees(ctx, driverID)
	if err != nil {
		return 0, err
	}
	var total int64
	for i := range txns {
		total += txns[i].FeeOwedCents()
	}
	return total, nil
}
