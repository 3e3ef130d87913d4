package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maxmove/maxmove-backend/internal/fees"
	"github.com/maxmove/maxmove-backend/pkg/db/models"
	"github.com/maxmove/maxmove-backend/pkg/enums"
	pkgerrors "github.com/maxmove/maxmove-backend/pkg/errors"
)

type stubLedgerRepo struct {
	byID    map[uuid.UUID]*models.Transaction
	creates int
	updates int
	findErr error
}

func newStubLedgerRepo() *stubLedgerRepo {
	return &stubLedgerRepo{byID: map[uuid.UUID]*models.Transaction{}}
}

func (s *stubLedgerRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubLedgerRepo) Create(ctx context.Context, txn *models.Transaction) error {
	s.creates++
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	s.byID[txn.ID] = txn
	return nil
}

func (s *stubLedgerRepo) Update(ctx context.Context, txn *models.Transaction) error {
	s.updates++
	s.byID[txn.ID] = txn
	return nil
}

func (s *stubLedgerRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.byID[id], nil
}

func (s *stubLedgerRepo) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Transaction, error) {
	for _, txn := range s.byID {
		if txn.StripePaymentIntentID != nil && *txn.StripePaymentIntentID == paymentIntentID {
			return txn, nil
		}
	}
	return nil, nil
}

func (s *stubLedgerRepo) FindPendingCardByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Transaction, error) {
	for _, txn := range s.byID {
		if txn.OrderID == orderID && txn.PaymentMethod == enums.PaymentMethodCard && txn.PaymentStatus == enums.PaymentStatusPending {
			return txn, nil
		}
	}
	return nil, nil
}

func (s *stubLedgerRepo) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, txn := range s.byID {
		if txn.OrderID == orderID {
			out = append(out, *txn)
		}
	}
	return out, nil
}

func (s *stubLedgerRepo) ListOutstandingCashFees(ctx context.Context, driverID uuid.UUID) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, txn := range s.byID {
		if txn.DriverID == driverID && txn.IsCash && !txn.CashFeePaid && txn.PaymentStatus == enums.PaymentStatusCompleted {
			out = append(out, *txn)
		}
	}
	return out, nil
}

func standardBreakdown() fees.Breakdown {
	return fees.Breakdown{
		AmountCents:      1000,
		PlatformFeeCents: 100,
		DriverFeeCents:   150,
		DriverFeePercent: 15,
		TipCents:         200,
		TotalChargeCents: 1300,
	}
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRecordCardAttempt(t *testing.T) {
	repo := newStubLedgerRepo()
	svc := newTestService(t, repo)

	txn, err := svc.RecordCardAttempt(context.Background(), CardAttemptInput{
		OrderID:         uuid.New(),
		CustomerID:      uuid.New(),
		DriverID:        uuid.New(),
		Breakdown:       standardBreakdown(),
		PaymentIntentID: "pi_123",
	})
	if err != nil {
		t.Fatalf("RecordCardAttempt: %v", err)
	}
	if txn.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("status = %s, want pending", txn.PaymentStatus)
	}
	if txn.PaymentMethod != enums.PaymentMethodCard {
		t.Fatalf("method = %s, want card", txn.PaymentMethod)
	}
	if txn.StripePaymentIntentID == nil || *txn.StripePaymentIntentID != "pi_123" {
		t.Fatal("payment intent id not persisted")
	}
	if txn.AmountCents != 1000 || txn.PlatformFeeCents != 100 || txn.DriverFeeCents != 150 || txn.TipCents != 200 {
		t.Fatalf("breakdown not copied: %+v", txn)
	}
	if repo.creates != 1 {
		t.Fatalf("creates = %d, want 1", repo.creates)
	}
}

func TestRecordCardAttemptRejectsSecondPending(t *testing.T) {
	repo := newStubLedgerRepo()
	svc := newTestService(t, repo)

	input := CardAttemptInput{
		OrderID:         uuid.New(),
		CustomerID:      uuid.New(),
		DriverID:        uuid.New(),
		Breakdown:       standardBreakdown(),
		PaymentIntentID: "pi_first",
	}
	if _, err := svc.RecordCardAttempt(context.Background(), input); err != nil {
		t.Fatalf("first attempt: %v", err)
	}

	input.PaymentIntentID = "pi_second"
	_, err := svc.RecordCardAttempt(context.Background(), input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodePrecondition {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if repo.creates != 1 {
		t.Fatalf("creates = %d, want 1", repo.creates)
	}
}

func TestRecordCardAttemptAllowsRetryAfterFailure(t *testing.T) {
	repo := newStubLedgerRepo()
	svc := newTestService(t, repo)

	orderID := uuid.New()
	input := CardAttemptInput{
		OrderID:         orderID,
		CustomerID:      uuid.New(),
		DriverID:        uuid.New(),
		Breakdown:       standardBreakdown(),
		PaymentIntentID: "pi_first",
	}
	first, err := svc.RecordCardAttempt(context.Background(), input)
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if _, err := ApplyOutcome(first, enums.PaymentStatusFailed); err != nil {
		t.Fatalf("ApplyOutcome: %v", err)
	}

	input.PaymentIntentID = "pi_retry"
	if _, err := svc.RecordCardAttempt(context.Background(), input); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if repo.creates != 2 {
		t.Fatalf("creates = %d, want 2", repo.creates)
	}
}

func TestRecordCardAttemptValidation(t *testing.T) {
	svc := newTestService(t, newStubLedgerRepo())

	_, err := svc.RecordCardAttempt(context.Background(), CardAttemptInput{
		OrderID:    uuid.New(),
		CustomerID: uuid.New(),
		DriverID:   uuid.New(),
		Breakdown:  standardBreakdown(),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing intent id, got %v", err)
	}

	_, err = svc.RecordCardAttempt(context.Background(), CardAttemptInput{
		CustomerID:      uuid.New(),
		DriverID:        uuid.New(),
		Breakdown:       standardBreakdown(),
		PaymentIntentID: "pi_123",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing order id, got %v", err)
	}
}

func TestRecordCashPayment(t *testing.T) {
	repo := newStubLedgerRepo()
	svc := newTestService(t, repo)

	txn, err := svc.RecordCashPayment(context.Background(), CashPaymentInput{
		OrderID:    uuid.New(),
		CustomerID: uuid.New(),
		DriverID:   uuid.New(),
		Breakdown:  standardBreakdown(),
	})
	if err != nil {
		t.Fatalf("RecordCashPayment: %v", err)
	}
	if txn.PaymentStatus != enums.PaymentStatusCompleted {
		t.Fatalf("status = %s, want completed", txn.PaymentStatus)
	}
	if !txn.IsCash || txn.CashFeePaid {
		t.Fatalf("cash flags wrong: is_cash=%v cash_fee_paid=%v", txn.IsCash, txn.CashFeePaid)
	}
	if txn.FeeOwedCents() != 250 {
		t.Fatalf("fee owed = %d, want 250", txn.FeeOwedCents())
	}
}

func TestApplyOutcome(t *testing.T) {
	txn := &models.Transaction{PaymentStatus: enums.PaymentStatusPending}

	changed, err := ApplyOutcome(txn, enums.PaymentStatusCompleted)
	if err != nil || !changed {
		t.Fatalf("pending -> completed: changed=%v err=%v", changed, err)
	}
	if txn.PaymentStatus != enums.PaymentStatusCompleted {
		t.Fatalf("status = %s, want completed", txn.PaymentStatus)
	}

	// Terminal rows never flip, whichever outcome arrives late.
	changed, err = ApplyOutcome(txn, enums.PaymentStatusFailed)
	if err != nil || changed {
		t.Fatalf("completed -> failed should be a no-op: changed=%v err=%v", changed, err)
	}
	if txn.PaymentStatus != enums.PaymentStatusCompleted {
		t.Fatalf("status = %s, want completed after replay", txn.PaymentStatus)
	}

	if _, err := ApplyOutcome(txn, enums.PaymentStatusPending); err == nil {
		t.Fatal("expected error for non-terminal target")
	}
	if _, err := ApplyOutcome(nil, enums.PaymentStatusCompleted); err == nil {
		t.Fatal("expected error for nil transaction")
	}
}

func TestMarkCashFeePaid(t *testing.T) {
	repo := newStubLedgerRepo()
	svc := newTestService(t, repo)

	txn, err := svc.RecordCashPayment(context.Background(), CashPaymentInput{
		OrderID:    uuid.New(),
		CustomerID: uuid.New(),
		DriverID:   uuid.New(),
		Breakdown:  standardBreakdown(),
	})
	if err != nil {
		t.Fatalf("RecordCashPayment: %v", err)
	}

	updated, err := svc.MarkCashFeePaid(context.Background(), txn.ID)
	if err != nil {
		t.Fatalf("MarkCashFeePaid: %v", err)
	}
	if !updated.CashFeePaid {
		t.Fatal("cash fee not marked paid")
	}
	if repo.updates != 1 {
		t.Fatalf("updates = %d, want 1", repo.updates)
	}

	// Replayed settlement notifications do not write again.
	if _, err := svc.MarkCashFeePaid(context.Background(), txn.ID); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if repo.updates != 1 {
		t.Fatalf("updates = %d after replay, want 1", repo.updates)
	}
}

func TestMarkCashFeePaidGuards(t *testing.T) {
	repo := newStubLedgerRepo()
	svc := newTestService(t, repo)

	_, err := svc.MarkCashFeePaid(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	card, err := svc.RecordCardAttempt(context.Background(), CardAttemptInput{
		OrderID:         uuid.New(),
		CustomerID:      uuid.New(),
		DriverID:        uuid.New(),
		Breakdown:       standardBreakdown(),
		PaymentIntentID: "pi_card",
	})
	if err != nil {
		t.Fatalf("RecordCardAttempt: %v", err)
	}
	_, err = svc.MarkCashFeePaid(context.Background(), card.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodePrecondition {
		t.Fatalf("expected precondition for card transaction, got %v", err)
	}
}

func TestOutstandingCashFeeBalance(t *testing.T) {
	repo := newStubLedgerRepo()
	svc := newTestService(t, repo)
	driverID := uuid.New()

	for i := 0; i < 2; i++ {
		if _, err := svc.RecordCashPayment(context.Background(), CashPaymentInput{
			OrderID:    uuid.New(),
			CustomerID: uuid.New(),
			DriverID:   driverID,
			Breakdown:  standardBreakdown(),
		}); err != nil {
			t.Fatalf("RecordCashPayment: %v", err)
		}
	}
	settled, err := svc.RecordCashPayment(context.Background(), CashPaymentInput{
		OrderID:    uuid.New(),
		CustomerID: uuid.New(),
		DriverID:   driverID,
		Breakdown:  standardBreakdown(),
	})
	if err != nil {
		t.Fatalf("RecordCashPayment: %v", err)
	}
	if _, err := svc.MarkCashFeePaid(context.Background(), settled.ID); err != nil {
		t.Fatalf("MarkCashFeePaid: %v", err)
	}

	txns, err := svc.ListOutstandingCashFees(context.Background(), driverID)
	if err != nil {
		t.Fatalf("ListOutstandingCashFees: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("outstanding = %d, want 2", len(txns))
	}

	balance, err := svc.OutstandingCashFeeBalance(context.Background(), driverID)
	if err != nil {
		t.Fatalf("OutstandingCashFeeBalance: %v", err)
	}
	if balance != 500 {
		t.Fatalf("balance = %d, want 500", balance)
	}
}
