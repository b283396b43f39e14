package refunds

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	pgrepo "github.com/learnado/backend/internal/repo/postgres"
	authsvc "github.com/learnado/backend/internal/services/auth"
)

type stubTxRunner struct{}

func (stubTxRunner) WithinTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return fn(ctx, nil)
}

type memRefundStore struct {
	nextID  int64
	refunds map[int64]*pgrepo.RefundRecord
}

func newMemRefundStore() *memRefundStore {
	return &memRefundStore{nextID: 1, refunds: make(map[int64]*pgrepo.RefundRecord)}
}

func (s *memRefundStore) CreatePending(_ context.Context, purchaseID, userID, amountMinor int64, reason string) (pgrepo.RefundRecord, error) {
	for _, record := range s.refunds {
		if record.PurchaseID == purchaseID && record.Status == "pending" {
			return pgrepo.RefundRecord{}, pgrepo.ErrRefundAlreadyPending
		}
	}

	record := &pgrepo.RefundRecord{
		ID:          s.nextID,
		PurchaseID:  purchaseID,
		UserID:      userID,
		AmountMinor: amountMinor,
		Status:      "pending",
		Reason:      reason,
	}
	s.refunds[record.ID] = record
	s.nextID++
	return *record, nil
}

func (s *memRefundStore) FindByID(_ context.Context, refundID int64) (pgrepo.RefundRecord, error) {
	record, ok := s.refunds[refundID]
	if !ok {
		return pgrepo.RefundRecord{}, pgrepo.ErrRefundNotFound
	}
	return *record, nil
}

func (s *memRefundStore) MarkApproved(_ context.Context, _ pgx.Tx, refundID int64) (pgrepo.RefundRecord, bool, error) {
	record, ok := s.refunds[refundID]
	if !ok {
		return pgrepo.RefundRecord{}, false, pgrepo.ErrRefundNotFound
	}
	if record.Status != "pending" {
		return *record, false, nil
	}
	record.Status = "approved"
	return *record, true, nil
}

func (s *memRefundStore) MarkRejected(_ context.Context, refundID int64, rejectionReason string) (pgrepo.RefundRecord, bool, error) {
	record, ok := s.refunds[refundID]
	if !ok {
		return pgrepo.RefundRecord{}, false, pgrepo.ErrRefundNotFound
	}
	if record.Status != "pending" {
		return *record, false, nil
	}
	record.Status = "rejected"
	record.RejectionReason = &rejectionReason
	return *record, true, nil
}

type stubPurchaseFinder struct {
	record pgrepo.PurchaseRecord
	err    error
}

func (s *stubPurchaseFinder) FindByID(context.Context, int64) (pgrepo.PurchaseRecord, error) {
	if s.err != nil {
		return pgrepo.PurchaseRecord{}, s.err
	}
	return s.record, nil
}

type stubRefunder struct {
	refunded []int64
	err      error
}

func (s *stubRefunder) RefundInTx(_ context.Context, _ pgx.Tx, purchaseID int64) (pgrepo.PurchaseRecord, error) {
	if s.err != nil {
		return pgrepo.PurchaseRecord{}, s.err
	}
	s.refunded = append(s.refunded, purchaseID)
	return pgrepo.PurchaseRecord{ID: purchaseID, Status: "refunded"}, nil
}

func paidPurchase(id, userID, finalMinor int64) pgrepo.PurchaseRecord {
	return pgrepo.PurchaseRecord{
		ID:         id,
		UserID:     userID,
		FinalMinor: finalMinor,
		Status:     "paid",
	}
}

func TestRequestOpensPendingRefund(t *testing.T) {
	store := newMemRefundStore()
	svc := NewService(Dependencies{
		Txs:      stubTxRunner{},
		Refunds:  store,
		Finder:   &stubPurchaseFinder{record: paidPurchase(1, 10, 6400)},
		Refunder: &stubRefunder{},
	})

	record, err := svc.Request(context.Background(), owner(10), RequestInput{PurchaseID: 1, Reason: "content mismatch"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if record.Status != "pending" {
		t.Fatalf("status = %q, want pending", record.Status)
	}
	if record.AmountMinor != 6400 {
		t.Fatalf("amount = %d, want full 6400", record.AmountMinor)
	}
}

func TestRequestRejectsUnpaidPurchase(t *testing.T) {
	pending := paidPurchase(1, 10, 6400)
	pending.Status = "pending"

	svc := NewService(Dependencies{
		Txs:      stubTxRunner{},
		Refunds:  newMemRefundStore(),
		Finder:   &stubPurchaseFinder{record: pending},
		Refunder: &stubRefunder{},
	})

	_, err := svc.Request(context.Background(), owner(10), RequestInput{PurchaseID: 1})
	if !errors.Is(err, ErrPurchaseNotRefundable) {
		t.Fatalf("err = %v, want ErrPurchaseNotRefundable", err)
	}
}

func TestRequestRejectsOversizedAmount(t *testing.T) {
	svc := NewService(Dependencies{
		Txs:      stubTxRunner{},
		Refunds:  newMemRefundStore(),
		Finder:   &stubPurchaseFinder{record: paidPurchase(1, 10, 6400)},
		Refunder: &stubRefunder{},
	})

	_, err := svc.Request(context.Background(), owner(10), RequestInput{PurchaseID: 1, AmountMinor: 9000})
	if !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("err = %v, want ErrAmountTooLarge", err)
	}
}

func owner(userID int64) authsvc.Identity {
	return authsvc.Identity{UserID: userID, Role: authsvc.RoleStudent}
}

func TestRequestRejectsForeignPurchase(t *testing.T) {
	svc := NewService(Dependencies{
		Txs:      stubTxRunner{},
		Refunds:  newMemRefundStore(),
		Finder:   &stubPurchaseFinder{record: paidPurchase(1, 10, 6400)},
		Refunder: &stubRefunder{},
	})

	_, err := svc.Request(context.Background(), owner(11), RequestInput{PurchaseID: 1})
	if !errors.Is(err, ErrPurchaseNotFound) {
		t.Fatalf("err = %v, want ErrPurchaseNotFound", err)
	}
}

func TestRequestEnforcesSingleOpenRefund(t *testing.T) {
	store := newMemRefundStore()
	svc := NewService(Dependencies{
		Txs:      stubTxRunner{},
		Refunds:  store,
		Finder:   &stubPurchaseFinder{record: paidPurchase(1, 10, 6400)},
		Refunder: &stubRefunder{},
	})

	if _, err := svc.Request(context.Background(), owner(10), RequestInput{PurchaseID: 1}); err != nil {
		t.Fatalf("first Request: %v", err)
	}

	_, err := svc.Request(context.Background(), owner(10), RequestInput{PurchaseID: 1})
	if !errors.Is(err, ErrAlreadyPending) {
		t.Fatalf("err = %v, want ErrAlreadyPending", err)
	}
}

func TestApproveRefundsPurchase(t *testing.T) {
	store := newMemRefundStore()
	refunder := &stubRefunder{}
	svc := NewService(Dependencies{
		Txs:      stubTxRunner{},
		Refunds:  store,
		Finder:   &stubPurchaseFinder{record: paidPurchase(1, 10, 6400)},
		Refunder: refunder,
	})

	record, err := svc.Request(context.Background(), owner(10), RequestInput{PurchaseID: 1})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	decision, err := svc.Approve(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if decision.Status != "approved" || decision.AlreadyDecided {
		t.Fatalf("decision = %+v", decision)
	}
	if len(refunder.refunded) != 1 || refunder.refunded[0] != 1 {
		t.Fatalf("refunded purchases = %v, want purchase 1", refunder.refunded)
	}

	repeat, err := svc.Approve(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("repeated Approve: %v", err)
	}
	if !repeat.AlreadyDecided {
		t.Fatalf("repeated approval not reported as already decided")
	}
	if len(refunder.refunded) != 1 {
		t.Fatalf("purchase refunded %d times, want exactly once", len(refunder.refunded))
	}
}

func TestApproveFailsWhenPurchaseTransitionFails(t *testing.T) {
	store := newMemRefundStore()
	svc := NewService(Dependencies{
		Txs:      stubTxRunner{},
		Refunds:  store,
		Finder:   &stubPurchaseFinder{record: paidPurchase(1, 10, 6400)},
		Refunder: &stubRefunder{err: errors.New("purchase already refunded")},
	})

	record, err := svc.Request(context.Background(), owner(10), RequestInput{PurchaseID: 1})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	if _, err := svc.Approve(context.Background(), record.ID); err == nil {
		t.Fatalf("Approve succeeded despite purchase transition failure")
	}
}

func TestRejectKeepsPurchaseUntouched(t *testing.T) {
	store := newMemRefundStore()
	refunder := &stubRefunder{}
	svc := NewService(Dependencies{
		Txs:      stubTxRunner{},
		Refunds:  store,
		Finder:   &stubPurchaseFinder{record: paidPurchase(1, 10, 6400)},
		Refunder: refunder,
	})

	record, err := svc.Request(context.Background(), owner(10), RequestInput{PurchaseID: 1})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	decision, err := svc.Reject(context.Background(), record.ID, "outside refund window")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if decision.Status != "rejected" {
		t.Fatalf("status = %q, want rejected", decision.Status)
	}
	if len(refunder.refunded) != 0 {
		t.Fatalf("rejection touched the purchase")
	}

	if _, err := svc.Approve(context.Background(), record.ID); !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("approve after reject err = %v, want ErrAlreadyDecided", err)
	}
}
