package expire

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	paymentsvc "github.com/learnado/backend/internal/services/payments"
)

type stubLister struct {
	ids        []int64
	gotCutoff  time.Time
	gotLimit   int
	err        error
	listCalled bool
}

func (s *stubLister) ListStalePendingIDs(_ context.Context, cutoff time.Time, limit int) ([]int64, error) {
	s.listCalled = true
	s.gotCutoff = cutoff
	s.gotLimit = limit
	return s.ids, s.err
}

type stubFailer struct {
	failed    []int64
	reasons   []string
	conflicts map[int64]bool
}

func (s *stubFailer) FailPayment(_ context.Context, purchaseID int64, reason string) (paymentsvc.FailResult, error) {
	if s.conflicts[purchaseID] {
		return paymentsvc.FailResult{}, paymentsvc.ErrInvalidTransition
	}
	s.failed = append(s.failed, purchaseID)
	s.reasons = append(s.reasons, reason)
	return paymentsvc.FailResult{PurchaseID: purchaseID, Status: "failed"}, nil
}

func TestRunFailsStalePendingPurchases(t *testing.T) {
	now := time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC)

	lister := &stubLister{ids: []int64{11, 12}}
	failer := &stubFailer{}
	job := NewJob(lister, failer, 30*time.Minute, 50, zap.NewNop())
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	wantCutoff := now.Add(-30 * time.Minute)
	if !lister.gotCutoff.Equal(wantCutoff) {
		t.Fatalf("unexpected cutoff: got %v want %v", lister.gotCutoff, wantCutoff)
	}
	if lister.gotLimit != 50 {
		t.Fatalf("unexpected batch limit: got %d want %d", lister.gotLimit, 50)
	}
	if len(failer.failed) != 2 || failer.failed[0] != 11 || failer.failed[1] != 12 {
		t.Fatalf("unexpected failed purchases: %v", failer.failed)
	}
	for _, reason := range failer.reasons {
		if reason != expireReason {
			t.Fatalf("unexpected failure reason: %q", reason)
		}
	}
}

func TestRunSkipsPurchasesConfirmedDuringSweep(t *testing.T) {
	lister := &stubLister{ids: []int64{21, 22, 23}}
	failer := &stubFailer{conflicts: map[int64]bool{22: true}}
	job := NewJob(lister, failer, time.Hour, 10, zap.NewNop())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(failer.failed) != 2 || failer.failed[0] != 21 || failer.failed[1] != 23 {
		t.Fatalf("unexpected failed purchases: %v", failer.failed)
	}
}

func TestRunPropagatesListErrors(t *testing.T) {
	lister := &stubLister{err: errors.New("db down")}
	job := NewJob(lister, &stubFailer{}, time.Hour, 10, zap.NewNop())

	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error when listing fails")
	}
}

func TestRunWithoutDependenciesIsNoop(t *testing.T) {
	job := NewJob(nil, nil, time.Hour, 10, zap.NewNop())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}
