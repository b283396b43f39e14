package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/learnado/backend/internal/infra/provider"
	pgrepo "github.com/learnado/backend/internal/repo/postgres"
	catalogsvc "github.com/learnado/backend/internal/services/catalog"
	couponsvc "github.com/learnado/backend/internal/services/coupons"
)

type stubCatalog struct {
	courses map[int64]catalogsvc.Course
}

func (s *stubCatalog) GetCourses(_ context.Context, courseIDs []int64) (map[int64]catalogsvc.Course, error) {
	result := make(map[int64]catalogsvc.Course, len(courseIDs))
	for _, id := range courseIDs {
		if course, ok := s.courses[id]; ok {
			result[id] = course
		}
	}
	return result, nil
}

type stubQuoter struct {
	quote couponsvc.Quote
	err   error

	gotCode  string
	gotLines []couponsvc.CartLine
}

func (s *stubQuoter) QuoteForCart(_ context.Context, code string, lines []couponsvc.CartLine) (couponsvc.Quote, error) {
	s.gotCode = code
	s.gotLines = lines
	if s.err != nil {
		return couponsvc.Quote{}, s.err
	}
	return s.quote, nil
}

type stubPurchaseStore struct {
	nextID  int64
	created []pgrepo.CreatePurchaseInput
	records map[int64]pgrepo.PurchaseRecord
}

func (s *stubPurchaseStore) CreatePending(_ context.Context, in pgrepo.CreatePurchaseInput) (pgrepo.PurchaseRecord, error) {
	s.nextID++
	s.created = append(s.created, in)
	record := pgrepo.PurchaseRecord{
		ID:            s.nextID,
		UserID:        in.UserID,
		TotalMinor:    in.TotalMinor,
		DiscountMinor: in.DiscountMinor,
		FinalMinor:    in.FinalMinor,
		PaymentMethod: in.PaymentMethod,
		Status:        "pending",
		CouponID:      in.CouponID,
		Lines:         in.Lines,
	}
	if s.records == nil {
		s.records = make(map[int64]pgrepo.PurchaseRecord)
	}
	s.records[record.ID] = record
	return record, nil
}

func (s *stubPurchaseStore) FindByID(_ context.Context, purchaseID int64) (pgrepo.PurchaseRecord, error) {
	record, ok := s.records[purchaseID]
	if !ok {
		return pgrepo.PurchaseRecord{}, pgrepo.ErrPurchaseNotFound
	}
	return record, nil
}

type stubCharger struct {
	requests []provider.ChargeRequest
	err      error
}

func (s *stubCharger) RequestCharge(_ context.Context, req provider.ChargeRequest) error {
	if s.err != nil {
		return s.err
	}
	s.requests = append(s.requests, req)
	return nil
}

type stubLimiter struct {
	allowed    bool
	retryAfter int64
}

func (s *stubLimiter) AllowCheckout(context.Context, int64) (int64, bool, error) {
	return s.retryAfter, s.allowed, nil
}

func twoCoursesCatalog() *stubCatalog {
	return &stubCatalog{courses: map[int64]catalogsvc.Course{
		1: {ID: 1, Title: "Go Basics", PriceMinor: 5000, Active: true},
		2: {ID: 2, Title: "SQL Deep Dive", PriceMinor: 3000, Active: true},
		3: {ID: 3, Title: "Retired", PriceMinor: 2000, Active: false},
	}}
}

func TestBuildSnapshotsPricesAndTotals(t *testing.T) {
	purchases := &stubPurchaseStore{}
	svc := NewService(Dependencies{
		Catalog:   twoCoursesCatalog(),
		Purchases: purchases,
	})

	result, err := svc.Build(context.Background(), 10, BuildInput{
		CourseIDs:     []int64{2, 1, 2},
		PaymentMethod: "card",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.TotalMinor != 8000 || result.FinalMinor != 8000 {
		t.Fatalf("totals = %d/%d, want 8000/8000", result.TotalMinor, result.FinalMinor)
	}
	if len(result.CourseIDs) != 2 {
		t.Fatalf("course ids = %v, want deduplicated pair", result.CourseIDs)
	}
	if len(purchases.created) != 1 || len(purchases.created[0].Lines) != 2 {
		t.Fatalf("created purchases = %+v", purchases.created)
	}
}

func TestBuildAppliesCouponQuote(t *testing.T) {
	purchases := &stubPurchaseStore{}
	quoter := &stubQuoter{quote: couponsvc.Quote{CouponID: 7, Code: "save20", DiscountMinor: 1600}}
	svc := NewService(Dependencies{
		Catalog:   twoCoursesCatalog(),
		Coupons:   quoter,
		Purchases: purchases,
	})

	result, err := svc.Build(context.Background(), 10, BuildInput{
		CourseIDs:     []int64{1, 2},
		CouponCode:    "SAVE20",
		PaymentMethod: "card",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.TotalMinor != 8000 || result.DiscountMinor != 1600 || result.FinalMinor != 6400 {
		t.Fatalf("totals = %d/%d/%d, want 8000/1600/6400", result.TotalMinor, result.DiscountMinor, result.FinalMinor)
	}
	if purchases.created[0].CouponID == nil || *purchases.created[0].CouponID != 7 {
		t.Fatalf("coupon id not snapshotted on the purchase")
	}
	if len(quoter.gotLines) != 2 {
		t.Fatalf("quoter saw %d lines, want 2", len(quoter.gotLines))
	}
}

func TestBuildPropagatesCouponError(t *testing.T) {
	quoter := &stubQuoter{err: couponsvc.ErrCouponExpired}
	svc := NewService(Dependencies{
		Catalog:   twoCoursesCatalog(),
		Coupons:   quoter,
		Purchases: &stubPurchaseStore{},
	})

	_, err := svc.Build(context.Background(), 10, BuildInput{
		CourseIDs:     []int64{1},
		CouponCode:    "old",
		PaymentMethod: "card",
	})
	if !errors.Is(err, couponsvc.ErrCouponExpired) {
		t.Fatalf("err = %v, want coupon expiry to propagate", err)
	}
}

func TestBuildRejectsInactiveCourse(t *testing.T) {
	svc := NewService(Dependencies{
		Catalog:   twoCoursesCatalog(),
		Purchases: &stubPurchaseStore{},
	})

	_, err := svc.Build(context.Background(), 10, BuildInput{
		CourseIDs:     []int64{1, 3},
		PaymentMethod: "card",
	})
	if !errors.Is(err, ErrCourseUnavailable) {
		t.Fatalf("err = %v, want ErrCourseUnavailable", err)
	}
}

func TestBuildRejectsEmptyCart(t *testing.T) {
	svc := NewService(Dependencies{
		Catalog:   twoCoursesCatalog(),
		Purchases: &stubPurchaseStore{},
	})

	_, err := svc.Build(context.Background(), 10, BuildInput{
		CourseIDs:     []int64{0, -3},
		PaymentMethod: "card",
	})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("err = %v, want ErrEmptyCart", err)
	}
}

func TestCheckoutSubmitsCharge(t *testing.T) {
	charger := &stubCharger{}
	svc := NewService(Dependencies{
		Catalog:   twoCoursesCatalog(),
		Purchases: &stubPurchaseStore{},
		Charger:   charger,
		Limiter:   &stubLimiter{allowed: true},
	})

	result, err := svc.Checkout(context.Background(), 10, BuildInput{
		CourseIDs:     []int64{1},
		PaymentMethod: "card",
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if !result.ChargeRequested {
		t.Fatalf("charge not requested")
	}
	if len(charger.requests) != 1 {
		t.Fatalf("charge requests = %d, want 1", len(charger.requests))
	}
	req := charger.requests[0]
	if req.PurchaseID != result.PurchaseID || req.AmountMinor != 5000 || req.IdempotencyKey == "" {
		t.Fatalf("unexpected charge request %+v", req)
	}
}

func TestCheckoutKeepsPendingPurchaseOnProviderFailure(t *testing.T) {
	charger := &stubCharger{err: errors.New("gateway timeout")}
	purchases := &stubPurchaseStore{}
	svc := NewService(Dependencies{
		Catalog:   twoCoursesCatalog(),
		Purchases: purchases,
		Charger:   charger,
		Limiter:   &stubLimiter{allowed: true},
	})

	result, err := svc.Checkout(context.Background(), 10, BuildInput{
		CourseIDs:     []int64{1},
		PaymentMethod: "card",
	})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
	if result.PurchaseID == 0 {
		t.Fatalf("provider failure lost the pending purchase id")
	}
	if len(purchases.created) != 1 {
		t.Fatalf("pending purchase not kept")
	}
}

func TestCheckoutThrottled(t *testing.T) {
	svc := NewService(Dependencies{
		Catalog:   twoCoursesCatalog(),
		Purchases: &stubPurchaseStore{},
		Charger:   &stubCharger{},
		Limiter:   &stubLimiter{allowed: false, retryAfter: 42},
	})

	result, err := svc.Checkout(context.Background(), 10, BuildInput{
		CourseIDs:     []int64{1},
		PaymentMethod: "card",
	})
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("err = %v, want ErrTooManyAttempts", err)
	}
	if result.RetryAfterSec != 42 {
		t.Fatalf("retry after = %d, want 42", result.RetryAfterSec)
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	purchases := &stubPurchaseStore{}
	svc := NewService(Dependencies{
		Catalog:   twoCoursesCatalog(),
		Purchases: purchases,
	})

	if _, err := svc.Build(context.Background(), 10, BuildInput{CourseIDs: []int64{1}, PaymentMethod: "card"}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := svc.Get(context.Background(), 11, 1); !errors.Is(err, pgrepo.ErrPurchaseNotFound) {
		t.Fatalf("foreign purchase err = %v, want not found", err)
	}
	if _, err := svc.Get(context.Background(), 10, 1); err != nil {
		t.Fatalf("owner Get: %v", err)
	}
}
