package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	pgrepo "github.com/learnado/backend/internal/repo/postgres"
	authsvc "github.com/learnado/backend/internal/services/auth"
	catalogsvc "github.com/learnado/backend/internal/services/catalog"
	couponsvc "github.com/learnado/backend/internal/services/coupons"
	ordersvc "github.com/learnado/backend/internal/services/orders"
	"github.com/learnado/backend/internal/transport/http/dto"
)

type fakeOrderCatalog struct {
	courses map[int64]catalogsvc.Course
}

func (s *fakeOrderCatalog) GetCourses(_ context.Context, courseIDs []int64) (map[int64]catalogsvc.Course, error) {
	result := make(map[int64]catalogsvc.Course, len(courseIDs))
	for _, id := range courseIDs {
		if course, ok := s.courses[id]; ok {
			result[id] = course
		}
	}
	return result, nil
}

type fakeQuoter struct {
	quote couponsvc.Quote
	err   error
}

func (s *fakeQuoter) QuoteForCart(context.Context, string, []couponsvc.CartLine) (couponsvc.Quote, error) {
	if s.err != nil {
		return couponsvc.Quote{}, s.err
	}
	return s.quote, nil
}

type fakeOrderPurchases struct {
	nextID int64
}

func (s *fakeOrderPurchases) CreatePending(_ context.Context, in pgrepo.CreatePurchaseInput) (pgrepo.PurchaseRecord, error) {
	s.nextID++
	return pgrepo.PurchaseRecord{
		ID:            s.nextID,
		UserID:        in.UserID,
		TotalMinor:    in.TotalMinor,
		DiscountMinor: in.DiscountMinor,
		FinalMinor:    in.FinalMinor,
		PaymentMethod: in.PaymentMethod,
		Status:        "pending",
		CouponID:      in.CouponID,
		Lines:         in.Lines,
	}, nil
}

func (s *fakeOrderPurchases) FindByID(context.Context, int64) (pgrepo.PurchaseRecord, error) {
	return pgrepo.PurchaseRecord{}, pgrepo.ErrPurchaseNotFound
}

func newCheckoutHandler(quoter *fakeQuoter) *CheckoutHandler {
	svc := ordersvc.NewService(ordersvc.Dependencies{
		Catalog: &fakeOrderCatalog{courses: map[int64]catalogsvc.Course{
			1: {ID: 1, Title: "Go Basics", PriceMinor: 5000, Active: true},
			2: {ID: 2, Title: "SQL Deep Dive", PriceMinor: 3000, Active: true},
		}},
		Coupons:   quoter,
		Purchases: &fakeOrderPurchases{},
	})
	return NewCheckoutHandler(svc)
}

func checkoutRequest(t *testing.T, identity *authsvc.Identity, payload dto.CheckoutRequest) *http.Request {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal checkout payload: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/checkout", bytes.NewReader(body))
	if identity != nil {
		req = req.WithContext(authsvc.WithIdentity(req.Context(), *identity))
	}
	return req
}

func TestCheckoutHappyPath(t *testing.T) {
	handler := newCheckoutHandler(&fakeQuoter{quote: couponsvc.Quote{CouponID: 7, Code: "save20", DiscountMinor: 1600}})

	rec := httptest.NewRecorder()
	handler.Checkout(rec, checkoutRequest(t, &authsvc.Identity{UserID: 10, Role: authsvc.RoleStudent}, dto.CheckoutRequest{
		CourseIDs:     []int64{1, 2},
		CouponCode:    "SAVE20",
		PaymentMethod: "card",
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	var resp dto.CheckoutResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalMinor != 8000 || resp.DiscountMinor != 1600 || resp.FinalMinor != 6400 {
		t.Fatalf("totals = %d/%d/%d, want 8000/1600/6400", resp.TotalMinor, resp.DiscountMinor, resp.FinalMinor)
	}
	if resp.Status != "pending" {
		t.Fatalf("status = %q, want pending", resp.Status)
	}
}

func TestCheckoutRequiresAuth(t *testing.T) {
	handler := newCheckoutHandler(&fakeQuoter{})

	rec := httptest.NewRecorder()
	handler.Checkout(rec, checkoutRequest(t, nil, dto.CheckoutRequest{
		CourseIDs:     []int64{1},
		PaymentMethod: "card",
	}))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCheckoutCouponRejectedConflict(t *testing.T) {
	handler := newCheckoutHandler(&fakeQuoter{err: couponsvc.ErrCouponExpired})

	rec := httptest.NewRecorder()
	handler.Checkout(rec, checkoutRequest(t, &authsvc.Identity{UserID: 10, Role: authsvc.RoleStudent}, dto.CheckoutRequest{
		CourseIDs:     []int64{1},
		CouponCode:    "old",
		PaymentMethod: "card",
	}))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestCheckoutUnavailableCourse(t *testing.T) {
	handler := newCheckoutHandler(&fakeQuoter{})

	rec := httptest.NewRecorder()
	handler.Checkout(rec, checkoutRequest(t, &authsvc.Identity{UserID: 10, Role: authsvc.RoleStudent}, dto.CheckoutRequest{
		CourseIDs:     []int64{99},
		PaymentMethod: "card",
	}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
