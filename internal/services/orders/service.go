package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/learnado/backend/internal/infra/provider"
	pgrepo "github.com/learnado/backend/internal/repo/postgres"
	catalogsvc "github.com/learnado/backend/internal/services/catalog"
	couponsvc "github.com/learnado/backend/internal/services/coupons"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrCourseUnavailable   = errors.New("course inactive or absent")
	ErrTooManyAttempts     = errors.New("too many checkout attempts")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
)

type Catalog interface {
	GetCourses(ctx context.Context, courseIDs []int64) (map[int64]catalogsvc.Course, error)
}

type CouponQuoter interface {
	QuoteForCart(ctx context.Context, code string, lines []couponsvc.CartLine) (couponsvc.Quote, error)
}

type PurchaseStore interface {
	CreatePending(ctx context.Context, in pgrepo.CreatePurchaseInput) (pgrepo.PurchaseRecord, error)
	FindByID(ctx context.Context, purchaseID int64) (pgrepo.PurchaseRecord, error)
}

type ChargeRequester interface {
	RequestCharge(ctx context.Context, req provider.ChargeRequest) error
}

type RateLimiter interface {
	AllowCheckout(ctx context.Context, userID int64) (int64, bool, error)
}

type Service struct {
	catalog   Catalog
	coupons   CouponQuoter
	purchases PurchaseStore
	charger   ChargeRequester
	limiter   RateLimiter
	newKey    func() string
}

type Dependencies struct {
	Catalog   Catalog
	Coupons   CouponQuoter
	Purchases PurchaseStore
	Charger   ChargeRequester
	Limiter   RateLimiter
}

type BuildInput struct {
	CourseIDs     []int64
	CouponCode    string
	PaymentMethod string
}

type BuildResult struct {
	PurchaseID    int64
	CourseIDs     []int64
	TotalMinor    int64
	DiscountMinor int64
	FinalMinor    int64
	Status        string
}

type CheckoutResult struct {
	BuildResult
	ChargeRequested bool
	RetryAfterSec   int64
}

func NewService(deps Dependencies) *Service {
	return &Service{
		catalog:   deps.Catalog,
		coupons:   deps.Coupons,
		purchases: deps.Purchases,
		charger:   deps.Charger,
		limiter:   deps.Limiter,
		newKey:    func() string { return uuid.NewString() },
	}
}

// Build assembles an immutable priced purchase in pending state. Prices are
// snapshotted at build time; later catalog changes never touch an existing
// purchase. The coupon is validated in quote mode only.
func (s *Service) Build(ctx context.Context, userID int64, in BuildInput) (BuildResult, error) {
	if userID <= 0 {
		return BuildResult{}, ErrValidation
	}
	if s.catalog == nil || s.purchases == nil {
		return BuildResult{}, fmt.Errorf("order builder dependencies are not configured")
	}

	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		return BuildResult{}, ErrValidation
	}

	courseIDs := dedupeIDs(in.CourseIDs)
	if len(courseIDs) == 0 {
		return BuildResult{}, ErrEmptyCart
	}

	courses, err := s.catalog.GetCourses(ctx, courseIDs)
	if err != nil {
		if errors.Is(err, catalogsvc.ErrValidation) {
			return BuildResult{}, ErrValidation
		}
		return BuildResult{}, err
	}

	lines := make([]pgrepo.PurchaseLineRecord, 0, len(courseIDs))
	cartLines := make([]couponsvc.CartLine, 0, len(courseIDs))
	var totalMinor int64
	for _, id := range courseIDs {
		course, ok := courses[id]
		if !ok || !course.Active {
			return BuildResult{}, ErrCourseUnavailable
		}
		lines = append(lines, pgrepo.PurchaseLineRecord{CourseID: id, PriceMinor: course.PriceMinor})
		cartLines = append(cartLines, couponsvc.CartLine{CourseID: id, PriceMinor: course.PriceMinor})
		totalMinor += course.PriceMinor
	}

	var (
		discountMinor int64
		couponID      *int64
	)
	if code := strings.TrimSpace(in.CouponCode); code != "" {
		if s.coupons == nil {
			return BuildResult{}, fmt.Errorf("coupon quoter is nil")
		}
		quote, err := s.coupons.QuoteForCart(ctx, code, cartLines)
		if err != nil {
			return BuildResult{}, err
		}
		discountMinor = quote.DiscountMinor
		id := quote.CouponID
		couponID = &id
	}

	finalMinor := totalMinor - discountMinor
	if finalMinor < 0 {
		finalMinor = 0
	}

	record, err := s.purchases.CreatePending(ctx, pgrepo.CreatePurchaseInput{
		UserID:        userID,
		Lines:         lines,
		TotalMinor:    totalMinor,
		DiscountMinor: discountMinor,
		FinalMinor:    finalMinor,
		PaymentMethod: method,
		CouponID:      couponID,
	})
	if err != nil {
		return BuildResult{}, err
	}

	return BuildResult{
		PurchaseID:    record.ID,
		CourseIDs:     record.CourseIDs(),
		TotalMinor:    record.TotalMinor,
		DiscountMinor: record.DiscountMinor,
		FinalMinor:    record.FinalMinor,
		Status:        record.Status,
	}, nil
}

// Checkout builds the purchase and submits the charge request. A provider
// failure keeps the pending purchase; the result carries its id so the caller
// can retry the charge with backoff.
func (s *Service) Checkout(ctx context.Context, userID int64, in BuildInput) (CheckoutResult, error) {
	if s.limiter != nil {
		retryAfter, allowed, err := s.limiter.AllowCheckout(ctx, userID)
		if err == nil && !allowed {
			return CheckoutResult{RetryAfterSec: retryAfter}, ErrTooManyAttempts
		}
	}

	built, err := s.Build(ctx, userID, in)
	if err != nil {
		return CheckoutResult{}, err
	}

	result := CheckoutResult{BuildResult: built}
	if s.charger == nil {
		return result, nil
	}

	if err := s.charger.RequestCharge(ctx, provider.ChargeRequest{
		PurchaseID:     built.PurchaseID,
		AmountMinor:    built.FinalMinor,
		Method:         in.PaymentMethod,
		IdempotencyKey: s.newKey(),
	}); err != nil {
		return result, fmt.Errorf("%w: %s", ErrProviderUnavailable, err)
	}

	result.ChargeRequested = true
	return result, nil
}

func (s *Service) Get(ctx context.Context, userID, purchaseID int64) (pgrepo.PurchaseRecord, error) {
	if userID <= 0 || purchaseID <= 0 {
		return pgrepo.PurchaseRecord{}, ErrValidation
	}
	if s.purchases == nil {
		return pgrepo.PurchaseRecord{}, fmt.Errorf("purchase store is nil")
	}

	record, err := s.purchases.FindByID(ctx, purchaseID)
	if err != nil {
		return pgrepo.PurchaseRecord{}, err
	}
	if record.UserID != userID {
		return pgrepo.PurchaseRecord{}, pgrepo.ErrPurchaseNotFound
	}

	return record, nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })
	return unique
}
