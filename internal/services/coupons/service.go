package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/learnado/backend/internal/domain/enums"
	pgrepo "github.com/learnado/backend/internal/repo/postgres"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrCouponNotFound      = errors.New("coupon not found")
	ErrCouponExpired       = errors.New("coupon expired")
	ErrCouponExhausted     = errors.New("coupon usage limit reached")
	ErrCouponInactive      = errors.New("coupon inactive")
	ErrCouponNotApplicable = errors.New("coupon not applicable to cart")
	ErrCouponCodeTaken     = errors.New("coupon code already exists")
)

type CouponStore interface {
	Create(ctx context.Context, code, discountType string, discountValue int64, expiresAt *time.Time, maxUses int, courseIDs []int64) (pgrepo.CouponRecord, error)
	FindByCode(ctx context.Context, code string) (pgrepo.CouponRecord, error)
	Deactivate(ctx context.Context, couponID int64) (bool, error)
}

type Service struct {
	coupons CouponStore
	now     func() time.Time
}

// Quote is the result of validating a coupon against a candidate cart. The
// discount is computed over the applicable lines only; usage is NOT consumed
// here — that happens on payment confirmation.
type Quote struct {
	CouponID      int64
	Code          string
	DiscountMinor int64
}

type CartLine struct {
	CourseID   int64
	PriceMinor int64
}

type CreateInput struct {
	Code          string
	DiscountType  string
	DiscountValue int64
	ExpiresAt     *time.Time
	MaxUses       int
	CourseIDs     []int64
}

type CreateResult struct {
	CouponID int64
	Code     string
}

func NewService(coupons CouponStore) *Service {
	return &Service{
		coupons: coupons,
		now:     time.Now,
	}
}

// QuoteForCart validates the coupon code against the cart and returns the
// discount it would grant. Codes are case-insensitive.
func (s *Service) QuoteForCart(ctx context.Context, code string, lines []CartLine) (Quote, error) {
	if s.coupons == nil {
		return Quote{}, fmt.Errorf("coupon store is nil")
	}
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" || len(lines) == 0 {
		return Quote{}, ErrValidation
	}

	record, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgrepo.ErrCouponNotFound) {
			return Quote{}, ErrCouponNotFound
		}
		return Quote{}, err
	}

	if !record.Active {
		return Quote{}, ErrCouponInactive
	}
	if record.ExpiresAt != nil && record.ExpiresAt.Before(s.now().UTC()) {
		return Quote{}, ErrCouponExpired
	}
	if record.MaxUses > 0 && record.CurrentUses >= record.MaxUses {
		return Quote{}, ErrCouponExhausted
	}

	applicableMinor, applies := applicableSubtotal(record.CourseIDs, lines)
	if !applies {
		return Quote{}, ErrCouponNotApplicable
	}

	discount, err := discountFor(record, applicableMinor)
	if err != nil {
		return Quote{}, err
	}

	return Quote{
		CouponID:      record.ID,
		Code:          record.Code,
		DiscountMinor: discount,
	}, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (CreateResult, error) {
	if s.coupons == nil {
		return CreateResult{}, fmt.Errorf("coupon store is nil")
	}

	code := strings.ToLower(strings.TrimSpace(in.Code))
	if code == "" || in.DiscountValue <= 0 || in.MaxUses < 0 {
		return CreateResult{}, ErrValidation
	}

	switch enums.DiscountType(in.DiscountType) {
	case enums.DiscountTypePercentage:
		if in.DiscountValue > 100 {
			return CreateResult{}, ErrValidation
		}
	case enums.DiscountTypeFixed:
	default:
		return CreateResult{}, ErrValidation
	}

	record, err := s.coupons.Create(ctx, code, in.DiscountType, in.DiscountValue, in.ExpiresAt, in.MaxUses, in.CourseIDs)
	if err != nil {
		if errors.Is(err, pgrepo.ErrCouponCodeTaken) {
			return CreateResult{}, ErrCouponCodeTaken
		}
		return CreateResult{}, err
	}

	return CreateResult{
		CouponID: record.ID,
		Code:     record.Code,
	}, nil
}

func (s *Service) Deactivate(ctx context.Context, couponID int64) error {
	if s.coupons == nil {
		return fmt.Errorf("coupon store is nil")
	}
	if couponID <= 0 {
		return ErrValidation
	}

	changed, err := s.coupons.Deactivate(ctx, couponID)
	if err != nil {
		return err
	}
	if !changed {
		return ErrCouponNotFound
	}

	return nil
}

// applicableSubtotal sums the lines the coupon may discount. An empty
// restriction list means the whole cart qualifies.
// applicableSubtotal reports the subtotal the coupon can discount and
// whether any cart line falls under it. A restricted coupon with no
// intersecting line does not apply; intersecting lines that sum to zero
// still apply and quote a zero discount.
func applicableSubtotal(restrictedIDs []int64, lines []CartLine) (int64, bool) {
	if len(restrictedIDs) == 0 {
		var subtotal int64
		for _, line := range lines {
			subtotal += line.PriceMinor
		}
		return subtotal, len(lines) > 0
	}

	restricted := make(map[int64]struct{}, len(restrictedIDs))
	for _, id := range restrictedIDs {
		restricted[id] = struct{}{}
	}

	var subtotal int64
	matched := false
	for _, line := range lines {
		if _, ok := restricted[line.CourseID]; ok {
			subtotal += line.PriceMinor
			matched = true
		}
	}
	return subtotal, matched
}

func discountFor(record pgrepo.CouponRecord, applicableMinor int64) (int64, error) {
	switch enums.DiscountType(record.DiscountType) {
	case enums.DiscountTypePercentage:
		if record.DiscountValue <= 0 || record.DiscountValue > 100 {
			return 0, ErrValidation
		}
		// round half up at cent precision
		discount := (applicableMinor*record.DiscountValue + 50) / 100
		if discount > applicableMinor {
			discount = applicableMinor
		}
		return discount, nil
	case enums.DiscountTypeFixed:
		if record.DiscountValue <= 0 {
			return 0, ErrValidation
		}
		if record.DiscountValue > applicableMinor {
			return applicableMinor, nil
		}
		return record.DiscountValue, nil
	default:
		return 0, fmt.Errorf("unsupported discount type: %s", record.DiscountType)
	}
}
