package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrCouponNotFound  = errors.New("coupon not found")
	ErrCouponCodeTaken = errors.New("coupon code already exists")
	ErrCouponExhausted = errors.New("coupon usage limit reached")
)

type CouponRepo struct {
	pool *pgxpool.Pool
}

type CouponRecord struct {
	ID            int64
	Code          string
	DiscountType  string
	DiscountValue int64
	ExpiresAt     *time.Time
	MaxUses       int
	CurrentUses   int
	CourseIDs     []int64
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewCouponRepo(pool *pgxpool.Pool) *CouponRepo {
	return &CouponRepo{pool: pool}
}

func (r *CouponRepo) Create(ctx context.Context, code, discountType string, discountValue int64, expiresAt *time.Time, maxUses int, courseIDs []int64) (CouponRecord, error) {
	if r.pool == nil {
		return CouponRecord{}, fmt.Errorf("postgres pool is nil")
	}
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" || discountValue <= 0 {
		return CouponRecord{}, fmt.Errorf("invalid coupon create payload")
	}

	record, err := scanCoupon(r.pool.QueryRow(ctx, `
INSERT INTO coupons (
	code,
	discount_type,
	discount_value,
	expires_at,
	max_uses,
	current_uses,
	course_ids,
	active,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, 0, $6, TRUE, NOW(), NOW())
RETURNING id, code, discount_type, discount_value, expires_at, max_uses, current_uses, course_ids, active, created_at, updated_at
`, code, discountType, discountValue, expiresAt, maxUses, courseIDs))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return CouponRecord{}, ErrCouponCodeTaken
		}
		return CouponRecord{}, fmt.Errorf("create coupon: %w", err)
	}

	return record, nil
}

func (r *CouponRepo) FindByCode(ctx context.Context, code string) (CouponRecord, error) {
	if r.pool == nil {
		return CouponRecord{}, fmt.Errorf("postgres pool is nil")
	}
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return CouponRecord{}, fmt.Errorf("coupon code is required")
	}

	record, err := scanCoupon(r.pool.QueryRow(ctx, `
SELECT id, code, discount_type, discount_value, expires_at, max_uses, current_uses, course_ids, active, created_at, updated_at
FROM coupons
WHERE code = $1
LIMIT 1
`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CouponRecord{}, ErrCouponNotFound
		}
		return CouponRecord{}, fmt.Errorf("find coupon by code: %w", err)
	}

	return record, nil
}

// ConsumeUse increments current_uses under the usage cap. The WHERE clause is
// the serialization point against concurrent confirmations sharing a coupon.
func (r *CouponRepo) ConsumeUse(ctx context.Context, tx pgx.Tx, couponID int64) error {
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	if couponID <= 0 {
		return fmt.Errorf("invalid coupon id")
	}

	result, err := tx.Exec(ctx, `
UPDATE coupons
SET
	current_uses = current_uses + 1,
	updated_at = NOW()
WHERE id = $1
  AND (max_uses = 0 OR current_uses < max_uses)
`, couponID)
	if err != nil {
		return fmt.Errorf("consume coupon use: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrCouponExhausted
	}

	return nil
}

func (r *CouponRepo) Deactivate(ctx context.Context, couponID int64) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	if couponID <= 0 {
		return false, fmt.Errorf("invalid coupon id")
	}

	result, err := r.pool.Exec(ctx, `
UPDATE coupons
SET active = FALSE, updated_at = NOW()
WHERE id = $1 AND active
`, couponID)
	if err != nil {
		return false, fmt.Errorf("deactivate coupon: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func scanCoupon(row pgx.Row) (CouponRecord, error) {
	var record CouponRecord
	if err := row.Scan(
		&record.ID,
		&record.Code,
		&record.DiscountType,
		&record.DiscountValue,
		&record.ExpiresAt,
		&record.MaxUses,
		&record.CurrentUses,
		&record.CourseIDs,
		&record.Active,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return CouponRecord{}, err
	}
	return record, nil
}
