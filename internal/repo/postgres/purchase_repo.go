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
	ErrPurchaseNotFound        = errors.New("purchase not found")
	ErrProviderPaymentConflict = errors.New("provider payment already attached to another purchase")
)

type PurchaseRepo struct {
	pool *pgxpool.Pool
}

type PurchaseRecord struct {
	ID                int64
	UserID            int64
	TotalMinor        int64
	DiscountMinor     int64
	FinalMinor        int64
	PaymentMethod     string
	Status            string
	CouponID          *int64
	ProviderPaymentID *string
	Lines             []PurchaseLineRecord
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type PurchaseLineRecord struct {
	CourseID   int64
	PriceMinor int64
}

func (r PurchaseRecord) CourseIDs() []int64 {
	ids := make([]int64, 0, len(r.Lines))
	for _, line := range r.Lines {
		ids = append(ids, line.CourseID)
	}
	return ids
}

type CreatePurchaseInput struct {
	UserID        int64
	Lines         []PurchaseLineRecord
	TotalMinor    int64
	DiscountMinor int64
	FinalMinor    int64
	PaymentMethod string
	CouponID      *int64
}

func NewPurchaseRepo(pool *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

func (r *PurchaseRepo) CreatePending(ctx context.Context, in CreatePurchaseInput) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if in.UserID <= 0 || len(in.Lines) == 0 || strings.TrimSpace(in.PaymentMethod) == "" {
		return PurchaseRecord{}, fmt.Errorf("invalid purchase create payload")
	}

	var record PurchaseRecord
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
INSERT INTO purchases (
	user_id,
	total_minor,
	discount_minor,
	final_minor,
	payment_method,
	status,
	coupon_id,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, 'pending', $6, NOW(), NOW())
RETURNING id, user_id, total_minor, discount_minor, final_minor, payment_method, status, coupon_id, provider_payment_id, created_at, updated_at
`, in.UserID, in.TotalMinor, in.DiscountMinor, in.FinalMinor, strings.TrimSpace(in.PaymentMethod), in.CouponID)

		created, err := scanPurchase(row)
		if err != nil {
			return fmt.Errorf("insert purchase: %w", err)
		}

		for _, line := range in.Lines {
			if _, err := tx.Exec(ctx, `
INSERT INTO purchase_courses (purchase_id, course_id, price_minor)
VALUES ($1, $2, $3)
`, created.ID, line.CourseID, line.PriceMinor); err != nil {
				return fmt.Errorf("insert purchase line: %w", err)
			}
		}

		created.Lines = in.Lines
		record = created
		return nil
	})
	if err != nil {
		return PurchaseRecord{}, err
	}

	return record, nil
}

func (r *PurchaseRepo) FindByID(ctx context.Context, purchaseID int64) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if purchaseID <= 0 {
		return PurchaseRecord{}, fmt.Errorf("invalid purchase id")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
SELECT id, user_id, total_minor, discount_minor, final_minor, payment_method, status, coupon_id, provider_payment_id, created_at, updated_at
FROM purchases
WHERE id = $1
LIMIT 1
`, purchaseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find purchase by id: %w", err)
	}

	lines, err := r.loadLines(ctx, purchaseID)
	if err != nil {
		return PurchaseRecord{}, err
	}
	record.Lines = lines

	return record, nil
}

func (r *PurchaseRepo) FindByProviderPayment(ctx context.Context, providerPaymentID string) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	providerPaymentID = strings.TrimSpace(providerPaymentID)
	if providerPaymentID == "" {
		return PurchaseRecord{}, fmt.Errorf("provider payment id is required")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
SELECT id, user_id, total_minor, discount_minor, final_minor, payment_method, status, coupon_id, provider_payment_id, created_at, updated_at
FROM purchases
WHERE provider_payment_id = $1
LIMIT 1
`, providerPaymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find purchase by provider payment: %w", err)
	}

	lines, err := r.loadLines(ctx, record.ID)
	if err != nil {
		return PurchaseRecord{}, err
	}
	record.Lines = lines

	return record, nil
}

// MarkPaid performs the pending→paid compare-and-set. The returned bool is
// true only for the call that actually moved the row; duplicate deliveries
// see false together with the current record.
func (r *PurchaseRepo) MarkPaid(ctx context.Context, tx pgx.Tx, purchaseID int64, providerPaymentID string) (PurchaseRecord, bool, error) {
	if tx == nil {
		return PurchaseRecord{}, false, fmt.Errorf("transaction is required")
	}
	if purchaseID <= 0 {
		return PurchaseRecord{}, false, fmt.Errorf("invalid purchase id")
	}
	providerPaymentID = strings.TrimSpace(providerPaymentID)
	if providerPaymentID == "" {
		return PurchaseRecord{}, false, fmt.Errorf("provider payment id is required")
	}

	row := tx.QueryRow(ctx, `
UPDATE purchases
SET
	status = 'paid',
	provider_payment_id = $2,
	updated_at = NOW()
WHERE id = $1
  AND status = 'pending'
RETURNING id, user_id, total_minor, discount_minor, final_minor, payment_method, status, coupon_id, provider_payment_id, created_at, updated_at
`, purchaseID, providerPaymentID)

	updated, err := scanPurchase(row)
	if err == nil {
		lines, lerr := r.loadLinesTx(ctx, tx, purchaseID)
		if lerr != nil {
			return PurchaseRecord{}, false, lerr
		}
		updated.Lines = lines
		return updated, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return PurchaseRecord{}, false, ErrProviderPaymentConflict
		}
		return PurchaseRecord{}, false, fmt.Errorf("mark purchase paid: %w", err)
	}

	existing, err := r.findByIDTx(ctx, tx, purchaseID)
	if err != nil {
		return PurchaseRecord{}, false, err
	}
	return existing, false, nil
}

func (r *PurchaseRepo) MarkFailed(ctx context.Context, purchaseID int64) (PurchaseRecord, bool, error) {
	if r.pool == nil {
		return PurchaseRecord{}, false, fmt.Errorf("postgres pool is nil")
	}
	if purchaseID <= 0 {
		return PurchaseRecord{}, false, fmt.Errorf("invalid purchase id")
	}

	row := r.pool.QueryRow(ctx, `
UPDATE purchases
SET status = 'failed', updated_at = NOW()
WHERE id = $1
  AND status = 'pending'
RETURNING id, user_id, total_minor, discount_minor, final_minor, payment_method, status, coupon_id, provider_payment_id, created_at, updated_at
`, purchaseID)

	updated, err := scanPurchase(row)
	if err == nil {
		return updated, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return PurchaseRecord{}, false, fmt.Errorf("mark purchase failed: %w", err)
	}

	existing, err := r.FindByID(ctx, purchaseID)
	if err != nil {
		return PurchaseRecord{}, false, err
	}
	return existing, false, nil
}

// MarkRefunded performs the paid→refunded compare-and-set inside the refund
// approval transaction.
func (r *PurchaseRepo) MarkRefunded(ctx context.Context, tx pgx.Tx, purchaseID int64) (PurchaseRecord, bool, error) {
	if tx == nil {
		return PurchaseRecord{}, false, fmt.Errorf("transaction is required")
	}
	if purchaseID <= 0 {
		return PurchaseRecord{}, false, fmt.Errorf("invalid purchase id")
	}

	row := tx.QueryRow(ctx, `
UPDATE purchases
SET status = 'refunded', updated_at = NOW()
WHERE id = $1
  AND status = 'paid'
RETURNING id, user_id, total_minor, discount_minor, final_minor, payment_method, status, coupon_id, provider_payment_id, created_at, updated_at
`, purchaseID)

	updated, err := scanPurchase(row)
	if err == nil {
		lines, lerr := r.loadLinesTx(ctx, tx, purchaseID)
		if lerr != nil {
			return PurchaseRecord{}, false, lerr
		}
		updated.Lines = lines
		return updated, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return PurchaseRecord{}, false, fmt.Errorf("mark purchase refunded: %w", err)
	}

	existing, err := r.findByIDTx(ctx, tx, purchaseID)
	if err != nil {
		return PurchaseRecord{}, false, err
	}
	return existing, false, nil
}

func (r *PurchaseRepo) ListStalePendingIDs(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT id
FROM purchases
WHERE status = 'pending'
  AND created_at < $1
ORDER BY created_at
LIMIT $2
`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending purchases: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale purchase id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale purchase ids: %w", err)
	}

	return ids, nil
}

func (r *PurchaseRepo) findByIDTx(ctx context.Context, tx pgx.Tx, purchaseID int64) (PurchaseRecord, error) {
	record, err := scanPurchase(tx.QueryRow(ctx, `
SELECT id, user_id, total_minor, discount_minor, final_minor, payment_method, status, coupon_id, provider_payment_id, created_at, updated_at
FROM purchases
WHERE id = $1
LIMIT 1
`, purchaseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find purchase by id in tx: %w", err)
	}

	lines, err := r.loadLinesTx(ctx, tx, purchaseID)
	if err != nil {
		return PurchaseRecord{}, err
	}
	record.Lines = lines

	return record, nil
}

func (r *PurchaseRepo) loadLines(ctx context.Context, purchaseID int64) ([]PurchaseLineRecord, error) {
	rows, err := r.pool.Query(ctx, `
SELECT course_id, price_minor
FROM purchase_courses
WHERE purchase_id = $1
ORDER BY course_id
`, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("load purchase lines: %w", err)
	}
	defer rows.Close()

	return collectLines(rows)
}

func (r *PurchaseRepo) loadLinesTx(ctx context.Context, tx pgx.Tx, purchaseID int64) ([]PurchaseLineRecord, error) {
	rows, err := tx.Query(ctx, `
SELECT course_id, price_minor
FROM purchase_courses
WHERE purchase_id = $1
ORDER BY course_id
`, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("load purchase lines in tx: %w", err)
	}
	defer rows.Close()

	return collectLines(rows)
}

func collectLines(rows pgx.Rows) ([]PurchaseLineRecord, error) {
	var lines []PurchaseLineRecord
	for rows.Next() {
		var line PurchaseLineRecord
		if err := rows.Scan(&line.CourseID, &line.PriceMinor); err != nil {
			return nil, fmt.Errorf("scan purchase line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase lines: %w", err)
	}
	return lines, nil
}

func scanPurchase(row pgx.Row) (PurchaseRecord, error) {
	var record PurchaseRecord
	if err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.TotalMinor,
		&record.DiscountMinor,
		&record.FinalMinor,
		&record.PaymentMethod,
		&record.Status,
		&record.CouponID,
		&record.ProviderPaymentID,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return PurchaseRecord{}, err
	}
	return record, nil
}
