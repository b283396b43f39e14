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
	ErrRefundNotFound       = errors.New("refund not found")
	ErrRefundAlreadyPending = errors.New("open refund already exists for purchase")
)

type RefundRepo struct {
	pool *pgxpool.Pool
}

type RefundRecord struct {
	ID              int64
	PurchaseID      int64
	UserID          int64
	AmountMinor     int64
	Status          string
	Reason          string
	RejectionReason *string
	RequestedAt     time.Time
	ProcessedAt     *time.Time
}

func NewRefundRepo(pool *pgxpool.Pool) *RefundRepo {
	return &RefundRepo{pool: pool}
}

// CreatePending inserts a refund request for the purchase. At most one
// pending refund per purchase is enforced by the partial unique index
// refunds_purchase_pending_key ON refunds (purchase_id) WHERE status =
// 'pending'; a racing insert surfaces as a unique violation, not a read.
func (r *RefundRepo) CreatePending(ctx context.Context, purchaseID, userID, amountMinor int64, reason string) (RefundRecord, error) {
	if r.pool == nil {
		return RefundRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if purchaseID <= 0 || userID <= 0 || amountMinor <= 0 {
		return RefundRecord{}, fmt.Errorf("invalid refund create payload")
	}

	record, err := scanRefund(r.pool.QueryRow(ctx, `
INSERT INTO refunds (purchase_id, user_id, amount_minor, status, reason, requested_at)
VALUES ($1, $2, $3, 'pending', $4, NOW())
RETURNING id, purchase_id, user_id, amount_minor, status, reason, rejection_reason, requested_at, processed_at
`, purchaseID, userID, amountMinor, strings.TrimSpace(reason)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return RefundRecord{}, ErrRefundAlreadyPending
		}
		return RefundRecord{}, fmt.Errorf("create pending refund: %w", err)
	}

	return record, nil
}

func (r *RefundRepo) FindByID(ctx context.Context, refundID int64) (RefundRecord, error) {
	if r.pool == nil {
		return RefundRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if refundID <= 0 {
		return RefundRecord{}, fmt.Errorf("invalid refund id")
	}

	record, err := scanRefund(r.pool.QueryRow(ctx, `
SELECT id, purchase_id, user_id, amount_minor, status, reason, rejection_reason, requested_at, processed_at
FROM refunds
WHERE id = $1
LIMIT 1
`, refundID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RefundRecord{}, ErrRefundNotFound
		}
		return RefundRecord{}, fmt.Errorf("find refund by id: %w", err)
	}

	return record, nil
}

// MarkApproved performs the pending→approved compare-and-set inside the
// approval transaction so it rolls back together with the purchase
// transition.
func (r *RefundRepo) MarkApproved(ctx context.Context, tx pgx.Tx, refundID int64) (RefundRecord, bool, error) {
	if tx == nil {
		return RefundRecord{}, false, fmt.Errorf("transaction is required")
	}
	if refundID <= 0 {
		return RefundRecord{}, false, fmt.Errorf("invalid refund id")
	}

	record, err := scanRefund(tx.QueryRow(ctx, `
UPDATE refunds
SET status = 'approved', processed_at = NOW()
WHERE id = $1
  AND status = 'pending'
RETURNING id, purchase_id, user_id, amount_minor, status, reason, rejection_reason, requested_at, processed_at
`, refundID))
	if err == nil {
		return record, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return RefundRecord{}, false, fmt.Errorf("mark refund approved: %w", err)
	}

	existing, err := scanRefund(tx.QueryRow(ctx, `
SELECT id, purchase_id, user_id, amount_minor, status, reason, rejection_reason, requested_at, processed_at
FROM refunds
WHERE id = $1
LIMIT 1
`, refundID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RefundRecord{}, false, ErrRefundNotFound
		}
		return RefundRecord{}, false, fmt.Errorf("find refund after approve miss: %w", err)
	}
	return existing, false, nil
}

func (r *RefundRepo) MarkRejected(ctx context.Context, refundID int64, rejectionReason string) (RefundRecord, bool, error) {
	if r.pool == nil {
		return RefundRecord{}, false, fmt.Errorf("postgres pool is nil")
	}
	if refundID <= 0 {
		return RefundRecord{}, false, fmt.Errorf("invalid refund id")
	}

	record, err := scanRefund(r.pool.QueryRow(ctx, `
UPDATE refunds
SET status = 'rejected', rejection_reason = $2, processed_at = NOW()
WHERE id = $1
  AND status = 'pending'
RETURNING id, purchase_id, user_id, amount_minor, status, reason, rejection_reason, requested_at, processed_at
`, refundID, strings.TrimSpace(rejectionReason)))
	if err == nil {
		return record, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return RefundRecord{}, false, fmt.Errorf("mark refund rejected: %w", err)
	}

	existing, err := r.FindByID(ctx, refundID)
	if err != nil {
		return RefundRecord{}, false, err
	}
	return existing, false, nil
}

func scanRefund(row pgx.Row) (RefundRecord, error) {
	var record RefundRecord
	if err := row.Scan(
		&record.ID,
		&record.PurchaseID,
		&record.UserID,
		&record.AmountMinor,
		&record.Status,
		&record.Reason,
		&record.RejectionReason,
		&record.RequestedAt,
		&record.ProcessedAt,
	); err != nil {
		return RefundRecord{}, err
	}
	return record, nil
}
