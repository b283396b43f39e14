package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EntitlementRepo owns the materialized (user, course) access relation. Rows
// are tombstoned via revoked_at instead of deleted so grant and revoke stay
// idempotent.
type EntitlementRepo struct {
	pool *pgxpool.Pool
}

type EntitlementRecord struct {
	UserID     int64
	CourseID   int64
	PurchaseID int64
	GrantedAt  time.Time
	RevokedAt  *time.Time
}

func NewEntitlementRepo(pool *pgxpool.Pool) *EntitlementRepo {
	return &EntitlementRepo{pool: pool}
}

func (r *EntitlementRepo) Grant(ctx context.Context, tx pgx.Tx, userID, purchaseID int64, courseIDs []int64) error {
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	if userID <= 0 || purchaseID <= 0 || len(courseIDs) == 0 {
		return fmt.Errorf("invalid entitlement grant payload")
	}

	for _, courseID := range courseIDs {
		if _, err := tx.Exec(ctx, `
INSERT INTO course_entitlements (user_id, course_id, purchase_id, granted_at, revoked_at)
VALUES ($1, $2, $3, NOW(), NULL)
ON CONFLICT (user_id, course_id) DO UPDATE SET
	purchase_id = EXCLUDED.purchase_id,
	granted_at = NOW(),
	revoked_at = NULL
WHERE course_entitlements.revoked_at IS NOT NULL
`, userID, courseID, purchaseID); err != nil {
			return fmt.Errorf("grant course entitlement: %w", err)
		}
	}

	return nil
}

func (r *EntitlementRepo) RevokeByPurchase(ctx context.Context, tx pgx.Tx, purchaseID int64) (int64, error) {
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}
	if purchaseID <= 0 {
		return 0, fmt.Errorf("invalid purchase id")
	}

	result, err := tx.Exec(ctx, `
UPDATE course_entitlements
SET revoked_at = NOW()
WHERE purchase_id = $1
  AND revoked_at IS NULL
`, purchaseID)
	if err != nil {
		return 0, fmt.Errorf("revoke entitlements by purchase: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *EntitlementRepo) IsEntitled(ctx context.Context, userID, courseID int64) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || courseID <= 0 {
		return false, fmt.Errorf("invalid entitlement lookup payload")
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	FROM course_entitlements
	WHERE user_id = $1
	  AND course_id = $2
	  AND revoked_at IS NULL
)
`, userID, courseID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check course entitlement: %w", err)
	}

	return exists, nil
}

func (r *EntitlementRepo) ListActiveByUser(ctx context.Context, userID int64) ([]EntitlementRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT user_id, course_id, purchase_id, granted_at, revoked_at
FROM course_entitlements
WHERE user_id = $1
  AND revoked_at IS NULL
ORDER BY granted_at DESC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list active entitlements: %w", err)
	}
	defer rows.Close()

	var records []EntitlementRecord
	for rows.Next() {
		var record EntitlementRecord
		if err := rows.Scan(
			&record.UserID,
			&record.CourseID,
			&record.PurchaseID,
			&record.GrantedAt,
			&record.RevokedAt,
		); err != nil {
			return nil, fmt.Errorf("scan entitlement row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entitlement rows: %w", err)
	}

	return records, nil
}
