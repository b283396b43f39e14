package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrCourseNotFound = errors.New("course not found")

type CourseRepo struct {
	pool *pgxpool.Pool
}

type CourseRecord struct {
	ID         int64
	Title      string
	PriceMinor int64
	Active     bool
}

func NewCourseRepo(pool *pgxpool.Pool) *CourseRepo {
	return &CourseRepo{pool: pool}
}

func (r *CourseRepo) FindByID(ctx context.Context, courseID int64) (CourseRecord, error) {
	if r.pool == nil {
		return CourseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if courseID <= 0 {
		return CourseRecord{}, fmt.Errorf("invalid course id")
	}

	var record CourseRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, title, price_minor, active
FROM courses
WHERE id = $1
LIMIT 1
`, courseID).Scan(&record.ID, &record.Title, &record.PriceMinor, &record.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CourseRecord{}, ErrCourseNotFound
		}
		return CourseRecord{}, fmt.Errorf("find course by id: %w", err)
	}

	return record, nil
}

func (r *CourseRepo) FindByIDs(ctx context.Context, courseIDs []int64) (map[int64]CourseRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if len(courseIDs) == 0 {
		return map[int64]CourseRecord{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, title, price_minor, active
FROM courses
WHERE id = ANY($1)
`, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("find courses by ids: %w", err)
	}
	defer rows.Close()

	records := make(map[int64]CourseRecord, len(courseIDs))
	for rows.Next() {
		var record CourseRecord
		if err := rows.Scan(&record.ID, &record.Title, &record.PriceMinor, &record.Active); err != nil {
			return nil, fmt.Errorf("scan course row: %w", err)
		}
		records[record.ID] = record
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate course rows: %w", err)
	}

	return records, nil
}

func (r *CourseRepo) CountLessons(ctx context.Context, courseID int64) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if courseID <= 0 {
		return 0, fmt.Errorf("invalid course id")
	}

	var total int
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM lessons l
JOIN modules m ON m.id = l.module_id
WHERE m.course_id = $1
`, courseID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count course lessons: %w", err)
	}

	return total, nil
}
