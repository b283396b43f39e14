package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrProgressNotFound = errors.New("progress not found")

type ProgressRepo struct {
	pool *pgxpool.Pool
}

type ProgressRecord struct {
	UserID             int64
	LessonID           int64
	CourseID           int64
	Completed          bool
	WatchedDurationSec int
	LastAccessed       time.Time
	CompletedAt        *time.Time
}

func NewProgressRepo(pool *pgxpool.Pool) *ProgressRepo {
	return &ProgressRepo{pool: pool}
}

// Upsert creates the (user, lesson) row or advances watched duration.
// GREATEST keeps the stored value monotonic, so stale out-of-order client
// reports collapse into no-ops instead of errors. Completed rows keep their
// duration frozen.
func (r *ProgressRepo) Upsert(ctx context.Context, userID, lessonID, courseID int64, watchedSec int) (ProgressRecord, error) {
	if r.pool == nil {
		return ProgressRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || lessonID <= 0 || courseID <= 0 || watchedSec < 0 {
		return ProgressRecord{}, fmt.Errorf("invalid progress upsert payload")
	}

	record, err := scanProgress(r.pool.QueryRow(ctx, `
INSERT INTO lesson_progress (user_id, lesson_id, course_id, completed, watched_duration_sec, last_accessed)
VALUES ($1, $2, $3, FALSE, $4, NOW())
ON CONFLICT (user_id, lesson_id) DO UPDATE SET
	watched_duration_sec = CASE
		WHEN lesson_progress.completed THEN lesson_progress.watched_duration_sec
		ELSE GREATEST(lesson_progress.watched_duration_sec, EXCLUDED.watched_duration_sec)
	END,
	last_accessed = NOW()
RETURNING user_id, lesson_id, course_id, completed, watched_duration_sec, last_accessed, completed_at
`, userID, lessonID, courseID, watchedSec))
	if err != nil {
		return ProgressRecord{}, fmt.Errorf("upsert lesson progress: %w", err)
	}

	return record, nil
}

// Complete flips the row to completed exactly once. The returned bool is true
// only for the call that set completed_at; repeats return the existing row.
func (r *ProgressRepo) Complete(ctx context.Context, userID, lessonID, courseID int64, watchedSec int) (ProgressRecord, bool, error) {
	if r.pool == nil {
		return ProgressRecord{}, false, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || lessonID <= 0 || courseID <= 0 || watchedSec < 0 {
		return ProgressRecord{}, false, fmt.Errorf("invalid progress complete payload")
	}

	record, err := scanProgress(r.pool.QueryRow(ctx, `
INSERT INTO lesson_progress (user_id, lesson_id, course_id, completed, watched_duration_sec, last_accessed, completed_at)
VALUES ($1, $2, $3, TRUE, $4, NOW(), NOW())
ON CONFLICT (user_id, lesson_id) DO UPDATE SET
	completed = TRUE,
	watched_duration_sec = GREATEST(lesson_progress.watched_duration_sec, EXCLUDED.watched_duration_sec),
	last_accessed = NOW(),
	completed_at = NOW()
WHERE NOT lesson_progress.completed
RETURNING user_id, lesson_id, course_id, completed, watched_duration_sec, last_accessed, completed_at
`, userID, lessonID, courseID, watchedSec))
	if err == nil {
		return record, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return ProgressRecord{}, false, fmt.Errorf("complete lesson progress: %w", err)
	}

	existing, err := r.Find(ctx, userID, lessonID)
	if err != nil {
		return ProgressRecord{}, false, err
	}
	return existing, false, nil
}

func (r *ProgressRepo) Find(ctx context.Context, userID, lessonID int64) (ProgressRecord, error) {
	if r.pool == nil {
		return ProgressRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || lessonID <= 0 {
		return ProgressRecord{}, fmt.Errorf("invalid progress lookup payload")
	}

	record, err := scanProgress(r.pool.QueryRow(ctx, `
SELECT user_id, lesson_id, course_id, completed, watched_duration_sec, last_accessed, completed_at
FROM lesson_progress
WHERE user_id = $1
  AND lesson_id = $2
LIMIT 1
`, userID, lessonID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProgressRecord{}, ErrProgressNotFound
		}
		return ProgressRecord{}, fmt.Errorf("find lesson progress: %w", err)
	}

	return record, nil
}

func (r *ProgressRepo) CountCompleted(ctx context.Context, userID, courseID int64) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || courseID <= 0 {
		return 0, fmt.Errorf("invalid completion count payload")
	}

	var completed int
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM lesson_progress
WHERE user_id = $1
  AND course_id = $2
  AND completed
`, userID, courseID).Scan(&completed)
	if err != nil {
		return 0, fmt.Errorf("count completed lessons: %w", err)
	}

	return completed, nil
}

func scanProgress(row pgx.Row) (ProgressRecord, error) {
	var record ProgressRecord
	if err := row.Scan(
		&record.UserID,
		&record.LessonID,
		&record.CourseID,
		&record.Completed,
		&record.WatchedDurationSec,
		&record.LastAccessed,
		&record.CompletedAt,
	); err != nil {
		return ProgressRecord{}, err
	}
	return record, nil
}
