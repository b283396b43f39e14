package dto

import "time"

type ProgressTrackRequest struct {
	LessonID   int64 `json:"lesson_id"`
	CourseID   int64 `json:"course_id"`
	WatchedSec int   `json:"watched_duration_sec"`
}

type ProgressResponse struct {
	LessonID           int64      `json:"lesson_id"`
	CourseID           int64      `json:"course_id"`
	Completed          bool       `json:"completed"`
	WatchedDurationSec int        `json:"watched_duration_sec"`
	LastAccessed       time.Time  `json:"last_accessed"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

type ProgressCompleteResponse struct {
	Progress        ProgressResponse `json:"progress"`
	Idempotent      bool             `json:"idempotent"`
	CourseCompleted bool             `json:"course_completed"`
}
