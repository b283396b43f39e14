package model

import "time"

type Progress struct {
	UserID             int64      `json:"user_id"`
	LessonID           int64      `json:"lesson_id"`
	CourseID           int64      `json:"course_id"`
	Completed          bool       `json:"completed"`
	WatchedDurationSec int        `json:"watched_duration_sec"`
	LastAccessed       time.Time  `json:"last_accessed"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}
