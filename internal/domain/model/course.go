package model

import "time"

type Course struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	PriceMinor  int64     `json:"price_minor"`
	Active      bool      `json:"active"`
	LessonCount int       `json:"lesson_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
