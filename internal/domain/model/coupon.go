package model

import (
	"time"

	"github.com/learnado/backend/internal/domain/enums"
)

type Coupon struct {
	ID            int64              `json:"id"`
	Code          string             `json:"code"`
	DiscountType  enums.DiscountType `json:"discount_type"`
	DiscountValue int64              `json:"discount_value"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
	MaxUses       int                `json:"max_uses"`
	CurrentUses   int                `json:"current_uses"`
	CourseIDs     []int64            `json:"course_ids,omitempty"`
	Active        bool               `json:"active"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}
