package model

import (
	"time"

	"github.com/learnado/backend/internal/domain/enums"
)

type Purchase struct {
	ID                int64               `json:"id"`
	UserID            int64               `json:"user_id"`
	CourseIDs         []int64             `json:"course_ids"`
	TotalMinor        int64               `json:"total_minor"`
	DiscountMinor     int64               `json:"discount_minor"`
	FinalMinor        int64               `json:"final_minor"`
	PaymentMethod     string              `json:"payment_method"`
	PaymentStatus     enums.PaymentStatus `json:"payment_status"`
	CouponID          *int64              `json:"coupon_id,omitempty"`
	ProviderPaymentID *string             `json:"provider_payment_id,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}
