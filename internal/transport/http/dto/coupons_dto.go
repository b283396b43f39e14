package dto

import "time"

type CouponCreateRequest struct {
	Code          string     `json:"code"`
	DiscountType  string     `json:"discount_type"`
	DiscountValue int64      `json:"discount_value"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	MaxUses       int        `json:"max_uses,omitempty"`
	CourseIDs     []int64    `json:"course_ids,omitempty"`
}

type CouponCreateResponse struct {
	CouponID int64  `json:"coupon_id"`
	Code     string `json:"code"`
}

type CouponDeactivateResponse struct {
	OK bool `json:"ok"`
}

type CouponQuoteRequest struct {
	Code      string  `json:"code"`
	CourseIDs []int64 `json:"course_ids"`
}

type CouponQuoteResponse struct {
	Code          string `json:"code"`
	DiscountMinor int64  `json:"discount_minor"`
}
