package dto

import "time"

type RefundRequestRequest struct {
	PurchaseID  int64  `json:"purchase_id"`
	AmountMinor int64  `json:"amount_minor,omitempty"`
	Reason      string `json:"reason"`
}

type RefundResponse struct {
	RefundID        int64      `json:"refund_id"`
	PurchaseID      int64      `json:"purchase_id"`
	AmountMinor     int64      `json:"amount_minor"`
	Status          string     `json:"status"`
	Reason          string     `json:"reason,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	RequestedAt     time.Time  `json:"requested_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
}

type RefundRejectRequest struct {
	RejectionReason string `json:"rejection_reason"`
}

type RefundDecisionResponse struct {
	RefundID   int64  `json:"refund_id"`
	PurchaseID int64  `json:"purchase_id"`
	Status     string `json:"status"`
	Idempotent bool   `json:"idempotent"`
}
