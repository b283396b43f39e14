package model

import (
	"time"

	"github.com/learnado/backend/internal/domain/enums"
)

type Refund struct {
	ID              int64              `json:"id"`
	PurchaseID      int64              `json:"purchase_id"`
	UserID          int64              `json:"user_id"`
	AmountMinor     int64              `json:"amount_minor"`
	Status          enums.RefundStatus `json:"status"`
	Reason          string             `json:"reason"`
	RejectionReason *string            `json:"rejection_reason,omitempty"`
	RequestedAt     time.Time          `json:"requested_at"`
	ProcessedAt     *time.Time         `json:"processed_at,omitempty"`
}
