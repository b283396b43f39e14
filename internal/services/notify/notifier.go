package notify

import "context"

// Notifier delivers lifecycle events to the user-facing notification
// channel. Delivery is best effort: callers fire after commit and only log
// failures, so implementations must never block business flows for long.
type Notifier interface {
	PurchaseConfirmed(ctx context.Context, event PurchaseConfirmedEvent) error
	RefundDecided(ctx context.Context, event RefundDecidedEvent) error
	CourseCompleted(ctx context.Context, event CourseCompletedEvent) error
}

type PurchaseConfirmedEvent struct {
	UserID      int64   `json:"user_id"`
	PurchaseID  int64   `json:"purchase_id"`
	CourseIDs   []int64 `json:"course_ids"`
	AmountMinor int64   `json:"amount_minor"`
}

type RefundDecidedEvent struct {
	UserID     int64  `json:"user_id"`
	RefundID   int64  `json:"refund_id"`
	PurchaseID int64  `json:"purchase_id"`
	Approved   bool   `json:"approved"`
	Reason     string `json:"reason,omitempty"`
}

type CourseCompletedEvent struct {
	UserID   int64 `json:"user_id"`
	CourseID int64 `json:"course_id"`
}

// Nop discards every event. Used when the notification channel is not
// configured.
type Nop struct{}

func (Nop) PurchaseConfirmed(context.Context, PurchaseConfirmedEvent) error { return nil }
func (Nop) RefundDecided(context.Context, RefundDecidedEvent) error         { return nil }
func (Nop) CourseCompleted(context.Context, CourseCompletedEvent) error     { return nil }
