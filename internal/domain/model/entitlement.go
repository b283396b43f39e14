package model

import "time"

type Entitlement struct {
	UserID     int64      `json:"user_id"`
	CourseID   int64      `json:"course_id"`
	PurchaseID int64      `json:"purchase_id"`
	GrantedAt  time.Time  `json:"granted_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}
