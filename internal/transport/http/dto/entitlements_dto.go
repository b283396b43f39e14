package dto

import "time"

type EntitlementItem struct {
	CourseID   int64     `json:"course_id"`
	PurchaseID int64     `json:"purchase_id"`
	GrantedAt  time.Time `json:"granted_at"`
}

type EntitlementsResponse struct {
	Items []EntitlementItem `json:"items"`
}

type EntitlementCheckResponse struct {
	CourseID int64 `json:"course_id"`
	Entitled bool  `json:"entitled"`
}
