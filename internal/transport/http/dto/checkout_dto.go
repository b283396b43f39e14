package dto

type CheckoutRequest struct {
	CourseIDs     []int64 `json:"course_ids"`
	CouponCode    string  `json:"coupon_code,omitempty"`
	PaymentMethod string  `json:"payment_method"`
}

type CheckoutResponse struct {
	PurchaseID      int64   `json:"purchase_id"`
	CourseIDs       []int64 `json:"course_ids"`
	TotalMinor      int64   `json:"total_minor"`
	DiscountMinor   int64   `json:"discount_minor"`
	FinalMinor      int64   `json:"final_minor"`
	Status          string  `json:"status"`
	ChargeRequested bool    `json:"charge_requested"`
}

type PurchaseLine struct {
	CourseID   int64 `json:"course_id"`
	PriceMinor int64 `json:"price_minor"`
}

type PurchaseResponse struct {
	PurchaseID    int64          `json:"purchase_id"`
	CourseIDs     []int64        `json:"course_ids"`
	Lines         []PurchaseLine `json:"lines"`
	TotalMinor    int64          `json:"total_minor"`
	DiscountMinor int64          `json:"discount_minor"`
	FinalMinor    int64          `json:"final_minor"`
	PaymentMethod string         `json:"payment_method"`
	Status        string         `json:"status"`
}
