package dto

type PaymentWebhookRequest struct {
	PurchaseID        int64  `json:"purchase_id"`
	ProviderPaymentID string `json:"provider_payment_id"`
	Status            string `json:"status"`
	FailureReason     string `json:"failure_reason,omitempty"`
}

type PaymentWebhookResponse struct {
	OK         bool   `json:"ok"`
	PurchaseID int64  `json:"purchase_id"`
	Status     string `json:"status"`
	Idempotent bool   `json:"idempotent"`
}
