package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	paymentsvc "github.com/learnado/backend/internal/services/payments"
	"github.com/learnado/backend/internal/transport/http/dto"
	httperrors "github.com/learnado/backend/internal/transport/http/errors"
)

const (
	webhookStatusSucceeded = "succeeded"
	webhookStatusFailed    = "failed"
)

// PaymentsHandler receives the provider's asynchronous charge outcomes. The
// provider delivers at least once; the service collapses duplicates, so the
// handler answers 200 for every redelivery it recognizes.
type PaymentsHandler struct {
	payments      *paymentsvc.Service
	webhookSecret string
}

func NewPaymentsHandler(payments *paymentsvc.Service, webhookSecret string) *PaymentsHandler {
	return &PaymentsHandler{
		payments:      payments,
		webhookSecret: webhookSecret,
	}
}

func (h *PaymentsHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}
	if !h.authorized(r) {
		writeUnauthorized(w, "UNAUTHORIZED", "invalid webhook credentials")
		return
	}

	var req dto.PaymentWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	switch req.Status {
	case webhookStatusSucceeded:
		h.confirm(w, r, req)
	case webhookStatusFailed:
		h.fail(w, r, req)
	default:
		writeBadRequest(w, "VALIDATION_ERROR", "unsupported webhook status")
	}
}

func (h *PaymentsHandler) confirm(w http.ResponseWriter, r *http.Request, req dto.PaymentWebhookRequest) {
	result, err := h.payments.ConfirmPayment(r.Context(), paymentsvc.ConfirmInput{
		PurchaseID:        req.PurchaseID,
		ProviderPaymentID: req.ProviderPaymentID,
	})
	if err != nil {
		h.handlePaymentError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PaymentWebhookResponse{
		OK:         true,
		PurchaseID: result.PurchaseID,
		Status:     result.Status,
		Idempotent: result.AlreadyApplied,
	})
}

func (h *PaymentsHandler) fail(w http.ResponseWriter, r *http.Request, req dto.PaymentWebhookRequest) {
	result, err := h.payments.FailPayment(r.Context(), req.PurchaseID, req.FailureReason)
	if err != nil {
		h.handlePaymentError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PaymentWebhookResponse{
		OK:         true,
		PurchaseID: result.PurchaseID,
		Status:     result.Status,
		Idempotent: result.AlreadyApplied,
	})
}

func (h *PaymentsHandler) handlePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, paymentsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid webhook payload")
	case errors.Is(err, paymentsvc.ErrPurchaseNotFound):
		writeNotFound(w, "PURCHASE_NOT_FOUND", "purchase not found")
	case errors.Is(err, paymentsvc.ErrInvalidTransition):
		writeConflict(w, "INVALID_TRANSITION", "purchase is not in a confirmable state")
	case errors.Is(err, paymentsvc.ErrProviderConflict):
		writeConflict(w, "PROVIDER_PAYMENT_CONFLICT", "provider payment attached to another purchase")
	case errors.Is(err, paymentsvc.ErrCouponExhausted):
		writeConflict(w, "COUPON_EXHAUSTED", "coupon usage limit reached")
	default:
		writeInternal(w, "INTERNAL_ERROR", "failed to process webhook")
	}
}

func (h *PaymentsHandler) authorized(r *http.Request) bool {
	if h.webhookSecret == "" {
		return true
	}
	provided := r.Header.Get("X-Webhook-Secret")
	return subtle.ConstantTimeCompare([]byte(provided), []byte(h.webhookSecret)) == 1
}
