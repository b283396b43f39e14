package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	pgrepo "github.com/learnado/backend/internal/repo/postgres"
	authsvc "github.com/learnado/backend/internal/services/auth"
	refundsvc "github.com/learnado/backend/internal/services/refunds"
	"github.com/learnado/backend/internal/transport/http/dto"
	httperrors "github.com/learnado/backend/internal/transport/http/errors"
)

type RefundsHandler struct {
	refunds *refundsvc.Service
}

func NewRefundsHandler(refunds *refundsvc.Service) *RefundsHandler {
	return &RefundsHandler{refunds: refunds}
}

func (h *RefundsHandler) Request(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.refunds == nil {
		writeInternal(w, "REFUNDS_SERVICE_UNAVAILABLE", "refunds service is unavailable")
		return
	}

	var req dto.RefundRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	record, err := h.refunds.Request(r.Context(), identity, refundsvc.RequestInput{
		PurchaseID:  req.PurchaseID,
		AmountMinor: req.AmountMinor,
		Reason:      req.Reason,
	})
	if err != nil {
		switch {
		case errors.Is(err, refundsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid refund request payload")
		case errors.Is(err, refundsvc.ErrPurchaseNotFound):
			writeNotFound(w, "PURCHASE_NOT_FOUND", "purchase not found")
		case errors.Is(err, refundsvc.ErrPurchaseNotRefundable):
			writeConflict(w, "PURCHASE_NOT_REFUNDABLE", "purchase is not in a refundable state")
		case errors.Is(err, refundsvc.ErrAmountTooLarge):
			writeBadRequest(w, "AMOUNT_TOO_LARGE", "refund amount exceeds amount paid")
		case errors.Is(err, refundsvc.ErrAlreadyPending):
			writeConflict(w, "REFUND_ALREADY_PENDING", "an open refund already exists for this purchase")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to open refund")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, refundResponse(record))
}

func (h *RefundsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	refundID, ok := h.staffRefundID(w, r)
	if !ok {
		return
	}

	decision, err := h.refunds.Approve(r.Context(), refundID)
	if err != nil {
		h.handleDecisionError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.RefundDecisionResponse{
		RefundID:   decision.RefundID,
		PurchaseID: decision.PurchaseID,
		Status:     decision.Status,
		Idempotent: decision.AlreadyDecided,
	})
}

func (h *RefundsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	refundID, ok := h.staffRefundID(w, r)
	if !ok {
		return
	}

	var req dto.RefundRejectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	decision, err := h.refunds.Reject(r.Context(), refundID, req.RejectionReason)
	if err != nil {
		h.handleDecisionError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.RefundDecisionResponse{
		RefundID:   decision.RefundID,
		PurchaseID: decision.PurchaseID,
		Status:     decision.Status,
		Idempotent: decision.AlreadyDecided,
	})
}

func (h *RefundsHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.refunds == nil {
		writeInternal(w, "REFUNDS_SERVICE_UNAVAILABLE", "refunds service is unavailable")
		return
	}

	refundID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || refundID <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid refund id")
		return
	}

	record, err := h.refunds.Get(r.Context(), refundID)
	if err != nil {
		if errors.Is(err, refundsvc.ErrRefundNotFound) {
			writeNotFound(w, "REFUND_NOT_FOUND", "refund not found")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to load refund")
		return
	}

	if record.UserID != identity.UserID && !authsvc.CanDecideRefund(identity) {
		writeNotFound(w, "REFUND_NOT_FOUND", "refund not found")
		return
	}

	httperrors.Write(w, http.StatusOK, refundResponse(record))
}

func (h *RefundsHandler) staffRefundID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return 0, false
	}
	if h.refunds == nil {
		writeInternal(w, "REFUNDS_SERVICE_UNAVAILABLE", "refunds service is unavailable")
		return 0, false
	}
	if !authsvc.CanDecideRefund(identity) {
		writeForbidden(w, "FORBIDDEN", "refund decisions are staff only")
		return 0, false
	}

	refundID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || refundID <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid refund id")
		return 0, false
	}

	return refundID, true
}

func (h *RefundsHandler) handleDecisionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, refundsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid refund decision payload")
	case errors.Is(err, refundsvc.ErrRefundNotFound):
		writeNotFound(w, "REFUND_NOT_FOUND", "refund not found")
	case errors.Is(err, refundsvc.ErrAlreadyDecided):
		writeConflict(w, "REFUND_ALREADY_DECIDED", "refund was already decided")
	default:
		writeInternal(w, "INTERNAL_ERROR", "failed to decide refund")
	}
}

func refundResponse(record pgrepo.RefundRecord) dto.RefundResponse {
	return dto.RefundResponse{
		RefundID:        record.ID,
		PurchaseID:      record.PurchaseID,
		AmountMinor:     record.AmountMinor,
		Status:          record.Status,
		Reason:          record.Reason,
		RejectionReason: record.RejectionReason,
		RequestedAt:     record.RequestedAt,
		ProcessedAt:     record.ProcessedAt,
	}
}
