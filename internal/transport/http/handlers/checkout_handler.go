package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	pgrepo "github.com/learnado/backend/internal/repo/postgres"
	authsvc "github.com/learnado/backend/internal/services/auth"
	couponsvc "github.com/learnado/backend/internal/services/coupons"
	ordersvc "github.com/learnado/backend/internal/services/orders"
	"github.com/learnado/backend/internal/transport/http/dto"
	httperrors "github.com/learnado/backend/internal/transport/http/errors"
)

type CheckoutHandler struct {
	orders *ordersvc.Service
}

func NewCheckoutHandler(orders *ordersvc.Service) *CheckoutHandler {
	return &CheckoutHandler{orders: orders}
}

func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.orders == nil {
		writeInternal(w, "ORDERS_SERVICE_UNAVAILABLE", "orders service is unavailable")
		return
	}
	if !authsvc.CanCheckout(identity, identity.UserID) {
		writeForbidden(w, "FORBIDDEN", "checkout is not permitted")
		return
	}

	var req dto.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	result, err := h.orders.Checkout(r.Context(), identity.UserID, ordersvc.BuildInput{
		CourseIDs:     req.CourseIDs,
		CouponCode:    req.CouponCode,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		h.handleCheckoutError(w, result, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CheckoutResponse{
		PurchaseID:      result.PurchaseID,
		CourseIDs:       result.CourseIDs,
		TotalMinor:      result.TotalMinor,
		DiscountMinor:   result.DiscountMinor,
		FinalMinor:      result.FinalMinor,
		Status:          result.Status,
		ChargeRequested: result.ChargeRequested,
	})
}

func (h *CheckoutHandler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.orders == nil {
		writeInternal(w, "ORDERS_SERVICE_UNAVAILABLE", "orders service is unavailable")
		return
	}

	purchaseID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || purchaseID <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid purchase id")
		return
	}

	record, err := h.orders.Get(r.Context(), identity.UserID, purchaseID)
	if err != nil {
		switch {
		case errors.Is(err, ordersvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid purchase lookup")
		case errors.Is(err, pgrepo.ErrPurchaseNotFound):
			writeNotFound(w, "PURCHASE_NOT_FOUND", "purchase not found")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to load purchase")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, purchaseResponse(record))
}

func (h *CheckoutHandler) handleCheckoutError(w http.ResponseWriter, result ordersvc.CheckoutResult, err error) {
	switch {
	case errors.Is(err, ordersvc.ErrTooManyAttempts):
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
			Code:          "TOO_MANY_ATTEMPTS",
			Message:       "too many checkout attempts",
			RetryAfterSec: result.RetryAfterSec,
		})
	case errors.Is(err, ordersvc.ErrValidation), errors.Is(err, ordersvc.ErrEmptyCart):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid checkout payload")
	case errors.Is(err, ordersvc.ErrCourseUnavailable):
		writeBadRequest(w, "COURSE_UNAVAILABLE", "a requested course is inactive or absent")
	case errors.Is(err, couponsvc.ErrCouponNotFound):
		writeNotFound(w, "COUPON_NOT_FOUND", "coupon not found")
	case errors.Is(err, couponsvc.ErrCouponExpired),
		errors.Is(err, couponsvc.ErrCouponExhausted),
		errors.Is(err, couponsvc.ErrCouponInactive),
		errors.Is(err, couponsvc.ErrCouponNotApplicable):
		writeConflict(w, "COUPON_REJECTED", "coupon cannot be applied to this cart")
	case errors.Is(err, ordersvc.ErrProviderUnavailable):
		// The pending purchase survives; the client can retry the charge.
		httperrors.Write(w, http.StatusBadGateway, dto.CheckoutResponse{
			PurchaseID:    result.PurchaseID,
			CourseIDs:     result.CourseIDs,
			TotalMinor:    result.TotalMinor,
			DiscountMinor: result.DiscountMinor,
			FinalMinor:    result.FinalMinor,
			Status:        result.Status,
		})
	default:
		writeInternal(w, "INTERNAL_ERROR", "checkout failed")
	}
}

func purchaseResponse(record pgrepo.PurchaseRecord) dto.PurchaseResponse {
	lines := make([]dto.PurchaseLine, 0, len(record.Lines))
	for _, line := range record.Lines {
		lines = append(lines, dto.PurchaseLine{CourseID: line.CourseID, PriceMinor: line.PriceMinor})
	}

	return dto.PurchaseResponse{
		PurchaseID:    record.ID,
		CourseIDs:     record.CourseIDs(),
		Lines:         lines,
		TotalMinor:    record.TotalMinor,
		DiscountMinor: record.DiscountMinor,
		FinalMinor:    record.FinalMinor,
		PaymentMethod: record.PaymentMethod,
		Status:        record.Status,
	}
}
