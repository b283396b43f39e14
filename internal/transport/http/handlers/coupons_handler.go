package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	authsvc "github.com/learnado/backend/internal/services/auth"
	catalogsvc "github.com/learnado/backend/internal/services/catalog"
	couponsvc "github.com/learnado/backend/internal/services/coupons"
	"github.com/learnado/backend/internal/transport/http/dto"
	httperrors "github.com/learnado/backend/internal/transport/http/errors"
)

type CouponsHandler struct {
	coupons *couponsvc.Service
	catalog *catalogsvc.Service
}

func NewCouponsHandler(coupons *couponsvc.Service, catalog *catalogsvc.Service) *CouponsHandler {
	return &CouponsHandler{
		coupons: coupons,
		catalog: catalog,
	}
}

// Quote validates a code against a candidate cart without consuming a use.
// Storefronts call this while the user is still editing the cart.
func (h *CouponsHandler) Quote(w http.ResponseWriter, r *http.Request) {
	if _, ok := authsvc.IdentityFromContext(r.Context()); !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.coupons == nil || h.catalog == nil {
		writeInternal(w, "COUPONS_SERVICE_UNAVAILABLE", "coupons service is unavailable")
		return
	}

	var req dto.CouponQuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	courses, err := h.catalog.GetCourses(r.Context(), req.CourseIDs)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to resolve cart")
		return
	}

	lines := make([]couponsvc.CartLine, 0, len(req.CourseIDs))
	for _, id := range req.CourseIDs {
		course, ok := courses[id]
		if !ok || !course.Active {
			writeBadRequest(w, "COURSE_UNAVAILABLE", "a requested course is inactive or absent")
			return
		}
		lines = append(lines, couponsvc.CartLine{CourseID: id, PriceMinor: course.PriceMinor})
	}

	quote, err := h.coupons.QuoteForCart(r.Context(), req.Code, lines)
	if err != nil {
		h.handleCouponError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CouponQuoteResponse{
		Code:          quote.Code,
		DiscountMinor: quote.DiscountMinor,
	})
}

func (h *CouponsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req dto.CouponCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	result, err := h.coupons.Create(r.Context(), couponsvc.CreateInput{
		Code:          req.Code,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		ExpiresAt:     req.ExpiresAt,
		MaxUses:       req.MaxUses,
		CourseIDs:     req.CourseIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, couponsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid coupon payload")
		case errors.Is(err, couponsvc.ErrCouponCodeTaken):
			writeConflict(w, "COUPON_CODE_TAKEN", "coupon code already exists")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to create coupon")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CouponCreateResponse{
		CouponID: result.CouponID,
		Code:     result.Code,
	})
}

func (h *CouponsHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	couponID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || couponID <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid coupon id")
		return
	}

	if err := h.coupons.Deactivate(r.Context(), couponID); err != nil {
		switch {
		case errors.Is(err, couponsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid coupon id")
		case errors.Is(err, couponsvc.ErrCouponNotFound):
			writeNotFound(w, "COUPON_NOT_FOUND", "coupon not found")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to deactivate coupon")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CouponDeactivateResponse{OK: true})
}

func (h *CouponsHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return false
	}
	if h.coupons == nil {
		writeInternal(w, "COUPONS_SERVICE_UNAVAILABLE", "coupons service is unavailable")
		return false
	}
	if !authsvc.CanManageCoupons(identity) {
		writeForbidden(w, "FORBIDDEN", "coupon management is admin only")
		return false
	}
	return true
}

func (h *CouponsHandler) handleCouponError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, couponsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid coupon quote payload")
	case errors.Is(err, couponsvc.ErrCouponNotFound):
		writeNotFound(w, "COUPON_NOT_FOUND", "coupon not found")
	case errors.Is(err, couponsvc.ErrCouponExpired),
		errors.Is(err, couponsvc.ErrCouponExhausted),
		errors.Is(err, couponsvc.ErrCouponInactive),
		errors.Is(err, couponsvc.ErrCouponNotApplicable):
		writeConflict(w, "COUPON_REJECTED", "coupon cannot be applied to this cart")
	default:
		writeInternal(w, "INTERNAL_ERROR", "failed to quote coupon")
	}
}
