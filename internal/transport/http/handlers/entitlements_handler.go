package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	authsvc "github.com/learnado/backend/internal/services/auth"
	entsvc "github.com/learnado/backend/internal/services/entitlements"
	"github.com/learnado/backend/internal/transport/http/dto"
	httperrors "github.com/learnado/backend/internal/transport/http/errors"
)

type EntitlementsHandler struct {
	entitlements *entsvc.Service
}

func NewEntitlementsHandler(entitlements *entsvc.Service) *EntitlementsHandler {
	return &EntitlementsHandler{entitlements: entitlements}
}

func (h *EntitlementsHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.entitlements == nil {
		writeInternal(w, "ENTITLEMENTS_SERVICE_UNAVAILABLE", "entitlements service is unavailable")
		return
	}

	records, err := h.entitlements.ListActive(r.Context(), identity.UserID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list entitlements")
		return
	}

	items := make([]dto.EntitlementItem, 0, len(records))
	for _, record := range records {
		items = append(items, dto.EntitlementItem{
			CourseID:   record.CourseID,
			PurchaseID: record.PurchaseID,
			GrantedAt:  record.GrantedAt,
		})
	}

	httperrors.Write(w, http.StatusOK, dto.EntitlementsResponse{Items: items})
}

func (h *EntitlementsHandler) Check(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.entitlements == nil {
		writeInternal(w, "ENTITLEMENTS_SERVICE_UNAVAILABLE", "entitlements service is unavailable")
		return
	}

	courseID, err := strconv.ParseInt(chi.URLParam(r, "course_id"), 10, 64)
	if err != nil || courseID <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid course id")
		return
	}

	entitled, err := h.entitlements.IsEntitled(r.Context(), identity.UserID, courseID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to check entitlement")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.EntitlementCheckResponse{
		CourseID: courseID,
		Entitled: entitled,
	})
}
