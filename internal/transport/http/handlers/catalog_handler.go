package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	catalogsvc "github.com/learnado/backend/internal/services/catalog"
	"github.com/learnado/backend/internal/transport/http/dto"
	httperrors "github.com/learnado/backend/internal/transport/http/errors"
)

type CatalogHandler struct {
	catalog *catalogsvc.Service
}

func NewCatalogHandler(catalog *catalogsvc.Service) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeInternal(w, "CATALOG_SERVICE_UNAVAILABLE", "catalog service is unavailable")
		return
	}

	courseID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || courseID <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid course id")
		return
	}

	course, err := h.catalog.GetCourse(r.Context(), courseID)
	if err != nil {
		switch {
		case errors.Is(err, catalogsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid course id")
		case errors.Is(err, catalogsvc.ErrCourseNotFound):
			writeNotFound(w, "COURSE_NOT_FOUND", "course not found")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to load course")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CourseResponse{
		ID:         course.ID,
		Title:      course.Title,
		PriceMinor: course.PriceMinor,
		Active:     course.Active,
	})
}
