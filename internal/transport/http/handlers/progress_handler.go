package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	pgrepo "github.com/learnado/backend/internal/repo/postgres"
	authsvc "github.com/learnado/backend/internal/services/auth"
	progresssvc "github.com/learnado/backend/internal/services/progress"
	"github.com/learnado/backend/internal/transport/http/dto"
	httperrors "github.com/learnado/backend/internal/transport/http/errors"
)

type ProgressHandler struct {
	progress *progresssvc.Service
}

func NewProgressHandler(progress *progresssvc.Service) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

func (h *ProgressHandler) Track(w http.ResponseWriter, r *http.Request) {
	identity, req, ok := h.decodeTrack(w, r)
	if !ok {
		return
	}

	record, err := h.progress.Track(r.Context(), identity, progresssvc.TrackInput{
		UserID:     identity.UserID,
		LessonID:   req.LessonID,
		CourseID:   req.CourseID,
		WatchedSec: req.WatchedSec,
	})
	if err != nil {
		h.handleProgressError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, progressResponse(record))
}

func (h *ProgressHandler) Complete(w http.ResponseWriter, r *http.Request) {
	identity, req, ok := h.decodeTrack(w, r)
	if !ok {
		return
	}

	result, err := h.progress.Complete(r.Context(), identity, progresssvc.TrackInput{
		UserID:     identity.UserID,
		LessonID:   req.LessonID,
		CourseID:   req.CourseID,
		WatchedSec: req.WatchedSec,
	})
	if err != nil {
		h.handleProgressError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ProgressCompleteResponse{
		Progress:        progressResponse(result.Record),
		Idempotent:      result.AlreadyComplete,
		CourseCompleted: result.CourseCompleted,
	})
}

func (h *ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.progress == nil {
		writeInternal(w, "PROGRESS_SERVICE_UNAVAILABLE", "progress service is unavailable")
		return
	}

	lessonID, err := strconv.ParseInt(chi.URLParam(r, "lesson_id"), 10, 64)
	if err != nil || lessonID <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid lesson id")
		return
	}

	record, err := h.progress.Get(r.Context(), identity.UserID, lessonID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrProgressNotFound) {
			writeNotFound(w, "PROGRESS_NOT_FOUND", "no progress recorded for lesson")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to load progress")
		return
	}

	httperrors.Write(w, http.StatusOK, progressResponse(record))
}

func (h *ProgressHandler) decodeTrack(w http.ResponseWriter, r *http.Request) (authsvc.Identity, dto.ProgressTrackRequest, bool) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return authsvc.Identity{}, dto.ProgressTrackRequest{}, false
	}
	if h.progress == nil {
		writeInternal(w, "PROGRESS_SERVICE_UNAVAILABLE", "progress service is unavailable")
		return authsvc.Identity{}, dto.ProgressTrackRequest{}, false
	}

	var req dto.ProgressTrackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return authsvc.Identity{}, dto.ProgressTrackRequest{}, false
	}

	return identity, req, true
}

func (h *ProgressHandler) handleProgressError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, progresssvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid progress payload")
	case errors.Is(err, progresssvc.ErrForbidden):
		writeForbidden(w, "FORBIDDEN", "progress belongs to another user")
	case errors.Is(err, progresssvc.ErrNotEntitled):
		writeForbidden(w, "NOT_ENTITLED", "user has no access to this course")
	default:
		writeInternal(w, "INTERNAL_ERROR", "failed to record progress")
	}
}

func progressResponse(record pgrepo.ProgressRecord) dto.ProgressResponse {
	return dto.ProgressResponse{
		LessonID:           record.LessonID,
		CourseID:           record.CourseID,
		Completed:          record.Completed,
		WatchedDurationSec: record.WatchedDurationSec,
		LastAccessed:       record.LastAccessed,
		CompletedAt:        record.CompletedAt,
	}
}
