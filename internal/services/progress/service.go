package progress

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	pgrepo "github.com/learnado/backend/internal/repo/postgres"
	authsvc "github.com/learnado/backend/internal/services/auth"
	"github.com/learnado/backend/internal/services/notify"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrForbidden   = errors.New("progress row belongs to another user")
	ErrNotEntitled = errors.New("user is not entitled to the course")
)

type Store interface {
	Upsert(ctx context.Context, userID, lessonID, courseID int64, watchedSec int) (pgrepo.ProgressRecord, error)
	Complete(ctx context.Context, userID, lessonID, courseID int64, watchedSec int) (pgrepo.ProgressRecord, bool, error)
	Find(ctx context.Context, userID, lessonID int64) (pgrepo.ProgressRecord, error)
	CountCompleted(ctx context.Context, userID, courseID int64) (int, error)
}

type EntitlementChecker interface {
	IsEntitled(ctx context.Context, userID, courseID int64) (bool, error)
}

type LessonCounter interface {
	CountLessons(ctx context.Context, courseID int64) (int, error)
}

// Service tracks per-lesson watch progress for entitled users. Watched
// duration only moves forward and completion flips once; the call that
// completes the last lesson of a course emits the course completion event.
type Service struct {
	store        Store
	entitlements EntitlementChecker
	catalog      LessonCounter

	notifier notify.Notifier
	logger   *zap.Logger
}

type Dependencies struct {
	Store        Store
	Entitlements EntitlementChecker
	Catalog      LessonCounter
}

type TrackInput struct {
	UserID     int64
	LessonID   int64
	CourseID   int64
	WatchedSec int
}

type CompleteResult struct {
	Record          pgrepo.ProgressRecord
	AlreadyComplete bool
	CourseCompleted bool
}

func NewService(deps Dependencies) *Service {
	return &Service{
		store:        deps.Store,
		entitlements: deps.Entitlements,
		catalog:      deps.Catalog,
		notifier:     notify.Nop{},
		logger:       zap.NewNop(),
	}
}

func (s *Service) AttachNotifier(notifier notify.Notifier, logger *zap.Logger) {
	if notifier != nil {
		s.notifier = notifier
	}
	if logger != nil {
		s.logger = logger
	}
}

// Track records watched duration for a lesson. Reports never move the stored
// value backwards, so retries and out-of-order deliveries are harmless.
func (s *Service) Track(ctx context.Context, identity authsvc.Identity, in TrackInput) (pgrepo.ProgressRecord, error) {
	if err := s.authorize(ctx, identity, in); err != nil {
		return pgrepo.ProgressRecord{}, err
	}

	return s.store.Upsert(ctx, in.UserID, in.LessonID, in.CourseID, in.WatchedSec)
}

// Complete marks the lesson finished. Exactly one call flips the row; that
// call also checks whether the whole course is now complete and fires the
// completion event once.
func (s *Service) Complete(ctx context.Context, identity authsvc.Identity, in TrackInput) (CompleteResult, error) {
	if err := s.authorize(ctx, identity, in); err != nil {
		return CompleteResult{}, err
	}
	if s.catalog == nil {
		return CompleteResult{}, fmt.Errorf("lesson counter is nil")
	}

	record, changed, err := s.store.Complete(ctx, in.UserID, in.LessonID, in.CourseID, in.WatchedSec)
	if err != nil {
		return CompleteResult{}, err
	}

	result := CompleteResult{Record: record, AlreadyComplete: !changed}
	if !changed {
		return result, nil
	}

	completed, err := s.store.CountCompleted(ctx, in.UserID, in.CourseID)
	if err != nil {
		s.logger.Warn("course completion check failed",
			zap.Int64("course_id", in.CourseID),
			zap.Error(err),
		)
		return result, nil
	}

	total, err := s.catalog.CountLessons(ctx, in.CourseID)
	if err != nil {
		s.logger.Warn("course lesson count failed",
			zap.Int64("course_id", in.CourseID),
			zap.Error(err),
		)
		return result, nil
	}

	if total > 0 && completed >= total {
		result.CourseCompleted = true
		if err := s.notifier.CourseCompleted(ctx, notify.CourseCompletedEvent{
			UserID:   in.UserID,
			CourseID: in.CourseID,
		}); err != nil {
			s.logger.Warn("course completed notification failed",
				zap.Int64("course_id", in.CourseID),
				zap.Error(err),
			)
		}
	}

	return result, nil
}

func (s *Service) Get(ctx context.Context, userID, lessonID int64) (pgrepo.ProgressRecord, error) {
	if userID <= 0 || lessonID <= 0 {
		return pgrepo.ProgressRecord{}, ErrValidation
	}
	if s.store == nil {
		return pgrepo.ProgressRecord{}, fmt.Errorf("progress store is nil")
	}

	return s.store.Find(ctx, userID, lessonID)
}

func (s *Service) authorize(ctx context.Context, identity authsvc.Identity, in TrackInput) error {
	if in.UserID <= 0 || in.LessonID <= 0 || in.CourseID <= 0 || in.WatchedSec < 0 {
		return ErrValidation
	}
	if !authsvc.CanTrackProgress(identity, in.UserID) {
		return ErrForbidden
	}
	if s.store == nil || s.entitlements == nil {
		return fmt.Errorf("progress service dependencies are not configured")
	}

	entitled, err := s.entitlements.IsEntitled(ctx, in.UserID, in.CourseID)
	if err != nil {
		return err
	}
	if !entitled {
		return ErrNotEntitled
	}

	return nil
}
