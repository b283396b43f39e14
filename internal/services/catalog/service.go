package catalog

import (
	"context"
	"errors"
	"fmt"

	pgrepo "github.com/learnado/backend/internal/repo/postgres"
	redrepo "github.com/learnado/backend/internal/repo/redis"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrCourseNotFound = errors.New("course not found")
)

type CourseStore interface {
	FindByID(ctx context.Context, courseID int64) (pgrepo.CourseRecord, error)
	FindByIDs(ctx context.Context, courseIDs []int64) (map[int64]pgrepo.CourseRecord, error)
	CountLessons(ctx context.Context, courseID int64) (int, error)
}

type SnapshotCache interface {
	Get(ctx context.Context, courseID int64) (redrepo.CourseSnapshot, bool, error)
	Set(ctx context.Context, snapshot redrepo.CourseSnapshot) error
}

// Service is the read-only catalog reference the purchase core consumes.
// Lookups go through a short-TTL cache; staleness is acceptable because the
// purchase snapshots the price it was priced with.
type Service struct {
	courses CourseStore
	cache   SnapshotCache
}

type Course struct {
	ID         int64
	Title      string
	PriceMinor int64
	Active     bool
}

func NewService(courses CourseStore, cache SnapshotCache) *Service {
	return &Service{
		courses: courses,
		cache:   cache,
	}
}

func (s *Service) GetCourse(ctx context.Context, courseID int64) (Course, error) {
	if courseID <= 0 {
		return Course{}, ErrValidation
	}
	if s.courses == nil {
		return Course{}, fmt.Errorf("course store is nil")
	}

	if s.cache != nil {
		if snapshot, ok, err := s.cache.Get(ctx, courseID); err == nil && ok {
			return courseFromSnapshot(snapshot), nil
		}
	}

	record, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrCourseNotFound) {
			return Course{}, ErrCourseNotFound
		}
		return Course{}, err
	}

	s.cacheRecord(ctx, record)

	return courseFromRecord(record), nil
}

// GetCourses resolves a de-duplicated id set. Absent ids are simply missing
// from the result map; callers decide whether that is an error.
func (s *Service) GetCourses(ctx context.Context, courseIDs []int64) (map[int64]Course, error) {
	if len(courseIDs) == 0 {
		return map[int64]Course{}, nil
	}
	if s.courses == nil {
		return nil, fmt.Errorf("course store is nil")
	}

	result := make(map[int64]Course, len(courseIDs))
	var misses []int64

	for _, id := range courseIDs {
		if id <= 0 {
			return nil, ErrValidation
		}
		if s.cache != nil {
			if snapshot, ok, err := s.cache.Get(ctx, id); err == nil && ok {
				result[id] = courseFromSnapshot(snapshot)
				continue
			}
		}
		misses = append(misses, id)
	}

	if len(misses) > 0 {
		records, err := s.courses.FindByIDs(ctx, misses)
		if err != nil {
			return nil, err
		}
		for id, record := range records {
			result[id] = courseFromRecord(record)
			s.cacheRecord(ctx, record)
		}
	}

	return result, nil
}

func (s *Service) CountLessons(ctx context.Context, courseID int64) (int, error) {
	if courseID <= 0 {
		return 0, ErrValidation
	}
	if s.courses == nil {
		return 0, fmt.Errorf("course store is nil")
	}

	return s.courses.CountLessons(ctx, courseID)
}

func (s *Service) cacheRecord(ctx context.Context, record pgrepo.CourseRecord) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, redrepo.CourseSnapshot{
		ID:         record.ID,
		Title:      record.Title,
		PriceMinor: record.PriceMinor,
		Active:     record.Active,
	})
}

func courseFromRecord(record pgrepo.CourseRecord) Course {
	return Course{
		ID:         record.ID,
		Title:      record.Title,
		PriceMinor: record.PriceMinor,
		Active:     record.Active,
	}
}

func courseFromSnapshot(snapshot redrepo.CourseSnapshot) Course {
	return Course{
		ID:         snapshot.ID,
		Title:      snapshot.Title,
		PriceMinor: snapshot.PriceMinor,
		Active:     snapshot.Active,
	}
}
