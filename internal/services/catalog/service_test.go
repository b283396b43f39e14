package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	pgrepo "github.com/learnado/backend/internal/repo/postgres"
	redisrepo "github.com/learnado/backend/internal/repo/redis"
)

type stubCourseStore struct {
	courses map[int64]pgrepo.CourseRecord
	lessons map[int64]int

	findCalls int
}

func (s *stubCourseStore) FindByID(_ context.Context, courseID int64) (pgrepo.CourseRecord, error) {
	s.findCalls++
	record, ok := s.courses[courseID]
	if !ok {
		return pgrepo.CourseRecord{}, pgrepo.ErrCourseNotFound
	}
	return record, nil
}

func (s *stubCourseStore) FindByIDs(_ context.Context, courseIDs []int64) (map[int64]pgrepo.CourseRecord, error) {
	s.findCalls++
	result := make(map[int64]pgrepo.CourseRecord, len(courseIDs))
	for _, id := range courseIDs {
		if record, ok := s.courses[id]; ok {
			result[id] = record
		}
	}
	return result, nil
}

func (s *stubCourseStore) CountLessons(_ context.Context, courseID int64) (int, error) {
	return s.lessons[courseID], nil
}

func newTestStore() *stubCourseStore {
	return &stubCourseStore{
		courses: map[int64]pgrepo.CourseRecord{
			1: {ID: 1, Title: "Go Basics", PriceMinor: 5000, Active: true},
			2: {ID: 2, Title: "SQL Deep Dive", PriceMinor: 3000, Active: true},
		},
		lessons: map[int64]int{1: 12, 2: 8},
	}
}

func newTestCache(t *testing.T) *redisrepo.CatalogCacheRepo {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redisrepo.NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() {
		_ = client.Close()
	})

	return redisrepo.NewCatalogCacheRepo(client, 30*time.Second)
}

func TestGetCourseCachesSnapshot(t *testing.T) {
	store := newTestStore()
	svc := NewService(store, newTestCache(t))

	first, err := svc.GetCourse(context.Background(), 1)
	if err != nil {
		t.Fatalf("first GetCourse: %v", err)
	}
	if first.PriceMinor != 5000 {
		t.Fatalf("price = %d, want 5000", first.PriceMinor)
	}

	second, err := svc.GetCourse(context.Background(), 1)
	if err != nil {
		t.Fatalf("second GetCourse: %v", err)
	}
	if second != first {
		t.Fatalf("cached course %+v differs from stored %+v", second, first)
	}
	if store.findCalls != 1 {
		t.Fatalf("store hit %d times, want 1 with warm cache", store.findCalls)
	}
}

func TestGetCoursesMixesCacheHitsAndMisses(t *testing.T) {
	store := newTestStore()
	svc := NewService(store, newTestCache(t))

	if _, err := svc.GetCourse(context.Background(), 1); err != nil {
		t.Fatalf("warm up course 1: %v", err)
	}

	result, err := svc.GetCourses(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("GetCourses: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("resolved %d courses, want 2", len(result))
	}
	if store.findCalls != 2 {
		t.Fatalf("store hit %d times, want 2 (warm up plus miss batch)", store.findCalls)
	}
}

func TestGetCoursesOmitsUnknownIDs(t *testing.T) {
	svc := NewService(newTestStore(), nil)

	result, err := svc.GetCourses(context.Background(), []int64{1, 99})
	if err != nil {
		t.Fatalf("GetCourses: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("resolved %d courses, want 1", len(result))
	}
	if _, ok := result[99]; ok {
		t.Fatalf("unknown course materialized in result")
	}
}

func TestGetCourseWithoutCache(t *testing.T) {
	svc := NewService(newTestStore(), nil)

	course, err := svc.GetCourse(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetCourse: %v", err)
	}
	if course.Title != "SQL Deep Dive" {
		t.Fatalf("title = %q", course.Title)
	}
}

func TestGetCourseNotFound(t *testing.T) {
	svc := NewService(newTestStore(), nil)

	_, err := svc.GetCourse(context.Background(), 404)
	if !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("err = %v, want ErrCourseNotFound", err)
	}
}
