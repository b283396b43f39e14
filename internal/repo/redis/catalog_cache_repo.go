package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const courseSnapshotPrefix = "catalog:course:"

// CatalogCacheRepo holds short-lived course snapshots so checkout pricing
// does not hammer the courses table. Entries may be slightly stale; the
// purchase itself always snapshots the price it was built with.
type CatalogCacheRepo struct {
	client *goredis.Client
	ttl    time.Duration
}

type CourseSnapshot struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	PriceMinor int64  `json:"price_minor"`
	Active     bool   `json:"active"`
}

func NewCatalogCacheRepo(client *goredis.Client, ttl time.Duration) *CatalogCacheRepo {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CatalogCacheRepo{client: client, ttl: ttl}
}

func (r *CatalogCacheRepo) Get(ctx context.Context, courseID int64) (CourseSnapshot, bool, error) {
	if r.client == nil {
		return CourseSnapshot{}, false, nil
	}
	if courseID <= 0 {
		return CourseSnapshot{}, false, fmt.Errorf("invalid course id")
	}

	raw, err := r.client.Get(ctx, courseSnapshotKey(courseID)).Bytes()
	if err == goredis.Nil {
		return CourseSnapshot{}, false, nil
	}
	if err != nil {
		return CourseSnapshot{}, false, fmt.Errorf("get course snapshot: %w", err)
	}

	var snapshot CourseSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return CourseSnapshot{}, false, nil
	}

	return snapshot, true, nil
}

func (r *CatalogCacheRepo) Set(ctx context.Context, snapshot CourseSnapshot) error {
	if r.client == nil {
		return nil
	}
	if snapshot.ID <= 0 {
		return fmt.Errorf("invalid course snapshot")
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal course snapshot: %w", err)
	}

	if err := r.client.Set(ctx, courseSnapshotKey(snapshot.ID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("set course snapshot: %w", err)
	}

	return nil
}

func (r *CatalogCacheRepo) Invalidate(ctx context.Context, courseID int64) error {
	if r.client == nil {
		return nil
	}
	if courseID <= 0 {
		return fmt.Errorf("invalid course id")
	}

	if err := r.client.Del(ctx, courseSnapshotKey(courseID)).Err(); err != nil {
		return fmt.Errorf("invalidate course snapshot: %w", err)
	}

	return nil
}

func courseSnapshotKey(courseID int64) string {
	return fmt.Sprintf("%s%d", courseSnapshotPrefix, courseID)
}
