package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisrepo "github.com/learnado/backend/internal/repo/redis"
)

func newTestLimiter(t *testing.T, limit int64, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redisrepo.NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() {
		_ = client.Close()
	})

	return NewLimiter(redisrepo.NewRateRepo(client), limit, window), mr
}

func TestAllowCheckoutWithinLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		_, allowed, err := limiter.AllowCheckout(context.Background(), 1)
		if err != nil {
			t.Fatalf("AllowCheckout attempt %d: %v", i+1, err)
		}
		if !allowed {
			t.Fatalf("attempt %d throttled below the limit", i+1)
		}
	}
}

func TestAllowCheckoutThrottlesOverLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2, time.Minute)

	for i := 0; i < 2; i++ {
		if _, _, err := limiter.AllowCheckout(context.Background(), 1); err != nil {
			t.Fatalf("AllowCheckout attempt %d: %v", i+1, err)
		}
	}

	retryAfter, allowed, err := limiter.AllowCheckout(context.Background(), 1)
	if err != nil {
		t.Fatalf("AllowCheckout over limit: %v", err)
	}
	if allowed {
		t.Fatalf("attempt over the limit was allowed")
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Fatalf("retry after = %d, want within the window", retryAfter)
	}
}

func TestAllowCheckoutWindowResets(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, time.Minute)

	if _, _, err := limiter.AllowCheckout(context.Background(), 1); err != nil {
		t.Fatalf("AllowCheckout: %v", err)
	}
	if _, allowed, _ := limiter.AllowCheckout(context.Background(), 1); allowed {
		t.Fatalf("second attempt in window was allowed")
	}

	mr.FastForward(time.Minute + time.Second)

	_, allowed, err := limiter.AllowCheckout(context.Background(), 1)
	if err != nil {
		t.Fatalf("AllowCheckout after window: %v", err)
	}
	if !allowed {
		t.Fatalf("attempt after window reset was throttled")
	}
}

func TestAllowCheckoutIsPerUser(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)

	if _, _, err := limiter.AllowCheckout(context.Background(), 1); err != nil {
		t.Fatalf("AllowCheckout user 1: %v", err)
	}

	_, allowed, err := limiter.AllowCheckout(context.Background(), 2)
	if err != nil {
		t.Fatalf("AllowCheckout user 2: %v", err)
	}
	if !allowed {
		t.Fatalf("user 2 throttled by user 1 traffic")
	}
}
