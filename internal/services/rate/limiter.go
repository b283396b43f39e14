package rate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrValidation = errors.New("validation error")

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Limiter throttles checkout attempts per user with a fixed redis window.
// A redis outage fails open: checkout keeps working without throttling.
type Limiter struct {
	store    WindowStore
	limit    int64
	window   time.Duration
	failOpen bool
}

func NewLimiter(store WindowStore, limit int64, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{store: store, limit: limit, window: window, failOpen: true}
}

// AllowCheckout counts the attempt and reports whether it may proceed. The
// returned seconds tell a throttled caller when the window resets.
func (l *Limiter) AllowCheckout(ctx context.Context, userID int64) (int64, bool, error) {
	if userID <= 0 {
		return 0, false, ErrValidation
	}
	if l == nil || l.store == nil {
		return 0, true, nil
	}

	key := fmt.Sprintf("rate:checkout:%d", userID)
	count, ttl, err := l.store.IncrementWindow(ctx, key, l.window)
	if err != nil {
		if l.failOpen {
			return 0, true, nil
		}
		return 0, false, err
	}

	if count > l.limit {
		retryAfter := int64(ttl / time.Second)
		if retryAfter <= 0 {
			retryAfter = 1
		}
		return retryAfter, false, nil
	}

	return 0, true, nil
}
