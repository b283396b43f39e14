package expire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	paymentsvc "github.com/learnado/backend/internal/services/payments"
)

// expireReason is recorded on purchases whose payment window ran out.
const expireReason = "payment window expired"

type PendingLister interface {
	ListStalePendingIDs(ctx context.Context, cutoff time.Time, limit int) ([]int64, error)
}

type PaymentFailer interface {
	FailPayment(ctx context.Context, purchaseID int64, reason string) (paymentsvc.FailResult, error)
}

// Job sweeps purchases that stayed pending past the payment window and
// fails them through the regular payment transition, so the state machine
// rules hold for expiry exactly as they do for webhooks.
type Job struct {
	purchases  PendingLister
	payments   PaymentFailer
	pendingTTL time.Duration
	batchSize  int
	now        func() time.Time
	logger     *zap.Logger
}

func NewJob(purchases PendingLister, payments PaymentFailer, pendingTTL time.Duration, batchSize int, logger *zap.Logger) *Job {
	if pendingTTL <= 0 {
		pendingTTL = 30 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		purchases:  purchases,
		payments:   payments,
		pendingTTL: pendingTTL,
		batchSize:  batchSize,
		now:        time.Now,
		logger:     logger,
	}
}

// Run performs a single sweep. A purchase confirmed between listing and
// failing loses the race to the webhook; that transition conflict is not an
// error for the sweep.
func (j *Job) Run(ctx context.Context) error {
	if j.purchases == nil || j.payments == nil {
		return nil
	}

	cutoff := j.now().Add(-j.pendingTTL)
	ids, err := j.purchases.ListStalePendingIDs(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("list stale pending purchases: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	expired := 0
	for _, id := range ids {
		if _, err := j.payments.FailPayment(ctx, id, expireReason); err != nil {
			if errors.Is(err, paymentsvc.ErrInvalidTransition) {
				j.logger.Debug("purchase left pending state before expiry", zap.Int64("purchase_id", id))
				continue
			}
			return fmt.Errorf("expire purchase %d: %w", id, err)
		}
		expired++
	}

	if expired > 0 {
		j.logger.Info("expired stale pending purchases", zap.Int("expired", expired))
	}
	return nil
}

// RunLoop sweeps immediately and then on every tick until ctx is canceled.
func (j *Job) RunLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	if err := j.Run(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				return err
			}
		}
	}
}
