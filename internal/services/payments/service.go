package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/learnado/backend/internal/domain/enums"
	pgrepo "github.com/learnado/backend/internal/repo/postgres"
	"github.com/learnado/backend/internal/services/notify"
	"github.com/learnado/backend/internal/services/receipts"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrPurchaseNotFound  = errors.New("purchase not found")
	ErrInvalidTransition = errors.New("invalid payment transition")
	ErrCouponExhausted   = errors.New("coupon usage limit reached")
	ErrProviderConflict  = errors.New("provider payment attached to another purchase")
)

type PurchaseStore interface {
	FindByID(ctx context.Context, purchaseID int64) (pgrepo.PurchaseRecord, error)
	FindByProviderPayment(ctx context.Context, providerPaymentID string) (pgrepo.PurchaseRecord, error)
	MarkPaid(ctx context.Context, tx pgx.Tx, purchaseID int64, providerPaymentID string) (pgrepo.PurchaseRecord, bool, error)
	MarkFailed(ctx context.Context, purchaseID int64) (pgrepo.PurchaseRecord, bool, error)
	MarkRefunded(ctx context.Context, tx pgx.Tx, purchaseID int64) (pgrepo.PurchaseRecord, bool, error)
}

type CouponStore interface {
	ConsumeUse(ctx context.Context, tx pgx.Tx, couponID int64) error
}

type EntitlementStore interface {
	Grant(ctx context.Context, tx pgx.Tx, userID, purchaseID int64, courseIDs []int64) error
	RevokeByPurchase(ctx context.Context, tx pgx.Tx, purchaseID int64) (int64, error)
}

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type ReceiptArchiver interface {
	Archive(ctx context.Context, receipt receipts.Receipt) error
}

// Service is the payment state machine. Confirmations arrive from the
// provider webhook at least once; every transition is a compare-and-set in
// the purchases table, so duplicates collapse into already-applied results.
type Service struct {
	txs          TxRunner
	purchases    PurchaseStore
	coupons      CouponStore
	entitlements EntitlementStore

	notifier notify.Notifier
	archiver ReceiptArchiver
	logger   *zap.Logger

	now func() time.Time
}

type Dependencies struct {
	Txs          TxRunner
	Purchases    PurchaseStore
	Coupons      CouponStore
	Entitlements EntitlementStore
}

type ConfirmInput struct {
	PurchaseID        int64
	ProviderPaymentID string
}

type ConfirmResult struct {
	PurchaseID     int64
	Status         string
	AlreadyApplied bool
	GrantedCourses []int64
}

type FailResult struct {
	PurchaseID     int64
	Status         string
	AlreadyApplied bool
}

func NewService(deps Dependencies) *Service {
	return &Service{
		txs:          deps.Txs,
		purchases:    deps.Purchases,
		coupons:      deps.Coupons,
		entitlements: deps.Entitlements,
		notifier:     notify.Nop{},
		logger:       zap.NewNop(),
		now:          time.Now,
	}
}

// AttachNotifier wires the post-commit notification channel.
func (s *Service) AttachNotifier(notifier notify.Notifier, logger *zap.Logger) {
	if notifier != nil {
		s.notifier = notifier
	}
	if logger != nil {
		s.logger = logger
	}
}

// AttachArchiver wires receipt archiving for confirmed payments.
func (s *Service) AttachArchiver(archiver ReceiptArchiver) {
	s.archiver = archiver
}

// ConfirmPayment applies a successful charge to the purchase. The paid
// transition, the coupon use consumption and the entitlement grant commit in
// one transaction; a redelivered confirmation for the same provider payment
// returns success without side effects.
func (s *Service) ConfirmPayment(ctx context.Context, in ConfirmInput) (ConfirmResult, error) {
	providerPaymentID := strings.TrimSpace(in.ProviderPaymentID)
	if in.PurchaseID <= 0 || providerPaymentID == "" {
		return ConfirmResult{}, ErrValidation
	}
	if s.txs == nil || s.purchases == nil || s.entitlements == nil {
		return ConfirmResult{}, fmt.Errorf("payment service dependencies are not configured")
	}

	// Fast path for redeliveries: the provider payment id is unique, so a
	// purchase already carrying it means this exact confirmation was applied.
	if existing, err := s.purchases.FindByProviderPayment(ctx, providerPaymentID); err == nil {
		if existing.ID != in.PurchaseID {
			return ConfirmResult{}, ErrProviderConflict
		}
		return ConfirmResult{
			PurchaseID:     existing.ID,
			Status:         existing.Status,
			AlreadyApplied: true,
		}, nil
	} else if !errors.Is(err, pgrepo.ErrPurchaseNotFound) {
		return ConfirmResult{}, err
	}

	var (
		record  pgrepo.PurchaseRecord
		changed bool
	)
	err := s.txs.WithinTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		updated, moved, err := s.purchases.MarkPaid(txCtx, tx, in.PurchaseID, providerPaymentID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrProviderPaymentConflict) {
				return ErrProviderConflict
			}
			return err
		}

		record = updated
		changed = moved
		if !moved {
			return nil
		}

		if record.CouponID != nil {
			if s.coupons == nil {
				return fmt.Errorf("coupon store is nil")
			}
			if err := s.coupons.ConsumeUse(txCtx, tx, *record.CouponID); err != nil {
				if errors.Is(err, pgrepo.ErrCouponExhausted) {
					return ErrCouponExhausted
				}
				return err
			}
		}

		return s.entitlements.Grant(txCtx, tx, record.UserID, record.ID, record.CourseIDs())
	})
	if err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
			return ConfirmResult{}, ErrPurchaseNotFound
		}
		return ConfirmResult{}, err
	}

	if !changed {
		// A duplicate delivery can reach the CAS before the winner's commit
		// is visible to the fast path. The row carrying this provider payment
		// id as paid means this exact confirmation was applied.
		if record.Status == string(enums.PaymentStatusPaid) &&
			record.ProviderPaymentID != nil && *record.ProviderPaymentID == providerPaymentID {
			return ConfirmResult{
				PurchaseID:     record.ID,
				Status:         record.Status,
				AlreadyApplied: true,
			}, nil
		}
		return ConfirmResult{
			PurchaseID: record.ID,
			Status:     record.Status,
		}, ErrInvalidTransition
	}

	s.afterConfirm(ctx, record, providerPaymentID)

	return ConfirmResult{
		PurchaseID:     record.ID,
		Status:         record.Status,
		GrantedCourses: record.CourseIDs(),
	}, nil
}

// FailPayment applies a declined charge. Only pending purchases move;
// repeating a failure report is a no-op success.
func (s *Service) FailPayment(ctx context.Context, purchaseID int64, reason string) (FailResult, error) {
	if purchaseID <= 0 {
		return FailResult{}, ErrValidation
	}
	if s.purchases == nil {
		return FailResult{}, fmt.Errorf("purchase store is nil")
	}

	record, changed, err := s.purchases.MarkFailed(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
			return FailResult{}, ErrPurchaseNotFound
		}
		return FailResult{}, err
	}

	if changed {
		s.logger.Info("payment failed",
			zap.Int64("purchase_id", record.ID),
			zap.String("reason", strings.TrimSpace(reason)),
		)
		return FailResult{PurchaseID: record.ID, Status: record.Status}, nil
	}

	if record.Status == string(enums.PaymentStatusFailed) {
		return FailResult{PurchaseID: record.ID, Status: record.Status, AlreadyApplied: true}, nil
	}

	return FailResult{PurchaseID: record.ID, Status: record.Status}, ErrInvalidTransition
}

// RefundInTx moves a paid purchase to refunded and revokes its entitlements
// inside the caller's transaction. The refund workflow calls this together
// with its own approval write so both commit or neither does.
func (s *Service) RefundInTx(ctx context.Context, tx pgx.Tx, purchaseID int64) (pgrepo.PurchaseRecord, error) {
	if purchaseID <= 0 {
		return pgrepo.PurchaseRecord{}, ErrValidation
	}
	if s.purchases == nil || s.entitlements == nil {
		return pgrepo.PurchaseRecord{}, fmt.Errorf("payment service dependencies are not configured")
	}

	record, changed, err := s.purchases.MarkRefunded(ctx, tx, purchaseID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
			return pgrepo.PurchaseRecord{}, ErrPurchaseNotFound
		}
		return pgrepo.PurchaseRecord{}, err
	}
	if !changed {
		return pgrepo.PurchaseRecord{}, ErrInvalidTransition
	}

	if _, err := s.entitlements.RevokeByPurchase(ctx, tx, purchaseID); err != nil {
		return pgrepo.PurchaseRecord{}, err
	}

	return record, nil
}

// afterConfirm runs the best-effort side effects of a confirmed payment.
// They happen after commit and never fail the confirmation.
func (s *Service) afterConfirm(ctx context.Context, record pgrepo.PurchaseRecord, providerPaymentID string) {
	if err := s.notifier.PurchaseConfirmed(ctx, notify.PurchaseConfirmedEvent{
		UserID:      record.UserID,
		PurchaseID:  record.ID,
		CourseIDs:   record.CourseIDs(),
		AmountMinor: record.FinalMinor,
	}); err != nil {
		s.logger.Warn("purchase confirmed notification failed",
			zap.Int64("purchase_id", record.ID),
			zap.Error(err),
		)
	}

	if s.archiver == nil {
		return
	}
	if err := s.archiver.Archive(ctx, receipts.Receipt{
		PurchaseID:        record.ID,
		UserID:            record.UserID,
		CourseIDs:         record.CourseIDs(),
		TotalMinor:        record.TotalMinor,
		DiscountMinor:     record.DiscountMinor,
		FinalMinor:        record.FinalMinor,
		Currency:          "USD",
		PaymentMethod:     record.PaymentMethod,
		ProviderPaymentID: providerPaymentID,
		ConfirmedAt:       s.now().UTC(),
	}); err != nil {
		s.logger.Warn("receipt archive failed",
			zap.Int64("purchase_id", record.ID),
			zap.Error(err),
		)
	}
}
