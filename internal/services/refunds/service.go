package refunds

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/learnado/backend/internal/domain/enums"
	pgrepo "github.com/learnado/backend/internal/repo/postgres"
	authsvc "github.com/learnado/backend/internal/services/auth"
	"github.com/learnado/backend/internal/services/notify"
)

var (
	ErrValidation            = errors.New("validation error")
	ErrRefundNotFound        = errors.New("refund not found")
	ErrPurchaseNotFound      = errors.New("purchase not found")
	ErrPurchaseNotRefundable = errors.New("purchase is not refundable")
	ErrAmountTooLarge        = errors.New("refund amount exceeds amount paid")
	ErrAlreadyPending        = errors.New("open refund already exists for purchase")
	ErrAlreadyDecided        = errors.New("refund already decided")
)

type RefundStore interface {
	CreatePending(ctx context.Context, purchaseID, userID, amountMinor int64, reason string) (pgrepo.RefundRecord, error)
	FindByID(ctx context.Context, refundID int64) (pgrepo.RefundRecord, error)
	MarkApproved(ctx context.Context, tx pgx.Tx, refundID int64) (pgrepo.RefundRecord, bool, error)
	MarkRejected(ctx context.Context, refundID int64, rejectionReason string) (pgrepo.RefundRecord, bool, error)
}

type PurchaseFinder interface {
	FindByID(ctx context.Context, purchaseID int64) (pgrepo.PurchaseRecord, error)
}

// PurchaseRefunder is the paid→refunded transition plus entitlement
// revocation, executed inside the approval transaction.
type PurchaseRefunder interface {
	RefundInTx(ctx context.Context, tx pgx.Tx, purchaseID int64) (pgrepo.PurchaseRecord, error)
}

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

// Service runs the refund workflow. A request opens a pending refund against
// a paid purchase; support staff then approve or reject it. Approval flips
// the purchase to refunded and revokes access atomically with the decision.
type Service struct {
	txs      TxRunner
	refunds  RefundStore
	finder   PurchaseFinder
	refunder PurchaseRefunder

	notifier notify.Notifier
	logger   *zap.Logger
}

type Dependencies struct {
	Txs      TxRunner
	Refunds  RefundStore
	Finder   PurchaseFinder
	Refunder PurchaseRefunder
}

type RequestInput struct {
	PurchaseID  int64
	AmountMinor int64
	Reason      string
}

type Decision struct {
	RefundID       int64
	PurchaseID     int64
	Status         string
	AlreadyDecided bool
}

func NewService(deps Dependencies) *Service {
	return &Service{
		txs:      deps.Txs,
		refunds:  deps.Refunds,
		finder:   deps.Finder,
		refunder: deps.Refunder,
		notifier: notify.Nop{},
		logger:   zap.NewNop(),
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

// Request opens a refund for a paid purchase on behalf of its owner. A zero
// amount means a full refund of what was paid; a partial amount must not
// exceed it. Only one open refund may exist per purchase.
func (s *Service) Request(ctx context.Context, identity authsvc.Identity, in RequestInput) (pgrepo.RefundRecord, error) {
	if in.PurchaseID <= 0 || identity.UserID <= 0 || in.AmountMinor < 0 {
		return pgrepo.RefundRecord{}, ErrValidation
	}
	if s.refunds == nil || s.finder == nil {
		return pgrepo.RefundRecord{}, fmt.Errorf("refund service dependencies are not configured")
	}

	purchase, err := s.finder.FindByID(ctx, in.PurchaseID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
			return pgrepo.RefundRecord{}, ErrPurchaseNotFound
		}
		return pgrepo.RefundRecord{}, err
	}
	if !authsvc.CanRequestRefund(identity, purchase.UserID) {
		return pgrepo.RefundRecord{}, ErrPurchaseNotFound
	}
	if purchase.Status != string(enums.PaymentStatusPaid) {
		return pgrepo.RefundRecord{}, ErrPurchaseNotRefundable
	}

	amount := in.AmountMinor
	if amount == 0 {
		amount = purchase.FinalMinor
	}
	if amount > purchase.FinalMinor {
		return pgrepo.RefundRecord{}, ErrAmountTooLarge
	}
	if amount <= 0 {
		return pgrepo.RefundRecord{}, ErrValidation
	}

	record, err := s.refunds.CreatePending(ctx, in.PurchaseID, identity.UserID, amount, strings.TrimSpace(in.Reason))
	if err != nil {
		if errors.Is(err, pgrepo.ErrRefundAlreadyPending) {
			return pgrepo.RefundRecord{}, ErrAlreadyPending
		}
		return pgrepo.RefundRecord{}, err
	}

	return record, nil
}

// Approve settles the refund in the customer's favor. The refund decision,
// the purchase transition and the entitlement revocation commit together or
// not at all. Approving an already decided refund reports the stored
// decision instead of failing.
func (s *Service) Approve(ctx context.Context, refundID int64) (Decision, error) {
	if refundID <= 0 {
		return Decision{}, ErrValidation
	}
	if s.txs == nil || s.refunds == nil || s.refunder == nil {
		return Decision{}, fmt.Errorf("refund service dependencies are not configured")
	}

	var (
		record  pgrepo.RefundRecord
		changed bool
	)
	err := s.txs.WithinTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		updated, moved, err := s.refunds.MarkApproved(txCtx, tx, refundID)
		if err != nil {
			return err
		}

		record = updated
		changed = moved
		if !moved {
			return nil
		}

		if _, err := s.refunder.RefundInTx(txCtx, tx, record.PurchaseID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, pgrepo.ErrRefundNotFound) {
			return Decision{}, ErrRefundNotFound
		}
		return Decision{}, err
	}

	if !changed {
		if record.Status == string(enums.RefundStatusApproved) {
			return Decision{
				RefundID:       record.ID,
				PurchaseID:     record.PurchaseID,
				Status:         record.Status,
				AlreadyDecided: true,
			}, nil
		}
		return Decision{}, ErrAlreadyDecided
	}

	s.notifyDecision(ctx, record, true, "")

	return Decision{RefundID: record.ID, PurchaseID: record.PurchaseID, Status: record.Status}, nil
}

// Reject closes the refund without touching the purchase. Entitlements stay
// granted. Rejecting an already rejected refund is a no-op success.
func (s *Service) Reject(ctx context.Context, refundID int64, rejectionReason string) (Decision, error) {
	if refundID <= 0 {
		return Decision{}, ErrValidation
	}
	if s.refunds == nil {
		return Decision{}, fmt.Errorf("refund store is nil")
	}

	record, changed, err := s.refunds.MarkRejected(ctx, refundID, rejectionReason)
	if err != nil {
		if errors.Is(err, pgrepo.ErrRefundNotFound) {
			return Decision{}, ErrRefundNotFound
		}
		return Decision{}, err
	}

	if !changed {
		if record.Status == string(enums.RefundStatusRejected) {
			return Decision{
				RefundID:       record.ID,
				PurchaseID:     record.PurchaseID,
				Status:         record.Status,
				AlreadyDecided: true,
			}, nil
		}
		return Decision{}, ErrAlreadyDecided
	}

	s.notifyDecision(ctx, record, false, strings.TrimSpace(rejectionReason))

	return Decision{RefundID: record.ID, PurchaseID: record.PurchaseID, Status: record.Status}, nil
}

func (s *Service) Get(ctx context.Context, refundID int64) (pgrepo.RefundRecord, error) {
	if refundID <= 0 {
		return pgrepo.RefundRecord{}, ErrValidation
	}
	if s.refunds == nil {
		return pgrepo.RefundRecord{}, fmt.Errorf("refund store is nil")
	}

	record, err := s.refunds.FindByID(ctx, refundID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrRefundNotFound) {
			return pgrepo.RefundRecord{}, ErrRefundNotFound
		}
		return pgrepo.RefundRecord{}, err
	}

	return record, nil
}

func (s *Service) notifyDecision(ctx context.Context, record pgrepo.RefundRecord, approved bool, reason string) {
	if err := s.notifier.RefundDecided(ctx, notify.RefundDecidedEvent{
		UserID:     record.UserID,
		RefundID:   record.ID,
		PurchaseID: record.PurchaseID,
		Approved:   approved,
		Reason:     reason,
	}); err != nil {
		s.logger.Warn("refund decision notification failed",
			zap.Int64("refund_id", record.ID),
			zap.Error(err),
		)
	}
}
