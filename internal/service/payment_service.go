package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/essay-review-api/internal/models"
	"github.com/noah-isme/essay-review-api/internal/repository"
	appErrors "github.com/noah-isme/essay-review-api/pkg/errors"
)

type paymentStore interface {
	Charge(ctx context.Context, studentID, orderID string, amount float64, at time.Time) (*models.Receipt, error)
	Refund(ctx context.Context, receiptID string, at time.Time) error
	LatestForOrder(ctx context.Context, orderID string) (*models.Receipt, error)
	Deposit(ctx context.Context, userID string, amount float64, at time.Time) (*models.Wallet, error)
}

// PaymentService charges students against their stand-in wallet.
type PaymentService struct {
	store   paymentStore
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewPaymentService constructs the payment gate.
func NewPaymentService(store paymentStore, metrics *MetricsService, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{store: store, metrics: metrics, logger: logger, now: time.Now}
}

// Charge debits the student and returns a receipt.
func (s *PaymentService) Charge(ctx context.Context, studentID, orderID string, amount float64) (*models.Receipt, error) {
	receipt, err := s.store.Charge(ctx, studentID, orderID, amount, s.now().UTC())
	if err != nil {
		var mapped *appErrors.Error
		switch {
		case errors.Is(err, repository.ErrNoWallet):
			mapped = appErrors.ErrNoPaymentMethod
		case errors.Is(err, repository.ErrInsufficientBalance):
			mapped = appErrors.ErrInsufficientFunds
		default:
			return nil, appErrors.Internal(err, "failed to charge student")
		}
		s.metrics.RecordPaymentFailure(mapped.Code)
		s.logger.Info("charge refused", zap.String("student_id", studentID), zap.String("order_id", orderID), zap.String("code", mapped.Code))
		return nil, mapped
	}
	return receipt, nil
}

// Refund returns a charge to the student's wallet.
func (s *PaymentService) Refund(ctx context.Context, receipt *models.Receipt) error {
	if receipt == nil {
		return nil
	}
	if err := s.store.Refund(ctx, receipt.ID, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrAlreadyRefunded) {
			return nil
		}
		return appErrors.Internal(err, "failed to refund charge")
	}
	s.logger.Info("charge refunded", zap.String("receipt_id", receipt.ID), zap.String("order_id", receipt.OrderID))
	return nil
}

// Latest returns the active receipt of an order.
func (s *PaymentService) Latest(ctx context.Context, orderID string) (*models.Receipt, error) {
	receipt, err := s.store.LatestForOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no payment for order")
		}
		return nil, appErrors.Internal(err, "failed to load receipt")
	}
	return receipt, nil
}

// Deposit credits a wallet, creating it when missing.
func (s *PaymentService) Deposit(ctx context.Context, userID string, amount float64) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}
	wallet, err := s.store.Deposit(ctx, userID, amount, s.now().UTC())
	if err != nil {
		return nil, appErrors.Internal(err, "failed to credit wallet")
	}
	return wallet, nil
}
