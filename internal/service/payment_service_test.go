package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/essay-review-api/internal/models"
	"github.com/noah-isme/essay-review-api/internal/repository"
	appErrors "github.com/noah-isme/essay-review-api/pkg/errors"
)

type paymentStoreStub struct {
	chargeErr error
	refundErr error
	latestErr error
	refunded  []string
}

func (s *paymentStoreStub) Charge(ctx context.Context, studentID, orderID string, amount float64, at time.Time) (*models.Receipt, error) {
	if s.chargeErr != nil {
		return nil, s.chargeErr
	}
	return &models.Receipt{ID: "receipt-1", OrderID: orderID, StudentID: studentID, Amount: amount, ChargedAt: at}, nil
}

func (s *paymentStoreStub) Refund(ctx context.Context, receiptID string, at time.Time) error {
	if s.refundErr != nil {
		return s.refundErr
	}
	s.refunded = append(s.refunded, receiptID)
	return nil
}

func (s *paymentStoreStub) LatestForOrder(ctx context.Context, orderID string) (*models.Receipt, error) {
	if s.latestErr != nil {
		return nil, s.latestErr
	}
	return &models.Receipt{ID: "receipt-1", OrderID: orderID}, nil
}

func (s *paymentStoreStub) Deposit(ctx context.Context, userID string, amount float64, at time.Time) (*models.Wallet, error) {
	return &models.Wallet{UserID: userID, Balance: amount, UpdatedAt: at}, nil
}

func TestPaymentChargeMapsStoreErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want *appErrors.Error
	}{
		{"no wallet", repository.ErrNoWallet, appErrors.ErrNoPaymentMethod},
		{"low balance", repository.ErrInsufficientBalance, appErrors.ErrInsufficientFunds},
		{"unexpected", errors.New("boom"), appErrors.ErrInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewPaymentService(&paymentStoreStub{chargeErr: tc.err}, NewMetricsService(), nil)
			_, err := svc.Charge(context.Background(), "student-1", "order-1", 10)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPaymentChargeAndRefund(t *testing.T) {
	store := &paymentStoreStub{}
	svc := NewPaymentService(store, nil, nil)

	receipt, err := svc.Charge(context.Background(), "student-1", "order-1", 12.5)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, receipt.Amount, 0.001)

	require.NoError(t, svc.Refund(context.Background(), receipt))
	assert.Equal(t, []string{"receipt-1"}, store.refunded)
	assert.NoError(t, svc.Refund(context.Background(), nil))

	store.refundErr = repository.ErrAlreadyRefunded
	assert.NoError(t, svc.Refund(context.Background(), receipt))
}

func TestPaymentLatestAndDeposit(t *testing.T) {
	svc := NewPaymentService(&paymentStoreStub{latestErr: sql.ErrNoRows}, nil, nil)
	_, err := svc.Latest(context.Background(), "order-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Deposit(context.Background(), "student-1", 0)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	wallet, err := svc.Deposit(context.Background(), "student-1", 40)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, wallet.Balance, 0.001)
}
