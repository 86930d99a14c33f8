package inmem

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/essay-review-api/internal/models"
	"github.com/noah-isme/essay-review-api/internal/repository"
)

// PaymentRepository is the in-memory wallet bank.
type PaymentRepository struct {
	db *DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Charge(ctx context.Context, studentID, orderID string, amount float64, at time.Time) (*models.Receipt, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	wallet, ok := r.db.wallets[studentID]
	if !ok {
		return nil, repository.ErrNoWallet
	}
	if wallet.Balance < amount {
		return nil, repository.ErrInsufficientBalance
	}
	wallet.Balance -= amount
	wallet.UpdatedAt = at

	receipt := &models.Receipt{ID: uuid.NewString(), OrderID: orderID, StudentID: studentID, Amount: amount, ChargedAt: at}
	r.db.receipts = append(r.db.receipts, receipt)
	out := *receipt
	return &out, nil
}

func (r *PaymentRepository) Refund(ctx context.Context, receiptID string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, receipt := range r.db.receipts {
		if receipt.ID != receiptID {
			continue
		}
		if receipt.Refunded {
			return repository.ErrAlreadyRefunded
		}
		receipt.Refunded = true
		if wallet, ok := r.db.wallets[receipt.StudentID]; ok {
			wallet.Balance += receipt.Amount
			wallet.UpdatedAt = at
		}
		return nil
	}
	return repository.ErrAlreadyRefunded
}

func (r *PaymentRepository) LatestForOrder(ctx context.Context, orderID string) (*models.Receipt, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for i := len(r.db.receipts) - 1; i >= 0; i-- {
		receipt := r.db.receipts[i]
		if receipt.OrderID == orderID && !receipt.Refunded {
			out := *receipt
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *PaymentRepository) Deposit(ctx context.Context, userID string, amount float64, at time.Time) (*models.Wallet, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	wallet, ok := r.db.wallets[userID]
	if !ok {
		wallet = &models.Wallet{UserID: userID}
		r.db.wallets[userID] = wallet
	}
	wallet.Balance += amount
	wallet.UpdatedAt = at
	out := *wallet
	return &out, nil
}
