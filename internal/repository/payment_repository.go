package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/essay-review-api/internal/models"
)

// PaymentRepository is the wallet-backed stand-in for the payment processor.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const receiptColumns = `id, order_id, student_id, amount, refunded, charged_at`

// Charge debits the wallet when the balance covers amount and records a receipt.
func (r *PaymentRepository) Charge(ctx context.Context, studentID, orderID string, amount float64, at time.Time) (receipt *models.Receipt, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin charge: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `UPDATE wallets SET balance = balance - $2, updated_at = $3 WHERE user_id = $1 AND balance >= $2`,
		studentID, amount, at)
	if err != nil {
		return nil, fmt.Errorf("debit wallet: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check debit rows: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err = tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM wallets WHERE user_id = $1)`, studentID); err != nil {
			return nil, fmt.Errorf("check wallet: %w", err)
		}
		if !exists {
			err = ErrNoWallet
		} else {
			err = ErrInsufficientBalance
		}
		return nil, err
	}

	receipt = &models.Receipt{ID: uuid.NewString(), OrderID: orderID, StudentID: studentID, Amount: amount, ChargedAt: at}
	if _, err = tx.NamedExecContext(ctx, `INSERT INTO payments (id, order_id, student_id, amount, refunded, charged_at)
	VALUES (:id, :order_id, :student_id, :amount, :refunded, :charged_at)`, receipt); err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit charge: %w", err)
	}
	return receipt, nil
}

// Refund credits the receipt amount back and marks it refunded.
func (r *PaymentRepository) Refund(ctx context.Context, receiptID string, at time.Time) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin refund: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var receipt models.Receipt
	err = tx.GetContext(ctx, &receipt, `UPDATE payments SET refunded = TRUE WHERE id = $1 AND refunded = FALSE RETURNING `+receiptColumns, receiptID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrAlreadyRefunded
		return err
	}
	if err != nil {
		return fmt.Errorf("mark payment refunded: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE wallets SET balance = balance + $2, updated_at = $3 WHERE user_id = $1`,
		receipt.StudentID, receipt.Amount, at); err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit refund: %w", err)
	}
	return nil
}

// LatestForOrder returns the newest non-refunded receipt of an order or sql.ErrNoRows.
func (r *PaymentRepository) LatestForOrder(ctx context.Context, orderID string) (*models.Receipt, error) {
	var receipt models.Receipt
	if err := r.db.GetContext(ctx, &receipt, `SELECT `+receiptColumns+` FROM payments
	WHERE order_id = $1 AND refunded = FALSE ORDER BY charged_at DESC LIMIT 1`, orderID); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Deposit credits a wallet, opening it on first use.
func (r *PaymentRepository) Deposit(ctx context.Context, userID string, amount float64, at time.Time) (*models.Wallet, error) {
	var wallet models.Wallet
	const query = `INSERT INTO wallets (user_id, balance, updated_at) VALUES ($1, $2, $3)
	ON CONFLICT (user_id) DO UPDATE SET balance = wallets.balance + EXCLUDED.balance, updated_at = EXCLUDED.updated_at
	RETURNING user_id, balance, updated_at`
	if err := r.db.GetContext(ctx, &wallet, query, userID, amount, at); err != nil {
		return nil, fmt.Errorf("deposit wallet: %w", err)
	}
	return &wallet, nil
}
