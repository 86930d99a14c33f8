package models

import "time"

// Receipt records a successful charge.
type Receipt struct {
	ID        string    `db:"id" json:"id"`
	OrderID   string    `db:"order_id" json:"order_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Amount    float64   `db:"amount" json:"amount"`
	Refunded  bool      `db:"refunded" json:"refunded"`
	ChargedAt time.Time `db:"charged_at" json:"charged_at"`
}

// Wallet is the stand-in payment method balance of a student.
type Wallet struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Balance   float64   `db:"balance" json:"balance"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
