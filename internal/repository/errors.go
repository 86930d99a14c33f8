package repository

import "errors"

// Store sentinels mapped to typed errors by the service layer.
var (
	ErrStaleVersion        = errors.New("order status or version changed")
	ErrTeacherAtCapacity   = errors.New("teacher at active order cap")
	ErrNoActiveSlot        = errors.New("teacher holds no active slot")
	ErrTeacherExists       = errors.New("teacher capacity record exists")
	ErrNoWallet            = errors.New("wallet not found")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrAlreadyRefunded     = errors.New("payment already refunded")
	ErrUnknownRubricRow    = errors.New("grading row not provisioned")
	ErrSentenceOutOfRange  = errors.New("sentence index out of range")
)
