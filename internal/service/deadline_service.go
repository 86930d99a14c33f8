package service

import (
	"time"

	"github.com/noah-isme/essay-review-api/internal/models"
)

const (
	defaultStandardTurnaround = 72 * time.Hour
	defaultGracePeriod        = 30 * time.Minute
)

// DeadlinePolicy computes order deadlines and evaluates lazy expiry.
// All methods take the current time explicitly.
type DeadlinePolicy struct {
	StandardTurnaround time.Duration
	GracePeriod        time.Duration
}

// NewDeadlinePolicy returns a policy with non-positive values replaced by defaults.
func NewDeadlinePolicy(standard, grace time.Duration) DeadlinePolicy {
	if standard <= 0 {
		standard = defaultStandardTurnaround
	}
	if grace <= 0 {
		grace = defaultGracePeriod
	}
	return DeadlinePolicy{StandardTurnaround: standard, GracePeriod: grace}
}

// ComputeDeadline returns now plus the rush window, or the standard turnaround without one.
func (p DeadlinePolicy) ComputeDeadline(now time.Time, rushHours int) time.Time {
	if rushHours <= 0 {
		return now.Add(p.StandardTurnaround)
	}
	return now.Add(time.Duration(rushHours) * time.Hour)
}

// CheckExpiry reports whether the order has expired at now and which trigger fired.
// The deadline trigger is evaluated before the grace period one.
func (p DeadlinePolicy) CheckExpiry(order *models.Order, now time.Time) (bool, models.ExpiryReason) {
	if order == nil {
		return false, models.ExpiryNone
	}
	switch order.Status {
	case models.OrderStatusWaiting, models.OrderStatusAssigned:
	default:
		return false, models.ExpiryNone
	}
	if order.Deadline != nil && now.After(*order.Deadline) {
		return true, models.ExpiryDeadline
	}
	if order.Status == models.OrderStatusWaiting && now.Sub(order.SentAt) > p.GracePeriod {
		return true, models.ExpiryGrace
	}
	return false, models.ExpiryNone
}
