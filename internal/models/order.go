package models

import (
	"time"

	"github.com/lib/pq"
)

// OrderStatus enumerates the order lifecycle states.
type OrderStatus int

const (
	OrderStatusDraft OrderStatus = iota
	OrderStatusWaiting
	OrderStatusAssigned
	OrderStatusCompleted
	OrderStatusExpired
)

var orderStatusNames = map[OrderStatus]string{
	OrderStatusDraft:     "Draft",
	OrderStatusWaiting:   "Waiting",
	OrderStatusAssigned:  "Assigned",
	OrderStatusCompleted: "Completed",
	OrderStatusExpired:   "Expired",
}

func (s OrderStatus) String() string {
	if name, ok := orderStatusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusNames[s]
	return ok
}

// Order is an essay submitted for review.
type Order struct {
	ID                 string         `db:"id" json:"id"`
	StudentID          string         `db:"student_id" json:"student_id"`
	TeacherID          *string        `db:"teacher_id" json:"teacher_id,omitempty"`
	Status             OrderStatus    `db:"status" json:"status"`
	Version            int            `db:"version" json:"version"`
	EssayTitle         string         `db:"essay_title" json:"essay_title"`
	EssayContent       string         `db:"essay_content" json:"essay_content"`
	EssayTypeID        int            `db:"essay_type_id" json:"essay_type_id"`
	LevelID            int            `db:"level_id" json:"level_id"`
	OptionIDs          pq.Int64Array  `db:"option_ids" json:"option_ids"`
	RushHours          int            `db:"rush_hours" json:"rush_hours"`
	TotalPrice         float64        `db:"total_price" json:"total_price"`
	Deadline           *time.Time     `db:"deadline" json:"deadline,omitempty"`
	IsDisabled         bool           `db:"is_disabled" json:"is_disabled"`
	AnalysisErrorCount *int           `db:"analysis_error_count" json:"analysis_error_count,omitempty"`
	AnalysisKeywords   pq.StringArray `db:"analysis_keywords" json:"analysis_keywords,omitempty"`
	SentAt             time.Time      `db:"sent_at" json:"sent_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
	UpdatedBy          string         `db:"updated_by" json:"updated_by"`
}

// HasOption reports whether the order bought the option.
func (o *Order) HasOption(id int) bool {
	for _, v := range o.OptionIDs {
		if int(v) == id {
			return true
		}
	}
	return false
}

// OrderFilter scopes order listings.
type OrderFilter struct {
	StudentID       string
	TeacherID       string
	LevelID         *int
	Statuses        []OrderStatus
	IncludeDisabled bool
	Page            int
	PageSize        int
}

// DraftChanges carries the student-editable fields of a draft.
type DraftChanges struct {
	EssayTitle   string
	EssayContent string
	EssayTypeID  int
	LevelID      int
	OptionIDs    []int64
	RushHours    int
	TotalPrice   float64
}

// Transition describes one compare-and-swap status change.
// Acquire and Release name the teacher whose slot moves with the transition.
type Transition struct {
	OrderID     string
	FromStatus  OrderStatus
	FromVersion int
	ToStatus    OrderStatus
	TeacherID   *string
	Deadline    *time.Time
	SentAt      *time.Time
	IsDisabled  *bool
	Acquire     string
	Release     string
	MaxActive   int
	UpdatedBy   string
	At          time.Time
}

// ExpiryReason identifies which trigger expired an order.
type ExpiryReason string

const (
	ExpiryNone     ExpiryReason = ""
	ExpiryDeadline ExpiryReason = "deadline"
	ExpiryGrace    ExpiryReason = "grace_period"
)

// Analysis is the enrichment produced by the essay analyzer.
type Analysis struct {
	ErrorCount int      `json:"error_count"`
	Keywords   []string `json:"keywords"`
}

// DeadlineSummary counts open orders by how soon they are due.
type DeadlineSummary struct {
	Today    int `json:"today"`
	ThisWeek int `json:"this_week"`
	Total    int `json:"total"`
}
