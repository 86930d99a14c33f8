package inmem

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/noah-isme/essay-review-api/internal/models"
	"github.com/noah-isme/essay-review-api/internal/repository"
)

// OrderRepository stores orders in memory.
type OrderRepository struct {
	db *DB
}

// NewOrderRepository constructs the repository.
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func cloneOrder(o *models.Order) *models.Order {
	out := *o
	out.OptionIDs = append(pq.Int64Array(nil), o.OptionIDs...)
	if o.AnalysisKeywords != nil {
		out.AnalysisKeywords = append(pq.StringArray(nil), o.AnalysisKeywords...)
	}
	if o.TeacherID != nil {
		id := *o.TeacherID
		out.TeacherID = &id
	}
	if o.Deadline != nil {
		d := *o.Deadline
		out.Deadline = &d
	}
	if o.AnalysisErrorCount != nil {
		n := *o.AnalysisErrorCount
		out.AnalysisErrorCount = &n
	}
	return &out
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Version == 0 {
		order.Version = 1
	}
	if order.OptionIDs == nil {
		order.OptionIDs = pq.Int64Array{}
	}
	r.db.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	order, ok := r.db.orders[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneOrder(order), nil
}

func (r *OrderRepository) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	statuses := make(map[models.OrderStatus]bool, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses[s] = true
	}

	matched := make([]models.Order, 0)
	for _, o := range r.db.orders {
		switch {
		case filter.StudentID != "" && o.StudentID != filter.StudentID,
			filter.TeacherID != "" && (o.TeacherID == nil || *o.TeacherID != filter.TeacherID),
			filter.LevelID != nil && o.LevelID != *filter.LevelID,
			len(statuses) > 0 && !statuses[o.Status],
			!filter.IncludeDisabled && o.IsDisabled:
			continue
		}
		matched = append(matched, *cloneOrder(o))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].SentAt.Equal(matched[j].SentAt) {
			return matched[i].SentAt.After(matched[j].SentAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		start := (page - 1) * filter.PageSize
		if start > total {
			start = total
		}
		end := start + filter.PageSize
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (r *OrderRepository) UpdateDraft(ctx context.Context, id string, fromVersion int, changes models.DraftChanges, updatedBy string, at time.Time) (*models.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	order, ok := r.db.orders[id]
	if !ok || order.Status != models.OrderStatusDraft || order.Version != fromVersion {
		return nil, repository.ErrStaleVersion
	}
	order.EssayTitle = changes.EssayTitle
	order.EssayContent = changes.EssayContent
	order.EssayTypeID = changes.EssayTypeID
	order.LevelID = changes.LevelID
	order.OptionIDs = append(pq.Int64Array{}, changes.OptionIDs...)
	order.RushHours = changes.RushHours
	order.TotalPrice = changes.TotalPrice
	order.Version++
	order.UpdatedAt = at
	order.UpdatedBy = updatedBy
	return cloneOrder(order), nil
}

// Transition checks status and version, moves the slot, then applies the change, all under one lock.
func (r *OrderRepository) Transition(ctx context.Context, t models.Transition) (*models.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	order, ok := r.db.orders[t.OrderID]
	if !ok || order.Status != t.FromStatus || order.Version != t.FromVersion {
		return nil, repository.ErrStaleVersion
	}

	if t.Acquire != "" {
		if _, err := r.db.acquire(t.Acquire, t.MaxActive, t.At); err != nil {
			return nil, err
		}
	}
	if t.Release != "" {
		if _, err := r.db.release(t.Release, t.MaxActive, t.At); err != nil {
			if t.Acquire != "" {
				_, _ = r.db.release(t.Acquire, t.MaxActive, t.At)
			}
			return nil, err
		}
	}

	order.Status = t.ToStatus
	order.Version++
	order.UpdatedAt = t.At
	order.UpdatedBy = t.UpdatedBy
	if t.TeacherID != nil {
		id := *t.TeacherID
		order.TeacherID = &id
	}
	if t.Deadline != nil {
		d := *t.Deadline
		order.Deadline = &d
	}
	if t.SentAt != nil {
		order.SentAt = *t.SentAt
	}
	if t.IsDisabled != nil {
		order.IsDisabled = *t.IsDisabled
	}
	return cloneOrder(order), nil
}

func (r *OrderRepository) SaveAnalysis(ctx context.Context, id string, analysis models.Analysis) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	order, ok := r.db.orders[id]
	if !ok {
		return sql.ErrNoRows
	}
	count := analysis.ErrorCount
	order.AnalysisErrorCount = &count
	order.AnalysisKeywords = append(pq.StringArray(nil), analysis.Keywords...)
	return nil
}
