package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/essay-review-api/internal/models"
)

// OrderRepository persists orders. Status changes are compare-and-swap on (status, version).
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository constructs the repository.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, student_id, teacher_id, status, version, essay_title, essay_content, essay_type_id, level_id,
	option_ids, rush_hours, total_price, deadline, is_disabled, analysis_error_count, analysis_keywords,
	sent_at, updated_at, updated_by`

// Create inserts a new order.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Version == 0 {
		order.Version = 1
	}
	if order.OptionIDs == nil {
		order.OptionIDs = pq.Int64Array{}
	}
	const query = `INSERT INTO orders (id, student_id, teacher_id, status, version, essay_title, essay_content, essay_type_id,
	level_id, option_ids, rush_hours, total_price, deadline, is_disabled, sent_at, updated_at, updated_by)
	VALUES (:id, :student_id, :teacher_id, :status, :version, :essay_title, :essay_content, :essay_type_id,
	:level_id, :option_ids, :rush_hours, :total_price, :deadline, :is_disabled, :sent_at, :updated_at, :updated_by)`
	if _, err := r.db.NamedExecContext(ctx, query, order); err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// GetByID fetches an order. Returns sql.ErrNoRows when unknown.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.GetContext(ctx, &order, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &order, nil
}

// List returns the page of orders matching the filter and the total count.
// A non-positive PageSize returns every match.
func (r *OrderRepository) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	conditions := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)

	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	if filter.LevelID != nil {
		args = append(args, *filter.LevelID)
		conditions = append(conditions, fmt.Sprintf("level_id = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make(pq.Int64Array, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = int64(s)
		}
		args = append(args, statuses)
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if !filter.IncludeDisabled {
		conditions = append(conditions, "is_disabled = FALSE")
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM orders`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY sent_at DESC, id`
	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.PageSize, (page-1)*filter.PageSize)
	}

	var orders []models.Order
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// UpdateDraft rewrites the editable fields of a draft at the expected version.
func (r *OrderRepository) UpdateDraft(ctx context.Context, id string, fromVersion int, changes models.DraftChanges, updatedBy string, at time.Time) (*models.Order, error) {
	const query = `UPDATE orders SET essay_title = $1, essay_content = $2, essay_type_id = $3, level_id = $4,
	option_ids = $5, rush_hours = $6, total_price = $7, version = version + 1, updated_at = $8, updated_by = $9
	WHERE id = $10 AND status = $11 AND version = $12
	RETURNING ` + orderColumns

	var order models.Order
	err := r.db.GetContext(ctx, &order, query,
		changes.EssayTitle, changes.EssayContent, changes.EssayTypeID, changes.LevelID,
		pq.Int64Array(changes.OptionIDs), changes.RushHours, changes.TotalPrice, at, updatedBy,
		id, models.OrderStatusDraft, fromVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStaleVersion
	}
	if err != nil {
		return nil, fmt.Errorf("update draft: %w", err)
	}
	return &order, nil
}

// Transition applies a status compare-and-swap together with any slot movement in one transaction.
// ErrStaleVersion means another writer changed the order first; capacity sentinels leave everything untouched.
func (r *OrderRepository) Transition(ctx context.Context, t models.Transition) (order *models.Order, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin order transition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query, args := transitionQuery(t)
	var updated models.Order
	if err = tx.GetContext(ctx, &updated, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrStaleVersion
			return nil, err
		}
		return nil, fmt.Errorf("transition order: %w", err)
	}

	if t.Acquire != "" {
		if _, err = acquireSlot(ctx, tx, t.Acquire, t.MaxActive, t.At); err != nil {
			return nil, err
		}
	}
	if t.Release != "" {
		if _, err = releaseSlot(ctx, tx, t.Release, t.MaxActive, t.At); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order transition: %w", err)
	}
	return &updated, nil
}

func transitionQuery(t models.Transition) (string, []interface{}) {
	args := []interface{}{t.ToStatus, t.At, t.UpdatedBy}
	sets := []string{"status = $1", "version = version + 1", "updated_at = $2", "updated_by = $3"}

	if t.TeacherID != nil {
		args = append(args, *t.TeacherID)
		sets = append(sets, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	if t.Deadline != nil {
		args = append(args, *t.Deadline)
		sets = append(sets, fmt.Sprintf("deadline = $%d", len(args)))
	}
	if t.SentAt != nil {
		args = append(args, *t.SentAt)
		sets = append(sets, fmt.Sprintf("sent_at = $%d", len(args)))
	}
	if t.IsDisabled != nil {
		args = append(args, *t.IsDisabled)
		sets = append(sets, fmt.Sprintf("is_disabled = $%d", len(args)))
	}

	args = append(args, t.OrderID, t.FromStatus, t.FromVersion)
	n := len(args)
	query := fmt.Sprintf(`UPDATE orders SET %s WHERE id = $%d AND status = $%d AND version = $%d RETURNING %s`,
		strings.Join(sets, ", "), n-2, n-1, n, orderColumns)
	return query, args
}

// SaveAnalysis stores the analyzer output without bumping the version.
func (r *OrderRepository) SaveAnalysis(ctx context.Context, id string, analysis models.Analysis) error {
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET analysis_error_count = $2, analysis_keywords = $3 WHERE id = $1`,
		id, analysis.ErrorCount, pq.StringArray(analysis.Keywords))
	if err != nil {
		return fmt.Errorf("save order analysis: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check analysis rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
