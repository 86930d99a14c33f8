package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/essay-review-api/internal/models"
)

// CatalogRepository reads the pricing and reference tables.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListLevels returns every level ordered by id.
func (r *CatalogRepository) ListLevels(ctx context.Context) ([]models.Level, error) {
	var levels []models.Level
	if err := r.db.SelectContext(ctx, &levels, `SELECT id, name FROM levels ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	return levels, nil
}

// ListTypes returns every essay type ordered by id.
func (r *CatalogRepository) ListTypes(ctx context.Context) ([]models.EssayType, error) {
	var types []models.EssayType
	if err := r.db.SelectContext(ctx, &types, `SELECT id, level_id, name, price FROM essay_types ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list essay types: %w", err)
	}
	return types, nil
}

// ListOptions returns every option with rush hours decoded.
func (r *CatalogRepository) ListOptions(ctx context.Context) ([]models.Option, error) {
	var options []models.Option
	if err := r.db.SelectContext(ctx, &options, `SELECT id, kind, name, price, feature FROM options ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	return decodeRush(options)
}

// ListStatuses returns the order status lookup rows.
func (r *CatalogRepository) ListStatuses(ctx context.Context) ([]models.StatusRef, error) {
	var statuses []models.StatusRef
	if err := r.db.SelectContext(ctx, &statuses, `SELECT id, name FROM order_statuses ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	return statuses, nil
}

// ListCriteria returns the grading rubric.
func (r *CatalogRepository) ListCriteria(ctx context.Context) ([]models.Criterion, error) {
	var criteria []models.Criterion
	if err := r.db.SelectContext(ctx, &criteria, `SELECT id, name FROM criteria ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list criteria: %w", err)
	}
	return criteria, nil
}

// TypeByID fetches one essay type. Returns sql.ErrNoRows when unknown.
func (r *CatalogRepository) TypeByID(ctx context.Context, id int) (*models.EssayType, error) {
	var essayType models.EssayType
	if err := r.db.GetContext(ctx, &essayType, `SELECT id, level_id, name, price FROM essay_types WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &essayType, nil
}

// OptionsByIDs fetches the requested options. Missing ids are simply absent from the result.
func (r *CatalogRepository) OptionsByIDs(ctx context.Context, ids []int) ([]models.Option, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make(pq.Int64Array, len(ids))
	for i, id := range ids {
		keys[i] = int64(id)
	}

	var options []models.Option
	const query = `SELECT id, kind, name, price, feature FROM options WHERE id = ANY($1) ORDER BY id`
	if err := r.db.SelectContext(ctx, &options, query, keys); err != nil {
		return nil, fmt.Errorf("get options: %w", err)
	}
	return decodeRush(options)
}

func decodeRush(options []models.Option) ([]models.Option, error) {
	for i := range options {
		if options[i].Kind != models.OptionKindRush {
			continue
		}
		hours, err := ParseRushHours(options[i].Name)
		if err != nil {
			return nil, fmt.Errorf("option %d: %w", options[i].ID, err)
		}
		options[i].RushHours = hours
	}
	return options, nil
}

// ParseRushHours reads the delivery window stored in a RUSH option name.
func ParseRushHours(name string) (int, error) {
	hours, err := strconv.Atoi(strings.TrimSpace(name))
	if err != nil || hours <= 0 {
		return 0, fmt.Errorf("invalid rush window %q", name)
	}
	return hours, nil
}
