package inmem

import (
	"context"
	"database/sql"
	"sort"

	"github.com/noah-isme/essay-review-api/internal/models"
	"github.com/noah-isme/essay-review-api/internal/repository"
)

// CatalogRepository serves reference data from memory.
type CatalogRepository struct {
	db *DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) ListLevels(ctx context.Context) ([]models.Level, error) {
	return append([]models.Level(nil), r.db.levels...), nil
}

func (r *CatalogRepository) ListTypes(ctx context.Context) ([]models.EssayType, error) {
	types := make([]models.EssayType, 0, len(r.db.types))
	for _, t := range r.db.types {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].ID < types[j].ID })
	return types, nil
}

func (r *CatalogRepository) ListOptions(ctx context.Context) ([]models.Option, error) {
	ids := make([]int, 0, len(r.db.options))
	for id := range r.db.options {
		ids = append(ids, id)
	}
	return r.OptionsByIDs(ctx, ids)
}

func (r *CatalogRepository) ListStatuses(ctx context.Context) ([]models.StatusRef, error) {
	return append([]models.StatusRef(nil), r.db.statuses...), nil
}

func (r *CatalogRepository) ListCriteria(ctx context.Context) ([]models.Criterion, error) {
	return append([]models.Criterion(nil), r.db.criteria...), nil
}

func (r *CatalogRepository) TypeByID(ctx context.Context, id int) (*models.EssayType, error) {
	t, ok := r.db.types[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (r *CatalogRepository) OptionsByIDs(ctx context.Context, ids []int) ([]models.Option, error) {
	options := make([]models.Option, 0, len(ids))
	for _, id := range ids {
		o, ok := r.db.options[id]
		if !ok {
			continue
		}
		if o.Kind == models.OptionKindRush {
			hours, err := repository.ParseRushHours(o.Name)
			if err != nil {
				return nil, err
			}
			o.RushHours = hours
		}
		options = append(options, o)
	}
	sort.Slice(options, func(i, j int) bool { return options[i].ID < options[j].ID })
	return options, nil
}
