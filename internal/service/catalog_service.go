package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/essay-review-api/internal/models"
	appErrors "github.com/noah-isme/essay-review-api/pkg/errors"
)

const catalogCachePrefix = "catalog:"

type catalogStore interface {
	ListLevels(ctx context.Context) ([]models.Level, error)
	ListTypes(ctx context.Context) ([]models.EssayType, error)
	ListOptions(ctx context.Context) ([]models.Option, error)
	ListStatuses(ctx context.Context) ([]models.StatusRef, error)
	ListCriteria(ctx context.Context) ([]models.Criterion, error)
	TypeByID(ctx context.Context, id int) (*models.EssayType, error)
	OptionsByIDs(ctx context.Context, ids []int) ([]models.Option, error)
}

// CatalogService serves read-only reference data and prices orders.
type CatalogService struct {
	store  catalogStore
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewCatalogService constructs the catalog service. cache may be nil.
func NewCatalogService(store catalogStore, cache *CacheService, ttl time.Duration, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{store: store, cache: cache, ttl: ttl, logger: logger}
}

// Levels lists skill tiers.
func (s *CatalogService) Levels(ctx context.Context) ([]models.Level, error) {
	return cachedList(ctx, s, "levels", s.store.ListLevels)
}

// Types lists essay types.
func (s *CatalogService) Types(ctx context.Context) ([]models.EssayType, error) {
	return cachedList(ctx, s, "types", s.store.ListTypes)
}

// Options lists purchasable options.
func (s *CatalogService) Options(ctx context.Context) ([]models.Option, error) {
	return cachedList(ctx, s, "options", s.store.ListOptions)
}

// Statuses lists the order status lookup table.
func (s *CatalogService) Statuses(ctx context.Context) ([]models.StatusRef, error) {
	return cachedList(ctx, s, "statuses", s.store.ListStatuses)
}

// Criteria lists the grading rubric.
func (s *CatalogService) Criteria(ctx context.Context) ([]models.Criterion, error) {
	return cachedList(ctx, s, "criteria", s.store.ListCriteria)
}

func cachedList[T any](ctx context.Context, s *CatalogService, name string, load func(context.Context) ([]T, error)) ([]T, error) {
	key := catalogCachePrefix + name
	var cached []T
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}
	items, err := load(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, fmt.Sprintf("failed to load %s", name))
	}
	_ = s.cache.Set(ctx, key, items, s.ttl)
	return items, nil
}

// HasLevel reports whether the level exists.
func (s *CatalogService) HasLevel(ctx context.Context, levelID int) (bool, error) {
	levels, err := s.Levels(ctx)
	if err != nil {
		return false, err
	}
	for _, level := range levels {
		if level.ID == levelID {
			return true, nil
		}
	}
	return false, nil
}

// TypeByID resolves an essay type.
func (s *CatalogService) TypeByID(ctx context.Context, id int) (*models.EssayType, error) {
	essayType, err := s.store.TypeByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("essay type %d not found", id))
		}
		return nil, appErrors.Internal(err, "failed to load essay type")
	}
	return essayType, nil
}

// OptionsByIDs resolves every id or fails with NotFound.
func (s *CatalogService) OptionsByIDs(ctx context.Context, ids []int) ([]models.Option, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	options, err := s.store.OptionsByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load options")
	}
	found := make(map[int]struct{}, len(options))
	for _, opt := range options {
		found[opt.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("option %d not found", id))
		}
	}
	return options, nil
}

// Quote prices an essay type with a set of options. Option ids must be unique
// and at most one RUSH option may be selected.
func (s *CatalogService) Quote(ctx context.Context, typeID int, optionIDs []int) (*models.Quote, error) {
	seen := make(map[int]struct{}, len(optionIDs))
	for _, id := range optionIDs {
		if _, dup := seen[id]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("option %d selected twice", id))
		}
		seen[id] = struct{}{}
	}

	essayType, err := s.TypeByID(ctx, typeID)
	if err != nil {
		return nil, err
	}
	options, err := s.OptionsByIDs(ctx, optionIDs)
	if err != nil {
		return nil, err
	}

	quote := &models.Quote{Type: *essayType, Options: options, TotalPrice: essayType.Price}
	rushCount := 0
	for _, opt := range options {
		quote.TotalPrice += opt.Price
		if opt.Kind == models.OptionKindRush {
			rushCount++
			quote.RushHours = opt.RushHours
		}
	}
	if rushCount > 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only one rush option may be selected")
	}
	return quote, nil
}

// Invalidate drops every cached catalog listing.
func (s *CatalogService) Invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, catalogCachePrefix+"*")
}
