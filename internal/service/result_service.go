package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/essay-review-api/internal/models"
	"github.com/noah-isme/essay-review-api/internal/repository"
	"github.com/noah-isme/essay-review-api/pkg/analyzer"
	appErrors "github.com/noah-isme/essay-review-api/pkg/errors"
)

type resultStore interface {
	Ensure(ctx context.Context, result *models.Result, criteriaIDs, extraOptionIDs []int) (*models.Result, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Result, error)
	WriteGrade(ctx context.Context, resultID string, input models.GradeInput, at time.Time) error
	EnsureComments(ctx context.Context, orderID string, sentences []string, at time.Time) ([]models.EssayComment, error)
	WriteComments(ctx context.Context, orderID string, comments []models.EssayCommentInput, at time.Time) error
}

type rubricCatalog interface {
	Criteria(ctx context.Context) ([]models.Criterion, error)
	OptionsByIDs(ctx context.Context, ids []int) ([]models.Option, error)
}

// ResultService provisions and fills grading records.
type ResultService struct {
	store   resultStore
	catalog rubricCatalog
	logger  *zap.Logger
	now     func() time.Time
}

// NewResultService constructs the result store service.
func NewResultService(store resultStore, catalog rubricCatalog, logger *zap.Logger) *ResultService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultService{store: store, catalog: catalog, logger: logger, now: time.Now}
}

// EnsureResult returns the order's result, provisioning rubric rows on first call.
func (s *ResultService) EnsureResult(ctx context.Context, order *models.Order) (*models.Result, error) {
	if existing, err := s.store.GetByOrderID(ctx, order.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to load result")
	}

	optionIDs := make([]int, len(order.OptionIDs))
	for i, id := range order.OptionIDs {
		optionIDs[i] = int(id)
	}
	options, err := s.catalog.OptionsByIDs(ctx, optionIDs)
	if err != nil {
		return nil, err
	}

	var withCriteria bool
	var extraIDs []int
	for _, opt := range options {
		switch opt.Feature {
		case models.OptionFeatureCriteria:
			withCriteria = true
		case models.OptionFeatureExtraNote:
			extraIDs = append(extraIDs, opt.ID)
		}
	}

	var criteriaIDs []int
	if withCriteria {
		criteria, err := s.catalog.Criteria(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range criteria {
			criteriaIDs = append(criteriaIDs, c.ID)
		}
	}

	now := s.now().UTC()
	result, err := s.store.Ensure(ctx, &models.Result{
		OrderID:     order.ID,
		HasCriteria: len(criteriaIDs) > 0,
		HasExtras:   len(extraIDs) > 0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, criteriaIDs, extraIDs)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to provision result")
	}
	return result, nil
}

// Get returns the stored result of an order.
func (s *ResultService) Get(ctx context.Context, orderID string) (*models.Result, error) {
	result, err := s.store.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return nil, appErrors.Internal(err, "failed to load result")
	}
	return result, nil
}

// WriteGrade fills the result. Every provisioned rubric row and note must be supplied exactly once.
func (s *ResultService) WriteGrade(ctx context.Context, order *models.Order, input models.GradeInput) (*models.Result, error) {
	result, err := s.EnsureResult(ctx, order)
	if err != nil {
		return nil, err
	}
	if err := matchRubric(result, input); err != nil {
		return nil, err
	}
	if err := s.store.WriteGrade(ctx, result.ID, input, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrUnknownRubricRow) {
			return nil, appErrors.Clone(appErrors.ErrIncompleteInput, "grading row not provisioned")
		}
		return nil, appErrors.Internal(err, "failed to write grade")
	}
	return s.Get(ctx, order.ID)
}

// EnsureComments returns the per-sentence comment rows of the essay, splitting the
// essay into sentences on first call.
func (s *ResultService) EnsureComments(ctx context.Context, order *models.Order) ([]models.EssayComment, error) {
	comments, err := s.store.EnsureComments(ctx, order.ID, analyzer.Sentences(order.EssayContent), s.now().UTC())
	if err != nil {
		return nil, appErrors.Internal(err, "failed to provision essay comments")
	}
	return comments, nil
}

// WriteComments sets sentence comments. Indexes outside the essay reject the whole batch.
func (s *ResultService) WriteComments(ctx context.Context, order *models.Order, inputs []models.EssayCommentInput) ([]models.EssayComment, error) {
	comments, err := s.EnsureComments(ctx, order)
	if err != nil {
		return nil, err
	}
	for _, in := range inputs {
		if in.SentenceIndex < 0 || in.SentenceIndex >= len(comments) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("sentence index %d out of range", in.SentenceIndex))
		}
	}
	if err := s.store.WriteComments(ctx, order.ID, inputs, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrSentenceOutOfRange) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "sentence index out of range")
		}
		return nil, appErrors.Internal(err, "failed to write essay comments")
	}
	return s.EnsureComments(ctx, order)
}

func matchRubric(result *models.Result, input models.GradeInput) error {
	if len(input.Criteria) != len(result.Criteria) {
		return appErrors.Clone(appErrors.ErrIncompleteInput, fmt.Sprintf("expected %d criteria scores, got %d", len(result.Criteria), len(input.Criteria)))
	}
	if len(input.Extras) != len(result.Extras) {
		return appErrors.Clone(appErrors.ErrIncompleteInput, fmt.Sprintf("expected %d extra notes, got %d", len(result.Extras), len(input.Extras)))
	}

	criteria := make(map[int]bool, len(result.Criteria))
	for _, row := range result.Criteria {
		criteria[row.CriteriaID] = false
	}
	for _, in := range input.Criteria {
		used, ok := criteria[in.CriteriaID]
		if !ok || used {
			return appErrors.Clone(appErrors.ErrIncompleteInput, fmt.Sprintf("criteria %d not expected", in.CriteriaID))
		}
		criteria[in.CriteriaID] = true
	}

	extras := make(map[int]bool, len(result.Extras))
	for _, row := range result.Extras {
		extras[row.OptionID] = false
	}
	for _, in := range input.Extras {
		used, ok := extras[in.OptionID]
		if !ok || used {
			return appErrors.Clone(appErrors.ErrIncompleteInput, fmt.Sprintf("note for option %d not expected", in.OptionID))
		}
		extras[in.OptionID] = true
	}
	return nil
}
