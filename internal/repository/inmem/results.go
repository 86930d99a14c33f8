package inmem

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/essay-review-api/internal/models"
	"github.com/noah-isme/essay-review-api/internal/repository"
)

// ResultRepository stores grading records in memory.
type ResultRepository struct {
	db *DB
}

// NewResultRepository constructs the repository.
func NewResultRepository(db *DB) *ResultRepository {
	return &ResultRepository{db: db}
}

func cloneResult(res *models.Result) *models.Result {
	out := *res
	out.Criteria = append([]models.CriteriaScore(nil), res.Criteria...)
	out.Extras = append([]models.ExtraNote(nil), res.Extras...)
	return &out
}

func (r *ResultRepository) Ensure(ctx context.Context, result *models.Result, criteriaIDs, extraOptionIDs []int) (*models.Result, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if existing, ok := r.db.results[result.OrderID]; ok {
		return cloneResult(existing), nil
	}

	stored := *result
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.Criteria = make([]models.CriteriaScore, 0, len(criteriaIDs))
	for _, id := range criteriaIDs {
		stored.Criteria = append(stored.Criteria, models.CriteriaScore{ResultID: stored.ID, CriteriaID: id})
	}
	stored.Extras = make([]models.ExtraNote, 0, len(extraOptionIDs))
	for _, id := range extraOptionIDs {
		stored.Extras = append(stored.Extras, models.ExtraNote{ResultID: stored.ID, OptionID: id})
	}
	r.db.results[stored.OrderID] = &stored
	return cloneResult(&stored), nil
}

func (r *ResultRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Result, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	res, ok := r.db.results[orderID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneResult(res), nil
}

func (r *ResultRepository) WriteGrade(ctx context.Context, resultID string, input models.GradeInput, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var res *models.Result
	for _, candidate := range r.db.results {
		if candidate.ID == resultID {
			res = candidate
			break
		}
	}
	if res == nil {
		return repository.ErrUnknownRubricRow
	}

	// validate every row before touching anything
	criteriaIdx := make(map[int]int, len(res.Criteria))
	for i, c := range res.Criteria {
		criteriaIdx[c.CriteriaID] = i
	}
	extraIdx := make(map[int]int, len(res.Extras))
	for i, e := range res.Extras {
		extraIdx[e.OptionID] = i
	}
	for _, c := range input.Criteria {
		if _, ok := criteriaIdx[c.CriteriaID]; !ok {
			return repository.ErrUnknownRubricRow
		}
	}
	for _, e := range input.Extras {
		if _, ok := extraIdx[e.OptionID]; !ok {
			return repository.ErrUnknownRubricRow
		}
	}

	grade, gradeComment, review, comment := input.Grade, input.GradeComment, input.Review, input.Comment
	res.Grade, res.GradeComment, res.Review, res.Comment = &grade, &gradeComment, &review, &comment
	for _, c := range input.Criteria {
		score, text := c.Score, c.Comment
		row := &res.Criteria[criteriaIdx[c.CriteriaID]]
		row.Score, row.Comment = &score, &text
	}
	for _, e := range input.Extras {
		content := e.Content
		res.Extras[extraIdx[e.OptionID]].Content = &content
	}
	res.UpdatedAt = at
	return nil
}

func (r *ResultRepository) EnsureComments(ctx context.Context, orderID string, sentences []string, at time.Time) ([]models.EssayComment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.comments[orderID]; !ok {
		rows := make([]models.EssayComment, len(sentences))
		for i, sentence := range sentences {
			rows[i] = models.EssayComment{OrderID: orderID, SentenceIndex: i, Sentence: sentence, UpdatedAt: at}
		}
		r.db.comments[orderID] = rows
	}
	return cloneComments(r.db.comments[orderID]), nil
}

func (r *ResultRepository) WriteComments(ctx context.Context, orderID string, comments []models.EssayCommentInput, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	rows := r.db.comments[orderID]
	for _, c := range comments {
		if c.SentenceIndex < 0 || c.SentenceIndex >= len(rows) {
			return repository.ErrSentenceOutOfRange
		}
	}
	for _, c := range comments {
		text := c.Comment
		rows[c.SentenceIndex].Comment = &text
		rows[c.SentenceIndex].UpdatedAt = at
	}
	return nil
}

func cloneComments(rows []models.EssayComment) []models.EssayComment {
	out := make([]models.EssayComment, len(rows))
	for i, row := range rows {
		out[i] = row
		if row.Comment != nil {
			text := *row.Comment
			out[i].Comment = &text
		}
	}
	return out
}
