package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/essay-review-api/internal/models"
)

// ResultRepository stores grading records and their rubric rows.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository constructs the repository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

const resultColumns = `id, order_id, has_criteria, has_extras, grade, grade_comment, review, comment, created_at, updated_at`

// Ensure creates the result and its provisioned rows unless the order already has one,
// then returns the stored record.
func (r *ResultRepository) Ensure(ctx context.Context, result *models.Result, criteriaIDs, extraOptionIDs []int) (*models.Result, error) {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if err := r.provision(ctx, result, criteriaIDs, extraOptionIDs); err != nil {
		return nil, err
	}
	return r.GetByOrderID(ctx, result.OrderID)
}

func (r *ResultRepository) provision(ctx context.Context, result *models.Result, criteriaIDs, extraOptionIDs []int) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ensure result: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertResult = `INSERT INTO results (id, order_id, has_criteria, has_extras, created_at, updated_at)
	VALUES (:id, :order_id, :has_criteria, :has_extras, :created_at, :updated_at)
	ON CONFLICT (order_id) DO NOTHING`
	res, err := tx.NamedExecContext(ctx, insertResult, result)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check result insert: %w", err)
	}
	if rows == 0 {
		return tx.Commit()
	}

	for _, id := range criteriaIDs {
		if _, err = tx.ExecContext(ctx, `INSERT INTO result_criteria (result_id, criteria_id) VALUES ($1, $2)`, result.ID, id); err != nil {
			return fmt.Errorf("insert result criteria: %w", err)
		}
	}
	for _, id := range extraOptionIDs {
		if _, err = tx.ExecContext(ctx, `INSERT INTO result_extras (result_id, option_id) VALUES ($1, $2)`, result.ID, id); err != nil {
			return fmt.Errorf("insert result extra: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit ensure result: %w", err)
	}
	return nil
}

// GetByOrderID loads the result with its rows. Returns sql.ErrNoRows when absent.
func (r *ResultRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Result, error) {
	var result models.Result
	if err := r.db.GetContext(ctx, &result, `SELECT `+resultColumns+` FROM results WHERE order_id = $1`, orderID); err != nil {
		return nil, err
	}
	if err := r.db.SelectContext(ctx, &result.Criteria,
		`SELECT result_id, criteria_id, score, comment FROM result_criteria WHERE result_id = $1 ORDER BY criteria_id`, result.ID); err != nil {
		return nil, fmt.Errorf("list result criteria: %w", err)
	}
	if err := r.db.SelectContext(ctx, &result.Extras,
		`SELECT result_id, option_id, content FROM result_extras WHERE result_id = $1 ORDER BY option_id`, result.ID); err != nil {
		return nil, fmt.Errorf("list result extras: %w", err)
	}
	return &result, nil
}

// WriteGrade stores the grade and fills provisioned rows. Unknown rows abort the whole write.
func (r *ResultRepository) WriteGrade(ctx context.Context, resultID string, input models.GradeInput, at time.Time) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write grade: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = execOne(ctx, tx, `UPDATE results SET grade = $2, grade_comment = $3, review = $4, comment = $5, updated_at = $6 WHERE id = $1`,
		resultID, input.Grade, input.GradeComment, input.Review, input.Comment, at); err != nil {
		return err
	}
	for _, c := range input.Criteria {
		if err = execOne(ctx, tx, `UPDATE result_criteria SET score = $3, comment = $4 WHERE result_id = $1 AND criteria_id = $2`,
			resultID, c.CriteriaID, c.Score, c.Comment); err != nil {
			return err
		}
	}
	for _, e := range input.Extras {
		if err = execOne(ctx, tx, `UPDATE result_extras SET content = $3 WHERE result_id = $1 AND option_id = $2`,
			resultID, e.OptionID, e.Content); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit write grade: %w", err)
	}
	return nil
}

func execOne(ctx context.Context, tx *sqlx.Tx, query string, args ...interface{}) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("write grade: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check grade rows: %w", err)
	}
	if rows == 0 {
		return ErrUnknownRubricRow
	}
	return nil
}

const essayCommentColumns = `order_id, sentence_index, sentence, comment, updated_at`

// EnsureComments provisions one row per sentence unless the order already has them,
// then returns the stored rows in sentence order.
func (r *ResultRepository) EnsureComments(ctx context.Context, orderID string, sentences []string, at time.Time) (comments []models.EssayComment, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin ensure comments: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var existing int
	if err = tx.GetContext(ctx, &existing, `SELECT COUNT(*) FROM essay_comments WHERE order_id = $1`, orderID); err != nil {
		return nil, fmt.Errorf("count essay comments: %w", err)
	}
	if existing == 0 {
		for i, sentence := range sentences {
			if _, err = tx.ExecContext(ctx, `INSERT INTO essay_comments (order_id, sentence_index, sentence, updated_at)
	VALUES ($1, $2, $3, $4) ON CONFLICT (order_id, sentence_index) DO NOTHING`, orderID, i, sentence, at); err != nil {
				return nil, fmt.Errorf("insert essay comment: %w", err)
			}
		}
	}

	if err = tx.SelectContext(ctx, &comments,
		`SELECT `+essayCommentColumns+` FROM essay_comments WHERE order_id = $1 ORDER BY sentence_index`, orderID); err != nil {
		return nil, fmt.Errorf("list essay comments: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit ensure comments: %w", err)
	}
	return comments, nil
}

// WriteComments sets the notes of provisioned sentences. An unknown index aborts the whole write.
func (r *ResultRepository) WriteComments(ctx context.Context, orderID string, comments []models.EssayCommentInput, at time.Time) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write comments: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, c := range comments {
		res, err := tx.ExecContext(ctx, `UPDATE essay_comments SET comment = $3, updated_at = $4 WHERE order_id = $1 AND sentence_index = $2`,
			orderID, c.SentenceIndex, c.Comment, at)
		if err != nil {
			return fmt.Errorf("write essay comment: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("check essay comment rows: %w", err)
		}
		if rows == 0 {
			return ErrSentenceOutOfRange
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit write comments: %w", err)
	}
	return nil
}
