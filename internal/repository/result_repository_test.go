package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/essay-review-api/internal/models"
)

var resultRowColumns = []string{"id", "order_id", "has_criteria", "has_extras", "grade", "grade_comment", "review", "comment", "created_at", "updated_at"}

func expectResultLoad(mock sqlmock.Sqlmock, resultID, orderID string, now time.Time, criteria int) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM results WHERE order_id = $1")).
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows(resultRowColumns).AddRow(resultID, orderID, criteria > 0, false, nil, nil, nil, nil, now, now))
	rows := sqlmock.NewRows([]string{"result_id", "criteria_id", "score", "comment"})
	for i := 1; i <= criteria; i++ {
		rows.AddRow(resultID, i, nil, nil)
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM result_criteria WHERE result_id = $1")).WithArgs(resultID).WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM result_extras WHERE result_id = $1")).WithArgs(resultID).
		WillReturnRows(sqlmock.NewRows([]string{"result_id", "option_id", "content"}))
}

func TestResultRepositoryEnsureProvisionsRows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO results")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO result_criteria")).WithArgs("result-1", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO result_criteria")).WithArgs("result-1", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	expectResultLoad(mock, "result-1", "order-1", now, 2)

	res, err := NewResultRepository(db).Ensure(context.Background(),
		&models.Result{ID: "result-1", OrderID: "order-1", HasCriteria: true, CreatedAt: now, UpdatedAt: now}, []int{1, 2}, nil)
	require.NoError(t, err)
	assert.Len(t, res.Criteria, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryEnsureExistingSkipsRows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO results")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	expectResultLoad(mock, "result-original", "order-1", now, 2)

	res, err := NewResultRepository(db).Ensure(context.Background(),
		&models.Result{ID: "result-new", OrderID: "order-1", HasCriteria: true, CreatedAt: now, UpdatedAt: now}, []int{1, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, "result-original", res.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryWriteGradeUnknownRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE results SET grade = $2")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE result_criteria SET score = $3")).
		WithArgs("result-1", 9, 7.5, "ok").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := NewResultRepository(db).WriteGrade(context.Background(), "result-1", models.GradeInput{
		Grade:    7.5,
		Criteria: []models.CriteriaScoreInput{{CriteriaID: 9, Score: 7.5, Comment: "ok"}},
	}, now)
	assert.ErrorIs(t, err, ErrUnknownRubricRow)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryWriteGrade(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE results SET grade = $2")).
		WithArgs("result-1", 8.0, "good", "solid", "thanks", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE result_extras SET content = $3")).
		WithArgs("result-1", 4, "note").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewResultRepository(db).WriteGrade(context.Background(), "result-1", models.GradeInput{
		Grade: 8, GradeComment: "good", Review: "solid", Comment: "thanks",
		Extras: []models.ExtraNoteInput{{OptionID: 4, Content: "note"}},
	}, now)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

var essayCommentColumnNames = []string{"order_id", "sentence_index", "sentence", "comment", "updated_at"}

func TestResultRepositoryEnsureCommentsProvisionsSentences(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM essay_comments WHERE order_id = $1")).
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO essay_comments")).WithArgs("order-1", 0, "First.", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO essay_comments")).WithArgs("order-1", 1, "Second.", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM essay_comments WHERE order_id = $1 ORDER BY sentence_index")).
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows(essayCommentColumnNames).
			AddRow("order-1", 0, "First.", nil, now).
			AddRow("order-1", 1, "Second.", nil, now))
	mock.ExpectCommit()

	comments, err := NewResultRepository(db).EnsureComments(context.Background(), "order-1", []string{"First.", "Second."}, now)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "Second.", comments[1].Sentence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryEnsureCommentsKeepsExistingRows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM essay_comments")).
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM essay_comments WHERE order_id = $1")).
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows(essayCommentColumnNames).AddRow("order-1", 0, "First.", "Nice.", now))
	mock.ExpectCommit()

	comments, err := NewResultRepository(db).EnsureComments(context.Background(), "order-1", []string{"First.", "Second."}, now)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Nice.", *comments[0].Comment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryWriteCommentsRejectsUnknownSentence(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE essay_comments SET comment = $3, updated_at = $4 WHERE order_id = $1 AND sentence_index = $2")).
		WithArgs("order-1", 0, "Good.", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE essay_comments")).
		WithArgs("order-1", 9, "Missing.", now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := NewResultRepository(db).WriteComments(context.Background(), "order-1", []models.EssayCommentInput{
		{SentenceIndex: 0, Comment: "Good."},
		{SentenceIndex: 9, Comment: "Missing."},
	}, now)
	assert.ErrorIs(t, err, ErrSentenceOutOfRange)
	require.NoError(t, mock.ExpectationsWereMet())
}
