package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/essay-review-api/internal/models"
)

func TestOrderRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewOrderRepository(db)
	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	order := &models.Order{StudentID: "student-1", EssayTitle: "Title", EssayContent: "Body", EssayTypeID: 1, SentAt: now, UpdatedAt: now, UpdatedBy: "student-1"}
	require.NoError(t, repo.Create(context.Background(), order))
	require.NotEmpty(t, order.ID)
	assert.Equal(t, 1, order.Version)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1")).
		WithArgs(order.ID).
		WillReturnRows(orderRow(sqlmock.NewRows(orderRowColumns), order.ID, 0, 1, nil, now))

	found, err := repo.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDraft, found.Status)
	assert.Equal(t, []int64{1, 2}, []int64(found.OptionIDs))
	assert.Nil(t, found.TeacherID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryListScopesAndPages(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	level := 0
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM orders WHERE level_id = $1 AND status = ANY($2) AND is_disabled = FALSE")).
		WithArgs(0, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY sent_at DESC, id LIMIT 2 OFFSET 2")).
		WithArgs(0, sqlmock.AnyArg()).
		WillReturnRows(orderRow(sqlmock.NewRows(orderRowColumns), "order-3", 1, 2, nil, now))

	orders, total, err := NewOrderRepository(db).List(context.Background(), models.OrderFilter{
		LevelID:  &level,
		Statuses: []models.OrderStatus{models.OrderStatusWaiting},
		Page:     2,
		PageSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, orders, 1)
	assert.Equal(t, "order-3", orders[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryTransitionWithAcquire(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	teacher := "teacher-1"
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE orders SET status = $1, version = version + 1, updated_at = $2, updated_by = $3, teacher_id = $4 WHERE id = $5 AND status = $6 AND version = $7")).
		WithArgs(models.OrderStatusAssigned, now, teacher, teacher, "order-1", models.OrderStatusWaiting, 2).
		WillReturnRows(orderRow(sqlmock.NewRows(orderRowColumns), "order-1", 2, 3, teacher, now))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(teacher).
		WillReturnRows(sqlmock.NewRows(capacityRowColumns).AddRow(teacher, 0, 0, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE teacher_capacity SET active_count = active_count + 1")).
		WithArgs(teacher, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order, err := NewOrderRepository(db).Transition(context.Background(), models.Transition{
		OrderID: "order-1", FromStatus: models.OrderStatusWaiting, FromVersion: 2, ToStatus: models.OrderStatusAssigned,
		TeacherID: &teacher, Acquire: teacher, MaxActive: 5, UpdatedBy: teacher, At: now,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAssigned, order.Status)
	assert.Equal(t, 3, order.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryTransitionStale(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE orders SET status")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := NewOrderRepository(db).Transition(context.Background(), models.Transition{
		OrderID: "order-1", FromStatus: models.OrderStatusWaiting, FromVersion: 1, ToStatus: models.OrderStatusAssigned,
		Acquire: "teacher-1", MaxActive: 5, At: time.Now(),
	})
	assert.ErrorIs(t, err, ErrStaleVersion)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryTransitionRollsBackWhenTeacherFull(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE orders SET status")).
		WillReturnRows(orderRow(sqlmock.NewRows(orderRowColumns), "order-1", 2, 2, "teacher-1", now))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("teacher-1").
		WillReturnRows(sqlmock.NewRows(capacityRowColumns).AddRow("teacher-1", 0, 5, now))
	mock.ExpectRollback()

	_, err := NewOrderRepository(db).Transition(context.Background(), models.Transition{
		OrderID: "order-1", FromStatus: models.OrderStatusWaiting, FromVersion: 1, ToStatus: models.OrderStatusAssigned,
		Acquire: "teacher-1", MaxActive: 5, At: now,
	})
	assert.ErrorIs(t, err, ErrTeacherAtCapacity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryUpdateDraftStale(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE orders SET essay_title = $1")).
		WillReturnError(sql.ErrNoRows)

	_, err := NewOrderRepository(db).UpdateDraft(context.Background(), "order-1", 1, models.DraftChanges{EssayTitle: "New"}, "student-1", time.Now())
	assert.ErrorIs(t, err, ErrStaleVersion)
}

func TestOrderRepositorySaveAnalysisMissingOrder(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET analysis_error_count = $2, analysis_keywords = $3 WHERE id = $1")).
		WithArgs("order-x", 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewOrderRepository(db).SaveAnalysis(context.Background(), "order-x", models.Analysis{ErrorCount: 2, Keywords: []string{"essay"}})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestTransitionQueryPlaceholders(t *testing.T) {
	deadline := time.Now()
	sent := deadline.Add(-time.Hour)
	disabled := true
	query, args := transitionQuery(models.Transition{
		OrderID: "o", FromStatus: models.OrderStatusDraft, FromVersion: 4, ToStatus: models.OrderStatusWaiting,
		Deadline: &deadline, SentAt: &sent, IsDisabled: &disabled, UpdatedBy: "u", At: deadline,
	})
	assert.Contains(t, query, "deadline = $4, sent_at = $5, is_disabled = $6 WHERE id = $7 AND status = $8 AND version = $9")
	assert.Len(t, args, 9)
	assert.Equal(t, 4, args[8])
}
