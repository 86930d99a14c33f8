package repository

import (
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var orderRowColumns = []string{"id", "student_id", "teacher_id", "status", "version", "essay_title", "essay_content",
	"essay_type_id", "level_id", "option_ids", "rush_hours", "total_price", "deadline", "is_disabled",
	"analysis_error_count", "analysis_keywords", "sent_at", "updated_at", "updated_by"}

func orderRow(rows *sqlmock.Rows, id string, status int, version int, teacherID interface{}, at time.Time) *sqlmock.Rows {
	return rows.AddRow(id, "student-1", teacherID, status, version, "Title", "Body", 1, 0,
		"{1,2}", 24, 15.0, nil, false, nil, nil, at, at, "student-1")
}

var capacityRowColumns = []string{"teacher_id", "level_id", "active_count", "last_active"}
