package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/essay-review-api/internal/models"
)

func TestCatalogRepositoryOptionsByIDsDecodesRush(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "kind", "name", "price", "feature"}).
		AddRow(1, "ADDON", "Criteria review", 5.0, "CRITERIA").
		AddRow(2, "RUSH", "24", 0.0, "")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, kind, name, price, feature FROM options WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	options, err := NewCatalogRepository(db).OptionsByIDs(context.Background(), []int{1, 2})
	require.NoError(t, err)
	require.Len(t, options, 2)
	assert.Equal(t, models.OptionFeatureCriteria, options[0].Feature)
	assert.Equal(t, 0, options[0].RushHours)
	assert.Equal(t, 24, options[1].RushHours)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryRejectsMalformedRush(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM options ORDER BY id")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "name", "price", "feature"}).AddRow(3, "RUSH", "express", 9.0, ""))

	_, err := NewCatalogRepository(db).ListOptions(context.Background())
	assert.Error(t, err)
}

func TestCatalogRepositoryTypeByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM essay_types WHERE id = $1")).
		WithArgs(42).
		WillReturnError(sql.ErrNoRows)

	_, err := NewCatalogRepository(db).TypeByID(context.Background(), 42)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCatalogRepositoryOptionsByIDsEmpty(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()

	options, err := NewCatalogRepository(db).OptionsByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, options)
}

func TestParseRushHours(t *testing.T) {
	hours, err := ParseRushHours(" 48 ")
	require.NoError(t, err)
	assert.Equal(t, 48, hours)

	_, err = ParseRushHours("0")
	assert.Error(t, err)
}
