package syncstate

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gymbridge/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestGet(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`^SELECT\s+value\s+FROM\s+sync_states\s+WHERE\s+key\s*=\s*\$1$`).
		WithArgs(common.LastSyncKey).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("2024-03-01T10:00:00Z"))

	v, err := repo.Get(context.Background(), common.LastSyncKey)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T10:00:00Z", v)
}

func TestGet_Missing(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+sync_states`).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSet_Upserts(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+sync_states\s*\(key,\s*value,\s*updated_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*now\(\)\)\s*ON\s+CONFLICT\s+\(key\)\s+DO\s+UPDATE\s+SET\s+value\s*=\s*EXCLUDED\.value`).
		WithArgs(common.LastSyncKey, "2024-03-01T10:00:00Z").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Set(context.Background(), common.LastSyncKey, "2024-03-01T10:00:00Z"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSet_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT\s+INTO\s+sync_states`).WillReturnError(errors.New("db down"))

	err := repo.Set(context.Background(), "k", "v")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: db down")
}
