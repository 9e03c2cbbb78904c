package assignments

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gymbridge/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"id", "professor_id", "student_id", "assigned_by", "status", "start_date", "end_date", "admin_notes"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestGetByID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`^SELECT\s+id,\s*professor_id,.*FROM\s+professor_student_assignments\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(int64(3), int64(1), int64(2), nil, "active", time.Now(), nil, nil))

	a, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ProfessorID)
	assert.Nil(t, a.AssignedBy)
	assert.Nil(t, a.EndDate)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+professor_student_assignments`).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 3)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestIsSocioLinked(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT\s+EXISTS\s*\(SELECT\s+1\s+FROM\s+professor_socio\s+WHERE\s+professor_id\s*=\s*\$1\s+AND\s+socio_id\s*=\s*\$2\)`).
		WithArgs(int64(1), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.IsSocioLinked(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFirstOrCreate_Inserts(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	by := int64(1)
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+professor_student_assignments.*ON\s+CONFLICT\s+\(professor_id,\s*student_id\)\s+DO\s+NOTHING\s+RETURNING`).
		WithArgs(int64(1), int64(2), int64(1), "active").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(int64(9), int64(1), int64(2), int64(1), "active", time.Now(), nil, nil))

	a, created, err := repo.FirstOrCreate(context.Background(), 1, 2, &by)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(9), a.ID)
}

func TestFirstOrCreate_Existing(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+professor_student_assignments`).
		WillReturnRows(sqlmock.NewRows(columns))
	mock.ExpectQuery(`FROM\s+professor_student_assignments\s+WHERE\s+professor_id\s*=\s*\$1\s+AND\s+student_id\s*=\s*\$2$`).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(int64(4), int64(1), int64(2), nil, "inactive", time.Now(), time.Now(), nil))

	a, created, err := repo.FirstOrCreate(context.Background(), 1, 2, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "inactive", a.Status)
	require.NotNil(t, a.EndDate)
}

func TestFirstOrCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+professor_student_assignments`).WillReturnError(errors.New("boom"))

	_, _, err := repo.FirstOrCreate(context.Background(), 1, 2, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: boom")
}

func TestReactivate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)^UPDATE\s+professor_student_assignments\s+SET\s+status\s*=\s*\$2,\s*end_date\s*=\s*NULL`).
		WithArgs(int64(4), "active").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Reactivate(context.Background(), 4))

	mock.ExpectExec(`UPDATE\s+professor_student_assignments`).
		WithArgs(int64(5), "active").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Reactivate(context.Background(), 5), common.ErrorNotFound)
}
