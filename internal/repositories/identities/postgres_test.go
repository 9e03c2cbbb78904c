package identities

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gymbridge/internal/common"
	"github.com/dmitrijs2005/gymbridge/internal/dbx"
	"github.com/dmitrijs2005/gymbridge/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var identityColumns = []string{"id", "name", "dni", "socio_id", "socio_n", "barcode", "saldo", "semaforo",
	"password", "user_type", "is_admin", "is_professor", "account_status", "email", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func identityRow(id int64, dni string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(identityColumns).
		AddRow(id, "PEREZ, JUAN", dni, "1234", "1234", "B-1", "10.50", int64(1),
			"$2a$10$hash", "local", false, true, "active", nil, now, now)
}

func TestFindByNationalID_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*name,\s*dni,.*saldo::text.*FROM\s+users\s+WHERE\s+dni\s*=\s*\$1$`).
		WithArgs("30111222").
		WillReturnRows(identityRow(5, "30111222"))

	got, err := repo.FindByNationalID(context.Background(), "30111222")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.ID)
	assert.Equal(t, "10.50", got.Balance)
	assert.True(t, got.IsProfessor)
	assert.Nil(t, got.Email)
	require.NotNil(t, got.SocioID)
	assert.Equal(t, "1234", *got.SocioID)
}

func TestFindByNationalID_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+dni`).WithArgs("0").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByNationalID(context.Background(), "0")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFindByBarcode_OldestFirst(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)FROM\s+users\s+WHERE\s+barcode\s*=\s*\$1\s+ORDER\s+BY\s+id\s+LIMIT\s+1$`).
		WithArgs("B-1").
		WillReturnRows(identityRow(3, "SOCIO-9"))

	got, err := repo.FindByBarcode(context.Background(), "B-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ID)
}

func TestFindBySocioID_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)FROM\s+users\s+WHERE\s+socio_id\s*=\s*\$1`).
		WithArgs("1234").
		WillReturnError(errors.New("db err"))

	_, err := repo.FindBySocioID(context.Background(), "1234")
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db err`, err.Error())
}

func TestCreate_ReturnsGeneratedFields(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	sid := "1234"
	in := &models.Identity{
		Name: "PEREZ, JUAN", NationalID: "30111222", SocioID: &sid, SocioN: &sid,
		Balance: "0.00", StatusCode: 1, PasswordHash: "hash",
		UserType: models.UserTypeLocal, AccountStatus: models.AccountStatusActive,
	}

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users\s*\(name,\s*dni,.*email\)\s*VALUES\s*\(\$1,.*\$13\)\s*RETURNING\s+id,\s*created_at,\s*updated_at$`).
		WithArgs("PEREZ, JUAN", "30111222", "1234", "1234", nil, "0.00", int64(1), "hash",
			"local", false, false, "active", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(11), now, now))

	got, err := repo.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.ID)
	assert.Equal(t, int64(0), in.ID, "input must not be mutated")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UniqueViolationIsDetectable(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: UniqueNationalIDConstraint})

	_, err := repo.Create(context.Background(), &models.Identity{NationalID: "1"})
	require.Error(t, err)
	assert.True(t, dbx.IsUniqueViolation(err, UniqueNationalIDConstraint))
}

func TestRefresh_UpdatesRegistryColumnsOnly(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	bc := "B-2"
	sid := "1234"
	mock.ExpectQuery(`(?s)^UPDATE\s+users\s+SET\s+name\s*=\s*\$2,\s*barcode\s*=\s*\$3,\s*saldo\s*=\s*\$4,\s*semaforo\s*=\s*\$5,\s*socio_id\s*=\s*\$6,\s*socio_n\s*=\s*\$7,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1\s+RETURNING\s+id,`).
		WithArgs(int64(5), "NEW NAME", "B-2", "3.00", int64(2), "1234", "1234").
		WillReturnRows(identityRow(5, "30111222"))

	got, err := repo.Refresh(context.Background(), 5, Attributes{
		Name: "NEW NAME", Barcode: &bc, Balance: "3.00", StatusCode: 2, SocioID: &sid, SocioN: &sid,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.ID)
}

func TestRefresh_Missing(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`UPDATE\s+users`).WillReturnError(sql.ErrNoRows)

	_, err := repo.Refresh(context.Background(), 99, Attributes{Name: "x", Balance: "0.00", StatusCode: 1})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
