package identities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gymbridge/internal/common"
	"github.com/dmitrijs2005/gymbridge/internal/dbx"
	"github.com/dmitrijs2005/gymbridge/internal/models"
)

// UniqueNationalIDConstraint is the constraint violated by a concurrent create.
const UniqueNationalIDConstraint = "users_dni_key"

const selectColumns = `id, name, dni, socio_id, socio_n, barcode, saldo::text, semaforo, password,
		        user_type, is_admin, is_professor, account_status, email, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanIdentity(row *sql.Row) (*models.Identity, error) {
	u := &models.Identity{}
	err := row.Scan(
		&u.ID, &u.Name, &u.NationalID, &u.SocioID, &u.SocioN, &u.Barcode, &u.Balance,
		&u.StatusCode, &u.PasswordHash, &u.UserType, &u.IsAdmin, &u.IsProfessor,
		&u.AccountStatus, &u.Email, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) FindByNationalID(ctx context.Context, dni string) (*models.Identity, error) {
	query := `SELECT ` + selectColumns + `
		 FROM users
		 WHERE dni = $1`
	return scanIdentity(r.db.QueryRowContext(ctx, query, dni))
}

// FindByBarcode returns the oldest identity carrying barcode.
func (r *PostgresRepository) FindByBarcode(ctx context.Context, barcode string) (*models.Identity, error) {
	query := `SELECT ` + selectColumns + `
		 FROM users
		 WHERE barcode = $1
		 ORDER BY id
		 LIMIT 1`
	return scanIdentity(r.db.QueryRowContext(ctx, query, barcode))
}

// FindBySocioID returns the oldest identity linked to the registry sid.
func (r *PostgresRepository) FindBySocioID(ctx context.Context, socioID string) (*models.Identity, error) {
	query := `SELECT ` + selectColumns + `
		 FROM users
		 WHERE socio_id = $1
		 ORDER BY id
		 LIMIT 1`
	return scanIdentity(r.db.QueryRowContext(ctx, query, socioID))
}

func (r *PostgresRepository) Create(ctx context.Context, u *models.Identity) (*models.Identity, error) {
	query :=
		`INSERT INTO users (name, dni, socio_id, socio_n, barcode, saldo, semaforo, password,
		                    user_type, is_admin, is_professor, account_status, email)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id, created_at, updated_at`

	out := *u
	err := r.db.QueryRowContext(ctx, query,
		u.Name, u.NationalID, u.SocioID, u.SocioN, u.Barcode, u.Balance, u.StatusCode, u.PasswordHash,
		u.UserType, u.IsAdmin, u.IsProfessor, u.AccountStatus, u.Email,
	).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		// callers match the unique violation with dbx.IsUniqueViolation
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &out, nil
}

// Refresh overwrites the registry-derived columns only. Credentials, role flags,
// account status and dni are left as stored.
func (r *PostgresRepository) Refresh(ctx context.Context, id int64, a Attributes) (*models.Identity, error) {
	query :=
		`UPDATE users
		 SET name = $2, barcode = $3, saldo = $4, semaforo = $5, socio_id = $6, socio_n = $7, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + selectColumns

	return scanIdentity(r.db.QueryRowContext(ctx, query,
		id, a.Name, a.Barcode, a.Balance, a.StatusCode, a.SocioID, a.SocioN,
	))
}
