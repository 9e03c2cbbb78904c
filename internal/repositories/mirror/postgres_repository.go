// Package mirror is the PostgreSQL repository of the socios_padron table,
// the local mirror of the upstream registry.
package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gymbridge/internal/common"
	"github.com/dmitrijs2005/gymbridge/internal/dbx"
	"github.com/dmitrijs2005/gymbridge/internal/models"
)

const (
	conflictBySecondaryID = "(sid)"
	conflictByNationalID  = "(dni) WHERE sid IS NULL"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) UpsertBySecondaryID(ctx context.Context, rows []models.MirrorRecord) (int64, error) {
	return r.upsert(ctx, conflictBySecondaryID, rows)
}

func (r *PostgresRepository) UpsertByNationalID(ctx context.Context, rows []models.MirrorRecord) (int64, error) {
	return r.upsert(ctx, conflictByNationalID, rows)
}

func (r *PostgresRepository) upsert(ctx context.Context, conflict string, rows []models.MirrorRecord) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(rows)*len(models.MirrorColumns))
	for i := range rows {
		args = append(args, rows[i].ColumnValues()...)
	}

	res, err := r.db.ExecContext(ctx, buildUpsert(conflict, len(rows)), args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// buildUpsert renders a multi-row INSERT ... ON CONFLICT DO UPDATE for n rows.
// Only MirrorMutableColumns are updated on conflict.
func buildUpsert(conflict string, n int) string {
	cols := models.MirrorColumns
	width := len(cols)

	var b strings.Builder
	b.WriteString("INSERT INTO socios_padron (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(", created_at, updated_at) VALUES ")

	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := 0; j < width; j++ {
			fmt.Fprintf(&b, "$%d, ", i*width+j+1)
		}
		b.WriteString("now(), now())")
	}

	b.WriteString(" ON CONFLICT ")
	b.WriteString(conflict)
	b.WriteString(" DO UPDATE SET ")

	set := make([]string, 0, len(models.MirrorMutableColumns))
	for _, c := range models.MirrorMutableColumns {
		set = append(set, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	b.WriteString(strings.Join(set, ", "))

	return b.String()
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.MirrorRecord, error) {
	query :=
		`SELECT id, dni, sid, apynom, barcode, saldo, semaforo, ult_impago, acceso_full,
		        hab_controles, hab_controles_raw, raw, created_at, updated_at
		 FROM socios_padron
		 WHERE id = $1
		 `

	m := &models.MirrorRecord{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.NationalID, &m.SecondaryID, &m.DisplayName, &m.Barcode, &m.Balance,
		&m.StatusCode, &m.LastUnpaidDate, &m.FullAccess, &m.ControlsEnabled,
		&m.ControlsRaw, &m.Raw, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}
