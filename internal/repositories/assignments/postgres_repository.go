package assignments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gymbridge/internal/common"
	"github.com/dmitrijs2005/gymbridge/internal/dbx"
	"github.com/dmitrijs2005/gymbridge/internal/models"
)

const assignmentColumns = `id, professor_id, student_id, assigned_by, status, start_date, end_date, admin_notes`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanAssignment(row *sql.Row) (*models.StudentAssignment, error) {
	a := &models.StudentAssignment{}
	err := row.Scan(&a.ID, &a.ProfessorID, &a.StudentID, &a.AssignedBy, &a.Status, &a.StartDate, &a.EndDate, &a.AdminNotes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.StudentAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM professor_student_assignments WHERE id = $1`
	return scanAssignment(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) IsSocioLinked(ctx context.Context, professorID, mirrorID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM professor_socio WHERE professor_id = $1 AND socio_id = $2)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, professorID, mirrorID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) FirstOrCreate(ctx context.Context, professorID, studentID int64, assignedBy *int64) (*models.StudentAssignment, bool, error) {
	insert :=
		`INSERT INTO professor_student_assignments (professor_id, student_id, assigned_by, status, start_date)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (professor_id, student_id) DO NOTHING
		 RETURNING ` + assignmentColumns

	a, err := scanAssignment(r.db.QueryRowContext(ctx, insert, professorID, studentID, assignedBy, models.AssignmentStatusActive))
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, false, err
	}

	// DO NOTHING returns no row when the pair already exists.
	query := `SELECT ` + assignmentColumns + ` FROM professor_student_assignments WHERE professor_id = $1 AND student_id = $2`
	a, err = scanAssignment(r.db.QueryRowContext(ctx, query, professorID, studentID))
	if err != nil {
		return nil, false, err
	}
	return a, false, nil
}

func (r *PostgresRepository) Reactivate(ctx context.Context, id int64) error {
	query :=
		`UPDATE professor_student_assignments
		 SET status = $2, end_date = NULL, updated_at = now()
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, models.AssignmentStatusActive)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
