package assignments

import (
	"context"

	"github.com/dmitrijs2005/gymbridge/internal/models"
)

// Repository covers professor_socio links and professor_student_assignments.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*models.StudentAssignment, error)
	// IsSocioLinked reports whether the professor has a link to the mirror row.
	IsSocioLinked(ctx context.Context, professorID, mirrorID int64) (bool, error)
	// FirstOrCreate returns the assignment for the pair, creating an active one
	// when missing. created is true when this call inserted the row.
	FirstOrCreate(ctx context.Context, professorID, studentID int64, assignedBy *int64) (a *models.StudentAssignment, created bool, err error)
	// Reactivate sets status active and clears end_date.
	Reactivate(ctx context.Context, id int64) error
}
