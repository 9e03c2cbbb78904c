package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gymbridge/internal/common"
	"github.com/dmitrijs2005/gymbridge/internal/logging"
	"github.com/dmitrijs2005/gymbridge/internal/models"
	"github.com/dmitrijs2005/gymbridge/internal/repositories/repomanager"
)

// IdentityEnsurer materializes the identity behind a mirror row.
type IdentityEnsurer interface {
	EnsureIdentityByMirrorID(ctx context.Context, mirrorID int64) (*models.Identity, error)
}

// AssignmentService turns professor links to mirror rows into
// professor_student_assignments, which reference users.
type AssignmentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	identities  IdentityEnsurer
	logger      logging.Logger
}

func NewAssignmentService(db *sql.DB, m repomanager.RepositoryManager, identities IdentityEnsurer, logger logging.Logger) *AssignmentService {
	return &AssignmentService{
		db:          db,
		repomanager: m,
		identities:  identities,
		logger:      logger.With("module", "assignment"),
	}
}

// EnsureStudentAssignment resolves incomingID to an assignment id owned by
// professorID. An existing assignment id is returned as is. Any other value is
// taken as a socios_padron id the professor must be linked to; its identity is
// materialized and the assignment created or reactivated.
func (s *AssignmentService) EnsureStudentAssignment(ctx context.Context, professorID, incomingID int64) (int64, error) {
	repo := s.repomanager.Assignments(s.db)

	existing, err := repo.GetByID(ctx, incomingID)
	switch {
	case err == nil:
		if existing.ProfessorID != professorID {
			return 0, common.ErrForbidden
		}
		return existing.ID, nil
	case !errors.Is(err, common.ErrorNotFound):
		return 0, err
	}

	linked, err := repo.IsSocioLinked(ctx, professorID, incomingID)
	if err != nil {
		return 0, err
	}
	if !linked {
		return 0, common.ErrForbidden
	}

	student, err := s.identities.EnsureIdentityByMirrorID(ctx, incomingID)
	if err != nil {
		return 0, err
	}

	assignedBy := professorID
	a, created, err := repo.FirstOrCreate(ctx, professorID, student.ID, &assignedBy)
	if err != nil {
		return 0, fmt.Errorf("assignment for professor %d student %d: %w", professorID, student.ID, err)
	}

	if !created && a.Status != models.AssignmentStatusActive {
		if err := repo.Reactivate(ctx, a.ID); err != nil {
			return 0, err
		}
		s.logger.Info(ctx, "assignment reactivated", "assignment_id", a.ID, "previous_status", a.Status)
	}

	s.logger.Debug(ctx, "assignment ensured",
		"professor_id", professorID, "mirror_id", incomingID, "student_id", student.ID, "assignment_id", a.ID, "created", created)
	return a.ID, nil
}
