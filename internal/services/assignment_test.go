package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/gymbridge/internal/common"
	"github.com/dmitrijs2005/gymbridge/internal/logging"
	"github.com/dmitrijs2005/gymbridge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const professorID = int64(100)

func newAssignmentService(t *testing.T) (*AssignmentService, *fakeManager) {
	t.Helper()
	fm := newFakeManager()
	db := newTxDB(t)
	ids := NewIdentityService(db, fm, BcryptHasher{Cost: bcrypt.MinCost}, nil, logging.Discard())
	return NewAssignmentService(db, fm, ids, logging.Discard()), fm
}

func TestEnsureStudentAssignment_ExistingAssignmentID(t *testing.T) {
	svc, fm := newAssignmentService(t)
	fm.assignments.put(models.StudentAssignment{ID: 5, ProfessorID: professorID, StudentID: 1, Status: "active"})

	id, err := svc.EnsureStudentAssignment(context.Background(), professorID, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
}

func TestEnsureStudentAssignment_ForeignAssignment(t *testing.T) {
	svc, fm := newAssignmentService(t)
	fm.assignments.put(models.StudentAssignment{ID: 5, ProfessorID: 999, StudentID: 1, Status: "active"})

	_, err := svc.EnsureStudentAssignment(context.Background(), professorID, 5)
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestEnsureStudentAssignment_UnlinkedMirrorRow(t *testing.T) {
	svc, fm := newAssignmentService(t)
	m := fm.mirror.put(models.MirrorRecord{ID: 40, NationalID: strp("1")})

	_, err := svc.EnsureStudentAssignment(context.Background(), professorID, m.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)
	assert.Equal(t, 0, fm.identities.count())
}

func TestEnsureStudentAssignment_MaterializesAndCreates(t *testing.T) {
	svc, fm := newAssignmentService(t)
	ctx := context.Background()
	m := fm.mirror.put(models.MirrorRecord{ID: 40, NationalID: strp("30111222"), DisplayName: strp("PEREZ")})
	fm.assignments.links[[2]int64{professorID, 40}] = true

	id, err := svc.EnsureStudentAssignment(ctx, professorID, m.ID)
	require.NoError(t, err)

	a, err := fm.assignments.GetByID(ctx, id)
	require.NoError(t, err)
	student, err := fm.identities.FindByNationalID(ctx, "30111222")
	require.NoError(t, err)
	assert.Equal(t, student.ID, a.StudentID)
	assert.Equal(t, professorID, a.ProfessorID)
	assert.Equal(t, professorID, *a.AssignedBy)
	assert.Equal(t, models.AssignmentStatusActive, a.Status)

	again, err := svc.EnsureStudentAssignment(ctx, professorID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, 1, fm.identities.count())
}

func TestEnsureStudentAssignment_ReactivatesInactive(t *testing.T) {
	svc, fm := newAssignmentService(t)
	ctx := context.Background()
	m := fm.mirror.put(models.MirrorRecord{ID: 40, NationalID: strp("30111222")})
	fm.assignments.links[[2]int64{professorID, 40}] = true
	student := fm.identities.insert(models.Identity{NationalID: "30111222", PasswordHash: "h"})
	end := time.Now()
	fm.assignments.put(models.StudentAssignment{ID: 7, ProfessorID: professorID, StudentID: student.ID, Status: "completed", EndDate: &end})

	id, err := svc.EnsureStudentAssignment(ctx, professorID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	a, err := fm.assignments.GetByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentStatusActive, a.Status)
	assert.Nil(t, a.EndDate)
}

func TestEnsureStudentAssignment_MissingMirrorRow(t *testing.T) {
	svc, fm := newAssignmentService(t)
	fm.assignments.links[[2]int64{professorID, 41}] = true

	_, err := svc.EnsureStudentAssignment(context.Background(), professorID, 41)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestEnsureStudentAssignment_LookupError(t *testing.T) {
	svc, fm := newAssignmentService(t)
	fm.assignments.getErr = errors.New("db error: down")

	_, err := svc.EnsureStudentAssignment(context.Background(), professorID, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrForbidden)
}
