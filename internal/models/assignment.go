package models

import "time"

// StudentAssignment is a professor_student_assignments row. StudentID
// references users.id, which is why mirror rows must be materialized first.
type StudentAssignment struct {
	ID          int64
	ProfessorID int64
	StudentID   int64
	AssignedBy  *int64
	Status      string
	StartDate   time.Time
	EndDate     *time.Time
	AdminNotes  *string
}

const AssignmentStatusActive = "active"
