package services

import (
	"errors"
	"fmt"
)

var (
	// ErrMirrorContractViolation means a mapped row carried a non-scalar column
	// value. The batch is aborted before any write.
	ErrMirrorContractViolation = errors.New("mirror contract violation")

	// ErrRunInProgress is returned when another sync run holds the run lock.
	ErrRunInProgress = errors.New("sync run already in progress")
)

// MirrorContractViolation pinpoints the offending row and column.
type MirrorContractViolation struct {
	RowIndex    int
	NationalID  string
	SecondaryID string
	Column      string
	Type        string
}

func (e *MirrorContractViolation) Error() string {
	return fmt.Sprintf("%s: row %d (dni=%q sid=%q) column %s has non-scalar type %s",
		ErrMirrorContractViolation, e.RowIndex, e.NationalID, e.SecondaryID, e.Column, e.Type)
}

func (e *MirrorContractViolation) Unwrap() error {
	return ErrMirrorContractViolation
}

// errorChain lists the messages of err and its wrapped causes, outermost first.
func errorChain(err error, limit int) []string {
	var out []string
	for err != nil && len(out) < limit {
		out = append(out, err.Error())
		err = errors.Unwrap(err)
	}
	return out
}
