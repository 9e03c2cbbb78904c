package models

import "time"

// Identity is a users row materialized from a MirrorRecord so that other
// tables can hold a stable foreign key to a member.
type Identity struct {
	ID            int64
	Name          string
	NationalID    string // dni: real digits or synthetic "SOCIO-<mirror id>"
	SocioID       *string
	SocioN        *string
	Barcode       *string
	Balance       string
	StatusCode    int
	PasswordHash  string
	UserType      string
	IsAdmin       bool
	IsProfessor   bool
	AccountStatus string
	Email         *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const (
	UserTypeLocal       = "local"
	AccountStatusActive = "active"
)
