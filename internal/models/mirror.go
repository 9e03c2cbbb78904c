// Package models defines the rows persisted by gymbridge.
package models

import "time"

// MirrorRecord is one socios_padron row: an upstream member as last observed.
//
// Every field is a scalar. Nil pointers are stored as NULL.
type MirrorRecord struct {
	ID int64

	// SecondaryID is the upstream-issued "sid". NULL when absent.
	SecondaryID *string
	// NationalID is the "dni" as sent by the registry. NULL when absent.
	NationalID *string

	DisplayName     *string
	Barcode         *string
	Balance         *string // decimal text, e.g. "10.50"
	StatusCode      *int    // semaforo
	LastUnpaidDate  *string
	FullAccess      *bool
	ControlsEnabled *bool
	ControlsRaw     *string // JSON text
	Raw             *string // JSON text of the full upstream payload

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MirrorColumns lists the columns written by an upsert, in ColumnValues order.
var MirrorColumns = []string{
	"dni",
	"sid",
	"apynom",
	"barcode",
	"saldo",
	"semaforo",
	"ult_impago",
	"acceso_full",
	"hab_controles",
	"hab_controles_raw",
	"raw",
}

// MirrorMutableColumns are overwritten on conflict. Key columns are not.
var MirrorMutableColumns = []string{
	"apynom",
	"barcode",
	"saldo",
	"semaforo",
	"ult_impago",
	"acceso_full",
	"hab_controles",
	"hab_controles_raw",
	"raw",
	"updated_at",
}

// ColumnValues returns the insert arguments for MirrorColumns.
func (m *MirrorRecord) ColumnValues() []any {
	return []any{
		m.NationalID,
		m.SecondaryID,
		m.DisplayName,
		m.Barcode,
		m.Balance,
		m.StatusCode,
		m.LastUnpaidDate,
		m.FullAccess,
		m.ControlsEnabled,
		m.ControlsRaw,
		m.Raw,
	}
}

// HasSecondaryID reports a non-empty sid.
func (m *MirrorRecord) HasSecondaryID() bool {
	return m.SecondaryID != nil && *m.SecondaryID != ""
}

// HasNationalID reports a non-empty dni.
func (m *MirrorRecord) HasNationalID() bool {
	return m.NationalID != nil && *m.NationalID != ""
}
