package models

import "time"

// SyncState is a sync_states row: one named value, e.g. the registry cursor.
type SyncState struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
