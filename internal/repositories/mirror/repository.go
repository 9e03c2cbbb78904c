package mirror

import (
	"context"

	"github.com/dmitrijs2005/gymbridge/internal/models"
)

// Repository persists socios_padron rows.
type Repository interface {
	// UpsertBySecondaryID writes rows keyed on sid. Every row must carry a sid
	// and sids must be unique within the call.
	UpsertBySecondaryID(ctx context.Context, rows []models.MirrorRecord) (int64, error)
	// UpsertByNationalID writes sid-less rows keyed on dni. dnis must be
	// unique within the call.
	UpsertByNationalID(ctx context.Context, rows []models.MirrorRecord) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.MirrorRecord, error)
}
