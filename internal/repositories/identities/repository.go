package identities

import (
	"context"

	"github.com/dmitrijs2005/gymbridge/internal/models"
)

// Attributes are the registry-derived columns refreshed on an existing identity.
type Attributes struct {
	Name       string
	Barcode    *string
	Balance    string
	StatusCode int
	SocioID    *string
	SocioN     *string
}

// Repository persists users rows created from the mirror.
//
// Find methods return common.ErrorNotFound when no row matches.
type Repository interface {
	FindByNationalID(ctx context.Context, dni string) (*models.Identity, error)
	FindByBarcode(ctx context.Context, barcode string) (*models.Identity, error)
	FindBySocioID(ctx context.Context, socioID string) (*models.Identity, error)
	Create(ctx context.Context, identity *models.Identity) (*models.Identity, error)
	Refresh(ctx context.Context, id int64, attrs Attributes) (*models.Identity, error)
}
