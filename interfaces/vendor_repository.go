package interfaces

import (
	"context"

	"github.com/procurehq/rfpstack/internal/models"
)

type VendorRepository interface {
	GetByID(ctx context.Context, id string) (*models.Vendor, error)
	GetByEmail(ctx context.Context, email string) (*models.Vendor, error)
	Create(ctx context.Context, vendor *models.Vendor) error
}
