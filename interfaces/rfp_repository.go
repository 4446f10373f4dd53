package interfaces

import (
	"context"

	"github.com/procurehq/rfpstack/internal/enum"
	"github.com/procurehq/rfpstack/internal/models"
)

type RFPRepository interface {
	GetByID(ctx context.Context, id string) (*models.RFP, error)
	GetLineItems(ctx context.Context, rfpID string) ([]models.RFPLineItem, error)
	Create(ctx context.Context, rfp *models.RFP, lineItems []models.RFPLineItem) error
	UpdateStatus(ctx context.Context, rfpID string, status enum.RFPStatus) error
}

type RFPVendorRepository interface {
	GetByID(ctx context.Context, id string) (*models.RFPVendor, error)
	GetByOutboundMessageID(ctx context.Context, messageID string, status enum.EmailStatus) (*models.RFPVendor, error)
	GetByRFPAndVendor(ctx context.Context, rfpID, vendorID string) (*models.RFPVendor, error)
	Create(ctx context.Context, link *models.RFPVendor) error
	MarkSent(ctx context.Context, id, outboundMessageID string) error
}
