package interfaces

import (
	"context"

	"github.com/procurehq/rfpstack/internal/models"
)

type ProposalRepository interface {
	GetByID(ctx context.Context, id string) (*models.Proposal, error)
	GetByRFPAndVendor(ctx context.Context, rfpID, vendorID string) (*models.Proposal, error)
	GetLineItems(ctx context.Context, proposalID string) ([]models.ProposalLineItem, error)
	// CreateWithLineItems persists the proposal and its line items in one transaction
	CreateWithLineItems(ctx context.Context, proposal *models.Proposal, lineItems []models.ProposalLineItem) error
	// UpdateWithLineItems updates the proposal in place and fully replaces its line items
	UpdateWithLineItems(ctx context.Context, proposal *models.Proposal, lineItems []models.ProposalLineItem) error
}

type ProposalComparisonRepository interface {
	GetByRFP(ctx context.Context, rfpID string) (*models.ProposalComparison, error)
	MarkStale(ctx context.Context, rfpID string) error
}
