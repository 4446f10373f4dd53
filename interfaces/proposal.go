package interfaces

import (
	"context"

	"github.com/procurehq/rfpstack/dto"
	"github.com/procurehq/rfpstack/internal/models"
)

type ProposalService interface {
	CreateFromExtraction(ctx context.Context, rfpID, vendorID string, message *dto.ParsedEmail, extraction *dto.ExtractedProposalData) (*models.Proposal, error)
	MergeIntoExisting(ctx context.Context, proposalID string, message *dto.ParsedEmail, mergedExtraction *dto.ExtractedProposalData) (*models.Proposal, error)
}
