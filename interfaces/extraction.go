package interfaces

import (
	"context"

	"github.com/procurehq/rfpstack/dto"
	"github.com/procurehq/rfpstack/internal/models"
)

type ExtractionService interface {
	ExtractFromMessage(ctx context.Context, message *dto.ParsedEmail, requestedItems []models.RFPLineItem) (*dto.ExtractedProposalData, error)
	MergeExtractions(ctx context.Context, previous *dto.ExtractedProposalData, previousItems []models.ProposalLineItem, newMessageText string, newExtraction *dto.ExtractedProposalData) (*dto.ExtractedProposalData, error)
	ExtractRFPFromText(ctx context.Context, text string) (*dto.ExtractedRFP, error)
}
