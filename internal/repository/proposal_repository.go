package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/procurehq/rfpstack/interfaces"
	"github.com/procurehq/rfpstack/internal/models"
	"github.com/procurehq/rfpstack/internal/tracing"
)

type proposalRepository struct {
	db *gorm.DB
}

func NewProposalRepository(db *gorm.DB) interfaces.ProposalRepository {
	return &proposalRepository{db: db}
}

func (r *proposalRepository) GetByID(ctx context.Context, id string) (*models.Proposal, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "proposalRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	var proposal models.Proposal
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&proposal)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get proposal: %w", result.Error)
	}

	return &proposal, nil
}

func (r *proposalRepository) GetByRFPAndVendor(ctx context.Context, rfpID, vendorID string) (*models.Proposal, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "proposalRepository.GetByRFPAndVendor")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, rfpID)

	var proposal models.Proposal
	result := r.db.WithContext(ctx).
		Where("rfp_id = ? AND vendor_id = ?", rfpID, vendorID).
		First(&proposal)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get proposal: %w", result.Error)
	}

	return &proposal, nil
}

func (r *proposalRepository) GetLineItems(ctx context.Context, proposalID string) ([]models.ProposalLineItem, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "proposalRepository.GetLineItems")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, proposalID)

	var items []models.ProposalLineItem
	if err := r.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Order("created_at asc").
		Find(&items).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get proposal line items: %w", err)
	}

	return items, nil
}

// CreateWithLineItems persists the proposal and its line items atomically so a
// proposal row without its children can never be observed
func (r *proposalRepository) CreateWithLineItems(ctx context.Context, proposal *models.Proposal, lineItems []models.ProposalLineItem) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "proposalRepository.CreateWithLineItems")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(proposal).Error; err != nil {
			return err
		}
		for i := range lineItems {
			lineItems[i].ProposalID = proposal.ID
		}
		if len(lineItems) > 0 {
			if err := tx.Create(&lineItems).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to create proposal: %w", err)
	}

	return nil
}

// UpdateWithLineItems updates the proposal in place and replaces its line item
// collection wholesale. The merge step already reconciled duplicates, so a full
// delete-and-recreate is simpler than diffing.
func (r *proposalRepository) UpdateWithLineItems(ctx context.Context, proposal *models.Proposal, lineItems []models.ProposalLineItem) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "proposalRepository.UpdateWithLineItems")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, proposal.ID)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Proposal{}).
			Where("id = ?", proposal.ID).
			Updates(map[string]interface{}{
				"email_subject":    proposal.EmailSubject,
				"email_body":       proposal.EmailBody,
				"email_message_id": proposal.EmailMessageID,
				"extracted_data":   proposal.ExtractedData,
				"raw_attachments":  proposal.RawAttachments,
				"parsed_at":        proposal.ParsedAt,
				"updated_at":       time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Where("proposal_id = ?", proposal.ID).
			Delete(&models.ProposalLineItem{}).Error; err != nil {
			return err
		}
		for i := range lineItems {
			lineItems[i].ProposalID = proposal.ID
		}
		if len(lineItems) > 0 {
			if err := tx.Create(&lineItems).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to update proposal: %w", err)
	}

	return nil
}
