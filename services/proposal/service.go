package proposal

import (
	"context"
	"strconv"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/procurehq/rfpstack/dto"
	"github.com/procurehq/rfpstack/interfaces"
	er "github.com/procurehq/rfpstack/internal/errors"
	"github.com/procurehq/rfpstack/internal/logger"
	"github.com/procurehq/rfpstack/internal/models"
	"github.com/procurehq/rfpstack/internal/tracing"
	"github.com/procurehq/rfpstack/internal/utils"
)

type proposalService struct {
	log                  logger.Logger
	proposalRepository   interfaces.ProposalRepository
	rfpRepository        interfaces.RFPRepository
	comparisonRepository interfaces.ProposalComparisonRepository
	eventPublisher       interfaces.EventPublisher
}

func NewProposalService(
	log logger.Logger,
	proposalRepository interfaces.ProposalRepository,
	rfpRepository interfaces.RFPRepository,
	comparisonRepository interfaces.ProposalComparisonRepository,
	eventPublisher interfaces.EventPublisher,
) interfaces.ProposalService {
	return &proposalService{
		log:                  log,
		proposalRepository:   proposalRepository,
		rfpRepository:        rfpRepository,
		comparisonRepository: comparisonRepository,
		eventPublisher:       eventPublisher,
	}
}

// CreateFromExtraction persists a new proposal with the cleaned body, the
// attachment metadata and the structured extraction, then invalidates any
// cached comparison for the RFP
func (s *proposalService) CreateFromExtraction(ctx context.Context, rfpID, vendorID string, message *dto.ParsedEmail, extraction *dto.ExtractedProposalData) (*models.Proposal, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "proposalService.CreateFromExtraction")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, rfpID)

	requestedItems, err := s.rfpRepository.GetLineItems(ctx, rfpID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	body := message.BodyText
	if body == "" {
		body = utils.StripHTML(message.BodyHTML)
	}

	proposal := &models.Proposal{
		RFPID:          rfpID,
		VendorID:       vendorID,
		EmailSubject:   message.Headers.Subject,
		EmailBody:      utils.ExtractReplyContent(body),
		EmailMessageID: message.Headers.MessageID,
		ExtractedData:  models.JSONMap(extraction.AsMap()),
		RawAttachments: attachmentMeta(message.Attachments),
		ParsedAt:       utils.NowPtr(),
	}
	lineItems := buildLineItems(extraction, requestedItems)

	if err := s.proposalRepository.CreateWithLineItems(ctx, proposal, lineItems); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if err := s.comparisonRepository.MarkStale(ctx, rfpID); err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("failed to invalidate comparison for rfp %s: %v", rfpID, err)
	}

	if s.eventPublisher != nil {
		if err := s.eventPublisher.PublishProposalReceived(ctx, proposal.ID, rfpID, vendorID); err != nil {
			s.log.Warnf("failed to publish proposal received event: %v", err)
		}
	}

	s.log.Infof("created proposal %s for rfp %s vendor %s with %d line items", proposal.ID, rfpID, vendorID, len(lineItems))
	return proposal, nil
}

// MergeIntoExisting updates the stored body, subject, message id and extraction
// in place, and fully replaces the line item collection with the merged set
func (s *proposalService) MergeIntoExisting(ctx context.Context, proposalID string, message *dto.ParsedEmail, mergedExtraction *dto.ExtractedProposalData) (*models.Proposal, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "proposalService.MergeIntoExisting")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, proposalID)

	existing, err := s.proposalRepository.GetByID(ctx, proposalID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if existing == nil {
		return nil, errors.Wrap(er.ErrProposalNotFound, proposalID)
	}

	requestedItems, err := s.rfpRepository.GetLineItems(ctx, existing.RFPID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	body := message.BodyText
	if body == "" {
		body = utils.StripHTML(message.BodyHTML)
	}

	existing.EmailSubject = message.Headers.Subject
	existing.EmailBody = utils.ExtractReplyContent(body)
	existing.EmailMessageID = message.Headers.MessageID
	existing.ExtractedData = models.JSONMap(mergedExtraction.AsMap())
	existing.RawAttachments = attachmentMeta(message.Attachments)
	existing.ParsedAt = utils.NowPtr()

	lineItems := buildLineItems(mergedExtraction, requestedItems)

	if err := s.proposalRepository.UpdateWithLineItems(ctx, existing, lineItems); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if err := s.comparisonRepository.MarkStale(ctx, existing.RFPID); err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("failed to invalidate comparison for rfp %s: %v", existing.RFPID, err)
	}

	if s.eventPublisher != nil {
		if err := s.eventPublisher.PublishProposalUpdated(ctx, existing.ID, existing.RFPID, existing.VendorID); err != nil {
			s.log.Warnf("failed to publish proposal updated event: %v", err)
		}
	}

	s.log.Infof("merged new reply into proposal %s, now %d line items", existing.ID, len(lineItems))
	return existing, nil
}

// buildLineItems converts extracted line items into models, resolving the RFP
// line item link by case-insensitive name match. No match leaves the link nil.
func buildLineItems(extraction *dto.ExtractedProposalData, requestedItems []models.RFPLineItem) []models.ProposalLineItem {
	byName := make(map[string]string, len(requestedItems))
	for _, item := range requestedItems {
		byName[strings.ToLower(item.ItemName)] = item.ID
	}

	lineItems := make([]models.ProposalLineItem, 0, len(extraction.Pricing.LineItems))
	for _, item := range extraction.Pricing.LineItems {
		lineItem := models.ProposalLineItem{
			ItemName: item.ItemName,
			Quantity: utils.GetOrDefault(item.Quantity, 1),
			Notes:    utils.GetOrDefault(item.Notes, ""),
		}
		if id, ok := byName[strings.ToLower(item.ItemName)]; ok {
			lineItem.RFPLineItemID = utils.Ptr(id)
		}
		if item.UnitPrice != nil {
			if price, err := strconv.ParseFloat(strings.TrimSpace(*item.UnitPrice), 64); err == nil {
				lineItem.UnitPrice = &price
			}
		}
		if item.TotalPrice != nil {
			if price, err := strconv.ParseFloat(strings.TrimSpace(*item.TotalPrice), 64); err == nil {
				lineItem.TotalPrice = &price
			}
		}
		if item.Specifications != nil {
			lineItem.Specifications = models.JSONMap(item.Specifications)
		}
		lineItems = append(lineItems, lineItem)
	}

	return lineItems
}

func attachmentMeta(attachments []dto.EmailAttachment) models.JSONMap {
	metas := make([]interface{}, 0, len(attachments))
	for _, attachment := range attachments {
		metas = append(metas, map[string]interface{}{
			"filename":    attachment.Filename,
			"contentType": attachment.ContentType,
			"size":        attachment.Size,
		})
	}
	return models.JSONMap{"attachments": metas}
}
