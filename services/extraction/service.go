package extraction

import (
	"context"
	"encoding/json"
	"fmt"
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

type extractionService struct {
	log        logger.Logger
	aiService  interfaces.AIService
	fileParser interfaces.FileParserService
}

func NewExtractionService(log logger.Logger, aiService interfaces.AIService, fileParser interfaces.FileParserService) interfaces.ExtractionService {
	return &extractionService{
		log:        log,
		aiService:  aiService,
		fileParser: fileParser,
	}
}

const proposalJSONFormat = `{
  "totalPrice": "string or null",
  "pricing": {
    "lineItems": [
      {
        "itemName": "string",
        "quantity": number or null,
        "unitPrice": "string or null",
        "totalPrice": "string or null",
        "specifications": {} or null,
        "notes": "string or null"
      }
    ]
  },
  "deliveryTime": "string or null",
  "paymentTerms": "string or null",
  "warranty": "string or null",
  "additionalTerms": {} or null
}`

// ExtractFromMessage strips quoted reply content, extracts text from every
// non-image attachment, collects image payloads, and asks the AI for the
// structured proposal data
func (s *extractionService) ExtractFromMessage(ctx context.Context, message *dto.ParsedEmail, requestedItems []models.RFPLineItem) (*dto.ExtractedProposalData, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "extractionService.ExtractFromMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, message.Headers.MessageID)

	body := message.BodyText
	if body == "" {
		body = utils.StripHTML(message.BodyHTML)
	}
	cleanedBody := utils.ExtractReplyContent(body)

	var parsedAttachments []dto.ParsedAttachment
	var images []dto.ImagePayload
	for _, attachment := range message.Attachments {
		parsed, err := s.fileParser.Parse(attachment.Data, attachment.Filename, attachment.ContentType)
		if err != nil {
			if errors.Is(err, er.ErrCorruptAttachment) {
				s.log.Warnf("skipping corrupt attachment %s: %v", attachment.Filename, err)
				tracing.TraceErr(span, err)
				continue
			}
			return nil, err
		}
		if parsed == nil {
			continue
		}
		if parsed.IsImage {
			images = append(images, dto.ImagePayload{
				ContentType: parsed.ContentType,
				Base64Data:  parsed.Base64Data,
			})
			continue
		}
		parsedAttachments = append(parsedAttachments, *parsed)
	}

	prompt := s.buildProposalPrompt(cleanedBody, requestedItems, parsedAttachments, len(images) > 0)

	return s.requestExtraction(ctx, prompt, images)
}

// MergeExtractions asks the AI to reconcile a previous extraction with a newly
// extracted one, preferring newer pricing and terms and deduplicating line
// items by name
func (s *extractionService) MergeExtractions(ctx context.Context, previous *dto.ExtractedProposalData, previousItems []models.ProposalLineItem, newMessageText string, newExtraction *dto.ExtractedProposalData) (*dto.ExtractedProposalData, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "extractionService.MergeExtractions")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	previousJSON, _ := json.MarshalIndent(previous, "", "  ")
	previousItemsJSON, _ := json.MarshalIndent(previousItems, "", "  ")
	newExtractionJSON, _ := json.MarshalIndent(newExtraction, "", "  ")

	prompt := fmt.Sprintf(`You are merging two proposal submissions from a vendor.

Previous proposal data:
%s

Previous proposal line items:
%s

New email received:
%s

New email parsed data:
%s

Merge these into a single, final proposal. Consider:
- Updated pricing takes precedence
- Latest terms override old ones
- Merge line items intelligently (combine duplicates, keep latest prices)
- Keep the most complete information
- Preserve all important details from both

Return ONLY valid JSON in this exact format:
%s`, previousJSON, previousItemsJSON, newMessageText, newExtractionJSON, proposalJSONFormat)

	return s.requestExtraction(ctx, prompt, nil)
}

// ExtractRFPFromText builds a structured RFP from a free-text description
func (s *extractionService) ExtractRFPFromText(ctx context.Context, text string) (*dto.ExtractedRFP, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "extractionService.ExtractRFPFromText")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	prompt := fmt.Sprintf(`You are an AI assistant that extracts structured RFP (Request for Proposal) information from natural language descriptions.

Extract the following information from the user's text:
- title: A concise title for the RFP
- description: A detailed description
- budget: Total budget amount (as a string, e.g., "50000" or "50000.00")
- deadline: Delivery deadline date (in YYYY-MM-DD format if mentioned)
- paymentTerms: Payment terms (e.g., "net 30", "net 60")
- warranty: Warranty requirements
- otherTerms: Any other terms as a JSON object
- lineItems: Array of items being procured, each with:
  - itemName: Name of the item
  - quantity: Number of items
  - specifications: Object with specs (e.g., {"ram": "16GB", "size": "27-inch"})
  - notes: Any additional notes

Return ONLY valid JSON in this exact format:
{
  "title": "string",
  "description": "string or null",
  "budget": "string or null",
  "deadline": "YYYY-MM-DD or null",
  "paymentTerms": "string or null",
  "warranty": "string or null",
  "otherTerms": {} or null,
  "lineItems": [
    {
      "itemName": "string",
      "quantity": number,
      "specifications": {} or null,
      "notes": "string or null"
    }
  ]
}

User's text:
%s`, text)

	response, err := s.aiService.CreateCompletion(ctx, dto.CompletionRequest{Prompt: prompt})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(er.ErrExtractionFailed, err.Error())
	}

	var extracted dto.ExtractedRFP
	if err := json.Unmarshal([]byte(response.Content), &extracted); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(er.ErrExtractionFailed, err.Error())
	}
	if extracted.Title == "" {
		return nil, errors.Wrap(er.ErrExtractionFailed, "missing title")
	}
	if len(extracted.LineItems) == 0 {
		return nil, errors.Wrap(er.ErrExtractionFailed, "no line items")
	}

	return &extracted, nil
}

func (s *extractionService) buildProposalPrompt(emailContent string, requestedItems []models.RFPLineItem, attachments []dto.ParsedAttachment, hasImages bool) string {
	var sb strings.Builder

	sb.WriteString(`You are an AI assistant that extracts structured proposal data from vendor emails replying to an RFP.

Extract the following information:
- totalPrice: Total quoted price (as string)
- pricing.lineItems: Array of items with pricing, matching the requested items where possible
  - itemName: Name of the item
  - quantity: Number of items (if mentioned)
  - unitPrice: Price per unit (as string)
  - totalPrice: Total price for this item (as string)
  - specifications: Any specifications provided
  - notes: Additional notes
- deliveryTime: Delivery timeline (e.g., "30 days", "2 weeks")
- paymentTerms: Payment terms (e.g., "net 30", "50% upfront")
- warranty: Warranty information
- additionalTerms: Any other terms as a JSON object

Requested items from RFP:
`)
	for _, item := range requestedItems {
		sb.WriteString(fmt.Sprintf("- %s (Qty: %d)\n", item.ItemName, item.Quantity))
	}

	sb.WriteString("\nVendor's email content:\n")
	sb.WriteString(emailContent)

	if len(attachments) > 0 {
		sb.WriteString("\n\nAttached files content:\n")
		for _, attachment := range attachments {
			sb.WriteString(fmt.Sprintf("\n--- %s (%s) ---\n", attachment.Filename, attachment.ContentType))
			sb.WriteString(attachment.Text)
			sb.WriteString("\n")
		}
	}
	if hasImages {
		sb.WriteString("\n\nAttached images are included with this request; read any pricing or terms they contain.\n")
	}

	sb.WriteString("\nReturn ONLY valid JSON in this exact format:\n")
	sb.WriteString(proposalJSONFormat)

	return sb.String()
}

// requestExtraction runs the completion and normalizes the response shape.
// A missing pricing.lineItems becomes an empty list rather than an error.
func (s *extractionService) requestExtraction(ctx context.Context, prompt string, images []dto.ImagePayload) (*dto.ExtractedProposalData, error) {
	response, err := s.aiService.CreateCompletion(ctx, dto.CompletionRequest{
		Prompt:        prompt,
		ImagePayloads: images,
	})
	if err != nil {
		return nil, errors.Wrap(er.ErrExtractionFailed, err.Error())
	}
	if strings.TrimSpace(response.Content) == "" {
		return nil, errors.Wrap(er.ErrExtractionFailed, "empty completion content")
	}

	var extracted dto.ExtractedProposalData
	if err := json.Unmarshal([]byte(response.Content), &extracted); err != nil {
		return nil, errors.Wrap(er.ErrExtractionFailed, err.Error())
	}
	if extracted.Pricing.LineItems == nil {
		extracted.Pricing.LineItems = []dto.ExtractedLineItem{}
	}

	return &extracted, nil
}
