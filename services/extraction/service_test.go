package extraction

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"

	"github.com/procurehq/rfpstack/dto"
	er "github.com/procurehq/rfpstack/internal/errors"
	"github.com/procurehq/rfpstack/internal/logger"
	"github.com/procurehq/rfpstack/internal/models"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

type fakeAIService struct {
	content  string
	err      error
	requests []dto.CompletionRequest
}

func (f *fakeAIService) CreateCompletion(ctx context.Context, request dto.CompletionRequest) (*dto.CompletionResponse, error) {
	f.requests = append(f.requests, request)
	if f.err != nil {
		return nil, f.err
	}
	return &dto.CompletionResponse{Content: f.content, Model: "gpt-4o-mini"}, nil
}

type fakeFileParser struct{}

func (f *fakeFileParser) Parse(data []byte, filename, contentType string) (*dto.ParsedAttachment, error) {
	switch contentType {
	case "text/csv":
		return &dto.ParsedAttachment{Filename: filename, ContentType: contentType, Text: string(data)}, nil
	case "image/png":
		return &dto.ParsedAttachment{Filename: filename, ContentType: contentType, IsImage: true, Base64Data: "aW1n"}, nil
	case "application/pdf":
		return nil, errors.Wrapf(er.ErrCorruptAttachment, "pdf %s", filename)
	default:
		return nil, nil
	}
}

func message(bodyText string, attachments ...dto.EmailAttachment) *dto.ParsedEmail {
	return &dto.ParsedEmail{
		Headers: dto.EmailHeaders{
			MessageID:   "<reply-1@vendor.com>",
			FromAddress: "sales@vendor.com",
			Subject:     "Re: RFP",
		},
		BodyText:    bodyText,
		Attachments: attachments,
	}
}

func TestExtractFromMessage_PromptCarriesCleanBodyAndItems(t *testing.T) {
	ai := &fakeAIService{content: `{"totalPrice":"5000","pricing":{"lineItems":[{"itemName":"Laptops","quantity":10,"unitPrice":"500"}]}}`}
	s := NewExtractionService(getLogger(), ai, &fakeFileParser{})

	body := "Sure, our price is $5000.\n\nOn Mon, Jan 1, 2024 at 9:00 AM John <john@vendor.com> wrote:\n> original RFP text here"
	requested := []models.RFPLineItem{{ItemName: "Laptops", Quantity: 10}}

	result, err := s.ExtractFromMessage(context.Background(), message(body), requested)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "5000", *result.TotalPrice)
	require.Len(t, result.Pricing.LineItems, 1)
	assert.Equal(t, "Laptops", result.Pricing.LineItems[0].ItemName)

	require.Len(t, ai.requests, 1)
	prompt := ai.requests[0].Prompt
	assert.Contains(t, prompt, "Sure, our price is $5000.")
	assert.NotContains(t, prompt, "original RFP text here")
	assert.Contains(t, prompt, "- Laptops (Qty: 10)")
}

func TestExtractFromMessage_MissingLineItemsNormalized(t *testing.T) {
	ai := &fakeAIService{content: `{"totalPrice":"5000"}`}
	s := NewExtractionService(getLogger(), ai, &fakeFileParser{})

	result, err := s.ExtractFromMessage(context.Background(), message("our price is $5000"), nil)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotNil(t, result.Pricing.LineItems)
	assert.Empty(t, result.Pricing.LineItems)
}

func TestExtractFromMessage_AttachmentsFeedThePrompt(t *testing.T) {
	ai := &fakeAIService{content: `{"totalPrice":"5000","pricing":{"lineItems":[]}}`}
	s := NewExtractionService(getLogger(), ai, &fakeFileParser{})

	msg := message("see attached",
		dto.EmailAttachment{Filename: "pricing.csv", ContentType: "text/csv", Data: []byte("Laptops,10,500")},
		dto.EmailAttachment{Filename: "scan.png", ContentType: "image/png", Data: []byte{1}},
	)

	_, err := s.ExtractFromMessage(context.Background(), msg, nil)

	require.NoError(t, err)
	require.Len(t, ai.requests, 1)
	assert.Contains(t, ai.requests[0].Prompt, "--- pricing.csv (text/csv) ---")
	assert.Contains(t, ai.requests[0].Prompt, "Laptops,10,500")
	require.Len(t, ai.requests[0].ImagePayloads, 1)
	assert.Equal(t, "image/png", ai.requests[0].ImagePayloads[0].ContentType)
}

func TestExtractFromMessage_CorruptAttachmentSkipped(t *testing.T) {
	ai := &fakeAIService{content: `{"totalPrice":null,"pricing":{"lineItems":[]}}`}
	s := NewExtractionService(getLogger(), ai, &fakeFileParser{})

	msg := message("quote in pdf",
		dto.EmailAttachment{Filename: "quote.pdf", ContentType: "application/pdf", Data: []byte("broken")},
	)

	result, err := s.ExtractFromMessage(context.Background(), msg, nil)

	// The corrupt file is dropped, the rest of the message still goes through
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, ai.requests, 1)
	assert.Contains(t, ai.requests[0].Prompt, "quote in pdf")
}

func TestExtractFromMessage_BadCompletionFails(t *testing.T) {
	ai := &fakeAIService{content: "sorry, I cannot help with that"}
	s := NewExtractionService(getLogger(), ai, &fakeFileParser{})

	result, err := s.ExtractFromMessage(context.Background(), message("price is $5"), nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, er.ErrExtractionFailed))
	assert.Nil(t, result)
}

func TestMergeExtractions_PromptCarriesBothSides(t *testing.T) {
	ai := &fakeAIService{content: `{"totalPrice":"4500","pricing":{"lineItems":[]}}`}
	s := NewExtractionService(getLogger(), ai, &fakeFileParser{})

	previous := &dto.ExtractedProposalData{Pricing: dto.ExtractedPricing{LineItems: []dto.ExtractedLineItem{}}}
	total := "5000"
	previous.TotalPrice = &total
	newExtraction := &dto.ExtractedProposalData{Pricing: dto.ExtractedPricing{LineItems: []dto.ExtractedLineItem{}}}

	result, err := s.MergeExtractions(context.Background(), previous, nil, "Correction: we can do $4500.", newExtraction)

	require.NoError(t, err)
	assert.Equal(t, "4500", *result.TotalPrice)

	require.Len(t, ai.requests, 1)
	prompt := ai.requests[0].Prompt
	assert.Contains(t, prompt, `"totalPrice": "5000"`)
	assert.Contains(t, prompt, "Correction: we can do $4500.")
	assert.Contains(t, prompt, "Updated pricing takes precedence")
}

func TestExtractRFPFromText(t *testing.T) {
	ai := &fakeAIService{content: `{"title":"Office Laptops","budget":"50000","deadline":"2026-10-01","lineItems":[{"itemName":"Laptops","quantity":10,"specifications":{"ram":"16GB"}}]}`}
	s := NewExtractionService(getLogger(), ai, &fakeFileParser{})

	result, err := s.ExtractRFPFromText(context.Background(), "We need 10 laptops with 16GB RAM, budget 50k, by October 1st")

	require.NoError(t, err)
	assert.Equal(t, "Office Laptops", result.Title)
	assert.Equal(t, "50000", *result.Budget)
	require.Len(t, result.LineItems, 1)
	assert.Equal(t, 10, result.LineItems[0].Quantity)
}

func TestExtractRFPFromText_NoLineItemsFails(t *testing.T) {
	ai := &fakeAIService{content: `{"title":"Office Laptops","lineItems":[]}`}
	s := NewExtractionService(getLogger(), ai, &fakeFileParser{})

	result, err := s.ExtractRFPFromText(context.Background(), "we need stuff")

	require.Error(t, err)
	assert.True(t, errors.Is(err, er.ErrExtractionFailed))
	assert.Nil(t, result)
}
