package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/procurehq/rfpstack/dto"
	"github.com/procurehq/rfpstack/interfaces"
	"github.com/procurehq/rfpstack/internal/enum"
	"github.com/procurehq/rfpstack/internal/logger"
	"github.com/procurehq/rfpstack/internal/models"
	"github.com/procurehq/rfpstack/internal/tracing"
	"github.com/procurehq/rfpstack/internal/utils"
)

type RFPHandler struct {
	log               logger.Logger
	extractionService interfaces.ExtractionService
	rfpRepository     interfaces.RFPRepository
}

func NewRFPHandler(log logger.Logger, extractionService interfaces.ExtractionService, rfpRepository interfaces.RFPRepository) *RFPHandler {
	return &RFPHandler{
		log:               log,
		extractionService: extractionService,
		rfpRepository:     rfpRepository,
	}
}

type extractRFPRequest struct {
	Text string `json:"text" binding:"required"`
}

// Extract builds a structured RFP from a free-text description and persists it
// as a draft with its line items
func (h *RFPHandler) Extract() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "RFPHandler.Extract")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var request extractRFPRequest
		if err := c.BindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		extracted, err := h.extractionService.ExtractRFPFromText(ctx, request.Text)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		rfp, lineItems := rfpFromExtraction(extracted)
		if err := h.rfpRepository.Create(ctx, rfp, lineItems); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		h.log.Infof("created draft rfp %s with %d line items", rfp.ID, len(lineItems))
		c.JSON(http.StatusCreated, gin.H{
			"rfp":       rfp,
			"lineItems": lineItems,
		})
	}
}

func rfpFromExtraction(extracted *dto.ExtractedRFP) (*models.RFP, []models.RFPLineItem) {
	rfp := &models.RFP{
		Title:        extracted.Title,
		Description:  utils.GetOrDefault(extracted.Description, ""),
		PaymentTerms: utils.GetOrDefault(extracted.PaymentTerms, ""),
		Warranty:     utils.GetOrDefault(extracted.Warranty, ""),
		Status:       enum.RFPStatusDraft,
	}
	if extracted.Budget != nil {
		if budget, err := strconv.ParseFloat(*extracted.Budget, 64); err == nil {
			rfp.Budget = &budget
		}
	}
	if extracted.Deadline != nil {
		if deadline, err := time.Parse("2006-01-02", *extracted.Deadline); err == nil {
			rfp.Deadline = &deadline
		}
	}
	if extracted.OtherTerms != nil {
		rfp.OtherTerms = models.JSONMap(extracted.OtherTerms)
	}

	lineItems := make([]models.RFPLineItem, 0, len(extracted.LineItems))
	for _, item := range extracted.LineItems {
		lineItem := models.RFPLineItem{
			ItemName: item.ItemName,
			Quantity: item.Quantity,
			Notes:    utils.GetOrDefault(item.Notes, ""),
		}
		if item.Specifications != nil {
			lineItem.Specifications = models.JSONMap(item.Specifications)
		}
		lineItems = append(lineItems, lineItem)
	}

	return rfp, lineItems
}
