package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/procurehq/rfpstack/dto"
	"github.com/procurehq/rfpstack/interfaces"
	"github.com/procurehq/rfpstack/internal/logger"
	"github.com/procurehq/rfpstack/internal/tracing"
)

type WebhookHandler struct {
	log          logger.Logger
	orchestrator interfaces.IngestionOrchestrator
}

func NewWebhookHandler(log logger.Logger, orchestrator interfaces.IngestionOrchestrator) *WebhookHandler {
	return &WebhookHandler{
		log:          log,
		orchestrator: orchestrator,
	}
}

// GmailNotification accepts Pub/Sub push deliveries. The response is always
// HTTP 200 so the broker never enters a redelivery storm; processing happens
// after the acknowledgment and is never awaited here.
func (h *WebhookHandler) GmailNotification() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "WebhookHandler.GmailNotification")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var request dto.PubSubPushRequest
		if err := c.BindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusOK, dto.WebhookAck{Acknowledged: true, Reason: "invalid_format"})
			return
		}

		notification, err := decodeNotification(request)
		if err != nil {
			tracing.TraceErr(span, err)
			h.log.Warnf("discarding malformed notification %s: %v", request.Message.MessageID, err)
			c.JSON(http.StatusOK, dto.WebhookAck{Acknowledged: true, Reason: "invalid_format"})
			return
		}
		span.SetTag("notificationId", notification.NotificationID)
		tracing.TagMailbox(span, notification.EmailAddress)

		if !h.orchestrator.HandleNotification(ctx, *notification) {
			c.JSON(http.StatusOK, dto.WebhookAck{Acknowledged: true, Reason: "duplicate"})
			return
		}

		c.JSON(http.StatusOK, dto.WebhookAck{Acknowledged: true})
	}
}

// Sweep runs a manual recovery pass over unread mail, for gaps where no watch
// was active. Defaults to the last 24 hours.
func (h *WebhookHandler) Sweep() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "WebhookHandler.Sweep")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
		if err != nil || hours <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
			return
		}

		since := time.Now().Add(-time.Duration(hours) * time.Hour)
		processed, err := h.orchestrator.SweepUnread(ctx, since)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"processed": processed})
	}
}

func decodeNotification(request dto.PubSubPushRequest) (*dto.InboundNotification, error) {
	decoded, err := base64.StdEncoding.DecodeString(request.Message.Data)
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(request.Message.Data)
		if err != nil {
			return nil, err
		}
	}

	var payload dto.GmailNotification
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return nil, err
	}
	if payload.HistoryID == 0 {
		return nil, errors.New("notification payload has no historyId")
	}

	publishTime, _ := time.Parse(time.RFC3339, request.Message.PublishTime)

	return &dto.InboundNotification{
		NotificationID: request.Message.MessageID,
		EmailAddress:   payload.EmailAddress,
		HistoryID:      strconv.FormatUint(payload.HistoryID, 10),
		PublishTime:    publishTime,
	}, nil
}
