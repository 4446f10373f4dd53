package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/procurehq/rfpstack/interfaces"
	"github.com/procurehq/rfpstack/internal/logger"
	"github.com/procurehq/rfpstack/internal/tracing"
	"github.com/procurehq/rfpstack/internal/utils"
)

type WatchHandler struct {
	log            logger.Logger
	gmailService   interfaces.GmailService
	watchStateRepo interfaces.WatchStateRepository
	mailbox        string
}

func NewWatchHandler(log logger.Logger, gmailService interfaces.GmailService, watchStateRepo interfaces.WatchStateRepository, mailbox string) *WatchHandler {
	return &WatchHandler{
		log:            log,
		gmailService:   gmailService,
		watchStateRepo: watchStateRepo,
		mailbox:        mailbox,
	}
}

// Establish (re)subscribes the configured mailbox to push notifications and
// records the subscription expiry
func (h *WatchHandler) Establish() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "WatchHandler.Establish")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)
		tracing.TagMailbox(span, h.mailbox)

		watch, err := h.gmailService.Subscribe(ctx)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		if err := h.watchStateRepo.SaveWatch(ctx, h.mailbox, watch.HistoryID, watch.Expiration, utils.Now()); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		h.log.Infof("watch established for %s, expires at %s", h.mailbox, time.UnixMilli(watch.Expiration).UTC())
		c.JSON(http.StatusOK, gin.H{
			"emailAddress": h.mailbox,
			"historyId":    watch.HistoryID,
			"expiration":   watch.Expiration,
		})
	}
}

// Status returns the stored watch state for the configured mailbox
func (h *WatchHandler) Status() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "WatchHandler.Status")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)
		tracing.TagMailbox(span, h.mailbox)

		state, err := h.watchStateRepo.GetByEmailAddress(ctx, h.mailbox)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if state == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no watch state for mailbox"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"emailAddress":    state.EmailAddress,
			"lastHistoryId":   state.LastHistoryID,
			"watchExpiration": state.WatchExpiration,
			"lastRenewedAt":   state.LastRenewedAt,
		})
	}
}
