package ingestion

import (
	"context"
	"encoding/json"
	"sync"
	"time"

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

const dedupCapacity = 1000

type orchestrator struct {
	log               logger.Logger
	gmailService      interfaces.GmailService
	matchingService   interfaces.MatchingService
	extractionService interfaces.ExtractionService
	proposalService   interfaces.ProposalService
	watchStateRepo    interfaces.WatchStateRepository
	proposalRepo      interfaces.ProposalRepository
	rfpRepo           interfaces.RFPRepository
	defaultMailbox    string
	mu                sync.Mutex
	processing        bool
	dedup             *dedupSet
	queue             interfaces.NotificationQueue
}

func NewOrchestrator(
	log logger.Logger,
	gmailService interfaces.GmailService,
	matchingService interfaces.MatchingService,
	extractionService interfaces.ExtractionService,
	proposalService interfaces.ProposalService,
	watchStateRepo interfaces.WatchStateRepository,
	proposalRepo interfaces.ProposalRepository,
	rfpRepo interfaces.RFPRepository,
	queue interfaces.NotificationQueue,
	defaultMailbox string,
) interfaces.IngestionOrchestrator {
	if queue == nil {
		queue = NewMemoryQueue()
	}
	return &orchestrator{
		log:               log,
		gmailService:      gmailService,
		matchingService:   matchingService,
		extractionService: extractionService,
		proposalService:   proposalService,
		watchStateRepo:    watchStateRepo,
		proposalRepo:      proposalRepo,
		rfpRepo:           rfpRepo,
		defaultMailbox:    defaultMailbox,
		dedup:             newDedupSet(dedupCapacity),
		queue:             queue,
	}
}

// HandleNotification applies the dedup check and either starts the
// single-flight worker or queues the notification behind the one in flight.
// Returns false for duplicates. Never blocks on batch processing.
func (o *orchestrator) HandleNotification(ctx context.Context, notification dto.InboundNotification) bool {
	o.mu.Lock()

	if !o.dedup.CheckAndRecord(notification.NotificationID) {
		o.mu.Unlock()
		o.log.Infof("duplicate notification %s discarded", notification.NotificationID)
		return false
	}

	if o.processing {
		o.queue.Push(notification)
		o.mu.Unlock()
		return true
	}

	o.processing = true
	o.mu.Unlock()

	go o.runWorker(notification)
	return true
}

// runWorker processes the given notification and then drains the queue in
// arrival order. Exactly one worker runs at a time; two concurrent diff-and-
// apply cycles could double-process the same message.
func (o *orchestrator) runWorker(first dto.InboundNotification) {
	defer tracing.RecoverAndLogToJaeger(o.log)

	notification := first
	for {
		o.processNotification(notification)

		o.mu.Lock()
		next, ok := o.queue.Pop()
		if !ok {
			o.processing = false
			o.mu.Unlock()
			return
		}
		o.mu.Unlock()
		notification = next
	}
}

// processNotification runs one diff-and-apply cycle. Mailbox or cursor store
// failures abort the cycle without advancing the cursor so the next
// notification retries the same range. Per-message failures are local.
func (o *orchestrator) processNotification(notification dto.InboundNotification) {
	span, ctx := tracing.StartTracerSpan(context.Background(), "orchestrator.processNotification")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("notificationId", notification.NotificationID)

	mailbox := notification.EmailAddress
	if mailbox == "" {
		mailbox = o.defaultMailbox
	}
	tracing.TagMailbox(span, mailbox)

	state, err := o.watchStateRepo.GetByEmailAddress(ctx, mailbox)
	if err != nil {
		tracing.TraceErr(span, err)
		o.log.Errorf("failed to read watch state for %s, batch aborted: %v", mailbox, err)
		return
	}

	// First notification for this mailbox only bootstraps cursor tracking;
	// it carries no diffable history.
	if state == nil || state.LastHistoryID == nil || *state.LastHistoryID == "" {
		if err := o.watchStateRepo.SaveHistoryID(ctx, mailbox, notification.HistoryID); err != nil {
			tracing.TraceErr(span, err)
			o.log.Errorf("failed to bootstrap cursor for %s: %v", mailbox, err)
			return
		}
		o.log.Infof("bootstrapped history tracking for %s at %s", mailbox, notification.HistoryID)
		return
	}

	diff, err := o.gmailService.ListHistorySince(ctx, *state.LastHistoryID)
	if err != nil {
		tracing.TraceErr(span, err)
		o.log.Errorf("history diff for %s failed, batch aborted without cursor advance: %v", mailbox, err)
		return
	}
	span.LogKV("newMessages", len(diff.NewMessageIDs))

	for _, messageID := range diff.NewMessageIDs {
		if err := o.processMessage(ctx, messageID); err != nil {
			tracing.TraceErr(span, err)
			o.log.Errorf("failed to process message %s, continuing with batch: %v", messageID, err)
			continue
		}
		if err := o.gmailService.MarkAsRead(ctx, messageID); err != nil {
			o.log.Warnf("failed to mark message %s as read: %v", messageID, err)
		}
	}

	// The cursor advances even when zero messages arrived or some failed.
	// History can contain non-message changes that must not be re-scanned,
	// and failed messages are not retried automatically.
	if err := o.watchStateRepo.SaveHistoryID(ctx, mailbox, diff.NewHistoryID); err != nil {
		tracing.TraceErr(span, err)
		o.log.Errorf("failed to advance cursor for %s: %v", mailbox, err)
		return
	}
	o.log.Infof("advanced cursor for %s to %s after %d messages", mailbox, diff.NewHistoryID, len(diff.NewMessageIDs))
}

// processMessage drives one inbound message through matching, extraction and
// the create-or-merge write
func (o *orchestrator) processMessage(ctx context.Context, messageID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orchestrator.processMessage")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagEntity(span, messageID)

	headers, err := o.gmailService.FetchHeaders(ctx, messageID)
	if err != nil {
		return err
	}

	match, err := o.matchingService.Match(ctx, headers)
	if err != nil {
		return err
	}
	if match == nil {
		span.LogKV("result", "no match")
		return nil
	}

	requestedItems, err := o.rfpRepo.GetLineItems(ctx, match.RFPID)
	if err != nil {
		return err
	}

	existing, err := o.proposalRepo.GetByRFPAndVendor(ctx, match.RFPID, match.VendorID)
	if err != nil {
		return err
	}

	message, err := o.gmailService.FetchFull(ctx, messageID)
	if err != nil {
		return err
	}

	extraction, err := o.extractionService.ExtractFromMessage(ctx, message, requestedItems)
	if err != nil {
		return err
	}

	if existing == nil {
		_, err = o.proposalService.CreateFromExtraction(ctx, match.RFPID, match.VendorID, message, extraction)
		return err
	}

	previousItems, err := o.proposalRepo.GetLineItems(ctx, existing.ID)
	if err != nil {
		return err
	}
	previous, err := extractionFromStored(existing.ExtractedData)
	if err != nil {
		return errors.Wrapf(err, "stored extraction for proposal %s is unreadable", existing.ID)
	}

	body := message.BodyText
	if body == "" {
		body = utils.StripHTML(message.BodyHTML)
	}
	merged, err := o.extractionService.MergeExtractions(ctx, previous, previousItems, utils.ExtractReplyContent(body), extraction)
	if err != nil {
		return err
	}

	_, err = o.proposalService.MergeIntoExisting(ctx, existing.ID, message, merged)
	return err
}

// SweepUnread is the recovery path for messages that arrived while no watch
// was active. It searches unread mail directly and runs each hit through the
// normal per-message pipeline, leaving the history cursor alone.
func (o *orchestrator) SweepUnread(ctx context.Context, since time.Time) (int, error) {
	span, ctx := tracing.StartTracerSpan(ctx, "orchestrator.SweepUnread")
	defer span.Finish()
	tracing.TagComponentService(span)

	// The sweep occupies the same single-flight slot as the notification
	// worker; two concurrent pipelines could double-process a message.
	o.mu.Lock()
	if o.processing {
		o.mu.Unlock()
		return 0, errors.New("a processing cycle is already in flight")
	}
	o.processing = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		next, ok := o.queue.Pop()
		if ok {
			o.mu.Unlock()
			go o.runWorker(next)
			return
		}
		o.processing = false
		o.mu.Unlock()
	}()

	messageIDs, err := o.gmailService.SearchUnread(ctx, since)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	span.LogKV("unreadMessages", len(messageIDs))

	processed := 0
	for _, messageID := range messageIDs {
		if err := o.processMessage(ctx, messageID); err != nil {
			tracing.TraceErr(span, err)
			o.log.Errorf("sweep failed on message %s, continuing: %v", messageID, err)
			continue
		}
		if err := o.gmailService.MarkAsRead(ctx, messageID); err != nil {
			o.log.Warnf("failed to mark message %s as read: %v", messageID, err)
		}
		processed++
	}

	o.log.Infof("unread sweep processed %d of %d messages", processed, len(messageIDs))
	return processed, nil
}

func (o *orchestrator) isIdle() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.processing
}

func extractionFromStored(stored models.JSONMap) (*dto.ExtractedProposalData, error) {
	if stored == nil {
		return nil, errors.Wrap(er.ErrExtractionFailed, "no stored extraction")
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}
	var extraction dto.ExtractedProposalData
	if err := json.Unmarshal(raw, &extraction); err != nil {
		return nil, err
	}
	return &extraction, nil
}
