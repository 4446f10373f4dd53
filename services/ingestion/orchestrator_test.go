package ingestion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurehq/rfpstack/dto"
	"github.com/procurehq/rfpstack/internal/enum"
	er "github.com/procurehq/rfpstack/internal/errors"
	"github.com/procurehq/rfpstack/internal/logger"
	"github.com/procurehq/rfpstack/internal/models"
	"github.com/procurehq/rfpstack/internal/utils"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func notification(id, mailbox, historyID string) dto.InboundNotification {
	return dto.InboundNotification{
		NotificationID: id,
		EmailAddress:   mailbox,
		HistoryID:      historyID,
		PublishTime:    time.Now().UTC(),
	}
}

// fakeWatchStateRepo keeps cursors in memory and records every SaveHistoryID
// call in order.
type fakeWatchStateRepo struct {
	mu      sync.Mutex
	states  map[string]*models.WatchState
	saved   []string
	getGate chan struct{}
	getErr  error
}

func newFakeWatchStateRepo() *fakeWatchStateRepo {
	return &fakeWatchStateRepo{states: map[string]*models.WatchState{}}
}

func (f *fakeWatchStateRepo) setCursor(mailbox, historyID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[mailbox] = &models.WatchState{EmailAddress: mailbox, LastHistoryID: &historyID}
}

func (f *fakeWatchStateRepo) cursor(mailbox string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[mailbox]
	if !ok || state.LastHistoryID == nil {
		return ""
	}
	return *state.LastHistoryID
}

func (f *fakeWatchStateRepo) savedHistoryIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.saved))
	copy(out, f.saved)
	return out
}

func (f *fakeWatchStateRepo) GetByEmailAddress(ctx context.Context, emailAddress string) (*models.WatchState, error) {
	if f.getGate != nil {
		<-f.getGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	state, ok := f.states[emailAddress]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (f *fakeWatchStateRepo) SaveHistoryID(ctx context.Context, emailAddress, historyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, historyID)
	f.states[emailAddress] = &models.WatchState{EmailAddress: emailAddress, LastHistoryID: &historyID}
	return nil
}

func (f *fakeWatchStateRepo) SaveWatch(ctx context.Context, emailAddress, historyID string, expiration int64, renewedAt time.Time) error {
	return nil
}

type fakeGmailService struct {
	mu         sync.Mutex
	diff       *dto.HistoryDiff
	diffErr    error
	listCalls  []string
	headers    map[string]*dto.EmailHeaders
	messages   map[string]*dto.ParsedEmail
	unread     []string
	markedRead []string
}

func (f *fakeGmailService) ListHistorySince(ctx context.Context, historyID string) (*dto.HistoryDiff, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, historyID)
	if f.diffErr != nil {
		return nil, f.diffErr
	}
	return f.diff, nil
}

func (f *fakeGmailService) FetchHeaders(ctx context.Context, messageID string) (*dto.EmailHeaders, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	headers, ok := f.headers[messageID]
	if !ok {
		return nil, errors.Wrapf(er.ErrUpstreamUnavailable, "message %s", messageID)
	}
	return headers, nil
}

func (f *fakeGmailService) FetchFull(ctx context.Context, messageID string) (*dto.ParsedEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	message, ok := f.messages[messageID]
	if !ok {
		return nil, errors.Wrapf(er.ErrUpstreamUnavailable, "message %s", messageID)
	}
	return message, nil
}

func (f *fakeGmailService) Subscribe(ctx context.Context) (*dto.WatchResult, error) {
	return &dto.WatchResult{HistoryID: "1", Expiration: time.Now().Add(7 * 24 * time.Hour).UnixMilli()}, nil
}

func (f *fakeGmailService) MarkAsRead(ctx context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedRead = append(f.markedRead, messageID)
	return nil
}

func (f *fakeGmailService) SearchUnread(ctx context.Context, since time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread, nil
}

type fakeMatchingService struct {
	mu      sync.Mutex
	matches map[string]*dto.MatchResult
}

func (f *fakeMatchingService) Match(ctx context.Context, headers *dto.EmailHeaders) (*dto.MatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.matches[headers.MessageID], nil
}

type fakeExtractionService struct {
	mu          sync.Mutex
	extraction  *dto.ExtractedProposalData
	merged      *dto.ExtractedProposalData
	mergeCalls  int
	mergedTexts []string
}

func (f *fakeExtractionService) ExtractFromMessage(ctx context.Context, message *dto.ParsedEmail, requestedItems []models.RFPLineItem) (*dto.ExtractedProposalData, error) {
	return f.extraction, nil
}

func (f *fakeExtractionService) MergeExtractions(ctx context.Context, previous *dto.ExtractedProposalData, previousItems []models.ProposalLineItem, newMessageText string, newExtraction *dto.ExtractedProposalData) (*dto.ExtractedProposalData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mergeCalls++
	f.mergedTexts = append(f.mergedTexts, newMessageText)
	return f.merged, nil
}

func (f *fakeExtractionService) ExtractRFPFromText(ctx context.Context, text string) (*dto.ExtractedRFP, error) {
	return nil, errors.New("not used")
}

type fakeProposalService struct {
	mu      sync.Mutex
	created []string
	merged  []string
}

func (f *fakeProposalService) CreateFromExtraction(ctx context.Context, rfpID, vendorID string, message *dto.ParsedEmail, extraction *dto.ExtractedProposalData) (*models.Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, rfpID+"/"+vendorID)
	return &models.Proposal{ID: "prop_new", RFPID: rfpID, VendorID: vendorID}, nil
}

func (f *fakeProposalService) MergeIntoExisting(ctx context.Context, proposalID string, message *dto.ParsedEmail, mergedExtraction *dto.ExtractedProposalData) (*models.Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merged = append(f.merged, proposalID)
	return &models.Proposal{ID: proposalID}, nil
}

type fakeProposalRepo struct {
	mu       sync.Mutex
	existing map[string]*models.Proposal
	items    map[string][]models.ProposalLineItem
}

func (f *fakeProposalRepo) GetByID(ctx context.Context, id string) (*models.Proposal, error) {
	return nil, nil
}

func (f *fakeProposalRepo) GetByRFPAndVendor(ctx context.Context, rfpID, vendorID string) (*models.Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[rfpID+"/"+vendorID], nil
}

func (f *fakeProposalRepo) GetLineItems(ctx context.Context, proposalID string) ([]models.ProposalLineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[proposalID], nil
}

func (f *fakeProposalRepo) CreateWithLineItems(ctx context.Context, proposal *models.Proposal, lineItems []models.ProposalLineItem) error {
	return nil
}

func (f *fakeProposalRepo) UpdateWithLineItems(ctx context.Context, proposal *models.Proposal, lineItems []models.ProposalLineItem) error {
	return nil
}

type fakeRFPRepo struct{}

func (f *fakeRFPRepo) GetByID(ctx context.Context, id string) (*models.RFP, error) { return nil, nil }

func (f *fakeRFPRepo) GetLineItems(ctx context.Context, rfpID string) ([]models.RFPLineItem, error) {
	return []models.RFPLineItem{{ID: "rli_1", RFPID: rfpID, ItemName: "Laptops", Quantity: 10}}, nil
}

func (f *fakeRFPRepo) Create(ctx context.Context, rfp *models.RFP, lineItems []models.RFPLineItem) error {
	return nil
}

func (f *fakeRFPRepo) UpdateStatus(ctx context.Context, rfpID string, status enum.RFPStatus) error {
	return nil
}

type orchestratorFixture struct {
	orchestrator *orchestrator
	watchRepo    *fakeWatchStateRepo
	gmail        *fakeGmailService
	matching     *fakeMatchingService
	extraction   *fakeExtractionService
	proposals    *fakeProposalService
	proposalRepo *fakeProposalRepo
}

func newFixture() *orchestratorFixture {
	watchRepo := newFakeWatchStateRepo()
	gmail := &fakeGmailService{
		headers:  map[string]*dto.EmailHeaders{},
		messages: map[string]*dto.ParsedEmail{},
	}
	matching := &fakeMatchingService{matches: map[string]*dto.MatchResult{}}
	extraction := &fakeExtractionService{
		extraction: &dto.ExtractedProposalData{TotalPrice: utils.Ptr("5000")},
		merged:     &dto.ExtractedProposalData{TotalPrice: utils.Ptr("4500")},
	}
	proposals := &fakeProposalService{}
	proposalRepo := &fakeProposalRepo{
		existing: map[string]*models.Proposal{},
		items:    map[string][]models.ProposalLineItem{},
	}

	o := NewOrchestrator(
		getLogger(),
		gmail,
		matching,
		extraction,
		proposals,
		watchRepo,
		proposalRepo,
		&fakeRFPRepo{},
		NewMemoryQueue(),
		"rfps@procurehq.com",
	)

	return &orchestratorFixture{
		orchestrator: o.(*orchestrator),
		watchRepo:    watchRepo,
		gmail:        gmail,
		matching:     matching,
		extraction:   extraction,
		proposals:    proposals,
		proposalRepo: proposalRepo,
	}
}

func waitForIdle(t *testing.T, o *orchestrator) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if o.isIdle() && o.queue.Len() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("orchestrator did not become idle")
}

func TestOrchestrator_DuplicateNotificationDropped(t *testing.T) {
	f := newFixture()
	f.watchRepo.setCursor("rfps@procurehq.com", "50")
	f.gmail.diff = &dto.HistoryDiff{NewHistoryID: "60"}

	assert.True(t, f.orchestrator.HandleNotification(context.Background(), notification("n-1", "rfps@procurehq.com", "60")))
	waitForIdle(t, f.orchestrator)

	// Same notification id again
	assert.False(t, f.orchestrator.HandleNotification(context.Background(), notification("n-1", "rfps@procurehq.com", "60")))
	waitForIdle(t, f.orchestrator)

	// Only the first delivery triggered a cycle
	assert.Equal(t, []string{"50"}, f.gmail.listCalls)
}

func TestOrchestrator_BootstrapStoresNotificationCursor(t *testing.T) {
	f := newFixture()

	f.orchestrator.HandleNotification(context.Background(), notification("n-1", "rfps@procurehq.com", "777"))
	waitForIdle(t, f.orchestrator)

	// The notification's own history id becomes the cursor and no history
	// listing happens on a bootstrap cycle.
	assert.Equal(t, "777", f.watchRepo.cursor("rfps@procurehq.com"))
	assert.Empty(t, f.gmail.listCalls)
	assert.Empty(t, f.proposals.created)
}

func TestOrchestrator_EmptyBatchStillAdvancesCursor(t *testing.T) {
	f := newFixture()
	f.watchRepo.setCursor("rfps@procurehq.com", "50")
	f.gmail.diff = &dto.HistoryDiff{NewMessageIDs: nil, NewHistoryID: "100"}

	f.orchestrator.HandleNotification(context.Background(), notification("n-1", "rfps@procurehq.com", "100"))
	waitForIdle(t, f.orchestrator)

	assert.Equal(t, []string{"50"}, f.gmail.listCalls)
	assert.Equal(t, "100", f.watchRepo.cursor("rfps@procurehq.com"))
}

func TestOrchestrator_UpstreamFailureLeavesCursorUntouched(t *testing.T) {
	f := newFixture()
	f.watchRepo.setCursor("rfps@procurehq.com", "50")
	f.gmail.diffErr = errors.Wrap(er.ErrUpstreamUnavailable, "gmail history list")

	f.orchestrator.HandleNotification(context.Background(), notification("n-1", "rfps@procurehq.com", "100"))
	waitForIdle(t, f.orchestrator)

	// Batch aborted, the next notification retries from the same cursor
	assert.Equal(t, "50", f.watchRepo.cursor("rfps@procurehq.com"))
	assert.Empty(t, f.watchRepo.savedHistoryIDs())
}

func TestOrchestrator_PerMessageFailureDoesNotAbortBatch(t *testing.T) {
	f := newFixture()
	f.watchRepo.setCursor("rfps@procurehq.com", "50")
	// m1 has no stored headers so FetchHeaders fails; m2 is healthy but unmatched
	f.gmail.diff = &dto.HistoryDiff{NewMessageIDs: []string{"m1", "m2"}, NewHistoryID: "100"}
	f.gmail.headers["m2"] = &dto.EmailHeaders{ProviderID: "m2", MessageID: "<x@vendor.com>", FromAddress: "someone@unknown.com"}

	f.orchestrator.HandleNotification(context.Background(), notification("n-1", "rfps@procurehq.com", "100"))
	waitForIdle(t, f.orchestrator)

	// Cursor advances past the failed message; it will not be retried
	assert.Equal(t, "100", f.watchRepo.cursor("rfps@procurehq.com"))
	assert.Empty(t, f.proposals.created)
}

func TestOrchestrator_SingleFlightDrainsInArrivalOrder(t *testing.T) {
	f := newFixture()
	gate := make(chan struct{})
	f.watchRepo.getGate = gate

	// All three bootstrap distinct mailboxes so SaveHistoryID records order
	f.orchestrator.HandleNotification(context.Background(), notification("n-1", "a@procurehq.com", "1"))

	// Worker is parked on the gate; these two must queue behind it
	require.Eventually(t, func() bool { return !f.orchestrator.isIdle() }, time.Second, 5*time.Millisecond)
	f.orchestrator.HandleNotification(context.Background(), notification("n-2", "b@procurehq.com", "2"))
	f.orchestrator.HandleNotification(context.Background(), notification("n-3", "c@procurehq.com", "3"))
	assert.Equal(t, 2, f.orchestrator.queue.Len())

	close(gate)
	waitForIdle(t, f.orchestrator)

	assert.Equal(t, []string{"1", "2", "3"}, f.watchRepo.savedHistoryIDs())
}

func TestOrchestrator_MatchedMessageCreatesProposal(t *testing.T) {
	f := newFixture()
	f.watchRepo.setCursor("rfps@procurehq.com", "50")
	f.gmail.diff = &dto.HistoryDiff{NewMessageIDs: []string{"m1", "m2"}, NewHistoryID: "100"}
	f.gmail.headers["m1"] = &dto.EmailHeaders{
		ProviderID:  "m1",
		MessageID:   "<reply-1@vendor.com>",
		InReplyTo:   "<rfp-msg-1@procurehq.com>",
		FromAddress: "sales@vendor.com",
	}
	f.gmail.headers["m2"] = &dto.EmailHeaders{
		ProviderID:  "m2",
		MessageID:   "<hello@random.com>",
		FromAddress: "someone@random.com",
	}
	f.gmail.messages["m1"] = &dto.ParsedEmail{
		Headers:  *f.gmail.headers["m1"],
		BodyText: "Sure, our price is $5000.",
	}
	f.matching.matches["<reply-1@vendor.com>"] = &dto.MatchResult{RFPID: "rfp_1", VendorID: "vendor_1", RFPVendorID: "rfpv_1"}

	f.orchestrator.HandleNotification(context.Background(), notification("n-1", "rfps@procurehq.com", "100"))
	waitForIdle(t, f.orchestrator)

	// m1 produced a proposal, m2 was discarded as unmatched, cursor landed on 100
	assert.Equal(t, []string{"rfp_1/vendor_1"}, f.proposals.created)
	assert.Empty(t, f.proposals.merged)
	assert.Equal(t, "100", f.watchRepo.cursor("rfps@procurehq.com"))
}

func TestOrchestrator_FollowUpMergesIntoExistingProposal(t *testing.T) {
	f := newFixture()
	f.watchRepo.setCursor("rfps@procurehq.com", "100")
	f.gmail.diff = &dto.HistoryDiff{NewMessageIDs: []string{"m3"}, NewHistoryID: "120"}
	f.gmail.headers["m3"] = &dto.EmailHeaders{
		ProviderID:  "m3",
		MessageID:   "<reply-2@vendor.com>",
		References:  []string{"<rfp-msg-1@procurehq.com>", "<reply-1@vendor.com>"},
		FromAddress: "sales@vendor.com",
	}
	f.gmail.messages["m3"] = &dto.ParsedEmail{
		Headers:  *f.gmail.headers["m3"],
		BodyText: "Correction: we can do $4500.\n\nOn Mon, Jan 1, 2024 at 9:00 AM Buyer <rfps@procurehq.com> wrote:\n> original",
	}
	f.matching.matches["<reply-2@vendor.com>"] = &dto.MatchResult{RFPID: "rfp_1", VendorID: "vendor_1", RFPVendorID: "rfpv_1"}
	f.proposalRepo.existing["rfp_1/vendor_1"] = &models.Proposal{
		ID:            "prop_1",
		RFPID:         "rfp_1",
		VendorID:      "vendor_1",
		ExtractedData: models.JSONMap{"totalPrice": "5000", "pricing": map[string]interface{}{"lineItems": []interface{}{}}},
	}

	f.orchestrator.HandleNotification(context.Background(), notification("n-1", "rfps@procurehq.com", "120"))
	waitForIdle(t, f.orchestrator)

	assert.Empty(t, f.proposals.created)
	assert.Equal(t, []string{"prop_1"}, f.proposals.merged)
	assert.Equal(t, 1, f.extraction.mergeCalls)
	// Only the fresh reply text reaches the merge prompt
	assert.Equal(t, []string{"Correction: we can do $4500."}, f.extraction.mergedTexts)
	assert.Equal(t, "120", f.watchRepo.cursor("rfps@procurehq.com"))
}

func TestOrchestrator_SweepUnread(t *testing.T) {
	f := newFixture()
	f.gmail.unread = []string{"m1", "m2"}
	f.gmail.headers["m1"] = &dto.EmailHeaders{
		ProviderID:  "m1",
		MessageID:   "<reply-1@vendor.com>",
		InReplyTo:   "<rfp-msg-1@procurehq.com>",
		FromAddress: "sales@vendor.com",
	}
	f.gmail.headers["m2"] = &dto.EmailHeaders{
		ProviderID:  "m2",
		MessageID:   "<hello@random.com>",
		FromAddress: "someone@random.com",
	}
	f.gmail.messages["m1"] = &dto.ParsedEmail{
		Headers:  *f.gmail.headers["m1"],
		BodyText: "Sure, our price is $5000.",
	}
	f.matching.matches["<reply-1@vendor.com>"] = &dto.MatchResult{RFPID: "rfp_1", VendorID: "vendor_1", RFPVendorID: "rfpv_1"}

	processed, err := f.orchestrator.SweepUnread(context.Background(), time.Now().Add(-24*time.Hour))

	require.NoError(t, err)
	// The unmatched message still counts as processed; only failures do not
	assert.Equal(t, 2, processed)
	assert.Equal(t, []string{"rfp_1/vendor_1"}, f.proposals.created)
	assert.Equal(t, []string{"m1", "m2"}, f.gmail.markedRead)
	// The sweep never touches the history cursor
	assert.Empty(t, f.watchRepo.savedHistoryIDs())
	waitForIdle(t, f.orchestrator)
}
