package matching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurehq/rfpstack/dto"
	"github.com/procurehq/rfpstack/internal/enum"
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

type fakeVendorRepo struct {
	vendors map[string]*models.Vendor
}

func (f *fakeVendorRepo) GetByID(ctx context.Context, id string) (*models.Vendor, error) {
	return nil, nil
}

func (f *fakeVendorRepo) GetByEmail(ctx context.Context, email string) (*models.Vendor, error) {
	return f.vendors[email], nil
}

func (f *fakeVendorRepo) Create(ctx context.Context, vendor *models.Vendor) error {
	return nil
}

type fakeLinkRepo struct {
	links   map[string]*models.RFPVendor
	queried []string
}

func (f *fakeLinkRepo) GetByID(ctx context.Context, id string) (*models.RFPVendor, error) {
	return nil, nil
}

func (f *fakeLinkRepo) GetByOutboundMessageID(ctx context.Context, messageID string, status enum.EmailStatus) (*models.RFPVendor, error) {
	f.queried = append(f.queried, messageID)
	if status != enum.EmailStatusSent {
		return nil, nil
	}
	return f.links[messageID], nil
}

func (f *fakeLinkRepo) GetByRFPAndVendor(ctx context.Context, rfpID, vendorID string) (*models.RFPVendor, error) {
	return nil, nil
}

func (f *fakeLinkRepo) Create(ctx context.Context, link *models.RFPVendor) error { return nil }

func (f *fakeLinkRepo) MarkSent(ctx context.Context, id, outboundMessageID string) error { return nil }

func newService(vendors *fakeVendorRepo, links *fakeLinkRepo) *matchingService {
	return NewMatchingService(getLogger(), vendors, links).(*matchingService)
}

func TestMatch_UnregisteredSenderIgnored(t *testing.T) {
	vendors := &fakeVendorRepo{vendors: map[string]*models.Vendor{}}
	links := &fakeLinkRepo{links: map[string]*models.RFPVendor{
		"<rfp-msg-1@procurehq.com>": {ID: "rfpv_1", RFPID: "rfp_1", VendorID: "vendor_1"},
	}}
	s := newService(vendors, links)

	result, err := s.Match(context.Background(), &dto.EmailHeaders{
		MessageID:   "<reply-1@stranger.com>",
		InReplyTo:   "<rfp-msg-1@procurehq.com>",
		FromAddress: "sales@stranger.com",
	})

	require.NoError(t, err)
	assert.Nil(t, result)
	// The thread headers are never consulted for an unknown sender
	assert.Empty(t, links.queried)
}

func TestMatch_InvalidSenderAddressIgnored(t *testing.T) {
	vendors := &fakeVendorRepo{vendors: map[string]*models.Vendor{}}
	links := &fakeLinkRepo{links: map[string]*models.RFPVendor{}}
	s := newService(vendors, links)

	result, err := s.Match(context.Background(), &dto.EmailHeaders{
		MessageID:   "<reply-1@x.com>",
		FromAddress: "not-an-address",
	})

	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestMatch_InReplyToWins(t *testing.T) {
	vendors := &fakeVendorRepo{vendors: map[string]*models.Vendor{
		"sales@vendor.com": {ID: "vendor_1", Email: "sales@vendor.com"},
	}}
	links := &fakeLinkRepo{links: map[string]*models.RFPVendor{
		"<rfp-msg-1@procurehq.com>": {ID: "rfpv_1", RFPID: "rfp_1", VendorID: "vendor_1"},
	}}
	s := newService(vendors, links)

	result, err := s.Match(context.Background(), &dto.EmailHeaders{
		MessageID:   "<reply-1@vendor.com>",
		InReplyTo:   "<rfp-msg-1@procurehq.com>",
		References:  []string{"<unrelated@procurehq.com>", "<rfp-msg-1@procurehq.com>"},
		FromAddress: "sales@vendor.com",
	})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "rfp_1", result.RFPID)
	assert.Equal(t, "vendor_1", result.VendorID)
	assert.Equal(t, "rfpv_1", result.RFPVendorID)
	// In-Reply-To matched, the References chain was never reached
	assert.Equal(t, []string{"<rfp-msg-1@procurehq.com>"}, links.queried)
}

func TestMatch_ReferencesChainInOrder(t *testing.T) {
	vendors := &fakeVendorRepo{vendors: map[string]*models.Vendor{
		"sales@vendor.com": {ID: "vendor_1", Email: "sales@vendor.com"},
	}}
	links := &fakeLinkRepo{links: map[string]*models.RFPVendor{
		"<rfp-msg-1@procurehq.com>": {ID: "rfpv_1", RFPID: "rfp_1", VendorID: "vendor_1"},
	}}
	s := newService(vendors, links)

	result, err := s.Match(context.Background(), &dto.EmailHeaders{
		MessageID:   "<reply-2@vendor.com>",
		InReplyTo:   "<reply-1@vendor.com>",
		References:  []string{"<rfp-msg-1@procurehq.com>", "<reply-1@vendor.com>"},
		FromAddress: "sales@vendor.com",
	})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "rfpv_1", result.RFPVendorID)
	// In-Reply-To missed, then the first References entry hit
	assert.Equal(t, []string{"<reply-1@vendor.com>", "<rfp-msg-1@procurehq.com>"}, links.queried)
}

func TestMatch_NoThreadCorrelation(t *testing.T) {
	vendors := &fakeVendorRepo{vendors: map[string]*models.Vendor{
		"sales@vendor.com": {ID: "vendor_1", Email: "sales@vendor.com"},
	}}
	links := &fakeLinkRepo{links: map[string]*models.RFPVendor{}}
	s := newService(vendors, links)

	// A fresh email from a registered vendor with no thread headers is not a
	// proposal, whatever its subject line says
	result, err := s.Match(context.Background(), &dto.EmailHeaders{
		MessageID:   "<fresh@vendor.com>",
		Subject:     "RE: Request for Proposal - Office Laptops",
		FromAddress: "sales@vendor.com",
	})

	require.NoError(t, err)
	assert.Nil(t, result)
}
