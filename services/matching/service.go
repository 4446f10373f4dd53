package matching

import (
	"context"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/opentracing/opentracing-go"

	"github.com/procurehq/rfpstack/dto"
	"github.com/procurehq/rfpstack/interfaces"
	"github.com/procurehq/rfpstack/internal/enum"
	"github.com/procurehq/rfpstack/internal/logger"
	"github.com/procurehq/rfpstack/internal/tracing"
)

type matchingService struct {
	log              logger.Logger
	vendorRepository interfaces.VendorRepository
	linkRepository   interfaces.RFPVendorRepository
}

func NewMatchingService(log logger.Logger, vendorRepository interfaces.VendorRepository, linkRepository interfaces.RFPVendorRepository) interfaces.MatchingService {
	return &matchingService{
		log:              log,
		vendorRepository: vendorRepository,
		linkRepository:   linkRepository,
	}
}

// Match resolves an inbound message to the RFP/vendor pair it replies to.
// Precedence: registered-vendor check, then In-Reply-To against the outbound
// Message-ID of a sent link, then each entry of the References chain in order.
// Subject lines are deliberately not used; thread headers are the only
// correlation the sender cannot casually mutate.
func (s *matchingService) Match(ctx context.Context, headers *dto.EmailHeaders) (*dto.MatchResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "matchingService.Match")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, headers.MessageID)

	validation := mailvalidate.ValidateEmailSyntax(headers.FromAddress)
	if !validation.IsValid {
		s.log.Infof("sender %s is not a valid address, ignoring message %s", headers.FromAddress, headers.MessageID)
		return nil, nil
	}

	vendor, err := s.vendorRepository.GetByEmail(ctx, headers.FromAddress)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if vendor == nil {
		s.log.Infof("sender %s is not a registered vendor, ignoring message %s", headers.FromAddress, headers.MessageID)
		return nil, nil
	}

	candidates := make([]string, 0, len(headers.References)+1)
	if headers.InReplyTo != "" {
		candidates = append(candidates, headers.InReplyTo)
	}
	candidates = append(candidates, headers.References...)

	for _, candidate := range candidates {
		link, err := s.linkRepository.GetByOutboundMessageID(ctx, candidate, enum.EmailStatusSent)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		if link == nil {
			continue
		}
		span.SetTag("rfpId", link.RFPID)
		return &dto.MatchResult{
			RFPID:       link.RFPID,
			VendorID:    link.VendorID,
			RFPVendorID: link.ID,
		}, nil
	}

	s.log.Infof("no reply-thread correlation for message %s from %s", headers.MessageID, headers.FromAddress)
	return nil, nil
}
