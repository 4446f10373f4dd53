package interfaces

import (
	"context"

	"github.com/procurehq/rfpstack/dto"
)

// MatchingService resolves an inbound message to the RFP/vendor pair it replies
// to. A nil result with nil error means no match.
type MatchingService interface {
	Match(ctx context.Context, headers *dto.EmailHeaders) (*dto.MatchResult, error)
}
