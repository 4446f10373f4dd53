package interfaces

import (
	"context"
)

type EventPublisher interface {
	PublishProposalReceived(ctx context.Context, proposalID, rfpID, vendorID string) error
	PublishProposalUpdated(ctx context.Context, proposalID, rfpID, vendorID string) error
	Close() error
}
