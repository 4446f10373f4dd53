package interfaces

import (
	"context"
	"time"

	"github.com/procurehq/rfpstack/dto"
)

// GmailService wraps the mail provider API. Every call is independently
// idempotent and safe for the caller to retry.
type GmailService interface {
	ListHistorySince(ctx context.Context, historyID string) (*dto.HistoryDiff, error)
	FetchHeaders(ctx context.Context, messageID string) (*dto.EmailHeaders, error)
	FetchFull(ctx context.Context, messageID string) (*dto.ParsedEmail, error)
	Subscribe(ctx context.Context) (*dto.WatchResult, error)
	MarkAsRead(ctx context.Context, messageID string) error
	SearchUnread(ctx context.Context, since time.Time) ([]string, error)
}
