package interfaces

import (
	"context"
	"time"

	"github.com/procurehq/rfpstack/internal/models"
)

type WatchStateRepository interface {
	GetByEmailAddress(ctx context.Context, emailAddress string) (*models.WatchState, error)
	SaveHistoryID(ctx context.Context, emailAddress, historyID string) error
	SaveWatch(ctx context.Context, emailAddress, historyID string, expiration int64, renewedAt time.Time) error
}
