package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/procurehq/rfpstack/interfaces"
	"github.com/procurehq/rfpstack/internal/models"
	"github.com/procurehq/rfpstack/internal/tracing"
)

type watchStateRepository struct {
	db *gorm.DB
}

func NewWatchStateRepository(db *gorm.DB) interfaces.WatchStateRepository {
	return &watchStateRepository{db: db}
}

// GetByEmailAddress retrieves the watch state for a mailbox address
func (r *watchStateRepository) GetByEmailAddress(ctx context.Context, emailAddress string) (*models.WatchState, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "watchStateRepository.GetByEmailAddress")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagMailbox(span, emailAddress)

	var state models.WatchState
	result := r.db.WithContext(ctx).
		Where("email_address = ?", emailAddress).
		First(&state)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil // no watch state yet
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get watch state: %w", result.Error)
	}

	return &state, nil
}

// SaveHistoryID advances the stored history cursor for a mailbox address
func (r *watchStateRepository) SaveHistoryID(ctx context.Context, emailAddress, historyID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "watchStateRepository.SaveHistoryID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagMailbox(span, emailAddress)

	// Try to update first
	result := r.db.WithContext(ctx).
		Model(&models.WatchState{}).
		Where("email_address = ?", emailAddress).
		Updates(map[string]interface{}{
			"last_history_id": historyID,
			"updated_at":      time.Now(),
		})

	// If no record was updated, create a new one
	if result.RowsAffected == 0 {
		result = r.db.WithContext(ctx).Create(&models.WatchState{
			EmailAddress:  emailAddress,
			LastHistoryID: &historyID,
		})
	}

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to save history id: %w", result.Error)
	}

	return nil
}

// SaveWatch records a (re)established push subscription for a mailbox address
func (r *watchStateRepository) SaveWatch(ctx context.Context, emailAddress, historyID string, expiration int64, renewedAt time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "watchStateRepository.SaveWatch")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagMailbox(span, emailAddress)

	updates := map[string]interface{}{
		"watch_expiration": expiration,
		"last_renewed_at":  renewedAt,
		"updated_at":       time.Now(),
	}
	// The renewal cursor is only stored when no cursor exists yet; the diff
	// cycle owns cursor advancement once tracking has started.
	var existing models.WatchState
	err := r.db.WithContext(ctx).Where("email_address = ?", emailAddress).First(&existing).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to load watch state: %w", err)
	}

	if err == gorm.ErrRecordNotFound {
		result := r.db.WithContext(ctx).Create(&models.WatchState{
			EmailAddress:    emailAddress,
			LastHistoryID:   &historyID,
			WatchExpiration: &expiration,
			LastRenewedAt:   &renewedAt,
		})
		if result.Error != nil {
			tracing.TraceErr(span, result.Error)
			return fmt.Errorf("failed to create watch state: %w", result.Error)
		}
		return nil
	}

	if existing.LastHistoryID == nil && historyID != "" {
		updates["last_history_id"] = historyID
	}

	result := r.db.WithContext(ctx).
		Model(&models.WatchState{}).
		Where("email_address = ?", emailAddress).
		Updates(updates)

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to save watch state: %w", result.Error)
	}

	return nil
}
