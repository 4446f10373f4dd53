package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WatchState tracks the push-notification subscription and history cursor for a mailbox
type WatchState struct {
	ID              string     `gorm:"column:id;type:uuid;primaryKey"`
	EmailAddress    string     `gorm:"column:email_address;type:varchar(255);uniqueIndex;not null"`
	LastHistoryID   *string    `gorm:"column:last_history_id;type:varchar(255)"`
	WatchExpiration *int64     `gorm:"column:watch_expiration"`
	LastRenewedAt   *time.Time `gorm:"column:last_renewed_at;type:timestamp"`
	CreatedAt       time.Time  `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (WatchState) TableName() string {
	return "watch_states"
}

func (w *WatchState) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	return nil
}
