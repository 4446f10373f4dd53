package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/procurehq/rfpstack/internal/utils"
)

// Vendor represents a supplier registered to receive RFPs
type Vendor struct {
	ID          string    `gorm:"column:id;type:varchar(50);primaryKey"`
	Name        string    `gorm:"column:name;type:varchar(255);not null"`
	Email       string    `gorm:"column:email;type:varchar(255);uniqueIndex;not null"`
	ContactInfo JSONMap   `gorm:"column:contact_info;type:jsonb"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt   time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (Vendor) TableName() string {
	return "vendors"
}

func (v *Vendor) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = utils.GenerateNanoIdWithPrefix("vendor", 21)
	}
	v.CreatedAt = utils.Now()
	return nil
}
