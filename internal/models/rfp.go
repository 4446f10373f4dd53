package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/procurehq/rfpstack/internal/enum"
	"github.com/procurehq/rfpstack/internal/utils"
)

// RFP represents a request for proposal sent out to vendors
type RFP struct {
	ID           string         `gorm:"column:id;type:varchar(50);primaryKey"`
	Title        string         `gorm:"column:title;type:varchar(255);not null"`
	Description  string         `gorm:"column:description;type:text"`
	Budget       *float64       `gorm:"column:budget;type:decimal(15,2)"`
	Deadline     *time.Time     `gorm:"column:deadline;type:date"`
	PaymentTerms string         `gorm:"column:payment_terms;type:varchar(255)"`
	Warranty     string         `gorm:"column:warranty;type:varchar(255)"`
	OtherTerms   JSONMap        `gorm:"column:other_terms;type:jsonb"`
	Status       enum.RFPStatus `gorm:"column:status;type:varchar(50);index;not null;default:'draft'"`
	SentAt       *time.Time     `gorm:"column:sent_at;type:timestamp"`
	CreatedAt    time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (RFP) TableName() string {
	return "rfps"
}

func (r *RFP) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = utils.GenerateNanoIdWithPrefix("rfp", 21)
	}
	r.CreatedAt = utils.Now()
	return nil
}
