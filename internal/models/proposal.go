package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/procurehq/rfpstack/internal/utils"
)

// Proposal is a vendor's submission for an RFP, built from one or more inbound emails
type Proposal struct {
	ID             string     `gorm:"column:id;type:varchar(50);primaryKey"`
	RFPID          string     `gorm:"column:rfp_id;type:varchar(50);index;not null"`
	VendorID       string     `gorm:"column:vendor_id;type:varchar(50);index;not null"`
	EmailSubject   string     `gorm:"column:email_subject;type:varchar(500)"`
	EmailBody      string     `gorm:"column:email_body;type:text"`
	EmailMessageID string     `gorm:"column:email_message_id;type:varchar(255);index"`
	ExtractedData  JSONMap    `gorm:"column:extracted_data;type:jsonb"`
	RawAttachments JSONMap    `gorm:"column:raw_attachments;type:jsonb"`
	ParsedAt       *time.Time `gorm:"column:parsed_at;type:timestamp"`
	CreatedAt      time.Time  `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (Proposal) TableName() string {
	return "proposals"
}

func (p *Proposal) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = utils.GenerateNanoIdWithPrefix("prop", 21)
	}
	p.CreatedAt = utils.Now()
	return nil
}
