package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/procurehq/rfpstack/internal/enum"
	"github.com/procurehq/rfpstack/internal/utils"
)

// RFPVendor links an RFP to a vendor it was sent to. EmailMessageID stores the
// Message-ID of the outbound email so replies can be threaded back to the pair.
type RFPVendor struct {
	ID             string           `gorm:"column:id;type:varchar(50);primaryKey"`
	RFPID          string           `gorm:"column:rfp_id;type:varchar(50);index;not null"`
	VendorID       string           `gorm:"column:vendor_id;type:varchar(50);index;not null"`
	EmailSentAt    *time.Time       `gorm:"column:email_sent_at;type:timestamp"`
	EmailMessageID string           `gorm:"column:email_message_id;type:varchar(500);index"`
	EmailStatus    enum.EmailStatus `gorm:"column:email_status;type:varchar(50);index;not null;default:'pending'"`
	CreatedAt      time.Time        `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
}

func (RFPVendor) TableName() string {
	return "rfp_vendors"
}

func (rv *RFPVendor) BeforeCreate(tx *gorm.DB) error {
	if rv.ID == "" {
		rv.ID = utils.GenerateNanoIdWithPrefix("rfpv", 21)
	}
	rv.CreatedAt = utils.Now()
	return nil
}
