package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/procurehq/rfpstack/internal/utils"
)

// RFPLineItem is one requested item on an RFP
type RFPLineItem struct {
	ID             string    `gorm:"column:id;type:varchar(50);primaryKey"`
	RFPID          string    `gorm:"column:rfp_id;type:varchar(50);index;not null"`
	ItemName       string    `gorm:"column:item_name;type:varchar(255);not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	Specifications JSONMap   `gorm:"column:specifications;type:jsonb"`
	Notes          string    `gorm:"column:notes;type:text"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
}

func (RFPLineItem) TableName() string {
	return "rfp_line_items"
}

func (i *RFPLineItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = utils.GenerateNanoIdWithPrefix("rli", 21)
	}
	i.CreatedAt = utils.Now()
	return nil
}
