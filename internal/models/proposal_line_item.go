package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/procurehq/rfpstack/internal/utils"
)

// ProposalLineItem is one priced item on a proposal, optionally linked to the
// RFP line item it answers.
type ProposalLineItem struct {
	ID             string    `gorm:"column:id;type:varchar(50);primaryKey"`
	ProposalID     string    `gorm:"column:proposal_id;type:varchar(50);index;not null"`
	RFPLineItemID  *string   `gorm:"column:rfp_line_item_id;type:varchar(50);index"`
	ItemName       string    `gorm:"column:item_name;type:varchar(255);not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	UnitPrice      *float64  `gorm:"column:unit_price;type:decimal(15,2)"`
	TotalPrice     *float64  `gorm:"column:total_price;type:decimal(15,2)"`
	Specifications JSONMap   `gorm:"column:specifications;type:jsonb"`
	Notes          string    `gorm:"column:notes;type:text"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
}

func (ProposalLineItem) TableName() string {
	return "proposal_line_items"
}

func (i *ProposalLineItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = utils.GenerateNanoIdWithPrefix("pli", 21)
	}
	i.CreatedAt = utils.Now()
	return nil
}
