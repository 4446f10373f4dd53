package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/procurehq/rfpstack/internal/utils"
)

// ProposalComparison caches the AI comparison across all proposals of one RFP.
// Compared flips to false whenever a proposal is created or merged, so consumers
// know the cached result is stale.
type ProposalComparison struct {
	ID             string    `gorm:"column:id;type:varchar(50);primaryKey"`
	RFPID          string    `gorm:"column:rfp_id;type:varchar(50);uniqueIndex;not null"`
	ProposalIDs    JSONMap   `gorm:"column:proposal_ids;type:jsonb"`
	ComparisonData JSONMap   `gorm:"column:comparison_data;type:jsonb"`
	Recommendation JSONMap   `gorm:"column:recommendation;type:jsonb"`
	Compared       bool      `gorm:"column:compared;default:false;not null"`
	ComputedAt     time.Time `gorm:"column:computed_at;type:timestamp"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt      time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (ProposalComparison) TableName() string {
	return "proposal_comparisons"
}

func (c *ProposalComparison) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = utils.GenerateNanoIdWithPrefix("cmp", 21)
	}
	c.CreatedAt = utils.Now()
	return nil
}
