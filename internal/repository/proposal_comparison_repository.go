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

type proposalComparisonRepository struct {
	db *gorm.DB
}

func NewProposalComparisonRepository(db *gorm.DB) interfaces.ProposalComparisonRepository {
	return &proposalComparisonRepository{db: db}
}

func (r *proposalComparisonRepository) GetByRFP(ctx context.Context, rfpID string) (*models.ProposalComparison, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "proposalComparisonRepository.GetByRFP")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, rfpID)

	var comparison models.ProposalComparison
	result := r.db.WithContext(ctx).Where("rfp_id = ?", rfpID).First(&comparison)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get proposal comparison: %w", result.Error)
	}

	return &comparison, nil
}

// MarkStale flags the cached comparison for an RFP as out of date. A missing
// row is not an error; there is simply nothing to invalidate yet.
func (r *proposalComparisonRepository) MarkStale(ctx context.Context, rfpID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "proposalComparisonRepository.MarkStale")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, rfpID)

	result := r.db.WithContext(ctx).
		Model(&models.ProposalComparison{}).
		Where("rfp_id = ?", rfpID).
		Updates(map[string]interface{}{
			"compared":   false,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to mark comparison stale: %w", result.Error)
	}

	return nil
}
