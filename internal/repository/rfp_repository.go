package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/procurehq/rfpstack/interfaces"
	"github.com/procurehq/rfpstack/internal/enum"
	"github.com/procurehq/rfpstack/internal/models"
	"github.com/procurehq/rfpstack/internal/tracing"
)

type rfpRepository struct {
	db *gorm.DB
}

func NewRFPRepository(db *gorm.DB) interfaces.RFPRepository {
	return &rfpRepository{db: db}
}

func (r *rfpRepository) GetByID(ctx context.Context, id string) (*models.RFP, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "rfpRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	var rfp models.RFP
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&rfp)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get rfp: %w", result.Error)
	}

	return &rfp, nil
}

func (r *rfpRepository) GetLineItems(ctx context.Context, rfpID string) ([]models.RFPLineItem, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "rfpRepository.GetLineItems")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, rfpID)

	var items []models.RFPLineItem
	if err := r.db.WithContext(ctx).
		Where("rfp_id = ?", rfpID).
		Order("created_at asc").
		Find(&items).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get rfp line items: %w", err)
	}

	return items, nil
}

// Create persists the RFP and its requested line items in one transaction
func (r *rfpRepository) Create(ctx context.Context, rfp *models.RFP, lineItems []models.RFPLineItem) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "rfpRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rfp).Error; err != nil {
			return err
		}
		for i := range lineItems {
			lineItems[i].RFPID = rfp.ID
		}
		if len(lineItems) > 0 {
			if err := tx.Create(&lineItems).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to create rfp: %w", err)
	}

	return nil
}

func (r *rfpRepository) UpdateStatus(ctx context.Context, rfpID string, status enum.RFPStatus) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "rfpRepository.UpdateStatus")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, rfpID)

	result := r.db.WithContext(ctx).
		Model(&models.RFP{}).
		Where("id = ?", rfpID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to update rfp status: %w", result.Error)
	}

	return nil
}
