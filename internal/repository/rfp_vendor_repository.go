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

type rfpVendorRepository struct {
	db *gorm.DB
}

func NewRFPVendorRepository(db *gorm.DB) interfaces.RFPVendorRepository {
	return &rfpVendorRepository{db: db}
}

func (r *rfpVendorRepository) GetByID(ctx context.Context, id string) (*models.RFPVendor, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "rfpVendorRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	var link models.RFPVendor
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&link)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get rfp vendor link: %w", result.Error)
	}

	return &link, nil
}

// GetByOutboundMessageID finds the link whose outbound email carried the given
// Message-ID, restricted to the given delivery status
func (r *rfpVendorRepository) GetByOutboundMessageID(ctx context.Context, messageID string, status enum.EmailStatus) (*models.RFPVendor, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "rfpVendorRepository.GetByOutboundMessageID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var link models.RFPVendor
	result := r.db.WithContext(ctx).
		Where("email_message_id = ? AND email_status = ?", messageID, status).
		First(&link)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get rfp vendor link by message id: %w", result.Error)
	}

	return &link, nil
}

func (r *rfpVendorRepository) GetByRFPAndVendor(ctx context.Context, rfpID, vendorID string) (*models.RFPVendor, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "rfpVendorRepository.GetByRFPAndVendor")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, rfpID)

	var link models.RFPVendor
	result := r.db.WithContext(ctx).
		Where("rfp_id = ? AND vendor_id = ?", rfpID, vendorID).
		First(&link)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get rfp vendor link: %w", result.Error)
	}

	return &link, nil
}

func (r *rfpVendorRepository) Create(ctx context.Context, link *models.RFPVendor) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "rfpVendorRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to create rfp vendor link: %w", err)
	}

	return nil
}

// MarkSent records the outbound Message-ID once the RFP email went out, so
// vendor replies can be threaded back to this link
func (r *rfpVendorRepository) MarkSent(ctx context.Context, id, outboundMessageID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "rfpVendorRepository.MarkSent")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	result := r.db.WithContext(ctx).
		Model(&models.RFPVendor{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"email_status":     enum.EmailStatusSent,
			"email_message_id": outboundMessageID,
			"email_sent_at":    time.Now(),
		})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to mark rfp vendor link sent: %w", result.Error)
	}

	return nil
}
