package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/procurehq/rfpstack/interfaces"
	"github.com/procurehq/rfpstack/internal/models"
	"github.com/procurehq/rfpstack/internal/tracing"
)

type vendorRepository struct {
	db *gorm.DB
}

func NewVendorRepository(db *gorm.DB) interfaces.VendorRepository {
	return &vendorRepository{db: db}
}

func (r *vendorRepository) GetByID(ctx context.Context, id string) (*models.Vendor, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "vendorRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	var vendor models.Vendor
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&vendor)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get vendor: %w", result.Error)
	}

	return &vendor, nil
}

// GetByEmail looks up a registered vendor by its contact address, case-insensitive
func (r *vendorRepository) GetByEmail(ctx context.Context, email string) (*models.Vendor, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "vendorRepository.GetByEmail")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var vendor models.Vendor
	result := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&vendor)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get vendor by email: %w", result.Error)
	}

	return &vendor, nil
}

func (r *vendorRepository) Create(ctx context.Context, vendor *models.Vendor) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "vendorRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if err := r.db.WithContext(ctx).Create(vendor).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to create vendor: %w", err)
	}

	return nil
}
