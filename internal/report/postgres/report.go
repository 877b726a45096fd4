package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	datamodel "github.com/metrocheck/crb-service/internal/core/datamodel/report"
)

var ErrNotFound = errors.New("credit report not found")

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Create(ctx context.Context, report *datamodel.CreditReport) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("failed to create credit report: %w", err)
	}
	return nil
}

// LatestByPhone returns the newest report for a phone number.
func (r *ReportRepository) LatestByPhone(ctx context.Context, phoneNumber string) (*datamodel.CreditReport, error) {
	var report datamodel.CreditReport
	err := r.db.WithContext(ctx).
		Where("phone_number = ?", phoneNumber).
		Order("created_at DESC, id DESC").
		First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find report for phone: %w", err)
	}
	return &report, nil
}
