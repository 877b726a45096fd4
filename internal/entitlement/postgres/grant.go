// Package postgres persists access grants. Idempotency under concurrent
// granting rests on the unique index over payment_id plus an insert that
// does nothing on conflict.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	datamodel "github.com/metrocheck/crb-service/internal/core/datamodel/entitlement"
)

var ErrNotFound = errors.New("access grant not found")

type GrantRepository struct {
	db *gorm.DB
}

func NewGrantRepository(db *gorm.DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// Create inserts the grant unless one already exists for the same
// payment. The returned flag reports whether this call inserted the row.
func (r *GrantRepository) Create(ctx context.Context, grant *datamodel.AccessGrant) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_id"}},
			DoNothing: true,
		}).
		Create(grant)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create access grant: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *GrantRepository) GetByPaymentID(ctx context.Context, paymentID int64) (*datamodel.AccessGrant, error) {
	var grant datamodel.AccessGrant
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		First(&grant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find grant for payment %d: %w", paymentID, err)
	}
	return &grant, nil
}

// ActiveByPhone returns the newest active grant for a phone number.
func (r *GrantRepository) ActiveByPhone(ctx context.Context, phoneNumber string) (*datamodel.AccessGrant, error) {
	var grant datamodel.AccessGrant
	err := r.db.WithContext(ctx).
		Where("phone_number = ? AND is_active = ?", phoneNumber, true).
		Order("created_at DESC, id DESC").
		First(&grant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find active grant for phone: %w", err)
	}
	return &grant, nil
}
