package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	datamodel "github.com/metrocheck/crb-service/internal/core/datamodel/lender"
)

type ConnectionRepository struct {
	db *gorm.DB
}

func NewConnectionRepository(db *gorm.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

func (r *ConnectionRepository) Create(ctx context.Context, conn *datamodel.Connection) error {
	if err := r.db.WithContext(ctx).Create(conn).Error; err != nil {
		return fmt.Errorf("failed to create lender connection: %w", err)
	}
	return nil
}

// ByPhone returns all connection requests a phone number has made,
// newest first.
func (r *ConnectionRepository) ByPhone(ctx context.Context, phoneNumber string) ([]datamodel.Connection, error) {
	var connections []datamodel.Connection
	err := r.db.WithContext(ctx).
		Where("phone_number = ?", phoneNumber).
		Order("created_at DESC, id DESC").
		Find(&connections).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list lender connections: %w", err)
	}
	return connections, nil
}
