// Package postgres implements payment persistence on GORM. Status
// transitions are guarded at the SQL level so that concurrent webhook
// and poll updates cannot rewrite a terminal state.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	datamodel "github.com/metrocheck/crb-service/internal/core/datamodel/payment"
)

var ErrNotFound = errors.New("payment not found")

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *datamodel.PaymentRequest) error {
	if payment.Status == "" {
		payment.Status = datamodel.StatusPending
	}
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// AttachCorrelation records the gateway's identifiers on a freshly
// initiated payment and moves it to processing. Identifiers are
// write-once: each UPDATE carries an IS NULL guard, so a concurrent
// attach cannot overwrite a column that was set between read and write.
func (r *PaymentRepository) AttachCorrelation(ctx context.Context, paymentID int64, checkoutRequestID, transactionID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current datamodel.PaymentRequest
		if err := tx.First(&current, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load payment %d: %w", paymentID, err)
		}

		if checkoutRequestID != "" {
			err := tx.Model(&datamodel.PaymentRequest{}).
				Where("id = ? AND checkout_request_id IS NULL", paymentID).
				Update("checkout_request_id", checkoutRequestID).Error
			if err != nil {
				return fmt.Errorf("failed to attach checkout id to payment %d: %w", paymentID, err)
			}
		}
		if transactionID != "" {
			err := tx.Model(&datamodel.PaymentRequest{}).
				Where("id = ? AND transaction_id IS NULL", paymentID).
				Update("transaction_id", transactionID).Error
			if err != nil {
				return fmt.Errorf("failed to attach transaction id to payment %d: %w", paymentID, err)
			}
		}

		err := tx.Model(&datamodel.PaymentRequest{}).
			Where("id = ? AND status = ?", paymentID, datamodel.StatusPending).
			Update("status", datamodel.StatusProcessing).Error
		if err != nil {
			return fmt.Errorf("failed to mark payment %d processing: %w", paymentID, err)
		}
		return nil
	})
}

// TransitionStatus applies a guarded status update. The WHERE clause only
// matches rows whose current status may move forward to newStatus, so
// the returned applied flag is false when the row is missing, already
// terminal, or the move would not be a forward step; callers that need
// to distinguish load the row first.
func (r *PaymentRepository) TransitionStatus(ctx context.Context, paymentID int64, newStatus string, outcome *datamodel.Outcome) (bool, error) {
	var fromStates []string
	for _, s := range []string{datamodel.StatusPending, datamodel.StatusProcessing} {
		if datamodel.IsForwardTransition(s, newStatus) {
			fromStates = append(fromStates, s)
		}
	}
	if len(fromStates) == 0 {
		return false, nil
	}

	updates := map[string]interface{}{
		"status": newStatus,
	}
	if outcome != nil {
		if outcome.ResultCode != nil {
			updates["result_code"] = *outcome.ResultCode
		}
		if outcome.ResultDescription != nil {
			updates["result_description"] = *outcome.ResultDescription
		}
		if outcome.ReceiptNumber != nil {
			updates["mpesa_receipt_number"] = *outcome.ReceiptNumber
		}
	}

	result := r.db.WithContext(ctx).
		Model(&datamodel.PaymentRequest{}).
		Where("id = ? AND status IN ?", paymentID, fromStates).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to transition payment %d to %s: %w", paymentID, newStatus, result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id int64) (*datamodel.PaymentRequest, error) {
	var payment datamodel.PaymentRequest
	if err := r.db.WithContext(ctx).First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find payment %d: %w", id, err)
	}
	return &payment, nil
}

func (r *PaymentRepository) FindByCheckoutID(ctx context.Context, checkoutRequestID string) (*datamodel.PaymentRequest, error) {
	var payment datamodel.PaymentRequest
	err := r.db.WithContext(ctx).
		Where("checkout_request_id = ?", checkoutRequestID).
		Order("created_at DESC, id DESC").
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find payment by checkout id: %w", err)
	}
	return &payment, nil
}

func (r *PaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*datamodel.PaymentRequest, error) {
	var payment datamodel.PaymentRequest
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at DESC, id DESC").
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find payment by transaction id: %w", err)
	}
	return &payment, nil
}

// FindByPhoneMostRecent returns the newest payment for a phone number
// regardless of status.
func (r *PaymentRepository) FindByPhoneMostRecent(ctx context.Context, phoneNumber string) (*datamodel.PaymentRequest, error) {
	var payment datamodel.PaymentRequest
	err := r.db.WithContext(ctx).
		Where("phone_number = ?", phoneNumber).
		Order("created_at DESC, id DESC").
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find payment by phone: %w", err)
	}
	return &payment, nil
}

// MostRecentNonFailed is the no-identifier fallback: the newest payment
// that is pending, processing or completed.
func (r *PaymentRepository) MostRecentNonFailed(ctx context.Context) (*datamodel.PaymentRequest, error) {
	var payment datamodel.PaymentRequest
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{datamodel.StatusPending, datamodel.StatusProcessing, datamodel.StatusCompleted}).
		Order("created_at DESC, id DESC").
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find most recent payment: %w", err)
	}
	return &payment, nil
}

// List returns the newest payments, capped at limit (100 when zero).
func (r *PaymentRepository) List(ctx context.Context, limit int) ([]datamodel.PaymentRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	var payments []datamodel.PaymentRequest
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}
