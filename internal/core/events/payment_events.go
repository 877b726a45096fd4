package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentCompleted = "payment.completed"
	EventTypePaymentFailed    = "payment.failed"
	EventTypeAccessGranted    = "access.granted"
)

type PaymentCompletedEvent struct {
	BaseEvent
	PaymentID     int64  `json:"payment_id"`
	PhoneNumber   string `json:"phone_number"`
	Amount        string `json:"amount"`
	Receipt       string `json:"receipt"`
	Source        string `json:"source"` // "webhook" or "poll"
	TransactionID string `json:"transaction_id"`
}

func NewPaymentCompletedEvent(paymentID int64, phoneNumber, amount, receipt, source, transactionID string) *PaymentCompletedEvent {
	return &PaymentCompletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentCompleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":     paymentID,
				"phone_number":   phoneNumber,
				"amount":         amount,
				"receipt":        receipt,
				"source":         source,
				"transaction_id": transactionID,
			},
		},
		PaymentID:     paymentID,
		PhoneNumber:   phoneNumber,
		Amount:        amount,
		Receipt:       receipt,
		Source:        source,
		TransactionID: transactionID,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	PaymentID   int64  `json:"payment_id"`
	PhoneNumber string `json:"phone_number"`
	Reason      string `json:"reason"`
	Source      string `json:"source"`
}

func NewPaymentFailedEvent(paymentID int64, phoneNumber, reason, source string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":   paymentID,
				"phone_number": phoneNumber,
				"reason":       reason,
				"source":       source,
			},
		},
		PaymentID:   paymentID,
		PhoneNumber: phoneNumber,
		Reason:      reason,
		Source:      source,
	}
}

type AccessGrantedEvent struct {
	BaseEvent
	PaymentID   int64  `json:"payment_id"`
	PhoneNumber string `json:"phone_number"`
	PackageTier string `json:"package_tier"`
}

func NewAccessGrantedEvent(paymentID int64, phoneNumber, packageTier string) *AccessGrantedEvent {
	return &AccessGrantedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeAccessGranted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":   paymentID,
				"phone_number": phoneNumber,
				"package_tier": packageTier,
			},
		},
		PaymentID:   paymentID,
		PhoneNumber: phoneNumber,
		PackageTier: packageTier,
	}
}
