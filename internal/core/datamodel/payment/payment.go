package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status lifecycle: pending -> processing -> {completed, failed}.
// Terminal states are write-once; TransitionStatus in the repository
// enforces this at the storage level.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type PaymentRequest struct {
	ID                int64           `json:"id" gorm:"primaryKey"`
	PhoneNumber       string          `json:"phone_number" gorm:"column:phone_number;not null;index"`
	Amount            decimal.Decimal `json:"amount" gorm:"column:amount;type:numeric(12,2);not null"`
	BundleName        string          `json:"bundle_name" gorm:"column:bundle_name;not null"`
	CheckoutRequestID *string         `json:"checkout_request_id,omitempty" gorm:"column:checkout_request_id;index"`
	TransactionID     *string         `json:"transaction_id,omitempty" gorm:"column:transaction_id;index"`
	ReceiptNumber     *string         `json:"mpesa_receipt_number,omitempty" gorm:"column:mpesa_receipt_number"`
	Status            string          `json:"status" gorm:"column:status;default:pending"`
	ResultCode        *int            `json:"result_code,omitempty" gorm:"column:result_code"`
	ResultDescription *string         `json:"result_description,omitempty" gorm:"column:result_description"`
	CreatedAt         time.Time       `json:"created_at" gorm:"column:created_at"`
	UpdatedAt         time.Time       `json:"updated_at" gorm:"column:updated_at"`
}

func (PaymentRequest) TableName() string {
	return "payments"
}

func (p *PaymentRequest) IsTerminal() bool {
	return IsTerminalStatus(p.Status)
}

func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// IsForwardTransition reports whether moving from current to next respects
// the monotonic lifecycle. Terminal states accept nothing; pending may
// advance to processing or a terminal state; processing only to a
// terminal state.
func IsForwardTransition(current, next string) bool {
	if IsTerminalStatus(current) {
		return false
	}
	switch next {
	case StatusCompleted, StatusFailed:
		return true
	case StatusProcessing:
		return current == StatusPending
	default:
		return false
	}
}

// Outcome carries the metadata written on a terminal transition.
type Outcome struct {
	ResultCode        *int
	ResultDescription *string
	ReceiptNumber     *string
}
