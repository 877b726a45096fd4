package entitlement

import "time"

// AccessGrant records that a phone number paid for a package tier. The
// unique index on payment_id is the idempotency backstop: at most one
// grant may ever exist for a payment, no matter how many reconciliation
// passes observe the same completed payment.
type AccessGrant struct {
	ID          int64      `json:"id" gorm:"primaryKey"`
	PhoneNumber string     `json:"phone_number" gorm:"column:phone_number;not null;index"`
	PackageTier string     `json:"package_tier" gorm:"column:package_tier;not null"`
	PaymentID   int64      `json:"payment_id" gorm:"column:payment_id;not null;uniqueIndex"`
	IsActive    bool       `json:"is_active" gorm:"column:is_active;default:true"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at"`
	CreatedAt   time.Time  `json:"created_at" gorm:"column:created_at"`
}

func (AccessGrant) TableName() string {
	return "access_grants"
}
