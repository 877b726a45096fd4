package lender

import "time"

// Connection records that a golden-tier subscriber asked to be put in
// touch with a lending partner.
type Connection struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	PhoneNumber string    `json:"phone_number" gorm:"column:phone_number;not null;index"`
	LenderID    string    `json:"lender_id" gorm:"column:lender_id;not null"`
	LenderName  string    `json:"lender_name" gorm:"column:lender_name;not null"`
	Status      string    `json:"status" gorm:"column:status;default:pending"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Connection) TableName() string {
	return "lender_connections"
}
