package report

import (
	"encoding/json"
	"time"
)

// CreditReport stores the synthetic demonstration report generated for a
// phone number. History, analysis and recommendations are stored as JSON
// documents the way the gateway response was in earlier schemas.
type CreditReport struct {
	ID                    int64           `json:"id" gorm:"primaryKey"`
	PhoneNumber           string          `json:"phone_number" gorm:"column:phone_number;not null;index"`
	CreditScore           int             `json:"credit_score" gorm:"column:credit_score"`
	CRBStatus             string          `json:"crb_status" gorm:"column:crb_status"`
	LoanEligibility       string          `json:"loan_eligibility" gorm:"column:loan_eligibility"`
	CreditHistory         json.RawMessage `json:"credit_history,omitempty" gorm:"column:credit_history;type:jsonb"`
	DetailedAnalysis      json.RawMessage `json:"detailed_analysis,omitempty" gorm:"column:detailed_analysis;type:jsonb"`
	LenderRecommendations json.RawMessage `json:"lender_recommendations,omitempty" gorm:"column:lender_recommendations;type:jsonb"`
	CreatedAt             time.Time       `json:"created_at" gorm:"column:created_at"`
}

func (CreditReport) TableName() string {
	return "credit_reports"
}

// HistoryPoint is one month of score history inside CreditHistory.
type HistoryPoint struct {
	Month string `json:"month"`
	Score int    `json:"score"`
}

// ScoreAnalysis is the decoded form of DetailedAnalysis.
type ScoreAnalysis struct {
	PaymentHistory    int `json:"payment_history"`
	CreditUtilization int `json:"credit_utilization"`
	CreditAge         int `json:"credit_age"`
	CreditMix         int `json:"credit_mix"`
	RecentInquiries   int `json:"recent_inquiries"`
}

// LenderOffer is one entry of LenderRecommendations.
type LenderOffer struct {
	Name    string `json:"name"`
	MaxLoan int    `json:"max_loan"`
	Rate    string `json:"rate"`
}
