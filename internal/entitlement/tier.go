// Package entitlement maps completed payments to package tiers and
// grants access exactly once per payment.
package entitlement

import (
	"strings"

	"github.com/shopspring/decimal"

	errors "github.com/metrocheck/crb-service/internal"
)

// Tier is the closed set of purchasable packages.
type Tier string

const (
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
	TierGolden   Tier = "golden"
)

var tierRank = map[Tier]int{
	TierStandard: 1,
	TierPremium:  2,
	TierGolden:   3,
}

func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// AtLeast reports whether t meets or exceeds required.
func (t Tier) AtLeast(required Tier) bool {
	return tierRank[t] >= tierRank[required]
}

func ParseTier(raw string) (Tier, *errors.AppError) {
	t := Tier(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", errors.NewValidationError("unknown package tier: "+raw, errors.ErrCodeInvalidTier)
	}
	return t, nil
}

var (
	goldenThreshold  = decimal.NewFromInt(499)
	premiumThreshold = decimal.NewFromInt(299)
)

// TierForPayment decides the tier a payment buys. The bundle label wins
// when it names a tier; amount thresholds decide otherwise. Higher tiers
// are matched first so a label like "golden premium combo" grants golden.
func TierForPayment(bundleName string, amount decimal.Decimal) Tier {
	label := strings.ToLower(bundleName)
	switch {
	case strings.Contains(label, "golden") || strings.Contains(label, "gold"):
		return TierGolden
	case strings.Contains(label, "premium"):
		return TierPremium
	case strings.Contains(label, "standard"):
		return TierStandard
	}

	switch {
	case amount.GreaterThanOrEqual(goldenThreshold):
		return TierGolden
	case amount.GreaterThanOrEqual(premiumThreshold):
		return TierPremium
	default:
		return TierStandard
	}
}

// FeatureSet gates what a report response and related surfaces expose
// for a given tier.
type FeatureSet struct {
	CreditScore           bool `json:"credit_score"`
	CRBStatus             bool `json:"crb_status"`
	LoanEligibility       bool `json:"loan_eligibility"`
	CreditHistory         bool `json:"credit_history"`
	DetailedAnalysis      bool `json:"detailed_analysis"`
	LenderRecommendations bool `json:"lender_recommendations"`
	DisputeAssistance     bool `json:"dispute_assistance"`
	PrioritySupport       bool `json:"priority_support"`
	DownloadReport        bool `json:"download_report"`
	DirectLenders         bool `json:"direct_lenders"`
}

// FeaturesFor returns the feature gates for a tier. Unknown tiers get
// nothing.
func FeaturesFor(t Tier) FeatureSet {
	base := FeatureSet{}
	if !t.Valid() {
		return base
	}
	base.CreditScore = true
	base.CRBStatus = true
	base.LoanEligibility = true
	if t.AtLeast(TierPremium) {
		base.CreditHistory = true
		base.DetailedAnalysis = true
		base.LenderRecommendations = true
	}
	if t.AtLeast(TierGolden) {
		base.DisputeAssistance = true
		base.PrioritySupport = true
		base.DownloadReport = true
		base.DirectLenders = true
	}
	return base
}

// Package describes one purchasable tier for the catalog endpoint.
type Package struct {
	Tier        Tier       `json:"id"`
	Name        string     `json:"name"`
	Price       int64      `json:"price"`
	Currency    string     `json:"currency"`
	Description string     `json:"description"`
	Features    FeatureSet `json:"features"`
}

// Catalog lists the packages in ascending price order.
func Catalog() []Package {
	return []Package{
		{
			Tier:        TierStandard,
			Name:        "Standard Package",
			Price:       99,
			Currency:    "KES",
			Description: "Basic CRB check with credit score and status",
			Features:    FeaturesFor(TierStandard),
		},
		{
			Tier:        TierPremium,
			Name:        "Premium Package",
			Price:       299,
			Currency:    "KES",
			Description: "Comprehensive CRB report with detailed analysis",
			Features:    FeaturesFor(TierPremium),
		},
		{
			Tier:        TierGolden,
			Name:        "Golden Premium Package",
			Price:       499,
			Currency:    "KES",
			Description: "Complete CRB solution with priority support and dispute assistance",
			Features:    FeaturesFor(TierGolden),
		},
	}
}

// PriceFor returns the catalog price of a tier in KES.
func PriceFor(t Tier) int64 {
	for _, pkg := range Catalog() {
		if pkg.Tier == t {
			return pkg.Price
		}
	}
	return 0
}
