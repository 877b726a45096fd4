// Package report produces the demonstration credit reports unlocked by a
// package purchase. Reports are synthesized once per phone number and
// served from storage afterwards, so repeated checks stay stable.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	apperrors "github.com/metrocheck/crb-service/internal"
	"github.com/metrocheck/crb-service/internal/core/common/phone"
	datamodel "github.com/metrocheck/crb-service/internal/core/datamodel/report"
	"github.com/metrocheck/crb-service/internal/entitlement"
	"github.com/metrocheck/crb-service/internal/report/postgres"
)

type Repository interface {
	Create(ctx context.Context, report *datamodel.CreditReport) error
	LatestByPhone(ctx context.Context, phoneNumber string) (*datamodel.CreditReport, error)
}

// TierChecker answers what tier a canonical phone number holds.
type TierChecker interface {
	ActiveTier(ctx context.Context, normalizedPhone string) (entitlement.Tier, error)
}

type Service struct {
	repo   Repository
	tiers  TierChecker
	logger *slog.Logger
}

func NewService(repo Repository, tiers TierChecker, logger *slog.Logger) *Service {
	return &Service{repo: repo, tiers: tiers, logger: logger}
}

// View is a report shaped for one tier: fields outside the tier's
// feature set stay nil and are omitted from the response.
type View struct {
	PhoneNumber           string                   `json:"phone_number"`
	PackageTier           string                   `json:"package_tier"`
	CreditScore           int                      `json:"credit_score"`
	CRBStatus             string                   `json:"crb_status"`
	LoanEligibility       string                   `json:"loan_eligibility"`
	CreditHistory         []datamodel.HistoryPoint `json:"credit_history,omitempty"`
	DetailedAnalysis      *datamodel.ScoreAnalysis `json:"detailed_analysis,omitempty"`
	LenderRecommendations []datamodel.LenderOffer  `json:"lender_recommendations,omitempty"`
	Features              entitlement.FeatureSet   `json:"features"`
	GeneratedAt           time.Time                `json:"generated_at"`
}

// GetReport returns the report for a phone number, gated by the active
// package tier. No active package is a hard stop.
func (s *Service) GetReport(ctx context.Context, rawPhone string) (*View, error) {
	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, apperrors.NewValidationFieldError("phone", err.Error(), apperrors.ErrCodeInvalidPhone)
	}

	tier, err := s.tiers.ActiveTier(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if tier == "" {
		return nil, apperrors.ErrTierRequired
	}

	record, err := s.getOrCreate(ctx, normalized)
	if err != nil {
		return nil, err
	}

	return s.buildView(record, tier)
}

// DownloadPDF renders the full report as a PDF. This surface is golden
// tier only.
func (s *Service) DownloadPDF(ctx context.Context, rawPhone string) ([]byte, string, error) {
	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, "", apperrors.NewValidationFieldError("phone", err.Error(), apperrors.ErrCodeInvalidPhone)
	}

	tier, err := s.tiers.ActiveTier(ctx, normalized)
	if err != nil {
		return nil, "", err
	}
	if !entitlement.FeaturesFor(tier).DownloadReport {
		return nil, "", apperrors.ErrTierRequired
	}

	record, err := s.getOrCreate(ctx, normalized)
	if err != nil {
		return nil, "", err
	}

	view, err := s.buildView(record, tier)
	if err != nil {
		return nil, "", err
	}

	pdfBytes, err := renderPDF(view)
	if err != nil {
		return nil, "", apperrors.NewInternalError("failed to render report PDF", err)
	}

	filename := fmt.Sprintf("CRB_Report_%s_%s.pdf", normalized, time.Now().UTC().Format("20060102"))
	return pdfBytes, filename, nil
}

func (s *Service) getOrCreate(ctx context.Context, normalizedPhone string) (*datamodel.CreditReport, error) {
	existing, err := s.repo.LatestByPhone(ctx, normalizedPhone)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, postgres.ErrNotFound) {
		return nil, apperrors.NewInternalError("failed to load report", err)
	}

	record, synthErr := synthesizeReport(normalizedPhone)
	if synthErr != nil {
		return nil, apperrors.NewInternalError("failed to generate report", synthErr)
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, apperrors.NewInternalError("failed to store report", err)
	}

	s.logger.Info("credit report generated",
		"phone", normalizedPhone,
		"score", record.CreditScore,
		"status", record.CRBStatus)
	return record, nil
}

func (s *Service) buildView(record *datamodel.CreditReport, tier entitlement.Tier) (*View, error) {
	features := entitlement.FeaturesFor(tier)

	view := &View{
		PhoneNumber:     record.PhoneNumber,
		PackageTier:     string(tier),
		CreditScore:     record.CreditScore,
		CRBStatus:       record.CRBStatus,
		LoanEligibility: record.LoanEligibility,
		Features:        features,
		GeneratedAt:     record.CreatedAt,
	}

	if features.CreditHistory && len(record.CreditHistory) > 0 {
		var history []datamodel.HistoryPoint
		if err := json.Unmarshal(record.CreditHistory, &history); err != nil {
			return nil, apperrors.NewInternalError("corrupt credit history document", err)
		}
		view.CreditHistory = history
	}
	if features.DetailedAnalysis && len(record.DetailedAnalysis) > 0 {
		var analysis datamodel.ScoreAnalysis
		if err := json.Unmarshal(record.DetailedAnalysis, &analysis); err != nil {
			return nil, apperrors.NewInternalError("corrupt analysis document", err)
		}
		view.DetailedAnalysis = &analysis
	}
	if features.LenderRecommendations && len(record.LenderRecommendations) > 0 {
		var offers []datamodel.LenderOffer
		if err := json.Unmarshal(record.LenderRecommendations, &offers); err != nil {
			return nil, apperrors.NewInternalError("corrupt recommendations document", err)
		}
		view.LenderRecommendations = offers
	}

	return view, nil
}

// synthesizeReport rolls a fresh demonstration report. Score bands and
// the recommendation list mirror what the product showed from day one.
func synthesizeReport(phoneNumber string) (*datamodel.CreditReport, error) {
	score := 300 + rand.IntN(551)

	var status, eligibility string
	switch {
	case score >= 700:
		status = "Good Standing"
		eligibility = "Eligible for premium loans up to KES 500,000"
	case score >= 550:
		status = "Fair Standing"
		eligibility = "Eligible for standard loans up to KES 200,000"
	case score >= 400:
		status = "Needs Improvement"
		eligibility = "Limited eligibility - small loans up to KES 50,000"
	default:
		status = "Poor Standing"
		eligibility = "Not currently eligible - work on improving score"
	}

	now := time.Now().UTC()
	history := make([]datamodel.HistoryPoint, 0, 6)
	for i := 1; i <= 6; i++ {
		month := now.AddDate(0, -i, 0)
		drift := rand.IntN(21+10*i) - 20
		history = append(history, datamodel.HistoryPoint{
			Month: month.Format("Jan 2006"),
			Score: clampScore(score - drift),
		})
	}

	analysis := datamodel.ScoreAnalysis{
		PaymentHistory:    60 + rand.IntN(41),
		CreditUtilization: 10 + rand.IntN(81),
		CreditAge:         1 + rand.IntN(15),
		CreditMix:         50 + rand.IntN(51),
		RecentInquiries:   rand.IntN(11),
	}

	offers := []datamodel.LenderOffer{
		{Name: "KCB Bank", MaxLoan: 300000, Rate: "13.5%"},
		{Name: "Equity Bank", MaxLoan: 250000, Rate: "14.0%"},
		{Name: "M-Shwari", MaxLoan: 50000, Rate: "7.5%"},
		{Name: "Tala", MaxLoan: 30000, Rate: "15.0%"},
		{Name: "Branch", MaxLoan: 70000, Rate: "12.0%"},
	}

	historyDoc, err := json.Marshal(history)
	if err != nil {
		return nil, err
	}
	analysisDoc, err := json.Marshal(analysis)
	if err != nil {
		return nil, err
	}
	offersDoc, err := json.Marshal(offers)
	if err != nil {
		return nil, err
	}

	return &datamodel.CreditReport{
		PhoneNumber:           phoneNumber,
		CreditScore:           score,
		CRBStatus:             status,
		LoanEligibility:       eligibility,
		CreditHistory:         historyDoc,
		DetailedAnalysis:      analysisDoc,
		LenderRecommendations: offersDoc,
	}, nil
}

func clampScore(score int) int {
	if score < 300 {
		return 300
	}
	if score > 850 {
		return 850
	}
	return score
}
