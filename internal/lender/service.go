package lender

import (
	"context"
	"log/slog"

	apperrors "github.com/metrocheck/crb-service/internal"
	"github.com/metrocheck/crb-service/internal/core/common/phone"
	datamodel "github.com/metrocheck/crb-service/internal/core/datamodel/lender"
	"github.com/metrocheck/crb-service/internal/entitlement"
)

type Repository interface {
	Create(ctx context.Context, conn *datamodel.Connection) error
	ByPhone(ctx context.Context, phoneNumber string) ([]datamodel.Connection, error)
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

// ListPartners returns the directory. Visible to everyone; connecting is
// what requires the golden tier.
func (s *Service) ListPartners(ctx context.Context) []Partner {
	return Partners()
}

// Connect records a connection request to a lending partner. Direct
// lender access is a golden-tier feature.
func (s *Service) Connect(ctx context.Context, rawPhone, lenderID string) (*datamodel.Connection, error) {
	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, apperrors.NewValidationFieldError("phone", err.Error(), apperrors.ErrCodeInvalidPhone)
	}

	partner, found := PartnerByID(lenderID)
	if !found {
		return nil, apperrors.ErrLenderNotFound
	}

	tier, err := s.tiers.ActiveTier(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if !entitlement.FeaturesFor(tier).DirectLenders {
		return nil, apperrors.ErrTierRequired
	}

	conn := &datamodel.Connection{
		PhoneNumber: normalized,
		LenderID:    partner.ID,
		LenderName:  partner.Name,
		Status:      "pending",
	}
	if err := s.repo.Create(ctx, conn); err != nil {
		return nil, apperrors.NewInternalError("failed to record lender connection", err)
	}

	s.logger.Info("lender connection requested",
		"phone", normalized,
		"lender", partner.ID)
	return conn, nil
}
