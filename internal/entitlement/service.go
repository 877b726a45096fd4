package entitlement

import (
	"context"
	"errors"
	"log/slog"

	apperrors "github.com/metrocheck/crb-service/internal"
	"github.com/metrocheck/crb-service/internal/core/common/phone"
	datamodel "github.com/metrocheck/crb-service/internal/core/datamodel/entitlement"
	paymentmodel "github.com/metrocheck/crb-service/internal/core/datamodel/payment"
	"github.com/metrocheck/crb-service/internal/entitlement/postgres"
)

type Repository interface {
	Create(ctx context.Context, grant *datamodel.AccessGrant) (bool, error)
	GetByPaymentID(ctx context.Context, paymentID int64) (*datamodel.AccessGrant, error)
	ActiveByPhone(ctx context.Context, phoneNumber string) (*datamodel.AccessGrant, error)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// GrantForPayment grants access for a completed payment. Calling it
// twice for the same payment is safe: the second call returns the grant
// the first one created, whichever caller won the race.
func (s *Service) GrantForPayment(ctx context.Context, p *paymentmodel.PaymentRequest) (*datamodel.AccessGrant, error) {
	tier := TierForPayment(p.BundleName, p.Amount)

	grant := &datamodel.AccessGrant{
		PhoneNumber: p.PhoneNumber,
		PackageTier: string(tier),
		PaymentID:   p.ID,
		IsActive:    true,
	}

	created, err := s.repo.Create(ctx, grant)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to grant access", err)
	}
	if !created {
		existing, getErr := s.repo.GetByPaymentID(ctx, p.ID)
		if getErr != nil {
			return nil, apperrors.NewInternalError("failed to load existing grant", getErr)
		}
		s.logger.Debug("access already granted for payment",
			"payment_id", p.ID, "tier", existing.PackageTier)
		return existing, nil
	}

	s.logger.Info("access granted",
		"payment_id", p.ID,
		"phone", p.PhoneNumber,
		"tier", tier)
	return grant, nil
}

func (s *Service) GrantByPaymentID(ctx context.Context, paymentID int64) (*datamodel.AccessGrant, error) {
	grant, err := s.repo.GetByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, apperrors.NewInternalError("failed to load grant", err)
	}
	return grant, nil
}

// AccessInfo is the answer to "what can this phone number see".
type AccessInfo struct {
	HasAccess   bool   `json:"has_access"`
	PackageTier string `json:"package_tier,omitempty"`
	PaymentID   int64  `json:"payment_id,omitempty"`
}

// CheckAccess reports the active tier for a phone number, normalizing
// the number first so all grant lookups use the canonical form.
func (s *Service) CheckAccess(ctx context.Context, rawPhone string) (*AccessInfo, error) {
	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, apperrors.NewValidationFieldError("phone", err.Error(), apperrors.ErrCodeInvalidPhone)
	}

	grant, err := s.repo.ActiveByPhone(ctx, normalized)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return &AccessInfo{HasAccess: false}, nil
		}
		return nil, apperrors.NewInternalError("failed to check access", err)
	}

	return &AccessInfo{
		HasAccess:   true,
		PackageTier: grant.PackageTier,
		PaymentID:   grant.PaymentID,
	}, nil
}

// ActiveTier returns the tier for a canonical phone number, or the
// empty string when no grant is active.
func (s *Service) ActiveTier(ctx context.Context, normalizedPhone string) (Tier, error) {
	grant, err := s.repo.ActiveByPhone(ctx, normalizedPhone)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return "", nil
		}
		return "", apperrors.NewInternalError("failed to load active grant", err)
	}
	return Tier(grant.PackageTier), nil
}

// UpgradeQuote is a priced upgrade: the target catalog package plus the
// amount to charge, which is the price difference when the caller
// already holds a lower tier.
type UpgradeQuote struct {
	Package Package
	Amount  int64
}

// ValidateUpgrade checks that target is a real tier strictly above the
// caller's current one and quotes the charge. A first purchase pays the
// full catalog price; an upgrade pays target price minus current price.
func (s *Service) ValidateUpgrade(ctx context.Context, rawPhone, target string) (*UpgradeQuote, error) {
	targetTier, parseErr := ParseTier(target)
	if parseErr != nil {
		return nil, parseErr
	}

	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, apperrors.NewValidationFieldError("phone", err.Error(), apperrors.ErrCodeInvalidPhone)
	}

	current, err := s.ActiveTier(ctx, normalized)
	if err != nil {
		return nil, err
	}

	var targetPkg *Package
	for _, pkg := range Catalog() {
		if pkg.Tier == targetTier {
			p := pkg
			targetPkg = &p
			break
		}
	}
	if targetPkg == nil {
		return nil, apperrors.NewValidationError("unknown package tier: "+target, apperrors.ErrCodeInvalidTier)
	}

	amount := targetPkg.Price
	if current != "" {
		amount = targetPkg.Price - PriceFor(current)
		if amount <= 0 {
			return nil, apperrors.ErrCannotDowngrade
		}
	}

	return &UpgradeQuote{Package: *targetPkg, Amount: amount}, nil
}
