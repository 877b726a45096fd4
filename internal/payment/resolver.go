package payment

import (
	"context"
	"errors"

	apperrors "github.com/metrocheck/crb-service/internal"
	"github.com/metrocheck/crb-service/internal/core/common/phone"
	datamodel "github.com/metrocheck/crb-service/internal/core/datamodel/payment"
	"github.com/metrocheck/crb-service/internal/payment/postgres"
)

// Resolve locates the payment a status check refers to. Identifier
// precedence is fixed: payment id, then checkout request id, then
// transaction id, then the newest payment for the phone number. A miss
// on one identifier falls through to the next; clients often echo back
// a stale checkout id alongside a transaction id that does match. With
// no identifier at all, the newest non-failed payment is assumed; that
// fallback exists for clients that poll right after initiating.
func (s *Service) Resolve(ctx context.Context, req StatusCheckRequest) (*datamodel.PaymentRequest, error) {
	req.Normalize()

	if !req.HasIdentifier() {
		return s.resolveLookup(s.repo.MostRecentNonFailed(ctx))
	}

	if req.PaymentID != nil {
		found, err := s.tryLookup(s.repo.FindByID(ctx, *req.PaymentID))
		if found != nil || err != nil {
			return found, err
		}
	}
	if req.CheckoutRequestID != "" {
		found, err := s.tryLookup(s.repo.FindByCheckoutID(ctx, req.CheckoutRequestID))
		if found != nil || err != nil {
			return found, err
		}
	}
	if req.TransactionID != "" {
		found, err := s.tryLookup(s.repo.FindByTransactionID(ctx, req.TransactionID))
		if found != nil || err != nil {
			return found, err
		}
	}
	if req.Phone != "" {
		lookupPhone := req.Phone
		if normalized, err := phone.Normalize(req.Phone); err == nil {
			lookupPhone = normalized
		}
		found, err := s.tryLookup(s.repo.FindByPhoneMostRecent(ctx, lookupPhone))
		if found != nil || err != nil {
			return found, err
		}
	}

	return nil, apperrors.ErrPaymentNotFound
}

// tryLookup reports a miss as (nil, nil) so the caller can fall through
// to the next identifier.
func (s *Service) tryLookup(p *datamodel.PaymentRequest, err error) (*datamodel.PaymentRequest, error) {
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.NewInternalError("failed to resolve payment", err)
	}
	return p, nil
}

func (s *Service) resolveLookup(p *datamodel.PaymentRequest, err error) (*datamodel.PaymentRequest, error) {
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, apperrors.NewInternalError("failed to resolve payment", err)
	}
	return p, nil
}
