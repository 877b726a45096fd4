// Package payment owns the push-payment lifecycle: initiation against
// the mobile-money gateway, webhook ingestion, status reconciliation and
// the hand-off to entitlement granting.
package payment

import (
	"context"
	"log/slog"

	errors "github.com/metrocheck/crb-service/internal"
	"github.com/metrocheck/crb-service/internal/core/common/phone"
	"github.com/metrocheck/crb-service/internal/core/datamodel/entitlement"
	gatewaytypes "github.com/metrocheck/crb-service/internal/core/datamodel/gateway"
	datamodel "github.com/metrocheck/crb-service/internal/core/datamodel/payment"
	"github.com/metrocheck/crb-service/internal/core/events"
)

type Repository interface {
	Create(ctx context.Context, payment *datamodel.PaymentRequest) error
	AttachCorrelation(ctx context.Context, paymentID int64, checkoutRequestID, transactionID string) error
	TransitionStatus(ctx context.Context, paymentID int64, newStatus string, outcome *datamodel.Outcome) (bool, error)
	FindByID(ctx context.Context, id int64) (*datamodel.PaymentRequest, error)
	FindByCheckoutID(ctx context.Context, checkoutRequestID string) (*datamodel.PaymentRequest, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*datamodel.PaymentRequest, error)
	FindByPhoneMostRecent(ctx context.Context, phoneNumber string) (*datamodel.PaymentRequest, error)
	MostRecentNonFailed(ctx context.Context) (*datamodel.PaymentRequest, error)
	List(ctx context.Context, limit int) ([]datamodel.PaymentRequest, error)
}

// Gateway is the slice of the provider client this package needs. The
// concrete client is injected so tests can substitute their own.
type Gateway interface {
	InitiateSTKPush(ctx context.Context, phoneE164 string, amount int64) (*gatewaytypes.STKPushResult, error)
	Retrieve(ctx context.Context, transactionID string) (*gatewaytypes.TransactionStatus, error)
	ListTransactions(ctx context.Context) ([]gatewaytypes.TransactionStatus, error)
}

// AccessGranter is the entitlement side of a completed payment. Granting
// is idempotent per payment id.
type AccessGranter interface {
	GrantForPayment(ctx context.Context, p *datamodel.PaymentRequest) (*entitlement.AccessGrant, error)
	GrantByPaymentID(ctx context.Context, paymentID int64) (*entitlement.AccessGrant, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Service struct {
	repo    Repository
	gateway Gateway
	granter AccessGranter
	bus     EventPublisher
	logger  *slog.Logger
}

func NewService(repo Repository, gw Gateway, granter AccessGranter, bus EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		gateway: gw,
		granter: granter,
		bus:     bus,
		logger:  logger,
	}
}

// Initiate validates the request, records a pending payment and asks the
// gateway to prompt the payer. A gateway failure marks the payment failed
// with the provider message preserved verbatim.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	normalizedPhone, err := phone.Normalize(req.Phone)
	if err != nil {
		return nil, errors.NewValidationFieldError("phone", err.Error(), errors.ErrCodeInvalidPhone)
	}

	record := &datamodel.PaymentRequest{
		PhoneNumber: normalizedPhone,
		Amount:      req.Amount,
		BundleName:  req.BundleName,
		Status:      datamodel.StatusPending,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, errors.NewInternalError("failed to record payment", err)
	}

	s.logger.Info("payment initiated",
		"payment_id", record.ID,
		"phone", normalizedPhone,
		"amount", req.Amount.String(),
		"bundle", req.BundleName)

	result, gwErr := s.gateway.InitiateSTKPush(ctx, "+"+normalizedPhone, req.Amount.IntPart())
	if gwErr != nil {
		description := gwErr.Error()
		outcome := &datamodel.Outcome{ResultDescription: &description}
		if _, trErr := s.repo.TransitionStatus(ctx, record.ID, datamodel.StatusFailed, outcome); trErr != nil {
			s.logger.Error("failed to mark payment failed after gateway error",
				"payment_id", record.ID, "error", trErr)
		}
		s.publishFailed(ctx, record.ID, normalizedPhone, description, "initiate")
		return nil, errors.NewExternalError("payment initiation failed", errors.ErrCodeGatewayRejected, gwErr)
	}

	if err := s.repo.AttachCorrelation(ctx, record.ID, result.CheckoutRequestID, result.TransactionID); err != nil {
		return nil, errors.NewInternalError("failed to attach gateway identifiers", err)
	}

	return &InitiateResponse{
		Success:           true,
		PaymentID:         record.ID,
		CheckoutRequestID: result.CheckoutRequestID,
		TransactionID:     result.TransactionID,
		Status:            datamodel.StatusProcessing,
		Message:           "STK push sent. Enter your M-Pesa PIN on your phone to complete payment.",
	}, nil
}

// ListPayments returns the most recent payments for the admin surface.
func (s *Service) ListPayments(ctx context.Context, limit int) (*ListResponse, error) {
	payments, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, errors.NewInternalError("failed to list payments", err)
	}

	entries := make([]PaymentSummaryEntry, 0, len(payments))
	for _, p := range payments {
		entry := PaymentSummaryEntry{
			ID:          p.ID,
			PhoneNumber: p.PhoneNumber,
			Amount:      p.Amount,
			BundleName:  p.BundleName,
			Status:      p.Status,
			CreatedAt:   p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if p.CheckoutRequestID != nil {
			entry.CheckoutRequestID = *p.CheckoutRequestID
		}
		if p.TransactionID != nil {
			entry.TransactionID = *p.TransactionID
		}
		if p.ReceiptNumber != nil {
			entry.ReceiptNumber = *p.ReceiptNumber
		}
		entries = append(entries, entry)
	}

	return &ListResponse{Success: true, Count: len(entries), Payments: entries}, nil
}

func (s *Service) publishCompleted(ctx context.Context, p *datamodel.PaymentRequest, receipt, source string) {
	if s.bus == nil {
		return
	}
	transactionID := ""
	if p.TransactionID != nil {
		transactionID = *p.TransactionID
	}
	event := events.NewPaymentCompletedEvent(p.ID, p.PhoneNumber, p.Amount.String(), receipt, source, transactionID)
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish payment completed event", "payment_id", p.ID, "error", err)
	}
}

func (s *Service) publishFailed(ctx context.Context, paymentID int64, phoneNumber, reason, source string) {
	if s.bus == nil {
		return
	}
	event := events.NewPaymentFailedEvent(paymentID, phoneNumber, reason, source)
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish payment failed event", "payment_id", paymentID, "error", err)
	}
}

func (s *Service) publishAccessGranted(ctx context.Context, grant *entitlement.AccessGrant) {
	if s.bus == nil || grant == nil {
		return
	}
	event := events.NewAccessGrantedEvent(grant.PaymentID, grant.PhoneNumber, grant.PackageTier)
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish access granted event", "payment_id", grant.PaymentID, "error", err)
	}
}
