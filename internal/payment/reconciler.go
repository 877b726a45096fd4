package payment

import (
	"context"
	"errors"

	apperrors "github.com/metrocheck/crb-service/internal"
	"github.com/metrocheck/crb-service/internal/core/common/phone"
	"github.com/metrocheck/crb-service/internal/core/datamodel/entitlement"
	datamodel "github.com/metrocheck/crb-service/internal/core/datamodel/payment"
	"github.com/metrocheck/crb-service/internal/payment/postgres"
)

const (
	sourceWebhook = "webhook"
	sourcePoll    = "poll"
)

// CheckStatus resolves a payment and, when it is still in flight,
// reconciles it against the provider. Terminal payments are answered
// from the ledger without touching the gateway.
func (s *Service) CheckStatus(ctx context.Context, req StatusCheckRequest) (*StatusCheckResponse, error) {
	record, err := s.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	if record.IsTerminal() {
		return s.buildStatusResponse(ctx, record), nil
	}

	if record.TransactionID == nil || *record.TransactionID == "" {
		// nothing to poll with yet; the webhook or a later check with a
		// correlated id will move this forward
		return s.buildStatusResponse(ctx, record), nil
	}

	external := s.pollGateway(ctx, *record.TransactionID)
	if external == nil {
		return s.buildStatusResponse(ctx, record), nil
	}

	mapped := MapExternalStatus(external.Status)
	if mapped == "" {
		s.logger.Debug("provider status not terminal, leaving payment unchanged",
			"payment_id", record.ID, "provider_status", external.Status)
		return s.buildStatusResponse(ctx, record), nil
	}

	outcome := &datamodel.Outcome{}
	if external.Receipt != "" {
		outcome.ReceiptNumber = &external.Receipt
	}
	if err := s.applyTransition(ctx, record, mapped, outcome, sourcePoll); err != nil {
		return nil, err
	}

	updated, err := s.repo.FindByID(ctx, record.ID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to reload payment", err)
	}
	return s.buildStatusResponse(ctx, updated), nil
}

type polledStatus struct {
	Status  string
	Receipt string
}

// pollGateway runs the two-tier status query: direct retrieval first,
// then a scan of the transaction listing when retrieval fails for any
// reason. Returning nil means the provider gave no usable answer.
func (s *Service) pollGateway(ctx context.Context, transactionID string) *polledStatus {
	status, err := s.gateway.Retrieve(ctx, transactionID)
	if err == nil && status != nil {
		return &polledStatus{Status: status.Status, Receipt: status.Receipt}
	}
	if err != nil {
		s.logger.Warn("direct status retrieval failed, falling back to listing",
			"transaction_id", transactionID, "error", err)
	}

	listing, listErr := s.gateway.ListTransactions(ctx)
	if listErr != nil {
		s.logger.Warn("transaction listing failed",
			"transaction_id", transactionID, "error", listErr)
		return nil
	}
	for _, entry := range listing {
		if entry.TransactionID == transactionID {
			return &polledStatus{Status: entry.Status, Receipt: entry.Receipt}
		}
	}
	return nil
}

// HandleCallback applies a parsed webhook notification to the ledger.
// Payout notifications are acknowledged without any state change.
func (s *Service) HandleCallback(ctx context.Context, payload *CallbackPayload) error {
	if payload.IsPayout() {
		s.logger.Info("payout notification acknowledged", "event", payload.Event)
		return nil
	}

	switch payload.Kind {
	case CallbackSTK:
		return s.handleSTKCallback(ctx, payload.STK)
	case CallbackEvent:
		return s.handleEventCallback(ctx, payload)
	default:
		return apperrors.NewValidationError("unrecognized callback shape", apperrors.ErrCodeInvalidCallback)
	}
}

func (s *Service) handleSTKCallback(ctx context.Context, stk *STKCallback) error {
	record, err := s.repo.FindByCheckoutID(ctx, stk.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			s.logger.Warn("stk callback for unknown checkout request",
				"checkout_request_id", stk.CheckoutRequestID)
			return apperrors.ErrPaymentNotFound
		}
		return apperrors.NewInternalError("failed to look up payment for callback", err)
	}

	newStatus := datamodel.StatusFailed
	if stk.ResultCode == 0 {
		newStatus = datamodel.StatusCompleted
	}

	resultCode := stk.ResultCode
	outcome := &datamodel.Outcome{
		ResultCode:        &resultCode,
		ResultDescription: &stk.ResultDesc,
	}
	if receipt := stk.Receipt(); receipt != "" {
		outcome.ReceiptNumber = &receipt
	}

	return s.applyTransition(ctx, record, newStatus, outcome, sourceWebhook)
}

func (s *Service) handleEventCallback(ctx context.Context, payload *CallbackPayload) error {
	data := payload.Data

	record, err := s.resolveCallbackTarget(ctx, data)
	if err != nil {
		return err
	}

	if record.TransactionID == nil && data.TransactionID != "" {
		if err := s.repo.AttachCorrelation(ctx, record.ID, "", data.TransactionID); err != nil {
			s.logger.Error("failed to attach transaction id from callback",
				"payment_id", record.ID, "error", err)
		}
	}

	mapped := MapExternalStatus(data.Status)
	if mapped == "" {
		mapped = MapEventStatus(payload.Event)
	}
	if mapped == "" {
		s.logger.Info("callback status not terminal, acknowledged without change",
			"payment_id", record.ID, "provider_status", data.Status, "event", payload.Event)
		return nil
	}

	outcome := &datamodel.Outcome{}
	if data.Receipt != "" {
		outcome.ReceiptNumber = &data.Receipt
	}
	if mapped == datamodel.StatusFailed && data.FailureReason != "" {
		outcome.ResultDescription = &data.FailureReason
	}

	return s.applyTransition(ctx, record, mapped, outcome, sourceWebhook)
}

// resolveCallbackTarget finds the payment a webhook refers to. Checkout
// request id wins over transaction id because it is assigned at
// initiation and therefore always present on the row.
func (s *Service) resolveCallbackTarget(ctx context.Context, data *EventData) (*datamodel.PaymentRequest, error) {
	if data.CheckoutRequestID != "" {
		if record, err := s.repo.FindByCheckoutID(ctx, data.CheckoutRequestID); err == nil {
			return record, nil
		} else if !errors.Is(err, postgres.ErrNotFound) {
			return nil, apperrors.NewInternalError("failed to look up payment for callback", err)
		}
	}
	if data.TransactionID != "" {
		if record, err := s.repo.FindByTransactionID(ctx, data.TransactionID); err == nil {
			return record, nil
		} else if !errors.Is(err, postgres.ErrNotFound) {
			return nil, apperrors.NewInternalError("failed to look up payment for callback", err)
		}
	}
	if data.Phone != "" {
		lookupPhone := data.Phone
		if normalized, normErr := phone.Normalize(data.Phone); normErr == nil {
			lookupPhone = normalized
		}
		if record, err := s.repo.FindByPhoneMostRecent(ctx, lookupPhone); err == nil {
			return record, nil
		} else if !errors.Is(err, postgres.ErrNotFound) {
			return nil, apperrors.NewInternalError("failed to look up payment for callback", err)
		}
	}

	s.logger.Warn("callback matched no payment",
		"checkout_request_id", data.CheckoutRequestID,
		"transaction_id", data.TransactionID)
	return nil, apperrors.ErrPaymentNotFound
}

// applyTransition performs the guarded status update and, on a completed
// transition that actually applied, grants access synchronously before
// publishing events. A transition that did not apply is a no-op: the
// payment already reached a terminal state through the other path.
func (s *Service) applyTransition(ctx context.Context, record *datamodel.PaymentRequest, newStatus string, outcome *datamodel.Outcome, source string) error {
	applied, err := s.repo.TransitionStatus(ctx, record.ID, newStatus, outcome)
	if err != nil {
		return apperrors.NewInternalError("failed to update payment status", err)
	}
	if !applied {
		s.logger.Info("status transition skipped, payment already terminal",
			"payment_id", record.ID, "attempted_status", newStatus, "source", source)
		return nil
	}

	s.logger.Info("payment status updated",
		"payment_id", record.ID,
		"status", newStatus,
		"source", source)

	switch newStatus {
	case datamodel.StatusCompleted:
		receipt := ""
		if outcome != nil && outcome.ReceiptNumber != nil {
			receipt = *outcome.ReceiptNumber
		}
		grant, grantErr := s.granter.GrantForPayment(ctx, record)
		if grantErr != nil {
			s.logger.Error("failed to grant access for completed payment",
				"payment_id", record.ID, "error", grantErr)
		}
		s.publishCompleted(ctx, record, receipt, source)
		if grantErr == nil {
			s.publishAccessGranted(ctx, grant)
		}
	case datamodel.StatusFailed:
		reason := ""
		if outcome != nil && outcome.ResultDescription != nil {
			reason = *outcome.ResultDescription
		}
		s.publishFailed(ctx, record.ID, record.PhoneNumber, reason, source)
	}

	return nil
}

func (s *Service) buildStatusResponse(ctx context.Context, record *datamodel.PaymentRequest) *StatusCheckResponse {
	resp := &StatusCheckResponse{
		Success:    true,
		PaymentID:  record.ID,
		Status:     record.Status,
		Amount:     record.Amount,
		BundleName: record.BundleName,
	}
	if record.CheckoutRequestID != nil {
		resp.CheckoutRequestID = *record.CheckoutRequestID
	}
	if record.TransactionID != nil {
		resp.TransactionID = *record.TransactionID
	}
	if record.ReceiptNumber != nil {
		resp.ReceiptNumber = *record.ReceiptNumber
	}
	if record.ResultDescription != nil {
		resp.ResultDescription = *record.ResultDescription
	}

	if record.Status == datamodel.StatusCompleted {
		if grant := s.lookupGrant(ctx, record.ID); grant != nil {
			resp.AccessGranted = true
			resp.PackageTier = grant.PackageTier
		}
	}
	return resp
}

func (s *Service) lookupGrant(ctx context.Context, paymentID int64) *entitlement.AccessGrant {
	grant, err := s.granter.GrantByPaymentID(ctx, paymentID)
	if err != nil {
		s.logger.Debug("no access grant for payment", "payment_id", paymentID, "error", err)
		return nil
	}
	return grant
}
