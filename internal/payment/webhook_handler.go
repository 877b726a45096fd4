package payment

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	apperrors "github.com/metrocheck/crb-service/internal"
	"github.com/metrocheck/crb-service/internal/transport"
	"github.com/metrocheck/crb-service/pkg/logger"
)

const maxCallbackBodySize = 1 << 20 // 1 MiB

// WebhookHandler terminates the provider's callback endpoint: signature
// verification over the raw body, shape parsing, then reconciliation.
type WebhookHandler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	verifier *SignatureVerifier
}

func NewWebhookHandler(service ServiceAPI, verifier *SignatureVerifier) *WebhookHandler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &WebhookHandler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
		verifier:    verifier,
	}
}

func (h *WebhookHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBodySize))
	if err != nil {
		h.Logger.Error("HandleCallback: failed to read body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	signature := r.Header.Get(h.verifier.Header())
	switch h.verifier.Verify(body, signature) {
	case VerificationValid:
		// proceed
	case VerificationInvalid:
		if signature == "" {
			h.Logger.Warn("HandleCallback: missing signature")
			h.HandleServiceError(w, apperrors.ErrMissingSignature)
			return
		}
		h.Logger.Warn("HandleCallback: signature mismatch")
		h.HandleServiceError(w, apperrors.ErrInvalidSignature)
		return
	case VerificationDisabled:
		if !h.verifier.AllowsUnverified() {
			h.Logger.Error("HandleCallback: verification disabled without unverified opt-in, rejecting")
			h.HandleServiceError(w, apperrors.ErrMissingSignature)
			return
		}
		h.Logger.Warn("HandleCallback: accepting unverified callback, no secret configured")
	}

	payload, parseErr := ParseCallbackPayload(body)
	if parseErr != nil {
		h.Logger.Warn("HandleCallback: unparseable payload", "error", parseErr.Error())
		h.HandleServiceError(w, parseErr)
		return
	}

	if err := h.Service.HandleCallback(r.Context(), payload); err != nil {
		// an unknown payment is acknowledged so the provider stops
		// retrying a notification we can never match
		if errors.Is(err, apperrors.ErrPaymentNotFound) {
			h.WriteJSON(w, http.StatusOK, map[string]interface{}{
				"success": true,
				"message": "callback acknowledged, no matching payment",
			})
			return
		}
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "callback processed",
	})
}
