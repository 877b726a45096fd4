package payment

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/metrocheck/crb-service/internal/transport"
	"github.com/metrocheck/crb-service/pkg/logger"
)

type ServiceAPI interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error)
	CheckStatus(ctx context.Context, req StatusCheckRequest) (*StatusCheckResponse, error)
	ListPayments(ctx context.Context, limit int) (*ListResponse, error)
	HandleCallback(ctx context.Context, payload *CallbackPayload) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("Initiate: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.Service.Initiate(r.Context(), req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusCheckRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.Logger.Error("CheckStatus: invalid request body", "error", err)
			h.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	resp, err := h.Service.CheckStatus(r.Context(), req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

// StatusByCheckoutID serves polling clients that only hold the checkout
// request id handed back at initiation.
func (h *Handler) StatusByCheckoutID(w http.ResponseWriter, r *http.Request) {
	checkoutID := NormalizeIdentifier(chi.URLParam(r, "checkoutId"))
	if checkoutID == "" {
		h.WriteError(w, http.StatusBadRequest, "checkout request ID is required")
		return
	}

	resp, err := h.Service.CheckStatus(r.Context(), StatusCheckRequest{CheckoutRequestID: checkoutID})
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Service.ListPayments(r.Context(), 100)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}
