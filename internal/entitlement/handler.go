package entitlement

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/metrocheck/crb-service/internal/payment"
	"github.com/metrocheck/crb-service/internal/transport"
	"github.com/metrocheck/crb-service/pkg/logger"
)

type ServiceAPI interface {
	CheckAccess(ctx context.Context, rawPhone string) (*AccessInfo, error)
	ValidateUpgrade(ctx context.Context, rawPhone, target string) (*UpgradeQuote, error)
}

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	Payments payment.ServiceAPI
}

func NewHandler(service ServiceAPI, payments payment.ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
		Payments:    payments,
	}
}

// Packages serves the static catalog.
func (h *Handler) Packages(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"packages": Catalog(),
	})
}

type accessRequest struct {
	Phone string `json:"phone"`
}

// UserAccess answers whether a phone number currently holds a package.
func (h *Handler) UserAccess(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("UserAccess: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Phone == "" {
		h.WriteError(w, http.StatusBadRequest, "phone is required")
		return
	}
	rawPhone := req.Phone

	info, err := h.Service.CheckAccess(r.Context(), rawPhone)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"access":  info,
	})
}

type upgradeRequest struct {
	Phone  string `json:"phone"`
	Target string `json:"target_tier"`
}

// InitiateUpgrade validates the tier change and starts a payment for the
// quoted amount. An existing lower tier pays only the price difference.
func (h *Handler) InitiateUpgrade(w http.ResponseWriter, r *http.Request) {
	var req upgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("InitiateUpgrade: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	quote, err := h.Service.ValidateUpgrade(r.Context(), req.Phone, req.Target)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	resp, err := h.Payments.Initiate(r.Context(), payment.InitiateRequest{
		Phone:      req.Phone,
		Amount:     decimal.NewFromInt(quote.Amount),
		BundleName: quote.Package.Name,
	})
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}
