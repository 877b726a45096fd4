package lender

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	datamodel "github.com/metrocheck/crb-service/internal/core/datamodel/lender"
	"github.com/metrocheck/crb-service/internal/transport"
	"github.com/metrocheck/crb-service/pkg/logger"
)

type ServiceAPI interface {
	ListPartners(ctx context.Context) []Partner
	Connect(ctx context.Context, rawPhone, lenderID string) (*datamodel.Connection, error)
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

func (h *Handler) ListPartners(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"lenders": h.Service.ListPartners(r.Context()),
	})
}

type connectRequest struct {
	Phone    string `json:"phone"`
	LenderID string `json:"lender_id"`
}

func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("Connect: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.LenderID == "" {
		h.WriteError(w, http.StatusBadRequest, "lender_id is required")
		return
	}

	conn, err := h.Service.Connect(r.Context(), req.Phone, req.LenderID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"connection": conn,
		"message":    "Connection request received. " + conn.LenderName + " will contact you within 24 hours.",
	})
}
