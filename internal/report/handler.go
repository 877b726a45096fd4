package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/metrocheck/crb-service/internal/transport"
	"github.com/metrocheck/crb-service/pkg/logger"
)

type ServiceAPI interface {
	GetReport(ctx context.Context, rawPhone string) (*View, error)
	DownloadPDF(ctx context.Context, rawPhone string) ([]byte, string, error)
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

type reportRequest struct {
	Phone string `json:"phone"`
}

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	rawPhone, ok := h.decodePhone(w, r)
	if !ok {
		return
	}

	view, err := h.Service.GetReport(r.Context(), rawPhone)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"report":  view,
	})
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	rawPhone, ok := h.decodePhone(w, r)
	if !ok {
		return
	}

	pdfBytes, filename, err := h.Service.DownloadPDF(r.Context(), rawPhone)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdfBytes); err != nil {
		h.Logger.Error("Download: failed to write PDF response", "error", err)
	}
}

func (h *Handler) decodePhone(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("report: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	if req.Phone == "" {
		h.WriteError(w, http.StatusBadRequest, "phone is required")
		return "", false
	}
	return req.Phone, true
}
