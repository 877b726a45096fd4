package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/metrocheck/crb-service/internal/transport"
	"github.com/metrocheck/crb-service/pkg/logger"
)

type ServiceAPI interface {
	Authenticate(password string) (*AuthTokens, error)
	ValidateToken(tokenString string) error
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

type loginRequest struct {
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("Login: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tokens, err := h.Service.Authenticate(req.Password)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("admin login succeeded")
	h.WriteJSON(w, http.StatusOK, tokens)
}

// Middleware rejects requests that do not carry a valid admin token.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if err := h.Service.ValidateToken(token); err != nil {
			h.HandleServiceError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
