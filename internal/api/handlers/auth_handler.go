package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/sitepulse/internal/auth"
	"github.com/isdelr/sitepulse/internal/services"
)

// AuthHandler handles operator login.
type AuthHandler struct {
	service       services.OperatorServiceProvider
	authenticator *auth.Authenticator
	secureCookie  bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service services.OperatorServiceProvider, authenticator *auth.Authenticator, secureCookie bool) *AuthHandler {
	return &AuthHandler{service: service, authenticator: authenticator, secureCookie: secureCookie}
}

// AuthPayload defines the structure for login requests.
type AuthPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles operator authentication and JWT generation.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.authenticator.Enabled() {
		http.Error(w, "Authentication is disabled", http.StatusNotFound)
		return
	}

	var payload AuthPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	op, err := h.service.AuthenticateOperator(payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			log.Warn().Str("email", payload.Email).Msg("Failed authentication attempt")
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		log.Error().Err(err).Msg("Failed to authenticate operator")
		http.Error(w, "Failed to authenticate", http.StatusInternalServerError)
		return
	}

	token, err := h.authenticator.Generate(op)
	if err != nil {
		log.Error().Err(err).Str("operator_id", op.ID).Msg("Failed to generate JWT")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Expires:  time.Now().Add(h.authenticator.TTL()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"token":    token,
		"operator": op,
	})
}

// GetMe retrieves the currently authenticated operator from the token.
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	op, err := h.service.GetOperatorByID(claims.OperatorID)
	if err != nil {
		log.Error().Err(err).Str("operator_id", claims.OperatorID).Msg("Operator from token not found in DB")
		http.Error(w, "Operator not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, op)
}
