package handlers

import (
	"encoding/json"
	"net/http"

	"payverse/internal/models"
	"payverse/internal/services"

	"github.com/rs/zerolog"
)

type AuthHandler struct {
	authService *services.AuthService
	logger      zerolog.Logger
}

func NewAuthHandler(authService *services.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Email and password are required")
		return
	}

	resp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}
