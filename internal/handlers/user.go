package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/quickcash/quickcash-gobackend/internal/models"
	"github.com/quickcash/quickcash-gobackend/internal/services"
)

type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// Register handles POST /api/register.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	acct, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

// Login handles POST /api/login and issues the session token.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	acct, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := issueToken(acct)
	if err != nil {
		log.Printf("Failed to sign token for %s: %v", acct.MobileNumber, err)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":   token,
		"account": acct,
	})
}

// GetUsers handles GET /api/users (admin only).
func (h *UserHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	claims, err := authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if claims.Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "admin role required")
		return
	}

	accounts, err := h.service.List(r.Context())
	if err != nil {
		log.Printf("Failed to fetch accounts: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch accounts")
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}
