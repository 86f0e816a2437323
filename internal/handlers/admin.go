package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quickcash/quickcash-gobackend/internal/models"
	"github.com/quickcash/quickcash-gobackend/internal/services"
)

// AdminHandler exposes the operator-side controls: agent approval, account
// blocking and the aggregate rollups.
type AdminHandler struct {
	users  *services.UserService
	wallet *services.WalletService
}

func NewAdminHandler(users *services.UserService, wallet *services.WalletService) *AdminHandler {
	return &AdminHandler{users: users, wallet: wallet}
}

func (h *AdminHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	claims, err := authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return false
	}
	if claims.Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "admin role required")
		return false
	}
	return true
}

// ApproveAgent handles PATCH /api/admin/agent/{mobileNumber}/approve.
func (h *AdminHandler) ApproveAgent(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	mobile := mux.Vars(r)["mobileNumber"]
	if err := h.users.ApproveAgent(r.Context(), mobile); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "agent approved", "mobileNumber": mobile})
}

// SetBlocked handles PATCH /api/admin/account/{mobileNumber}/blocked.
func (h *AdminHandler) SetBlocked(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	var req struct {
		Blocked bool `json:"blocked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	mobile := mux.Vars(r)["mobileNumber"]
	if err := h.users.SetBlocked(r.Context(), mobile, req.Blocked); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"mobileNumber": mobile, "blocked": req.Blocked})
}

// OperatorAggregate handles GET /api/admin/aggregate.
func (h *AdminHandler) OperatorAggregate(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	agg, err := h.wallet.OperatorAggregate(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// AgentAggregate handles GET /api/admin/agent/{mobileNumber}/aggregate.
func (h *AdminHandler) AgentAggregate(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	agg, err := h.wallet.AgentAggregate(r.Context(), mux.Vars(r)["mobileNumber"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agg)
}
