package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quickcash/quickcash-gobackend/internal/ledger"
	"github.com/quickcash/quickcash-gobackend/internal/models"
	"github.com/quickcash/quickcash-gobackend/internal/money"
	"github.com/quickcash/quickcash-gobackend/internal/services"
)

type WalletHandler struct {
	service *services.WalletService
}

func NewWalletHandler(service *services.WalletService) *WalletHandler {
	return &WalletHandler{service: service}
}

// Transfer handles POST /api/transfer. The sender identity comes from the
// session token, never from the body.
func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	claims, err := authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req struct {
		ReceiverMobileNumber string       `json:"receiverMobileNumber"`
		TotalAmount          money.Amount `json:"totalAmount"`
		SendMoneyFee         money.Amount `json:"sendMoneyFee"`
		FinalAmount          money.Amount `json:"finalAmount"`
		Reference            string       `json:"transaction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.service.SendMoney(r.Context(), ledger.TransferRequest{
		SenderMobile:   claims.MobileNumber,
		ReceiverMobile: req.ReceiverMobileNumber,
		TotalAmount:    req.TotalAmount,
		SendMoneyFee:   req.SendMoneyFee,
		FinalAmount:    req.FinalAmount,
		Reference:      req.Reference,
	})
	if err != nil {
		log.Printf("Transfer %s failed: %v", req.Reference, err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// CashOut handles POST /api/cashout. The PIN in the body is re-verified as
// a second factor.
func (h *WalletHandler) CashOut(w http.ResponseWriter, r *http.Request) {
	claims, err := authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req struct {
		AgentMobileNumber string       `json:"agentMobileNumber"`
		TotalAmount       money.Amount `json:"totalAmount"`
		FinalAmount       money.Amount `json:"finalAmount"`
		PIN               string       `json:"pin"`
		Reference         string       `json:"transaction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.service.CashOut(r.Context(), ledger.CashOutRequest{
		SenderMobile: claims.MobileNumber,
		AgentMobile:  req.AgentMobileNumber,
		PIN:          req.PIN,
		TotalAmount:  req.TotalAmount,
		FinalAmount:  req.FinalAmount,
		Reference:    req.Reference,
	})
	if err != nil {
		log.Printf("Cash-out %s failed: %v", req.Reference, err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// CashIn handles POST /api/cashin. Only agents may initiate it.
func (h *WalletHandler) CashIn(w http.ResponseWriter, r *http.Request) {
	claims, err := authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if claims.Role != models.RoleAgent {
		writeError(w, http.StatusForbidden, "agent role required")
		return
	}

	var req struct {
		ReceiverMobileNumber string       `json:"receiverMobileNumber"`
		TotalAmount          money.Amount `json:"totalAmount"`
		PIN                  string       `json:"pin"`
		Reference            string       `json:"transaction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.service.CashIn(r.Context(), ledger.CashInRequest{
		AgentMobile:    claims.MobileNumber,
		ReceiverMobile: req.ReceiverMobileNumber,
		PIN:            req.PIN,
		TotalAmount:    req.TotalAmount,
		Reference:      req.Reference,
	})
	if err != nil {
		log.Printf("Cash-in %s failed: %v", req.Reference, err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Balance handles GET /api/balance.
func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	claims, err := authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	balance, err := h.service.Balance(r.Context(), claims.MobileNumber)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]money.Amount{"balance": balance})
}

// History handles GET /api/transactions.
func (h *WalletHandler) History(w http.ResponseWriter, r *http.Request) {
	claims, err := authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	txs, err := h.service.History(r.Context(), claims.MobileNumber)
	if err != nil {
		log.Printf("Failed to fetch transactions for %s: %v", claims.MobileNumber, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch transactions")
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// GetTransaction handles GET /api/transaction/{reference}. Only a party to
// the transaction (or an admin) may read it.
func (h *WalletHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	claims, err := authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	reference := mux.Vars(r)["reference"]
	if reference == "" {
		writeError(w, http.StatusBadRequest, "transaction reference is required")
		return
	}

	tx, err := h.service.GetTransaction(r.Context(), reference)
	if err != nil {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if claims.Role != models.RoleAdmin &&
		tx.MobileNumber != claims.MobileNumber &&
		tx.ReceiverMobileNumber != claims.MobileNumber {
		writeError(w, http.StatusForbidden, "not a party to this transaction")
		return
	}
	writeJSON(w, http.StatusOK, tx)
}
