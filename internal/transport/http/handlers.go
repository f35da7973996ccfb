package httptransport

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mochifi/internal/guardian"
	"mochifi/internal/ledger"
	"mochifi/internal/recovery"
	"mochifi/internal/state"
	"mochifi/internal/token"
	"mochifi/internal/wallet"
)

// Handler is the thin HTTP layer over the workflow services. It parses and
// validates transport-level input and delegates; business rules live in the
// services.
type Handler struct {
	session    *state.Session
	wallets    *wallet.Service
	guardians  *guardian.Service
	recoveries *recovery.Service
	tokens     *token.Service
	apiSecret  string
	logger     *slog.Logger
}

func NewHandler(session *state.Session, wallets *wallet.Service, guardians *guardian.Service, recoveries *recovery.Service, tokens *token.Service, apiSecret string, logger *slog.Logger) *Handler {
	return &Handler{
		session:    session,
		wallets:    wallets,
		guardians:  guardians,
		recoveries: recoveries,
		tokens:     tokens,
		apiSecret:  apiSecret,
		logger:     logger,
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation", Message: "invalid request body"})
		return
	}
	if h.apiSecret == "" || subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.apiSecret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	t, err := h.tokens.Generate()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": t})
}

type statusResponse struct {
	Username         string `json:"username,omitempty"`
	Address          string `json:"address,omitempty"`
	ContractAddress  string `json:"contract_address,omitempty"`
	IsRecovering     bool   `json:"is_recovering"`
	IsWalletFunded   bool   `json:"is_wallet_funded"`
	GuardianRequests int    `json:"guardian_requests"`
	RecoveryRequests int    `json:"recovery_requests"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := h.session.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{
		Username:         snap.Identity.Username,
		Address:          snap.Identity.Key.Address,
		ContractAddress:  snap.Identity.ContractAddress,
		IsRecovering:     snap.IsRecovering,
		IsWalletFunded:   snap.IsWalletFunded,
		GuardianRequests: len(snap.GuardianRequests),
		RecoveryRequests: len(snap.RecoveryRequests),
	})
}

func (h *Handler) handleWalletCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation", Message: "invalid request body"})
		return
	}
	key, err := h.wallets.Create(r.Context(), req.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"mnemonic": key.Mnemonic,
		"address":  key.Address,
	})
}

func (h *Handler) handleWalletActivate(w http.ResponseWriter, r *http.Request) {
	contract, err := h.wallets.Activate(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"contract_address": contract})
}

type coinView struct {
	Denom   string `json:"denom"`
	Amount  int64  `json:"amount"`
	Display string `json:"display"`
}

func coinViews(coins []ledger.Coin) []coinView {
	out := make([]coinView, 0, len(coins))
	for _, c := range coins {
		out = append(out, coinView{Denom: c.Denom, Amount: c.Amount, Display: wallet.FormatCoin(c)})
	}
	return out
}

func (h *Handler) handleWalletBalance(w http.ResponseWriter, r *http.Request) {
	var coins []ledger.Coin
	var err error
	if h.session.Snapshot().ShouldRefreshBalance {
		coins, err = h.wallets.RefreshBalance(r.Context())
	} else {
		coins, err = h.wallets.Balance(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": coinViews(coins)})
}

func (h *Handler) handleWalletSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To     string `json:"to"`
		Amount string `json:"amount"`
		Denom  string `json:"denom"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation", Message: "invalid request body"})
		return
	}
	if err := h.wallets.Send(r.Context(), req.To, req.Amount, req.Denom); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (h *Handler) handleGuardiansList(w http.ResponseWriter, r *http.Request) {
	if err := h.guardians.Reload(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	snap := h.session.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"guardians": snap.Guardians,
		"pending":   snap.PendingGuardians,
	})
}

func (h *Handler) handleGuardianInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation", Message: "invalid request body"})
		return
	}
	if err := h.guardians.Invite(r.Context(), req.Username); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "invited"})
}

func (h *Handler) handleGuardianWithdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation", Message: "invalid request body"})
		return
	}
	if err := h.guardians.WithdrawInvite(r.Context(), req.Address); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

func (h *Handler) handleGuardianRemove(w http.ResponseWriter, r *http.Request) {
	if err := h.guardians.Remove(r.Context(), chi.URLParam(r, "address")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) handleWardsList(w http.ResponseWriter, _ *http.Request) {
	snap := h.session.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"wards": snap.Wards})
}

func (h *Handler) handleWardRemove(w http.ResponseWriter, r *http.Request) {
	if err := h.guardians.StopGuarding(r.Context(), chi.URLParam(r, "address")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) handleRequestsList(w http.ResponseWriter, _ *http.Request) {
	snap := h.session.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"guardian_requests": snap.GuardianRequests,
		"recovery_requests": snap.RecoveryRequests,
	})
}

func (h *Handler) handleGuardianRequestAccept(w http.ResponseWriter, r *http.Request) {
	if err := h.guardians.Accept(r.Context(), chi.URLParam(r, "address")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (h *Handler) handleGuardianRequestDecline(w http.ResponseWriter, r *http.Request) {
	if err := h.guardians.Decline(chi.URLParam(r, "address")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "declined"})
}

func (h *Handler) handleRecoveryRequestAccept(w http.ResponseWriter, r *http.Request) {
	if err := h.recoveries.Respond(r.Context(), chi.URLParam(r, "address")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

func (h *Handler) handleRecoveryRequestDecline(w http.ResponseWriter, r *http.Request) {
	if err := h.recoveries.DeclineRequest(chi.URLParam(r, "address")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "declined"})
}

func (h *Handler) handleRecoveryRequestCancel(w http.ResponseWriter, r *http.Request) {
	if err := h.recoveries.CancelRequest(r.Context(), chi.URLParam(r, "address")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *Handler) handleRecoveryStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation", Message: "invalid request body"})
		return
	}
	key, err := h.recoveries.Start(r.Context(), req.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"mnemonic": key.Mnemonic,
		"address":  key.Address,
	})
}

func (h *Handler) handleRecoveryFunding(w http.ResponseWriter, r *http.Request) {
	funded, err := h.recoveries.CheckFunding(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"funded": funded})
}

func (h *Handler) handleRecoveryProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.recoveries.CheckProgress(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}
