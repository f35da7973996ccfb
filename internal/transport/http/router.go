package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mochifi/internal/token"
)

// NewRouter wires the control API. Everything except the session endpoint,
// health, and metrics requires a bearer token issued by POST /session.
func NewRouter(h *Handler, tokens *token.Service, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/session", h.handleSession)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth(tokens, logger))

		r.Get("/status", h.handleStatus)

		r.Post("/wallet", h.handleWalletCreate)
		r.Post("/wallet/activate", h.handleWalletActivate)
		r.Get("/wallet/balance", h.handleWalletBalance)
		r.Post("/wallet/send", h.handleWalletSend)

		r.Get("/guardians", h.handleGuardiansList)
		r.Post("/guardians/invite", h.handleGuardianInvite)
		r.Post("/guardians/withdraw", h.handleGuardianWithdraw)
		r.Delete("/guardians/{address}", h.handleGuardianRemove)

		r.Get("/wards", h.handleWardsList)
		r.Delete("/wards/{address}", h.handleWardRemove)

		r.Get("/requests", h.handleRequestsList)
		r.Post("/requests/guardian/{address}/accept", h.handleGuardianRequestAccept)
		r.Post("/requests/guardian/{address}/decline", h.handleGuardianRequestDecline)
		r.Post("/requests/recovery/{address}/accept", h.handleRecoveryRequestAccept)
		r.Post("/requests/recovery/{address}/decline", h.handleRecoveryRequestDecline)
		r.Post("/requests/recovery/{address}/cancel", h.handleRecoveryRequestCancel)

		r.Post("/recovery", h.handleRecoveryStart)
		r.Post("/recovery/funding", h.handleRecoveryFunding)
		r.Get("/recovery/progress", h.handleRecoveryProgress)
	})
	return r
}

func requireAuth(tokens *token.Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const prefix = "Bearer "
			auth := r.Header.Get("Authorization")
			if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
				return
			}
			if _, err := tokens.Validate(auth[len(prefix):]); err != nil {
				logger.Warn("rejected control request", "error", err, "request_id", middleware.GetReqID(r.Context()))
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
