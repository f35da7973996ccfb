package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"mochifi/internal/guardian"
	"mochifi/internal/ledger"
	"mochifi/pkg/sentinel"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError centralizes domain error translation to HTTP responses. Known
// contract rejections get their user-facing message; sentinel errors map to
// conventional status codes; everything else is an opaque 500.
func writeError(w http.ResponseWriter, err error) {
	var ve *sentinel.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation", Message: ve.Msg})
		return
	}
	// Checked before the network and rejection branches: a leg-2 failure wraps
	// one of those, but the operator must learn the ward's wallet already
	// confirmed them and the whole acceptance needs retrying, not just that a
	// call failed.
	if errors.Is(err, guardian.ErrInconsistentHandshake) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "inconsistent_handshake", Message: err.Error()})
		return
	}
	if msg, ok := ledger.Friendly(err); ok {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "rejected", Message: msg})
		return
	}
	if _, ok := ledger.AsRejected(err); ok {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "rejected", Message: err.Error()})
		return
	}

	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: err.Error()})
	case errors.Is(err, sentinel.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "conflict", Message: err.Error()})
	case errors.Is(err, sentinel.ErrInvalidState):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "invalid_state", Message: err.Error()})
	case errors.Is(err, ledger.ErrNetwork), errors.Is(err, sentinel.ErrUnavailable):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "unavailable", Message: "ledger unreachable, try again"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
