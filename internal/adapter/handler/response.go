package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/srgjo27/ticket_engine/internal/core/domain"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// writeError maps err to a status code through its FailureKind. Internal
// errors are logged and not echoed to the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)

	msg := err.Error()
	if kind == domain.KindInternal {
		logger.Error("request failed", "error", err)
		msg = "internal server error"
	}
	writeJSON(w, status, errorBody{Error: msg, Code: string(kind)})
}

func statusFor(kind domain.FailureKind) int {
	switch kind {
	case domain.KindInvalidRequest, domain.KindProtocol:
		return http.StatusBadRequest
	case domain.KindEventNotFound, domain.KindTicketNotFound:
		return http.StatusNotFound
	case domain.KindEventNotActive, domain.KindInsufficientStock, domain.KindInvalidTransition:
		return http.StatusConflict
	case domain.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
