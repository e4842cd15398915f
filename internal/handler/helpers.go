package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// monthParam parses the {month} path segment ("YYYY-MM").
func monthParam(r *http.Request) (domain.Month, error) {
	return domain.ParseMonth(chi.URLParam(r, "month"))
}

// errorStatus classifies err into an HTTP status and a client-safe message.
// Upstream failures are not echoed back verbatim.
func errorStatus(err error) (int, string) {
	var notFound *domain.ErrNotFound
	var validation *domain.ErrValidation
	var forbidden *domain.ErrForbidden
	var unauthorized *domain.ErrUnauthorized
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, err.Error()
	case errors.As(err, &validation):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &forbidden):
		return http.StatusForbidden, err.Error()
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized, err.Error()
	case errors.As(err, &circuitOpen):
		return http.StatusServiceUnavailable, err.Error()
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout, err.Error()
	case errors.As(err, &external):
		return http.StatusBadGateway, "upstream service unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// handleServiceError writes the response for a failed service call.
// Client errors log at debug, server-side ones at error.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("service call failed", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Debug("request rejected", zap.Int("status", status), zap.String("error", err.Error()))
	}
	writeError(w, status, msg)
}
