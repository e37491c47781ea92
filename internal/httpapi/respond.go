package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/profile"
)

type Response struct {
	Notification *domain.Notification `json:"notification,omitempty"`
	Data         any                  `json:"data,omitempty"`
}

type ErrorResponse struct {
	Error        string              `json:"error"`
	Code         string              `json:"code,omitempty"`
	Notification domain.Notification `json:"notification"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

func respondOK(w http.ResponseWriter, status int, data any, message string) {
	resp := Response{Data: data}
	if message != "" {
		n := domain.Success(message)
		resp.Notification = &n
	}
	respondJSON(w, status, resp)
}

func respondError(w http.ResponseWriter, status int, code, detail, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:        detail,
		Code:         code,
		Notification: domain.Failure(message),
	})
}

// handleError maps an error kind to a status code. message is what the user
// sees; the error text goes in the error field.
func handleError(w http.ResponseWriter, err error, message string) {
	var (
		status int
		code   string
	)

	switch {
	case errors.Is(err, domain.ErrCheckoutInProgress):
		status, code = http.StatusConflict, "checkout_in_progress"
	case errors.Is(err, domain.ErrAnonymous):
		status, code = http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, catalog.ErrTemplateNotFound), errors.Is(err, profile.ErrProfileNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrValidation):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrIndex):
		status, code = http.StatusBadRequest, "index_error"
	case errors.Is(err, domain.ErrPersistence):
		status, code = http.StatusServiceUnavailable, "persistence_error"
	case errors.Is(err, domain.ErrGeneration):
		status, code = http.StatusBadGateway, "generation_error"
	case errors.Is(err, domain.ErrNetwork):
		status, code = http.StatusBadGateway, "network_error"
	default:
		status, code = http.StatusInternalServerError, "internal_error"
	}

	respondError(w, status, code, err.Error(), message)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
