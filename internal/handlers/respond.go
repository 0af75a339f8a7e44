package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/tripook/tripook-backend/internal/services"
	"github.com/tripook/tripook-backend/pkg/utils"
)

// Response is the JSON envelope shared by all endpoints.
type Response struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	User       interface{} `json:"user,omitempty"`
	Token      string      `json:"token,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	RetryAfter int         `json:"retry_after,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// writeError maps domain errors onto HTTP status codes. Unknown errors are
// logged and reported as a generic 500 so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	var rateErr *services.RateLimitError
	if errors.As(err, &rateErr) {
		writeJSON(w, http.StatusTooManyRequests, Response{
			Message:    rateErr.Message,
			RetryAfter: int(rateErr.RetryAfter.Seconds()),
		})
		return
	}

	var validationErr validation.Errors
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusBadRequest, Response{Message: err.Error()})
		return
	}

	var fieldErr *utils.ValidationError
	if errors.As(err, &fieldErr) {
		writeJSON(w, http.StatusBadRequest, Response{Message: err.Error()})
		return
	}

	var status int
	switch {
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrExpiredOrInvalid):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrAccountDisabled):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrDuplicateEmail),
		errors.Is(err, services.ErrDuplicateName):
		status = http.StatusConflict
	case errors.Is(err, services.ErrWeakPassword),
		errors.Is(err, services.ErrAlreadyVerified),
		errors.Is(err, services.ErrAlreadyProvider),
		errors.Is(err, services.ErrNotPending),
		errors.Is(err, services.ErrProviderNotReady),
		errors.Is(err, services.ErrSelfAction):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrMailDispatch):
		status = http.StatusServiceUnavailable
	default:
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, Response{Message: "internal server error"})
		return
	}

	writeJSON(w, status, Response{Message: err.Error()})
}
