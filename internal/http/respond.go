package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Sylius/FrontWing/internal/domain"
	"github.com/Sylius/FrontWing/internal/logger"
	"github.com/Sylius/FrontWing/internal/session"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func respondValidation(w http.ResponseWriter, fields map[string]string) {
	respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:  "validation failed",
		Code:   "validation_failed",
		Fields: fields,
	})
}

// handleAPIError converts commerce backend and session errors to HTTP
// responses. Backend 5xx answers become 502; 4xx answers pass through.
func handleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	var verr *domain.ValidationError
	var rf *domain.RequestFailedError
	switch {
	case errors.As(err, &verr):
		respondValidation(w, verr.Fields)
	case errors.Is(err, context.Canceled):
		log.Debug("request canceled by client", zap.Error(err))
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("commerce API timeout", zap.Error(err))
		respondError(w, http.StatusGatewayTimeout, "timeout", "the shop backend did not answer in time")
	case errors.Is(err, domain.ErrTokenInvalid):
		log.Error("cart unavailable after recovery", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "cart_unavailable", "your cart could not be loaded, please try again")
	case errors.Is(err, session.ErrNoShipment), errors.Is(err, session.ErrNoPayment):
		respondError(w, http.StatusConflict, "checkout_incomplete", err.Error())
	case errors.As(err, &rf):
		handleRequestFailed(w, log, rf)
	default:
		log.Error("unexpected error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func handleRequestFailed(w http.ResponseWriter, log *zap.Logger, rf *domain.RequestFailedError) {
	if rf.Status >= http.StatusInternalServerError {
		log.Error("commerce API failure", zap.Int("status", rf.Status), zap.String("message", rf.Message))
		if rf.Status == http.StatusServiceUnavailable {
			respondError(w, http.StatusServiceUnavailable, "service_unavailable", "the shop backend is temporarily unavailable")
			return
		}
		respondError(w, http.StatusBadGateway, "upstream_error", "the shop backend failed to process the request")
		return
	}

	if len(rf.Violations) > 0 {
		respondValidation(w, domain.NewValidationError(rf.Violations, "").Fields)
		return
	}

	var code string
	switch rf.Status {
	case http.StatusBadRequest:
		code = "invalid_request"
	case http.StatusUnauthorized:
		code = "unauthenticated"
	case http.StatusForbidden:
		code = "permission_denied"
	case http.StatusNotFound:
		code = "not_found"
	case http.StatusConflict:
		code = "conflict"
	case http.StatusUnprocessableEntity:
		code = "unprocessable"
	case http.StatusTooManyRequests:
		code = "rate_limit_exceeded"
	default:
		code = "request_failed"
	}
	message := rf.Message
	if message == "" {
		message = http.StatusText(rf.Status)
	}
	respondError(w, rf.Status, code, message)
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}
