package web

// errors.go maps engine errors to HTTP responses.
//
// The technical error is logged with the request id; the client receives the
// apperrors user message with its stable code.

import (
	"context"
	"errors"
	"net/http"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/apperrors"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/logging"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/session"
)

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user message. A zero status is
// derived from the error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	msg := apperrors.Message(err)

	log := logging.FromContext(r.Context()).With(
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
	)
	if status >= http.StatusInternalServerError {
		log.Error("request error", "error", err)
	} else {
		log.Warn("request rejected", "error", err)
	}

	writeJSON(w, status, ErrorResponse{
		Error:   err.Error(),
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor picks the HTTP status of an engine error.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, session.ErrNoFile):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}

	switch apperrors.KindOf(err) {
	case apperrors.KindFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperrors.KindMalformedInput, apperrors.KindEmptyInput:
		return http.StatusUnprocessableEntity
	case apperrors.KindInvalidArgument:
		return http.StatusBadRequest
	case apperrors.KindLimitExceeded:
		return http.StatusPaymentRequired
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindExternalServiceFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
