package utils

import (
	"errors"
	"net/http"

	"resort-booking/internal/models"
)

// StatusFor maps a service error to an HTTP status and a message safe to show clients.
// Validation messages are passed through; anything unclassified becomes a generic 500.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidSignature):
		return http.StatusBadRequest, "Payment verification failed"
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, "You do not have access to this resource"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "Resource not found"
	case errors.Is(err, models.ErrRefundAlreadyRequested):
		return http.StatusConflict, "Refund already requested for this booking"
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict, err.Error()
	case errors.Is(err, models.ErrVerificationInProgress):
		return http.StatusConflict, "Payment verification already in progress"
	case errors.Is(err, models.ErrRefundInProgress):
		return http.StatusConflict, "Refund decision already in progress"
	case errors.Is(err, models.ErrRateLimited):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, models.ErrGateway):
		return http.StatusBadGateway, "Payment gateway error, please try again"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// WriteError answers with the status and public message for err.
func WriteError(w http.ResponseWriter, message string, err error) int {
	status, public := StatusFor(err)
	WriteJSON(w, status, ErrorResponse(message, public))
	return status
}
