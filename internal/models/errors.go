package models

import "errors"

var (
	ErrNotFound               = errors.New("resource not found")
	ErrValidation             = errors.New("validation failed")
	ErrForbidden              = errors.New("forbidden")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidSignature       = errors.New("payment signature verification failed")
	ErrInvalidTransition      = errors.New("invalid state transition")
	ErrRefundAlreadyRequested = errors.New("refund already requested")
	ErrVerificationInProgress = errors.New("payment verification already in progress")
	ErrRefundInProgress       = errors.New("refund decision already in progress")
	ErrGateway                = errors.New("payment gateway error")
	ErrRateLimited            = errors.New("too many requests")
)
