// Package common holds the error kinds shared by the identity, session and ledger
// components and their mapping onto HTTP status codes.
package common

import (
	"errors"
	"net/http"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicateIdentity  = errors.New("username already taken")
	ErrUnknownRecipient   = errors.New("recipient does not exist")
	ErrNotFound           = errors.New("requested resource not found")
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// HTTPStatusFromError maps domain errors to HTTP status codes
func HTTPStatusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrDuplicateIdentity),
		errors.Is(err, ErrUnknownRecipient),
		errors.Is(err, ErrInvalidCredentials):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
