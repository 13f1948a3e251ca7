package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrBadRequest          = errors.New("bad request")
	ErrInternalServer      = errors.New("internal server error")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrDealRoomNotFound    = fmt.Errorf("deal room %w", ErrNotFound)
	ErrDocumentNotFound    = fmt.Errorf("document %w", ErrNotFound)
	ErrInvalidParticipants = errors.New("invalid participants")
	ErrIllegalTransition   = errors.New("illegal status transition")
	ErrValidation          = errors.New("validation error")
	ErrConflict            = errors.New("concurrent modification conflict")
	ErrRateLimited         = errors.New("rate limit exceeded")
)

// IllegalTransitionError называет оба статуса недопустимого перехода.
type IllegalTransitionError struct {
	From string
	To   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal status transition from %q to %q", e.From, e.To)
}

func (e *IllegalTransitionError) Unwrap() error {
	return ErrIllegalTransition
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Reason
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func HTTPStatusFromError(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict), errors.Is(err, ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidParticipants):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
