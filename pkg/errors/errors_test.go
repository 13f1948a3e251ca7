package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", ErrNotFound, http.StatusNotFound},
		{"deal room not found", ErrDealRoomNotFound, http.StatusNotFound},
		{"wrapped document not found", fmt.Errorf("load: %w", ErrDocumentNotFound), http.StatusNotFound},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"expired token", ErrTokenExpired, http.StatusUnauthorized},
		{"conflict", ErrConflict, http.StatusConflict},
		{"illegal transition", &IllegalTransitionError{From: "pending", To: "closed"}, http.StatusConflict},
		{"validation", NewValidationError("content", "must not be empty"), http.StatusBadRequest},
		{"invalid participants", ErrInvalidParticipants, http.StatusBadRequest},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"wrapped bad request", fmt.Errorf("%w: invalid deal room ID", ErrBadRequest), http.StatusBadRequest},
		{"invalid token", fmt.Errorf("%w: malformed", ErrInvalidToken), http.StatusUnauthorized},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusFromError(tt.err))
		})
	}
}

func TestIllegalTransitionError_NamesBothStates(t *testing.T) {
	err := &IllegalTransitionError{From: "pending", To: "closed"}

	assert.True(t, errors.Is(err, ErrIllegalTransition))
	assert.Contains(t, err.Error(), "pending")
	assert.Contains(t, err.Error(), "closed")
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("return_cap", "must be at least 1")

	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "validation error: return_cap: must be at least 1", err.Error())

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "return_cap", ve.Field)

	assert.Equal(t, "validation error: bad", (&ValidationError{Reason: "bad"}).Error())
}

func TestNotFoundVariantsMatchSentinel(t *testing.T) {
	assert.True(t, errors.Is(ErrDealRoomNotFound, ErrNotFound))
	assert.True(t, errors.Is(ErrDocumentNotFound, ErrNotFound))
	assert.False(t, errors.Is(ErrDealRoomNotFound, ErrDocumentNotFound))
}
