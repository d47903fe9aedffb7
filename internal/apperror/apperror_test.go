package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("group", "g1"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("name", "group name is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("backlog entry", "u1/g1"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Upstream wraps ErrUpstream",
			err:       Upstream("steam", errors.New("dial tcp: timeout")),
			target:    ErrUpstream,
			wantMatch: true,
		},
		{
			name:      "NotFound does not match ErrValidation",
			err:       NotFound("user", "u1"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "wrapped twice still matches",
			err:       fmt.Errorf("comparing users: %w", fmt.Errorf("loading: %w", NotFound("user", "u9"))),
			target:    ErrNotFound,
			wantMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMatch, errors.Is(tt.err, tt.target))
			assert.Equal(t, tt.wantMatch, Is(tt.err, tt.target))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "user not found with id u1", NotFound("user", "u1").Error())
	assert.Equal(t, "game conflict with id 440", Conflict("game", "440").Error())
	assert.Equal(t, "steam request failed: boom", Upstream("steam", errors.New("boom")).Error())

	v := ValidationFailed("userIds", "at least 2 users are required")
	assert.Equal(t, "userIds", v.Field)
	assert.Equal(t, "at least 2 users are required", v.Error())
}

func TestErrorsAs(t *testing.T) {
	err := fmt.Errorf("creating group: %w", ValidationFailed("name", "group name is required"))

	var appErr *AppError
	if assert.True(t, errors.As(err, &appErr)) {
		assert.Equal(t, "name", appErr.Field)
	}
}

func TestUpstreamDoesNotUnwrapCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream("steam", cause)
	assert.False(t, errors.Is(err, cause))
}
