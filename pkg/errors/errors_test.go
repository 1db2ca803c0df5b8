package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	t.Parallel()

	t.Run("without cause", func(t *testing.T) {
		t.Parallel()
		err := NewInvalidSessionError("no access token found", nil)
		assert.Equal(t, "errors.session.invalid: no access token found", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("signature is invalid")
		err := NewInvalidSessionError("token verification failed", cause)
		assert.Equal(t, "errors.session.invalid: token verification failed: signature is invalid", err.Error())
	})
}

func TestUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := NewServerUnreachableError("token endpoint", cause)
	assert.ErrorIs(t, err, cause)
}

func TestPredicates(t *testing.T) {
	t.Parallel()

	invalid := NewInvalidSessionError("expired", nil)
	storage := NewStorageFailureError("lock timeout", nil)

	assert.True(t, IsInvalidSession(invalid))
	assert.False(t, IsInvalidSession(storage))
	assert.True(t, IsStorageFailure(storage))
	assert.False(t, IsServerUnreachable(invalid))
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("validate: %w", NewInvalidSessionError("expired", nil))
	assert.True(t, IsInvalidSession(err))
	assert.Equal(t, ErrInvalidSession, Code(err))
}

func TestCodeDefaultsToUnknown(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ErrUnknown, Code(errors.New("plain")))
}
