package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	plain := New(20001, "push transport connection failed")
	assert.Equal(t, "[20001] push transport connection failed", plain.Error())

	wrapped := plain.Wrap(errors.New("dial tcp: refused"))
	assert.Equal(t, "[20001] push transport connection failed: dial tcp: refused", wrapped.Error())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := ErrTransportSubscribe.Wrap(cause)

	require.ErrorIs(t, err, cause)
	assert.True(t, Is(err, ErrTransportSubscribe))
	assert.False(t, Is(err, ErrTransportConnect))
}

func TestIsThroughFmtWrapping(t *testing.T) {
	err := fmt.Errorf("subscribe hotel-42-conversations: %w", ErrTransportSubscribe.Wrap(errors.New("timeout")))
	assert.True(t, Is(err, ErrTransportSubscribe))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeSessionExpired, GetCode(ErrSessionExpired))
	assert.Equal(t, CodeInternal, GetCode(errors.New("something else")))
	assert.Equal(t, CodeMarkReadFailed, GetCode(fmt.Errorf("outer: %w", ErrMarkReadFailed.Wrap(errors.New("503")))))
}
