package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserErrorMessage(t *testing.T) {
	inner := errors.New("disk is full")
	err := NewUserError("cannot open database at /tmp/fisc.db", inner)

	assert.Equal(t, "cannot open database at /tmp/fisc.db: disk is full", err.Error())

	var userErr *UserError
	assert.ErrorAs(t, err, &userErr)
	assert.Equal(t, "cannot open database at /tmp/fisc.db", userErr.UserMessage)
}

func TestUserErrorWithoutCause(t *testing.T) {
	err := &UserError{UserMessage: "configuration is invalid"}
	assert.Equal(t, "configuration is invalid", err.Error())
	assert.NoError(t, err.Unwrap())
}

func TestUserErrorUnwrap(t *testing.T) {
	err := NewUserError("configuration is invalid", ErrInvalidConfig)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrConsistency))
	assert.True(t, IsFatal(fmt.Errorf("%w: root at level 2", ErrConsistency)))
	assert.False(t, IsFatal(ErrRejected))
	assert.False(t, IsFatal(nil))
}
