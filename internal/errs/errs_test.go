package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_CarriesNoUnderlyingError(t *testing.T) {
	err := New(KindValidation, "amount_cents must be positive")
	assert.Equal(t, KindValidation, err.Kind)
	assert.Nil(t, err.Unwrap())
	assert.Contains(t, err.Error(), "amount_cents must be positive")
}

func TestWrap_PreservesCauseForUnwrapButNotMessage(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := Wrap(KindConnection, "query sessions table", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection reset by peer")
}

func TestIs_MatchesKindAndUnwrapsOnce(t *testing.T) {
	err := New(KindRoleDenied, "caller lacks ADMIN on team")

	assert.True(t, Is(err, KindRoleDenied))
	assert.False(t, Is(err, KindNotFound))
	assert.False(t, Is(errors.New("plain error"), KindRoleDenied))
}
