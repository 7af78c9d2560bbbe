package multichain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChainError(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := NewChainError("ethereum", ErrSourceInitFailed, cause)

	assert.Equal(t, "chain ethereum: failed to initialize source: dial tcp: refused", err.Error())
	assert.ErrorIs(t, err, ErrSourceInitFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))

	bare := NewChainError("ethereum", ErrChainNotFound, nil)
	assert.Equal(t, "chain ethereum: chain not found", bare.Error())
	assert.NotErrorIs(t, bare, ErrSourceInitFailed)
}
