package fusionerrors

import (
	"syscall"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(StoreUnavailable(errors.New("dial tcp: connect: connection refused"))))
	assert.True(t, IsRetryable(syscall.ECONNREFUSED))
	assert.True(t, IsRetryable(errors.New("LOADING Redis is loading the dataset in memory")))
	assert.False(t, IsRetryable(&ErrDownstreamRejected{Partition: "p1", Status: 400}))
	assert.False(t, IsRetryable(errors.New("unknown part kind")))
}

func TestStoreUnavailable_PreservesNil(t *testing.T) {
	assert.NoError(t, StoreUnavailable(nil))
}

func TestStoreUnavailable_WrapsAndUnwraps(t *testing.T) {
	inner := errors.New("boom")
	err := StoreUnavailable(inner)
	assert.True(t, IsStoreUnavailable(err))
	assert.ErrorIs(t, err, inner)

	wrapped := errors.WithMessage(err, "submitting parts")
	assert.True(t, IsStoreUnavailable(wrapped))
}
