package fusionerrors

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

// ErrStoreUnavailable indicates the keyed store could not be reached or did
// not answer in time. Callers should treat it as transient and retry with
// backoff.
type ErrStoreUnavailable struct {
	Inner error
}

func (e *ErrStoreUnavailable) Error() string {
	return fmt.Sprintf("keyed store unavailable: %v", e.Inner)
}

func (e *ErrStoreUnavailable) Unwrap() error {
	return e.Inner
}

// StoreUnavailable wraps a store client error, preserving nil.
func StoreUnavailable(err error) error {
	if err == nil {
		return nil
	}
	return &ErrStoreUnavailable{Inner: err}
}

func IsStoreUnavailable(err error) bool {
	var target *ErrStoreUnavailable
	return errors.As(err, &target)
}

// ErrDownstreamRejected indicates the indexing sink refused a chunk for a
// non-transient reason. Retrying will not help; the chunk's ids get
// quarantined instead.
type ErrDownstreamRejected struct {
	Partition string
	Status    int
}

func (e *ErrDownstreamRejected) Error() string {
	return fmt.Sprintf("downstream sink rejected chunk for partition %s (status %d)", e.Partition, e.Status)
}

func IsDownstreamRejected(err error) bool {
	var target *ErrDownstreamRejected
	return errors.As(err, &target)
}

// IsRetryable reports whether an operation that produced err may succeed on
// a later attempt. Store outages, network failures and transient Redis
// states qualify; everything else is permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsDownstreamRejected(err) {
		return false
	}
	if IsStoreUnavailable(err) {
		return true
	}
	return IsNetworkError(err) || isTransientRedisError(err)
}

// IsNetworkError reports whether err looks like a connectivity problem
// rather than a logic error.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// isTransientRedisError matches server-side Redis states that clear on their
// own, largely following go-redis's own retryable-error list.
func isTransientRedisError(err error) bool {
	s := err.Error()
	if s == "ERR max number of clients reached" {
		return true
	}
	for _, prefix := range []string{"LOADING ", "READONLY ", "CLUSTERDOWN ", "TRYAGAIN "} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
