package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// Transport failure classes.
var (
	ErrTransport         = errors.New("TRANSPORT")
	ErrConnectionRefused = errors.New("CONNECTION_REFUSED")
	ErrTimeout           = errors.New("TIMEOUT")
	ErrHostResolution    = errors.New("HOST_RESOLUTION")
)

// Error describes a failed Send.
type Error struct {
	Code     error    // one of the Err* classes above
	Endpoint Endpoint // where the payload was going
	Op       string   // "dial" or "write"
	Err      error    // underlying cause
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s %s: %v", e.Code, e.Op, e.Endpoint, e.Err)
}

// Unwrap exposes both the class and the generic transport marker, so
// errors.Is works for ErrTransport as well as the specific class.
func (e *Error) Unwrap() []error {
	return []error{e.Code, ErrTransport, e.Err}
}

// classify maps a dial or write error to a failure class.
func classify(err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return ErrTimeout
		}
		return ErrHostResolution
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrConnectionRefused
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}

	return ErrTransport
}
