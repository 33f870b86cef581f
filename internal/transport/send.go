package transport

import (
	"context"
	"net"
	"strconv"
	"time"
)

// DefaultTimeout bounds connect and write of a single Send.
const DefaultTimeout = 3 * time.Second

// Endpoint addresses one port on the robot controller.
type Endpoint struct {
	Host string
	Port int
}

// Address returns host:port.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return e.Address()
}

// Sender delivers a payload to an endpoint.
type Sender interface {
	Send(ctx context.Context, endpoint Endpoint, payload string) error
}

// TCPSender opens a fresh TCP connection per payload.
type TCPSender struct {
	// Timeout applies to dial and write. Zero means DefaultTimeout.
	Timeout time.Duration

	dialer net.Dialer
}

// NewTCPSender creates a sender with the given per-call timeout.
func NewTCPSender(timeout time.Duration) *TCPSender {
	return &TCPSender{Timeout: timeout}
}

// Send connects to endpoint, writes payload as raw bytes and closes the
// connection. The connection is closed on every path, including failures.
func (s *TCPSender) Send(ctx context.Context, endpoint Endpoint, payload string) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := s.dialer.DialContext(dialCtx, "tcp", endpoint.Address())
	if err != nil {
		return &Error{Code: classify(err), Endpoint: endpoint, Op: "dial", Err: err}
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return &Error{Code: ErrTransport, Endpoint: endpoint, Op: "write", Err: err}
	}

	if _, err := conn.Write(asciiBytes(payload)); err != nil {
		return &Error{Code: classify(err), Endpoint: endpoint, Op: "write", Err: err}
	}

	return nil
}

// SendFunc adapts a function to the Sender interface.
type SendFunc func(ctx context.Context, endpoint Endpoint, payload string) error

// Send calls f.
func (f SendFunc) Send(ctx context.Context, endpoint Endpoint, payload string) error {
	return f(ctx, endpoint, payload)
}

// asciiBytes encodes payload as ASCII; runes outside the 7-bit range become '?'.
func asciiBytes(payload string) []byte {
	out := make([]byte, 0, len(payload))
	for _, r := range payload {
		if r > 0x7f {
			out = append(out, '?')
			continue
		}
		out = append(out, byte(r))
	}
	return out
}
