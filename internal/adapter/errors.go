package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cam-andersen/InventorySystemV3/internal/transport"
	"github.com/cam-andersen/InventorySystemV3/internal/urscript"
)

// Normalized robot errors.
var (
	ErrInvalidLocation = errors.New("INVALID_LOCATION")
	ErrUnavailable     = errors.New("UNAVAILABLE")
	ErrTimeout         = errors.New("TIMEOUT")
	ErrCancelled       = errors.New("CANCELLED")
	ErrInternal        = errors.New("INTERNAL")
)

// codeTokens maps message tokens to normalized codes for errors that carry
// no typed cause (simulated faults, controller text). Order matters.
var codeTokens = []struct {
	token string
	code  error
}{
	{"INVALID_LOCATION", ErrInvalidLocation},
	{"CANCELLED", ErrCancelled},
	{"TIMEOUT", ErrTimeout},
	{"UNAVAILABLE", ErrUnavailable},
	{"CONNECTION_REFUSED", ErrUnavailable},
	{"OFFLINE", ErrUnavailable},
}

// RobotError wraps a controller or transport error with its normalized code.
type RobotError struct {
	Code     error       // Normalized code
	Original error       // Underlying cause
	Details  interface{} // Opaque diagnostics (endpoint, location)
}

func (e *RobotError) Error() string {
	return fmt.Sprintf("%v (robot: %v)", e.Code, e.Original)
}

// Unwrap exposes both the normalized code and the original cause.
func (e *RobotError) Unwrap() []error {
	return []error{e.Code, e.Original}
}

// Normalize maps err to a *RobotError. nil stays nil and an error that is
// already normalized is returned unchanged.
func Normalize(err error, details interface{}) error {
	if err == nil {
		return nil
	}

	var re *RobotError
	if errors.As(err, &re) {
		return err
	}

	return &RobotError{
		Code:     classify(err),
		Original: err,
		Details:  details,
	}
}

func classify(err error) error {
	switch {
	case errors.Is(err, urscript.ErrInvalidLocation):
		return ErrInvalidLocation
	case errors.Is(err, context.Canceled):
		return ErrCancelled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, transport.ErrTimeout):
		return ErrTimeout
	case errors.Is(err, transport.ErrTransport):
		return ErrUnavailable
	}

	upper := strings.ToUpper(err.Error())
	for _, t := range codeTokens {
		if strings.Contains(upper, t.token) {
			return t.code
		}
	}
	return ErrInternal
}

// Code returns the normalized code string for err ("" for nil).
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, code := range []error{ErrInvalidLocation, ErrCancelled, ErrTimeout, ErrUnavailable, ErrInternal} {
		if errors.Is(err, code) {
			return code.Error()
		}
	}
	return classify(err).Error()
}
