// Package ferr classifies the error kinds described by the fabric's
// error-handling design: Validation, Exhaustion, Protocol violation,
// Disconnection, IO, and Programmer error. Validation, Exhaustion,
// Protocol and Disconnection each wrap a containerd errdefs sentinel so
// callers can classify with errors.Is/errdefs.IsX without caring which
// component raised it; IO wraps only the underlying error, and
// Programmer errors are panics, not returned errors.
package ferr

import (
	"fmt"

	"github.com/containerd/errdefs"
)

// Validation builds a Validation-kind failure from msg: bad blueprint,
// bad config. Fatal at startup.
func Validation(component, msg string) error {
	return fmt.Errorf("%s: %s: %w", component, msg, errdefs.ErrInvalidArgument)
}

// Validationf is Validation with Printf-style formatting.
func Validationf(component, format string, args ...any) error {
	return Validation(component, fmt.Sprintf(format, args...))
}

// Exhaustion builds a resource-exhaustion failure from msg: no free ports,
// an out-of-range PortNumber. Fatal at wiring time.
func Exhaustion(component, msg string) error {
	return fmt.Errorf("%s: %s: %w", component, msg, errdefs.ErrResourceExhausted)
}

// Protocol builds a per-packet protocol violation from msg: illegal AIT
// direction, a control message landing on the wrong cell type. The
// offending packet is dropped; the port continues.
func Protocol(component, msg string) error {
	return fmt.Errorf("%s: %s: %w", component, msg, errdefs.ErrFailedPrecondition)
}

// Disconnection builds, from msg, a send/receive failure expected after
// a link break. Loops unwind cleanly on this error.
func Disconnection(component, msg string) error {
	return fmt.Errorf("%s: %s: %w", component, msg, errdefs.ErrUnavailable)
}

// IO wraps a best-effort IO failure (trace file, Kafka export). Never
// fatal for Kafka; fatal for config/trace-file IO at the call site's
// discretion.
func IO(component string, err error) error {
	return fmt.Errorf("%s: %w", component, err)
}

// Chain appends a function-name + free-text element to an existing
// error so nested failures narrate like a stack.
func Chain(fn string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fn, err)
}

func IsValidation(err error) bool    { return errdefs.IsInvalidArgument(err) }
func IsExhaustion(err error) bool    { return errdefs.IsResourceExhausted(err) }
func IsProtocol(err error) bool      { return errdefs.IsFailedPrecondition(err) }
func IsDisconnection(err error) bool { return errdefs.IsUnavailable(err) }
