package attack

import (
	"errors"
	"fmt"
)

// ErrNoCapture is the fatal flavor of "no signal": the overall session
// timeout elapsed without a single capture. Listens that merely time out are
// reported as a nil capture, not as this error.
var ErrNoCapture = errors.New("no capture within session timeout")

// DriverError wraps a hardware/USB-level failure with enough context to tell
// the operator which dongle and which operation died. Fatal to the session.
type DriverError struct {
	Handle string
	Op     string
	Err    error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("driver error on %s during %s: %v", e.Handle, e.Op, e.Err)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

// TransmitError reports a transmission that could not be issued, usually
// because the handle was not in a transmit-capable state.
type TransmitError struct {
	Handle string
	Err    error
}

func (e *TransmitError) Error() string {
	return fmt.Sprintf("transmit failed on %s: %v", e.Handle, e.Err)
}

func (e *TransmitError) Unwrap() error {
	return e.Err
}

func cancelled(err error) error {
	return fmt.Errorf("attack cancelled: %w", err)
}
