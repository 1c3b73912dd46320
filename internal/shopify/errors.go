package shopify

import (
	"errors"
	"fmt"
)

// ErrTransport marks network, HTTP, and response-parse failures.
var ErrTransport = errors.New("transport error")

// TransportError is a failed call to the Admin API.
type TransportError struct {
	Op      string
	Status  int // 0 when no HTTP response was received
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}

// Throttled reports whether the API rejected the call for rate limiting.
func (e *TransportError) Throttled() bool {
	return e.Status == 429
}
