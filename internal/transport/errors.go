package transport

import (
	"errors"
	"fmt"
)

// ErrSessionExpired is returned on an HTTP 401 while a session exists.
// This is the one piece of response interpretation the transport layer
// performs itself; everything else is interpreted higher up.
var ErrSessionExpired = errors.New(
	"session expired: re-authenticate and set new session cookies",
)

// StatusError is an HTTP response with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("portal responded with status %d", e.Code)
}

// RequestError is a request that produced no response at all
// (DNS failure, timeout, connection refused).
type RequestError struct {
	Cause error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed before a response arrived: %v (check connectivity to the portal)", e.Cause)
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}
