package feedapi

import (
	"errors"
	"fmt"
)

// TransportError means the request never produced a response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("feedapi: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a response with a non-success status, or an explicit failure
// reported in an otherwise successful body. Detail carries the server's
// message when one could be read.
type APIError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("feedapi: %s returned status %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("feedapi: %s returned status %d", e.Op, e.StatusCode)
}

// MalformedResponseError is a success status whose body could not be used.
type MalformedResponseError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("feedapi: %s: malformed response (status %d): %v", e.Op, e.StatusCode, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a connectivity failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Detail extracts the server-supplied message from err, if any.
func Detail(err error) (string, bool) {
	var ae *APIError
	if errors.As(err, &ae) && ae.Detail != "" {
		return ae.Detail, true
	}
	return "", false
}
