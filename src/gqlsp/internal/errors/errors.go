// Package errors holds the domain errors shared by the daemon packages.
package errors

import stderr "errors"

// New is errors.New, re-exported so callers need a single errors import.
func New(msg string) error {
	return stderr.New(msg)
}

// Malformed request payloads.
var (
	NoUUIDOnWireError       = New("request has no session id")
	NoMessageOnWireError    = New("request has no payload")
	NoCommandArgumentsError = New("command has no usable arguments")
)

// IsBadRequest reports whether e was caused by a malformed request payload.
func IsBadRequest(e error) bool {
	for _, bad := range []error{NoUUIDOnWireError, NoMessageOnWireError, NoCommandArgumentsError} {
		if stderr.Is(e, bad) {
			return true
		}
	}
	return false
}
