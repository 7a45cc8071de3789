package remote

import (
	"errors"
)

// FailureClass splits remote failures the way the drain loop needs them:
// transient failures are retried with backoff and pause the pass; permanent
// failures are terminal for the action and cascade to its dependents.
type FailureClass int

const (
	// Transient: network unreachable, timeout, or server 5xx. Retryable.
	Transient FailureClass = iota
	// Permanent: validation or business-rule rejection (4xx). Never retried.
	Permanent
)

// Classify maps an error from this package into a failure class.
//
// Anything that never reached a well-formed server response (DNS failure,
// connection refused, timeout, truncated body) is transient: the action may
// well succeed once connectivity recovers. A structured server rejection with
// a 4xx status is permanent. 5xx means the server itself is unwell — also
// transient.
func Classify(err error) FailureClass {
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden) || errors.Is(err, ErrNotFound) {
		return Permanent
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			return Permanent
		}
		return Transient
	}

	// Transport-level failure
	return Transient
}
