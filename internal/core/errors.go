package core

import "errors"

var (
	// ErrDuplicateSession is returned by the registry when a live
	// session already exists for the call.
	ErrDuplicateSession = errors.New("session already registered for call")

	// ErrSocketClosed means the telephony socket is gone; pumps treat
	// it as normal termination, not a failure.
	ErrSocketClosed = errors.New("telephony socket closed")

	// ErrConnectionFailed wraps room connect failures: bad credential
	// or unreachable service. Sessions tear down, no retry.
	ErrConnectionFailed = errors.New("room connection failed")

	// ErrInvalidNumber reports a destination that failed E.164
	// validation; the telephony API is never contacted.
	ErrInvalidNumber = errors.New("invalid phone number")
)
