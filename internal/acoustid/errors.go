package acoustid

import (
	"fmt"
)

// ErrorKind classifies recognition failures so callers can decide between
// retrying, backing off, and recording a no-match.
type ErrorKind int

const (
	// KindNetwork covers transport failures and unexpected HTTP statuses.
	KindNetwork ErrorKind = iota
	// KindRateLimited means the service asked us to slow down.
	KindRateLimited
	// KindBadResponse means the body could not be parsed or the API
	// reported an error status.
	KindBadResponse
	// KindNoMatches means the lookup succeeded but returned nothing.
	KindNoMatches
	// KindLowConfidence means matches exist but none cleared the
	// confidence threshold.
	KindLowConfidence
)

// Error is a recognition failure.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("acoustid: %s: %v", e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("acoustid: %v", e.Err)
	default:
		return fmt.Sprintf("acoustid: %s", e.Msg)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}
