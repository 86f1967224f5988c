package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a catalog failure for callers that react differently
// to constraint violations and plain I/O faults.
type ErrorKind int

const (
	// KindIo covers driver, disk, and connection failures.
	KindIo ErrorKind = iota
	// KindIntegrity covers constraint violations and corrupt databases.
	KindIntegrity
)

// Error wraps a database error with the operation that produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindIntegrity:
		return fmt.Sprintf("catalog integrity error in %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("catalog error in %s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsIntegrity reports whether err is a catalog integrity failure.
func IsIntegrity(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == KindIntegrity
}

// wrapError classifies a raw driver error. SQLite surfaces constraint
// violations and corruption only through the message text.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	kind := KindIo
	if strings.Contains(msg, "constraint") ||
		strings.Contains(msg, "malformed") ||
		strings.Contains(msg, "corrupt") {
		kind = KindIntegrity
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
