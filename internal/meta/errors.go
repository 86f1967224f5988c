package meta

import (
	"fmt"
)

// ErrorKind classifies metadata failures.
type ErrorKind int

const (
	// KindUnreadable means the file exists but its tags could not be parsed.
	KindUnreadable ErrorKind = iota
	// KindUnsupportedFormat means the extension is not a known audio format.
	KindUnsupportedFormat
	// KindWriteDenied means tags cannot be written to this file, either
	// because the format is read-only or the file is not writable.
	KindWriteDenied
)

// Error is a metadata failure tied to a file.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnsupportedFormat:
		return fmt.Sprintf("unsupported audio format: %s", e.Path)
	case KindWriteDenied:
		return fmt.Sprintf("cannot write tags to %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("cannot read metadata from %s: %v", e.Path, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}
