// Package checkpoint decorates errors with the location they passed through
// and with a sentinel describing what failed at that location.
// A checkpoint matches its sentinel with errors.Is / errors.As and unwraps to
// the cause, so both the classification and the original error stay reachable.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// From decorates err with the caller location only.
// It returns nil if err is nil.
func From(err error) error {
	if err == nil {
		return nil
	}

	// io.EOF must be returned as io.EOF directly
	// https://github.com/golang/go/issues/39155
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return err
	}

	return newCheckpoint(err, nil, "")
}

// Wrap decorates cause with the caller location and a sentinel which
// classifies it:
//
//	var ErrIO = errors.New("i/o error")
//
//	func readSector() error {
//		err := device.Read(...)
//		return checkpoint.Wrap(err, ErrIO)
//	}
//
// errors.Is(err, ErrIO) then holds, and errors.Unwrap(err) yields the device
// error. Wrap returns nil if cause is nil.
func Wrap(cause, sentinel error) error {
	if cause == nil {
		return nil
	}
	if cause == io.EOF {
		return io.EOF
	}

	return newCheckpoint(cause, sentinel, "")
}

// Wrapf is like Wrap but also records a formatted detail, e.g. the sector or
// cluster involved.
func Wrapf(cause, sentinel error, format string, args ...interface{}) error {
	if cause == nil {
		return nil
	}
	if cause == io.EOF {
		return io.EOF
	}

	return newCheckpoint(cause, sentinel, fmt.Sprintf(format, args...))
}

// New creates a checkpoint for a failure which has no underlying cause, e.g.
// a corrupt value found on disk.
func New(sentinel error, format string, args ...interface{}) error {
	return newCheckpoint(errors.New(fmt.Sprintf(format, args...)), sentinel, "")
}

func newCheckpoint(cause, sentinel error, detail string) *checkpoint {
	// Skip newCheckpoint and the exported function.
	_, file, line, ok := runtime.Caller(2)

	return &checkpoint{
		sentinel: sentinel,
		cause:    cause,
		detail:   detail,

		callerOk: ok,
		file:     filepath.Base(file),
		line:     line,
	}
}

type checkpoint struct {
	sentinel error
	cause    error
	detail   string

	callerOk bool
	file     string
	line     int
}

func (e *checkpoint) location() string {
	if !e.callerOk {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", e.file, e.line)
}

func (e *checkpoint) Error() string {
	var b strings.Builder

	if e.sentinel != nil {
		b.WriteString(e.sentinel.Error())
		b.WriteString(": ")
	}
	if e.detail != "" {
		b.WriteString(e.detail)
		b.WriteString(": ")
	}
	b.WriteString(e.cause.Error())
	b.WriteString(" (")
	b.WriteString(e.location())
	b.WriteString(")")

	return b.String()
}

func (e *checkpoint) Unwrap() error {
	return e.cause
}

func (e *checkpoint) Is(target error) bool {
	if e.sentinel == nil {
		return false
	}
	return errors.Is(e.sentinel, target)
}

func (e *checkpoint) As(target interface{}) bool {
	if e.sentinel == nil {
		return false
	}
	return errors.As(e.sentinel, target)
}
