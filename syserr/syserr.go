// Package syserr maps errors of the fat16 driver onto the numeric error
// codes of the syscall interface.
package syserr

import (
	"errors"
	"fmt"

	"github.com/aligator/fat16"
)

// Code is a syscall result. Error codes occupy the top of the 64 bit range.
type Code uint64

const (
	OK               Code = 0
	BadSyscall       Code = 0xffff_ffff_0000_0001
	BadPointer       Code = 0xffff_ffff_0000_0002
	AlreadyMapped    Code = 0xffff_ffff_0000_0003
	MemoryExhausted  Code = 0xffff_ffff_0000_0004
	IllegalValue     Code = 0xffff_ffff_0000_0005
	WrongObjectKind  Code = 0xffff_ffff_0000_0006
	BadHandle        Code = 0xffff_ffff_0000_0007
	IoError          Code = 0xffff_ffff_0000_0008
	NoFile           Code = 0xffff_ffff_0000_0009
	InvalidOperation Code = 0xffff_ffff_0000_0010
)

var names = map[Code]string{
	OK:               "ok",
	BadSyscall:       "bad syscall",
	BadPointer:       "bad pointer",
	AlreadyMapped:    "already mapped",
	MemoryExhausted:  "memory exhausted",
	IllegalValue:     "illegal value",
	WrongObjectKind:  "wrong object kind",
	BadHandle:        "bad handle",
	IoError:          "i/o error",
	NoFile:           "no file",
	InvalidOperation: "invalid operation",
}

func (c Code) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%#x)", uint64(c))
}

// IsError reports whether c lies in the error range.
func (c Code) IsError() bool {
	return c >= BadSyscall
}

// FromError returns the code for err. Corruption is reported as IoError,
// the syscall interface has no code of its own for it. Errors without a
// known classification are reported as IoError as well.
func FromError(err error) Code {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, fat16.ErrMemoryExhausted):
		return MemoryExhausted
	case errors.Is(err, fat16.ErrNotFound):
		return NoFile
	case errors.Is(err, fat16.ErrUnsupported):
		return IllegalValue
	case errors.Is(err, fat16.ErrNotDirectory), errors.Is(err, fat16.ErrIsDirectory):
		return WrongObjectKind
	case errors.Is(err, fat16.ErrReadOnly):
		return InvalidOperation
	case errors.Is(err, fat16.ErrIO), errors.Is(err, fat16.ErrCorruptFilesystem):
		return IoError
	default:
		return IoError
	}
}
