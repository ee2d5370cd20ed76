// Package oserr defines the error taxonomy shared by every core
// subsystem: the physical memory device, the address-space map, the
// VMA allocator, the demand pager, the syscall dispatcher and the
// scheduler all report failures through this package rather than
// ad-hoc fmt.Errorf values, so callers can dispatch on Code the way
// the syscall layer must.
package oserr

import (
	"errors"
	"fmt"
)

// Code classifies the failure. See spec §7 for the full taxonomy.
type Code int

const (
	// InvalidArgument covers bad symbol indices, unknown VMA ids,
	// misaligned sizes, and overlapping VMA extensions.
	InvalidArgument Code = iota + 1
	// OutOfMemory covers no free frame and no free swap slot (or no
	// victim candidate to evict).
	OutOfMemory
	// NotFound covers an unknown PID or an already-empty symbol slot.
	NotFound
	// IoOutOfBounds covers a MemPhy address outside [0, max_size).
	IoOutOfBounds
	// Unsupported covers a sequential op on a random device, or an
	// unknown syscall opcode.
	Unsupported
)

func (c Code) String() string {
	switch c {
	case InvalidArgument:
		return "InvalidArgument"
	case OutOfMemory:
		return "OutOfMemory"
	case NotFound:
		return "NotFound"
	case IoOutOfBounds:
		return "IoOutOfBounds"
	case Unsupported:
		return "Unsupported"
	default:
		return "Unknown"
	}
}

// Error is the concrete error value returned by core subsystem
// operations. Op names the failing operation (e.g. "pg_getpage",
// "inc_vma_limit") so a trace line or log record can name it without
// re-deriving it from a stack trace.
type Error struct {
	Op   string
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(op string, code Code) *Error {
	return &Error{Op: op, Code: code}
}

// Wrap builds an *Error around an existing error.
func Wrap(op string, code Code, err error) *Error {
	return &Error{Op: op, Code: code, Err: err}
}

// Is reports whether err is an *Error carrying the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
