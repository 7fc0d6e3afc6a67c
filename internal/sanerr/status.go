// Package sanerr defines the SANE status taxonomy shared by every layer of
// the codec, backend interface, net backend, and saned.
//
// The status set is closed and small by design (RFC-fixed, not an
// open/extensible error domain), so it is expressed as typed constants over
// the standard errors package rather than a third-party error-wrapping
// library: there is nothing here for a library like pkg/errors or
// go-multierror to add.
package sanerr

import "fmt"

// Status is a SANE operation result code. Zero value is Good.
type Status int

const (
	Good Status = iota
	Unsupported
	Cancelled
	DeviceBusy
	Inval
	EOF
	Jammed
	NoDocs
	CoverOpen
	IOError
	NoMem
	AccessDenied
)

var names = map[Status]string{
	Good:         "GOOD",
	Unsupported:  "UNSUPPORTED",
	Cancelled:    "CANCELLED",
	DeviceBusy:   "DEVICE_BUSY",
	Inval:        "INVAL",
	EOF:          "EOF",
	Jammed:       "JAMMED",
	NoDocs:       "NO_DOCS",
	CoverOpen:    "COVER_OPEN",
	IOError:      "IO_ERROR",
	NoMem:        "NO_MEM",
	AccessDenied: "ACCESS_DENIED",
}

func (s Status) String() string {
	if n, ok := names[s]; ok {
		return n
	}
	return fmt.Sprintf("STATUS(%d)", int(s))
}

// Ok reports whether the status represents success.
func (s Status) Ok() bool { return s == Good }

// Error implements the error interface so a Status can be returned directly
// from functions that need to distinguish "a SANE status" from "a transport
// or programming error" (see StatusError below for the latter).
func (s Status) Error() string { return s.String() }

// StatusError wraps a Status with additional context, for logging. Handlers
// that need to surface a status over the wire should still propagate the
// bare Status; StatusError is for internal diagnostics only.
type StatusError struct {
	Status Status
	Op     string
	Err    error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Status)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Wrap builds a StatusError, returning nil if status is Good.
func Wrap(op string, status Status, err error) error {
	if status == Good {
		return nil
	}
	return &StatusError{Op: op, Status: status, Err: err}
}
