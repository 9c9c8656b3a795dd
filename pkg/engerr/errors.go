// Package engerr defines the error taxonomy surfaced at every boundary of
// the catalog engine: a single typed error carrying a classification code
// plus status-style predicates, rather than a sentinel var per case.
package engerr

import (
	"errors"
	"fmt"
)

// Code classifies why an operation failed.
type Code string

const (
	NotFound          Code = "NotFound"
	ReferenceConflict Code = "ReferenceConflict"
	ContentConflict   Code = "ContentConflict"
	AlreadyExists     Code = "AlreadyExists"
	InvalidArgument   Code = "InvalidArgument"
	Unavailable       Code = "Unavailable"
	Internal          Code = "Internal"
	DeadlineExceeded  Code = "DeadlineExceeded"
)

// ConflictKind enumerates the per-key reasons a ContentConflict can cite.
type ConflictKind string

const (
	PayloadDiffers  ConflictKind = "PayloadDiffers"
	KeyExists       ConflictKind = "KeyExists"
	KeyDoesNotExist ConflictKind = "KeyDoesNotExist"
)

// Conflict is one entry in an aggregated ContentConflict error: the key
// path it occurred at, why, and a human-readable message.
type Conflict struct {
	Key     []string
	Kind    ConflictKind
	Message string
}

// Error is the engine's single error type. All engine-raised errors are
// *Error; adapter/collaborator errors are wrapped into one via Wrap.
type Error struct {
	Code      Code
	Reason    string
	Conflicts []Conflict
	Err       error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Reason == "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Code, e.Err)
		}
		return string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error with the given code and a formatted reason.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and reason to an underlying cause, preserving it
// for errors.Is/As via Unwrap.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Reason: fmt.Sprintf(format, args...), Err: cause}
}

// WithConflicts attaches an aggregated list of per-key conflicts rather
// than failing on the first one encountered.
func WithConflicts(code Code, conflicts []Conflict, format string, args ...any) *Error {
	return &Error{Code: code, Reason: fmt.Sprintf(format, args...), Conflicts: conflicts}
}

// CodeOf extracts the Code from err if it is (or wraps) an *Error,
// defaulting to Internal for anything else — an un-annotated error
// reaching the boundary is itself treated as a programmer error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if err == nil {
		return ""
	}
	return Internal
}

// Is reports whether err carries the given Code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// ConflictsOf extracts the Conflicts slice from err, if any.
func ConflictsOf(err error) []Conflict {
	var e *Error
	if errors.As(err, &e) {
		return e.Conflicts
	}
	return nil
}
