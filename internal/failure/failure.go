// Package failure defines the typed failures surfaced by the plugin subsystem.
//
// Every failure carries a Kind that tells the host how to react:
//   - MalformedManifest: an archive lacks mandatory metadata
//   - IncompatibleUnit: blacklist, built-in collision, duplicate key, host API too old
//   - UnresolvedDependency: missing base, missing or too old required unit (skip)
//   - StageFailure: I/O error while moving an archive between lifecycle dirs
//   - HashComputationError: a content hash could not be computed
//   - InstantiationFailure: a unit's entry point could not be created or started
//   - NotFound: registry lookup for an unknown key
//
// Only UnresolvedDependency is recoverable; the loader logs it and continues.
//
// # Usage
//
//	err := failure.New(failure.IncompatibleUnit, "plugin %s is blacklisted", key)
//	if failure.Is(err, failure.IncompatibleUnit) {
//	    // abort startup
//	}
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a machine-readable failure category.
type Kind string

const (
	MalformedManifest    Kind = "MALFORMED_MANIFEST"
	IncompatibleUnit     Kind = "INCOMPATIBLE_UNIT"
	UnresolvedDependency Kind = "UNRESOLVED_DEPENDENCY"
	StageFailure         Kind = "STAGE_FAILURE"
	HashComputationError Kind = "HASH_COMPUTATION_ERROR"
	InstantiationFailure Kind = "INSTANTIATION_FAILURE"
	NotFound             Kind = "NOT_FOUND"
)

// Error is a failure with a kind and an optional cause.
type Error struct {
	Kind    Kind   // Machine-readable category
	Message string // Human-readable, user-actionable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a failure with the given kind and formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a failure wrapping an existing error.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err, or any error it wraps or joins, has the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) && e.Kind == kind {
		return true
	}
	// errors.As stops at the first *Error; joined errors may hold others.
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, inner := range joined.Unwrap() {
			if Is(inner, kind) {
				return true
			}
		}
	}
	return false
}

// KindOf extracts the kind of the first failure in the chain.
// Returns an empty Kind if err is not a failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

