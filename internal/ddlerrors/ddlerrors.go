// Package ddlerrors holds the distinct error kinds spec.md §7 names.
// Each wraps its triggering cause so callers can unwrap to the
// underlying database/file error when they need to.
package ddlerrors

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError signals invalid options, a missing file, a target
// that does not exist in the registry, a reserved table name defined in
// the schema, an invalid prompt reply, or an unknown action string.
// Constructors validate eagerly, so ValidationError is always raised
// before any database or filesystem mutation.
type ValidationError struct {
	Reason string
	Cause  error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("validation: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// ManualMigrationRequired is raised when one or more rename or
// destructive-change decisions were deferred to a human during make.
type ManualMigrationRequired struct {
	Reasons []string
}

func (e *ManualMigrationRequired) Error() string {
	var b strings.Builder
	b.WriteString("manual migration required:\n")
	for _, r := range e.Reasons {
		b.WriteString("  - ")
		b.WriteString(r)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// RolledBackTransaction wraps any failure that occurred inside
// migrate's transaction; by the time this is returned the transaction
// has already been rolled back and the database is unchanged.
type RolledBackTransaction struct {
	Cause error
}

func (e *RolledBackTransaction) Error() string {
	return fmt.Sprintf("transaction rolled back: %v", e.Cause)
}

func (e *RolledBackTransaction) Unwrap() error { return e.Cause }

// IntegrityError signals a post-commit PRAGMA integrity_check or
// PRAGMA foreign_key_check failure. Unlike RolledBackTransaction, this
// occurs after commit: the caller must re-migrate to recover.
type IntegrityError struct {
	Cause error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed after commit: %v", e.Cause)
}

func (e *IntegrityError) Unwrap() error { return e.Cause }

// AsValidation returns a *ValidationError with reason, wrapping cause;
// a nil cause yields a *ValidationError with no Cause.
func AsValidation(reason string, cause error) error {
	if cause == nil {
		return &ValidationError{Reason: reason}
	}
	return &ValidationError{Reason: reason, Cause: cause}
}

// Is reports whether err is (or wraps) an error of type T.
func Is[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
