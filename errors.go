package tablediff

import (
	"errors"
	"fmt"
)

// ValidationError represents a configuration or schema problem detected
// before any query is issued: incompatible key types, missing columns,
// illegal bounds, an unparseable sampling spec, and similar. Validation
// errors are always returned synchronously from DiffTables.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// IsValidationError returns true if err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// SchemaError indicates a column exists in the catalog but has a type that
// cannot be mapped to a supported semantic class, and strict type checking
// forbids silently excluding it.
type SchemaError struct {
	Column string
	Raw    string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: column %q (%s): %s", e.Column, e.Raw, e.Reason)
}

// IsSchemaError returns true if err is (or wraps) a *SchemaError.
func IsSchemaError(err error) bool {
	var serr *SchemaError
	return errors.As(err, &serr)
}

// QueryError wraps any error originating from a Database during query
// execution. SQL is retained for diagnostics only; callers must not surface
// it to untrusted consumers, per the backend-originated-error contract in
// the comparison engine's error taxonomy.
type QueryError struct {
	SQL       string
	Err       error
	Transient bool // true if retrying the same query might succeed
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: %v", e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsQueryError returns true if err is (or wraps) a *QueryError.
func IsQueryError(err error) bool {
	var qerr *QueryError
	return errors.As(err, &qerr)
}

// IsTransientQueryError returns true if err is a QueryError flagged as
// transient (connection reset, serialization failure, lock wait timeout).
func IsTransientQueryError(err error) bool {
	var qerr *QueryError
	return errors.As(err, &qerr) && qerr.Transient
}

// TimeoutError indicates a run exceeded its configured wall-clock budget.
type TimeoutError struct {
	Phase string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout during %s", e.Phase)
}

// IsTimeoutError returns true if err is (or wraps) a *TimeoutError.
func IsTimeoutError(err error) bool {
	var terr *TimeoutError
	return errors.As(err, &terr)
}

// CancelledError indicates the caller cancelled the run's context.
type CancelledError struct{}

func (e *CancelledError) Error() string { return "run cancelled" }

// IsCancelledError returns true if err is (or wraps) a *CancelledError.
func IsCancelledError(err error) bool {
	var cerr *CancelledError
	return errors.As(err, &cerr)
}

// InternalError represents an invariant violation that should never happen
// in correct code -- e.g. a non-monotone row count observed between two
// queries against the same immutable segment. It carries an assertion
// token so reports can be correlated back to the specific check that
// failed, without exposing a full stack trace to callers.
type InternalError struct {
	Token  string
	Detail string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error [%s]: %s", e.Token, e.Detail)
}

// IsInternalError returns true if err is (or wraps) an *InternalError.
func IsInternalError(err error) bool {
	var ierr *InternalError
	return errors.As(err, &ierr)
}
