package portsql

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common failures.
var (
	// ErrCast is returned when a value cannot be converted to a declared field type.
	ErrCast = errors.New("portsql: cast failed")

	// ErrConflict is returned when a dotted-path write meets a non-object node
	// where an object was expected.
	ErrConflict = errors.New("portsql: conflicting field names")

	// ErrDuplicateField is returned when a dotted-path write targets a leaf
	// that is already populated.
	ErrDuplicateField = errors.New("portsql: duplicate field")

	// ErrInsertIDUnavailable is returned by InsertID when no primary key could
	// be resolved or no generated value was captured.
	ErrInsertIDUnavailable = errors.New("portsql: insert id unavailable")

	// ErrStatementDone is returned when a statement is prepared or executed
	// a second time.
	ErrStatementDone = errors.New("portsql: statement already consumed")
)

// CastError represents a failed conversion of a value to a field type.
type CastError struct {
	Type  string // Target type name
	Value any    // Source value
	Err   error  // Optional underlying parse error
}

// Error returns the error string.
func (e *CastError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("portsql: cannot cast %v (%T) to %s: %v", e.Value, e.Value, e.Type, e.Err)
	}
	return fmt.Sprintf("portsql: cannot cast %v (%T) to %s", e.Value, e.Value, e.Type)
}

// Unwrap returns the underlying error.
func (e *CastError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches CastError.
func (e *CastError) Is(err error) bool {
	return err == ErrCast
}

// NewCastError returns a new CastError for the given target type name.
func NewCastError(typ string, value any, err error) *CastError {
	return &CastError{Type: typ, Value: value, Err: err}
}

// IsCastError returns true if the error is a CastError.
func IsCastError(err error) bool {
	if err == nil {
		return false
	}
	var e *CastError
	return errors.As(err, &e) || errors.Is(err, ErrCast)
}

// ConflictError represents a dotted-path write where an intermediate
// segment already holds a non-object value, e.g. writing both "name"
// and "name.first".
type ConflictError struct {
	Name    string // Full dotted name being written
	Segment string // Segment that holds the non-object value
}

// Error returns the error string.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("portsql: field %q conflicts with a non-object value at %q", e.Name, e.Segment)
}

// Is reports whether the target error matches ConflictError.
func (e *ConflictError) Is(err error) bool {
	return err == ErrConflict
}

// NewConflictError returns a new ConflictError.
func NewConflictError(name, segment string) *ConflictError {
	return &ConflictError{Name: name, Segment: segment}
}

// IsConflictError returns true if the error is a ConflictError.
func IsConflictError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConflictError
	return errors.As(err, &e) || errors.Is(err, ErrConflict)
}

// DuplicateFieldError represents a dotted-path write to a leaf that is
// already populated.
type DuplicateFieldError struct {
	Name string
}

// Error returns the error string.
func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("portsql: duplicate field %q", e.Name)
}

// Is reports whether the target error matches DuplicateFieldError.
func (e *DuplicateFieldError) Is(err error) bool {
	return err == ErrDuplicateField
}

// NewDuplicateFieldError returns a new DuplicateFieldError.
func NewDuplicateFieldError(name string) *DuplicateFieldError {
	return &DuplicateFieldError{Name: name}
}

// IsDuplicateField returns true if the error is a DuplicateFieldError.
func IsDuplicateField(err error) bool {
	if err == nil {
		return false
	}
	var e *DuplicateFieldError
	return errors.As(err, &e) || errors.Is(err, ErrDuplicateField)
}

// InsertIDUnavailableError represents a failed insert id lookup. The insert
// itself succeeded.
type InsertIDUnavailableError struct {
	Table  string
	Reason string
}

// Error returns the error string.
func (e *InsertIDUnavailableError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("portsql: insert id unavailable for %s: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("portsql: insert id unavailable: %s", e.Reason)
}

// Is reports whether the target error matches InsertIDUnavailableError.
func (e *InsertIDUnavailableError) Is(err error) bool {
	return err == ErrInsertIDUnavailable
}

// NewInsertIDUnavailableError returns a new InsertIDUnavailableError.
func NewInsertIDUnavailableError(table, reason string) *InsertIDUnavailableError {
	return &InsertIDUnavailableError{Table: table, Reason: reason}
}

// IsInsertIDUnavailable returns true if the error is an InsertIDUnavailableError.
func IsInsertIDUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var e *InsertIDUnavailableError
	return errors.As(err, &e) || errors.Is(err, ErrInsertIDUnavailable)
}

// StatementError wraps a statement construction error with the operation
// being built.
type StatementError struct {
	Op  string // Operation (e.g., "select", "insert")
	Err error  // Underlying error
}

// Error returns the error string.
func (e *StatementError) Error() string {
	return fmt.Sprintf("portsql: building %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StatementError) Unwrap() error {
	return e.Err
}

// NewStatementError returns a new StatementError.
func NewStatementError(op string, err error) *StatementError {
	return &StatementError{Op: op, Err: err}
}

// IsStatementError returns true if the error is a StatementError.
func IsStatementError(err error) bool {
	if err == nil {
		return false
	}
	var e *StatementError
	return errors.As(err, &e)
}
