package session

import (
	"errors"
	"fmt"
)

// StatementError reports a statement that could not be compiled or run.
//
// It carries the seq number the statement was stamped with and the SQL
// text, when compilation got that far. The cause is available through
// errors.Is and errors.As.
type StatementError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Kind is the statement kind (read, insert, update, delete).
	Kind Kind

	// Seq is the statement's sequence number.
	Seq int64

	// SQL is the statement text, empty if compilation failed.
	SQL string

	// Err is the underlying error.
	Err error
}

// ErrorCode categorizes statement errors.
type ErrorCode string

const (
	// ErrCodeCompile indicates the relation or command failed to compile.
	ErrCodeCompile ErrorCode = "COMPILE_FAILED"

	// ErrCodeExecute indicates the database rejected the statement.
	ErrCodeExecute ErrorCode = "EXECUTE_FAILED"
)

// Error implements the error interface.
func (e *StatementError) Error() string {
	return fmt.Sprintf("%s: %s statement %d: %v", e.Code, e.Kind, e.Seq, e.Err)
}

// Unwrap returns the underlying error.
func (e *StatementError) Unwrap() error {
	return e.Err
}

// IsCompileError returns true if err is a statement that failed to compile.
// Uses errors.As to handle wrapped errors.
func IsCompileError(err error) bool {
	var se *StatementError
	if errors.As(err, &se) {
		return se.Code == ErrCodeCompile
	}
	return false
}

// IsExecuteError returns true if err is a statement the database rejected.
func IsExecuteError(err error) bool {
	var se *StatementError
	if errors.As(err, &se) {
		return se.Code == ErrCodeExecute
	}
	return false
}
