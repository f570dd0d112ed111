// Package domain defines core types, interfaces, and errors for the sheet
// sync engine.
package domain

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// RemoteError indicates the remote sheet store could not be reached or
// refused an operation before any write happened.
type RemoteError struct {
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *RemoteError) Unwrap() error { return e.Err }

// PartialWriteError indicates a chunked write failed after earlier chunks
// were already committed. RowsWritten counts rows known to be durable.
type PartialWriteError struct {
	RowsWritten int
	Chunk       int
	Err         error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("write chunk %d failed after %d rows written: %v", e.Chunk, e.RowsWritten, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrRemote creates a RemoteError wrapping err with a formatted message.
func ErrRemote(err error, format string, args ...interface{}) *RemoteError {
	return &RemoteError{Message: fmt.Sprintf(format, args...), Err: err}
}

// ErrPartialWrite creates a PartialWriteError for a failure on the given
// 1-based chunk after rowsWritten rows were committed.
func ErrPartialWrite(err error, chunk, rowsWritten int) *PartialWriteError {
	return &PartialWriteError{RowsWritten: rowsWritten, Chunk: chunk, Err: err}
}
