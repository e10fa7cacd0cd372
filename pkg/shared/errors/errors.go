package errors

import (
	"errors"
	"fmt"
)

// Kind classifies errors that are fatal to a scan.
type Kind string

const (
	// KindTransport covers clone, credential and repository lookup failures.
	KindTransport Kind = "transport"
	// KindSelection is raised when no eligible files remain after filtering.
	KindSelection Kind = "selection"
	// KindStore covers failures of the scan record backend.
	KindStore Kind = "store"
)

// ScanError represents an unrecoverable error of a scan stage.
type ScanError struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	return fmt.Sprintf("%s error during %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ScanError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err as a transport failure of op.
func NewTransportError(op string, err error) error {
	return &ScanError{Kind: KindTransport, Op: op, Err: err}
}

// NewSelectionError wraps err as a selection failure of op.
func NewSelectionError(op string, err error) error {
	return &ScanError{Kind: KindSelection, Op: op, Err: err}
}

// NewStoreError wraps err as a store failure of op.
func NewStoreError(op string, err error) error {
	return &ScanError{Kind: KindStore, Op: op, Err: err}
}

// KindOf returns the kind of the first ScanError in the chain, or an empty kind.
func KindOf(err error) Kind {
	var se *ScanError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// NotImplementedError reports a configured backend that is not available.
type NotImplementedError struct {
	MethodName string
	Backend    string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("method %q is not implemented for %q", e.MethodName, e.Backend)
}

// NewNotImplementedError constructs a NotImplementedError.
func NewNotImplementedError(methodName, backend string) error {
	return &NotImplementedError{
		MethodName: methodName,
		Backend:    backend,
	}
}
