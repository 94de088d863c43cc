package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeStore represents graph database errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeIntegrity represents dangling-reference errors
	ErrorTypeIntegrity ErrorType = "integrity"
	// ErrorTypeParameter represents invalid caller input
	ErrorTypeParameter ErrorType = "parameter"
	// ErrorTypeTaxonomy represents classification lookup errors
	ErrorTypeTaxonomy ErrorType = "taxonomy"
	// ErrorTypeLock represents advisory lock errors
	ErrorTypeLock ErrorType = "lock"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Store Errors

// ErrStoreUnavailable is returned when the Neo4j connection fails
type ErrStoreUnavailable struct {
	*BaseError
	URI string
}

func NewStoreUnavailable(uri string, err error) *ErrStoreUnavailable {
	return &ErrStoreUnavailable{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("graph store unavailable: %s", uri), err),
		URI:       uri,
	}
}

// ErrQueryFailed is returned when a graph query fails
type ErrQueryFailed struct {
	*BaseError
	Operation string
}

func NewQueryFailed(operation string, err error) *ErrQueryFailed {
	return &ErrQueryFailed{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("query failed: %s", operation), err),
		Operation: operation,
	}
}

// Integrity Errors

// ErrIntegrityViolation is returned when a referenced node is missing
// when expected (dangling participant, broken provenance).
type ErrIntegrityViolation struct {
	*BaseError
	Entity string // taxon, association, network, set
	ID     string
}

func NewIntegrityViolation(entity, id, detail string) *ErrIntegrityViolation {
	return &ErrIntegrityViolation{
		BaseError: NewBaseError(ErrorTypeIntegrity, fmt.Sprintf("dangling %s reference %s: %s", entity, id, detail), nil),
		Entity:    entity,
		ID:        id,
	}
}

// Parameter Errors

// ErrInvalidParameter is returned for caller input rejected before any
// store interaction (bad fraction, unknown level, empty network list).
type ErrInvalidParameter struct {
	*BaseError
	Parameter string
}

func NewInvalidParameter(parameter, reason string) *ErrInvalidParameter {
	return &ErrInvalidParameter{
		BaseError: NewBaseError(ErrorTypeParameter, fmt.Sprintf("invalid %s: %s", parameter, reason), nil),
		Parameter: parameter,
	}
}

// Taxonomy Errors

// ErrUnknownLevel is returned when a taxonomy level string does not parse
type ErrUnknownLevel struct {
	*BaseError
	Level string
}

func NewUnknownLevel(level string) *ErrUnknownLevel {
	return &ErrUnknownLevel{
		BaseError: NewBaseError(ErrorTypeTaxonomy, fmt.Sprintf("unknown taxonomy level: %s", level), nil),
		Level:     level,
	}
}

// Lock Errors

// ErrLockUnavailable is returned when the advisory network lock cannot
// be acquired within the caller's context
type ErrLockUnavailable struct {
	*BaseError
	Network string
}

func NewLockUnavailable(network string, err error) *ErrLockUnavailable {
	return &ErrLockUnavailable{
		BaseError: NewBaseError(ErrorTypeLock, fmt.Sprintf("network lock unavailable: %s", network), err),
		Network:   network,
	}
}

// Helper functions

// Kind returns the error category; promoted to every composite error
func (e *BaseError) Kind() ErrorType {
	return e.Type
}

// IsErrorType checks if an error (or anything it wraps) is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if typed, ok := err.(interface{ Kind() ErrorType }); ok {
			return typed.Kind() == errType
		}
		err = stderrors.Unwrap(err)
	}
	return false
}
