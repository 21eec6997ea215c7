package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrForbidden     = errors.New("not authorized")
	ErrValidation    = errors.New("validation failed")
	ErrTransaction   = errors.New("transaction failed")
)

// ValidationError reports a rejected payload. Fields maps a field path
// (e.g. "attributes[2].name") to the reason it was rejected.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// NewValidation creates a ValidationError with a single message and no field details.
func NewValidation(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// TxError wraps a store failure that aborted a transaction. The transaction
// has been rolled back by the time a TxError is returned.
type TxError struct {
	Op  string
	Err error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TxError) Unwrap() []error { return []error{ErrTransaction, e.Err} }
