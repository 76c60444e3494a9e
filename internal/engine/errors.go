package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/actionstore/internal/action"
)

// ErrNotFound is returned, usually wrapped, when an action id does not exist.
// Backends must wrap it so that IsNotFound matches.
var ErrNotFound = errors.New("action not found")

// NotFound returns ErrNotFound wrapped with the id that was looked up.
func NotFound(id string) error {
	return fmt.Errorf("action %q: %w", id, ErrNotFound)
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is or wraps action.ValidationErrors.
func IsValidation(err error) bool {
	_, ok := action.AsValidationErrors(err)
	return ok
}

// ContractError reports a backend that broke the Storable contract, such as
// CreateMany returning fewer records than it was given.
type ContractError struct {
	// Code identifies the violated rule.
	Code ContractErrorCode

	// Op is the engine operation that detected the violation.
	Op string

	// Message is a human-readable description.
	Message string
}

// ContractErrorCode categorizes contract violations.
type ContractErrorCode string

const (
	// ErrCodeCountMismatch indicates CreateMany returned a different number
	// of records than it received.
	ErrCodeCountMismatch ContractErrorCode = "COUNT_MISMATCH"
)

// Error implements the error interface.
func (e *ContractError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsContractError reports whether err is or wraps a ContractError.
// Uses errors.As to handle wrapped errors.
func IsContractError(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}

func newCountMismatch(op string, want, got int) *ContractError {
	return &ContractError{
		Code:    ErrCodeCountMismatch,
		Op:      op,
		Message: fmt.Sprintf("backend returned %d records for %d inputs", got, want),
	}
}
