package scheduling

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict means the slot was taken between listing and commit.
	ErrConflict = errors.New("slot no longer available")
	ErrNotFound = errors.New("not found")
)

// ValidationError is a user-correctable input problem detected before any I/O.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// StoreError wraps a local persistence failure. Callers may retry.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsStoreFailure(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
