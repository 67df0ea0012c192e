package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates malformed input or a reference to an unknown role.
	ErrValidation = errors.New("validation failed")
	// ErrAuthorization indicates the actor lacks authority for the requested mutation.
	ErrAuthorization = errors.New("insufficient authority")
	// ErrDuplicateRole indicates a custom role collides with an existing role.
	ErrDuplicateRole = errors.New("role already exists")
	// ErrNotFound indicates an operation referenced an unknown module or record.
	ErrNotFound = errors.New("not found")
	// ErrLastSuperAdmin indicates a revocation would leave no super_admin.
	ErrLastSuperAdmin = fmt.Errorf("%w: cannot revoke the last super_admin", ErrValidation)
)

// StoreError wraps a persistence failure with the key it was operating on.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeError(op, key string, err error) error {
	return &StoreError{Op: op, Key: key, Err: err}
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
