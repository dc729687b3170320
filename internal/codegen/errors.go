package codegen

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned for empty name-issuance inputs.
var ErrInvalidArgument = errors.New("invalid argument")

// InvariantError is the panic value raised when a caller breaks the
// single-writer-per-key discipline of a Cache.
type InvariantError struct {
	Key      any
	Existing UnitRef
	Rejected UnitRef
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("codegen: duplicate cache entry for key %v (existing %s, rejected %s)",
		e.Key, e.Existing.Name, e.Rejected.Name)
}

// IsInvariantViolation reports whether a recovered panic value is an InvariantError.
func IsInvariantViolation(v any) bool {
	err, ok := v.(error)
	if !ok {
		return false
	}
	var ie *InvariantError
	return errors.As(err, &ie)
}
