package dispatcher

import (
	"errors"
	"fmt"
)

// MethodNotFoundError indicates a call to a method name that was never
// registered. This is a configuration error and is never retried.
type MethodNotFoundError struct {
	Name string
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("method %s not found", e.Name)
}

// IsMethodNotFound checks if an error is a MethodNotFoundError.
func IsMethodNotFound(err error) bool {
	var target *MethodNotFoundError
	return errors.As(err, &target)
}

// ScopesNotFoundError indicates a registered method with no declared required
// scope set. Every gated method must declare its minimum scopes at
// registration; this is a programming-contract violation, not a user error.
type ScopesNotFoundError struct {
	Name string
}

func (e *ScopesNotFoundError) Error() string {
	return fmt.Sprintf("method %s declares no required scopes", e.Name)
}

// IsScopesNotFound checks if an error is a ScopesNotFoundError.
func IsScopesNotFound(err error) bool {
	var target *ScopesNotFoundError
	return errors.As(err, &target)
}
