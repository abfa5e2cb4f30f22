package domain

import (
	"errors"
	"fmt"
)

// ErrStaleState is returned by conditional writes that matched zero rows.
var ErrStaleState = errors.New("row state changed since it was read")

type NotFoundError struct {
	Resource string
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

// ConflictError reports an availability clash. Details carries the clashing ranges.
type ConflictError struct {
	Resource string
	Msg      string
	Details  any
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

// StateError is a failed state precondition, e.g. accepting a booking that is no longer pending.
type StateError struct {
	Current string
	Msg     string
	Err     error
}

func (e StateError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Current != "" {
		return fmt.Sprintf("operation not allowed in state %s", e.Current)
	}
	return "invalid state"
}

func (e StateError) Unwrap() error { return e.Err }

type AuthenticationError struct {
	Msg string
	Err error
}

func (e AuthenticationError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "authentication required"
}

func (e AuthenticationError) Unwrap() error { return e.Err }

type AuthorizationError struct {
	Msg string
	Err error
}

func (e AuthorizationError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "forbidden"
}

func (e AuthorizationError) Unwrap() error { return e.Err }

// ExternalServiceError wraps failures of the payment processor or other remote dependencies.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e ExternalServiceError) Error() string {
	if e.Service == "" {
		return "external service unavailable"
	}
	return fmt.Sprintf("%s unavailable", e.Service)
}

func (e ExternalServiceError) Unwrap() error { return e.Err }

type InternalError struct {
	Msg string
	Err error
}

func (e InternalError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

func (e InternalError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsState(err error) bool {
	var target StateError
	return errors.As(err, &target)
}

func IsAuthentication(err error) bool {
	var target AuthenticationError
	return errors.As(err, &target)
}

func IsAuthorization(err error) bool {
	var target AuthorizationError
	return errors.As(err, &target)
}

func IsExternal(err error) bool {
	var target ExternalServiceError
	return errors.As(err, &target)
}

// ConflictDetails returns the Details payload of a ConflictError, if any.
func ConflictDetails(err error) any {
	var target ConflictError
	if errors.As(err, &target) {
		return target.Details
	}
	return nil
}
