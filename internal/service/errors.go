package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every *NotFoundError
	ErrNotFound = errors.New("not found")
	// ErrAuthorizationDenied is matched by every *AuthorizationError
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrInvalidInput wraps validation failures
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict wraps requests that clash with current state
	ErrConflict = errors.New("conflict")
)

// Denial reasons carried by AuthorizationError
const (
	ReasonNotCreator      = "not the family creator"
	ReasonTargetIsCreator = "target is the family creator"
	ReasonNotOwner        = "not the content owner"
	ReasonSilenced        = "member is silenced"
	ReasonNotMember       = "not a family member"
)

// AuthorizationError is returned when the requester may not perform an
// operation. No state is changed when it is returned.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "authorization denied: " + e.Reason
}

// Is reports whether the error matches ErrAuthorizationDenied
func (e *AuthorizationError) Is(target error) bool {
	return target == ErrAuthorizationDenied
}

func denied(reason string) error {
	return &AuthorizationError{Reason: reason}
}

// NotFoundError is returned when a referenced entity does not exist, or is not
// visible to the requester.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Is reports whether the error matches ErrNotFound
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// PartialBatchError reports batches that failed during a fan-out load. The
// records of the remaining batches are still returned.
type PartialBatchError struct {
	Failed int
	Total  int
	Errs   []error
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("%d of %d batches failed: %v", e.Failed, e.Total, errors.Join(e.Errs...))
}

func (e *PartialBatchError) Unwrap() []error {
	return e.Errs
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}
