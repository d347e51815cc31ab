package domain

import (
	"errors"
	"fmt"
)

// ErrSubscribeUnsupported is returned by adapters without a change feed.
var ErrSubscribeUnsupported = errors.New("persistence: subscribe not supported")

// ErrUnknownSchool is returned when a name is not one of the coordinated schools.
type ErrUnknownSchool struct {
	Name string
}

func (e ErrUnknownSchool) Error() string {
	return fmt.Sprintf("unknown school %q", e.Name)
}

// ErrUnknownField is returned when a field is not an editable school counter.
type ErrUnknownField struct {
	Field string
}

func (e ErrUnknownField) Error() string {
	return fmt.Sprintf("unknown field %q (want %s or %s)", e.Field, FieldAnimatorCount, FieldStudentCount)
}

// PersistenceError reports a failed store interaction.
type PersistenceError struct {
	Op     string
	Driver string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Driver, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// WrapPersistence wraps err as a PersistenceError unless it is nil or
// already one.
func WrapPersistence(driver, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Driver: driver, Err: err}
}
