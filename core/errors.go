package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
}

func NewNotFoundError(entity string) *NotFoundError {
	return &NotFoundError{Entity: entity}
}

func (err *NotFoundError) Error() string {
	return err.Entity + " not found"
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// PolicyError reports a request that is well formed but breaks a school rule
// (score quotas, admission age, capacity...). Kind is the sentinel callers match with errors.Is.
type PolicyError struct {
	Kind error
	Msg  string
}

func NewPolicyError(kind error, format string, args ...interface{}) error {
	return &PolicyError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func (err *PolicyError) Error() string {
	if err.Msg == "" {
		return err.Kind.Error()
	}
	return err.Msg
}

func (err *PolicyError) Unwrap() error { return err.Kind }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
