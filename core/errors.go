package core

import (
	"strings"

	"github.com/pkg/errors"
)

type (
	// FieldError names the config key or request field a validation failure is about.
	FieldError struct {
		Field string
		Error string
	}

	ValidationError struct {
		Err    error
		Fields []FieldError
	}

	shutdownError struct {
		reason string
	}
)

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (verr ValidationError) Error() string {
	if verr.Err != nil {
		return verr.Err.Error()
	}
	msgs := make([]string, 0, len(verr.Fields))
	for _, fe := range verr.Fields {
		msgs = append(msgs, fe.Field+": "+fe.Error)
	}
	return strings.Join(msgs, "; ")
}

func (verr ValidationError) Unwrap() error { return verr.Err }

// NewShutdownError returns an error that makes the API stop gracefully once handled.
func NewShutdownError(reason string) error {
	return &shutdownError{reason: reason}
}

func (s shutdownError) Error() string {
	return "shutdown requested: " + s.reason
}

func IsShutdown(err error) bool {
	var serr *shutdownError
	return errors.As(err, &serr)
}
