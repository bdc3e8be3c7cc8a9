package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is returned for input refused by a domain check. Nothing is mutated when it is returned.
// With Fields, it is rendered as a {field: message} map; otherwise as the message of Err.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

// NewFieldError is a ValidationError about a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err *ValidationError) Error() string {
	switch {
	case err.Err != nil:
		return err.Err.Error()
	case len(err.Fields) > 0:
		return err.Fields[0].Field + ": " + err.Fields[0].Error
	}
	return "invalid input"
}

func (err *ValidationError) Unwrap() error { return err.Err }

// Payload is what clients get: the field messages by field name, or the error message.
func (err *ValidationError) Payload() interface{} {
	if len(err.Fields) == 0 {
		return err.Error()
	}
	fields := make(map[string]string, len(err.Fields))
	for _, f := range err.Fields {
		fields[f.Field] = f.Error
	}
	return fields
}

// shutdown errors stop the API gracefully once the failing request is answered.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s *shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	var s *shutdown
	return errors.As(err, &s)
}
