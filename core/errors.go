package core

import "github.com/pkg/errors"

// Error kinds. Packages derive their own sentinels from these with errors.WithMessage,
// so errors.Cause(err) always yields one of them.
var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("permission denied")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrConflict            = errors.New("concurrent modification")
	ErrReference           = errors.New("dangling reference")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is returned for malformed payloads.
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
		return "validation failed"
	}
	return err.Err.Error()
}

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

func IsNotFound(err error) bool            { return errors.Cause(err) == ErrNotFound }
func IsUnauthorized(err error) bool        { return errors.Cause(err) == ErrUnauthorized }
func IsInvalidTransition(err error) bool   { return errors.Cause(err) == ErrInvalidTransition }
func IsUpstreamUnavailable(err error) bool { return errors.Cause(err) == ErrUpstreamUnavailable }
func IsConflict(err error) bool            { return errors.Cause(err) == ErrConflict }
func IsReference(err error) bool           { return errors.Cause(err) == ErrReference }

func IsValidationFailure(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}
