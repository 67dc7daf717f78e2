package apperr

import "fmt"

// Error is a typed application error carrying a stable type slug and a
// context map. The API layer serializes these into the validation error
// envelope; tests match on Type and Context keys.
type Error struct {
	Slug    string
	Message string
	Ctx     map[string]any
}

// New creates a typed error with the given slug and message.
func New(slug, message string) *Error {
	return &Error{
		Slug:    slug,
		Message: message,
		Ctx:     make(map[string]any),
	}
}

// Newf creates a typed error with a formatted message.
func Newf(slug, format string, args ...any) *Error {
	return New(slug, fmt.Sprintf(format, args...))
}

// With attaches a context value and returns the error for chaining.
func (e *Error) With(key string, value any) *Error {
	e.Ctx[key] = value
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Type returns the stable error type slug.
func (e *Error) Type() string {
	return e.Slug
}

// Context returns the error context map.
func (e *Error) Context() map[string]any {
	return e.Ctx
}

// As extracts a typed error from err.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}

// TypeOf returns the type slug of err if it is a typed error, "" otherwise.
func TypeOf(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Slug
	}
	return ""
}
