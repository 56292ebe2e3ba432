package models

import (
	"errors"
	"fmt"
	"strings"
)

/* ValidationError */

var ErrValidation = errors.New("validation failed")

// FieldError is a single schema violation. Field is a JSON path such as
// "text[1].speaker".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every violation found in a request payload.
type ValidationError struct {
	Fields []FieldError `json:"detail"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		if f.Field == "" {
			parts[i] = f.Message
			continue
		}
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return fmt.Sprintf("invalid request: %s", strings.Join(parts, "; "))
}

func (*ValidationError) Unwrap() error {
	return ErrValidation
}

// Add records a violation for field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns e when it holds at least one violation and nil otherwise.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

/* LookupError */

var ErrModelNotFound = errors.New("model not found")

// LookupError is returned when a request names a model that is not loaded.
type LookupError struct {
	Kind      string
	Requested string
	Available []string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf(
		"%s model %q is not loaded, available models: [%s]",
		e.Kind,
		e.Requested,
		strings.Join(e.Available, ", "),
	)
}

func (*LookupError) Unwrap() error {
	return ErrModelNotFound
}

func NewLookupError(kind, requested string, available []string) error {
	return &LookupError{Kind: kind, Requested: requested, Available: available}
}

/* BackendError */

// BackendError wraps a failure raised by a handler while computing a response.
type BackendError struct {
	Model string
	Err   error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s failed: %v", e.Model, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func NewBackendError(model string, err error) error {
	return &BackendError{Model: model, Err: err}
}

/* BadRequestError */

var ErrBadRequest = errors.New("bad request")

type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("bad request: %s", e.Message)
}

func (*BadRequestError) Unwrap() error {
	return ErrBadRequest
}

func NewBadRequestError(message string) error {
	return &BadRequestError{Message: message}
}
