package store

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/shivortex/lead-scraper/internal/model"
)

// Sentinel errors returned by every Store implementation.
var (
	ErrNotFound          = eris.New("lead not found")
	ErrInvalidFilter     = eris.New("invalid filter")
	ErrInvalidPagination = eris.New("invalid pagination")
	ErrUnavailable       = eris.New("store unavailable")
)

// InputError is a client input problem. It unwraps to ErrInvalidFilter or
// ErrInvalidPagination and carries per-field detail.
type InputError struct {
	Kind   error
	Fields []model.FieldError
}

func (e *InputError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return e.Kind.Error() + ": " + strings.Join(parts, "; ")
}

func (e *InputError) Unwrap() error { return e.Kind }

// UnavailableError wraps an infrastructure failure of the backing database.
// errors.Is(err, ErrUnavailable) reports true for it.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string { return e.Err.Error() }

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

func unavailable(err error, msg string) error {
	return &UnavailableError{Err: eris.Wrap(err, msg)}
}
