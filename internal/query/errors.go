package query

import (
	"errors"
	"strings"

	"github.com/shivortex/lead-scraper/internal/model"
	"github.com/shivortex/lead-scraper/internal/store"
)

// Kind classifies a query failure for callers.
type Kind string

// Failure kinds surfaced to API clients.
const (
	KindInvalidFilter     Kind = "invalid_filter"
	KindInvalidPagination Kind = "invalid_pagination"
	KindNotFound          Kind = "not_found"
	KindUnavailable       Kind = "store_unavailable"
)

// Error is the error type returned by Service. Fields is set for the two
// input kinds.
type Error struct {
	Kind   Kind
	Fields []model.FieldError
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	for i, f := range e.Fields {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(f.Field + " " + f.Message)
	}
	if e.Err != nil && len(e.Fields) == 0 {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a Service error, or "" for other errors.
func KindOf(err error) Kind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return ""
}

// translate maps store errors onto the query taxonomy. Anything the store
// does not classify as client input or a missing row is an availability
// failure.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var in *store.InputError
	switch {
	case errors.As(err, &in) && errors.Is(in.Kind, store.ErrInvalidFilter):
		return &Error{Kind: KindInvalidFilter, Fields: in.Fields, Err: err}
	case errors.As(err, &in) && errors.Is(in.Kind, store.ErrInvalidPagination):
		return &Error{Kind: KindInvalidPagination, Fields: in.Fields, Err: err}
	case errors.Is(err, store.ErrNotFound):
		return &Error{Kind: KindNotFound, Err: err}
	default:
		return &Error{Kind: KindUnavailable, Err: err}
	}
}
