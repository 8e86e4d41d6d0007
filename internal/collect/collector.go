// Package collect turns external listing sources into streams of raw
// listings. Collectors never touch the record store.
package collect

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/shivortex/lead-scraper/internal/model"
)

// ErrSourceUnavailable marks an unrecoverable collector failure: the seed is
// unreachable, needs authentication, timed out, or no longer has a
// recognizable shape.
var ErrSourceUnavailable = eris.New("source unavailable")

// Seed is the input for one collector call.
type Seed struct {
	URL      string            `yaml:"url" json:"url,omitempty"`
	Query    string            `yaml:"query" json:"query,omitempty"`
	Category string            `yaml:"category" json:"category,omitempty"`
	City     string            `yaml:"city" json:"city,omitempty"`
	Params   map[string]string `yaml:"params" json:"params,omitempty"`
}

// String identifies the seed in reports and logs.
func (s Seed) String() string {
	switch {
	case s.URL != "":
		return s.URL
	case s.Query != "":
		return s.Query
	default:
		return strings.TrimSpace(s.Category + " " + s.City)
	}
}

// Param returns the named seed parameter or def when unset.
func (s Seed) Param(name, def string) string {
	if v, ok := s.Params[name]; ok && v != "" {
		return v
	}
	return def
}

// Collector is a source-specific producer of raw listings.
type Collector interface {
	Name() string
	// Collect prepares a stream for seed. It fails only when the seed can
	// never produce listings; fetching happens lazily while the stream is
	// consumed.
	Collect(ctx context.Context, seed Seed) (*Stream, error)
}

// SourceError reports an unrecoverable collector failure. It matches
// ErrSourceUnavailable with errors.Is.
type SourceError struct {
	Collector string
	Seed      string
	Err       error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Collector, e.Seed, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Is reports whether target is ErrSourceUnavailable.
func (e *SourceError) Is(target error) bool { return target == ErrSourceUnavailable }

// Unavailable wraps err as a SourceError for the given collector and seed.
func Unavailable(collector string, seed Seed, err error) error {
	var se *SourceError
	if errors.As(err, &se) {
		return err
	}
	return &SourceError{Collector: collector, Seed: seed.String(), Err: err}
}

// Producer emits listings through yield until the source is exhausted or
// yield returns false. It reports structurally malformed items with skip and
// returns a non-nil error only when the source stopped being readable.
type Producer func(ctx context.Context, yield func(model.RawListing) bool, skip func()) error

// Stream is a lazy, finite, restartable sequence of raw listings. Every call
// to All runs the producer again from the start.
type Stream struct {
	collector string
	seed      Seed
	produce   Producer
	skipped   int
	err       error
}

// NewStream wraps p as the stream of the named collector for seed.
func NewStream(collector string, seed Seed, p Producer) *Stream {
	return &Stream{collector: collector, seed: seed, produce: p}
}

// All returns an iterator over the listings of one pass. Skipped and Err
// describe the most recent pass.
func (s *Stream) All(ctx context.Context) iter.Seq[model.RawListing] {
	return func(yield func(model.RawListing) bool) {
		s.skipped = 0
		s.err = nil
		stopped := false
		err := s.produce(ctx, func(l model.RawListing) bool {
			if !yield(l) {
				stopped = true
				return false
			}
			return true
		}, func() { s.skipped++ })
		if err != nil && !stopped {
			s.err = Unavailable(s.collector, s.seed, err)
		}
	}
}

// Skipped returns the number of malformed items dropped by the last pass.
func (s *Stream) Skipped() int { return s.skipped }

// Err returns the error that ended the last pass early, or nil.
func (s *Stream) Err() error { return s.err }

// Listings returns a stream over a fixed slice.
func Listings(collector string, seed Seed, listings []model.RawListing) *Stream {
	return NewStream(collector, seed, func(ctx context.Context, yield func(model.RawListing) bool, _ func()) error {
		for _, l := range listings {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !yield(l) {
				return nil
			}
		}
		return nil
	})
}

// text trims s and returns nil when nothing is left.
func text(s string) *string {
	return model.Str(strings.Join(strings.Fields(s), " "))
}
