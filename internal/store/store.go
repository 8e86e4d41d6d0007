// Package store persists leads keyed by their natural identity.
package store

import (
	"context"

	"github.com/shivortex/lead-scraper/internal/model"
)

// Store defines the persistence interface for lead records.
type Store interface {
	// Upsert inserts the lead, or merges its non-null fields into the
	// existing row with the same natural key. created is true on insert.
	Upsert(ctx context.Context, lead model.Lead) (id int64, created bool, err error)

	// Query returns one page of leads matching filters, ordered by id, and
	// the total number of matches. Recognized filter keys are category,
	// city and name.
	Query(ctx context.Context, filters map[string]string, page, pageSize int) ([]model.Lead, int, error)

	// Get returns the lead with the given id or ErrNotFound.
	Get(ctx context.Context, id int64) (*model.Lead, error)

	// Each calls fn for every lead in id order, stopping at the first error.
	Each(ctx context.Context, fn func(model.Lead) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// leadColumns is the select list shared by both backends, in scanLead order.
const leadColumns = `id, name, category, address, city, website, phone, email, latitude, longitude, source_url`

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	err := row.Scan(
		&l.ID, &l.Name, &l.Category, &l.Address, &l.City,
		&l.Website, &l.Phone, &l.Email, &l.Latitude, &l.Longitude, &l.SourceURL,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// upsertArgs returns the positional values for the upsert statement of
// either backend. Folded copies of name, category and city back the
// case-insensitive filters.
func upsertArgs(l model.Lead) []any {
	return []any{
		l.Key(),
		model.Deref(l.Name), model.Fold(model.Deref(l.Name)),
		l.Category, foldPtr(l.Category),
		l.Address,
		l.City, foldPtr(l.City),
		l.Website, l.Phone, l.Email,
		l.Latitude, l.Longitude,
		model.Deref(l.SourceURL),
	}
}

func foldPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return model.Str(model.Fold(*s))
}
