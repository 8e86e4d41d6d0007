package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivortex/lead-scraper/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func lead(name, address string) model.Lead {
	return model.Lead{
		Name:      model.Str(name),
		Address:   model.Str(address),
		SourceURL: model.Str("https://directory.example/search"),
	}
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("UpsertIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		l := lead("Acme", "1 Main St")
		l.Phone = model.Str("555-1234")

		id, created, err := s.Upsert(ctx, l)
		require.NoError(t, err)
		assert.True(t, created)

		before, err := s.Get(ctx, id)
		require.NoError(t, err)

		id2, created, err := s.Upsert(ctx, l)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, id, id2)

		after, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("MergePreservesData", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first := lead("Acme", "1 Main St")
		first.Phone = model.Str("555-1")
		second := lead("Acme", "1 Main St")
		second.Email = model.Str("a@acme.com")

		id, created, err := s.Upsert(ctx, first)
		require.NoError(t, err)
		require.True(t, created)
		_, created, err = s.Upsert(ctx, second)
		require.NoError(t, err)
		require.False(t, created)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got.Phone)
		require.NotNil(t, got.Email)
		assert.Equal(t, "555-1", *got.Phone)
		assert.Equal(t, "a@acme.com", *got.Email)

		_, total, err := s.Query(ctx, nil, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("NaturalKeyDedup", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, created, err := s.Upsert(ctx, lead("Acme Plumbing", "1 Main St"))
		require.NoError(t, err)
		assert.True(t, created)
		_, created, err = s.Upsert(ctx, lead("  ACME   plumbing", "1 MAIN st "))
		require.NoError(t, err)
		assert.False(t, created)

		_, total, err := s.Query(ctx, nil, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("NameOnlyKeyedBySource", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a := model.Lead{Name: model.Str("Acme"), SourceURL: model.Str("https://a.example")}
		b := model.Lead{Name: model.Str("Acme"), SourceURL: model.Str("https://b.example")}
		_, created, err := s.Upsert(ctx, a)
		require.NoError(t, err)
		assert.True(t, created)
		_, created, err = s.Upsert(ctx, b)
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("CoordinatesMergeAsPair", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first := lead("Cafe", "2 High St")
		first.Latitude = model.Float(51.5)
		first.Longitude = model.Float(-0.12)
		id, _, err := s.Upsert(ctx, first)
		require.NoError(t, err)

		_, _, err = s.Upsert(ctx, lead("Cafe", "2 High St"))
		require.NoError(t, err)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got.Latitude)
		require.NotNil(t, got.Longitude)
		assert.InDelta(t, 51.5, *got.Latitude, 1e-9)
		assert.InDelta(t, -0.12, *got.Longitude, 1e-9)
	})

	t.Run("UpsertRejectsInvalid", func(t *testing.T) {
		s := newStore(t)
		l := lead("", "1 Main St")
		_, _, err := s.Upsert(context.Background(), l)
		var verr *model.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.False(t, errors.Is(err, ErrUnavailable))
	})

	t.Run("GetNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), 999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("QueryFiltersAndPaging", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i := range 7 {
			l := lead(fmt.Sprintf("Plumber %d", i), fmt.Sprintf("%d Pipe Rd", i))
			l.Category = model.Str("Plumbers")
			city := "Mumbai"
			if i%2 == 1 {
				city = "Pune"
			}
			l.City = model.Str(city)
			_, _, err := s.Upsert(ctx, l)
			require.NoError(t, err)
		}
		other := lead("Sparky Electric", "9 Wire Ln")
		other.Category = model.Str("Electricians")
		other.City = model.Str("Mumbai")
		_, _, err := s.Upsert(ctx, other)
		require.NoError(t, err)

		items, total, err := s.Query(ctx, map[string]string{"category": "plumbers"}, 1, 3)
		require.NoError(t, err)
		assert.Equal(t, 7, total)
		require.Len(t, items, 3)
		assert.Equal(t, "Plumber 0", *items[0].Name)
		assert.Less(t, items[0].ID, items[1].ID)

		items, total, err = s.Query(ctx, map[string]string{"category": "Plumbers"}, 3, 3)
		require.NoError(t, err)
		assert.Equal(t, 7, total)
		assert.Len(t, items, 1)

		items, total, err = s.Query(ctx, map[string]string{"city": "MUMBAI", "category": "plumbers"}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		assert.Len(t, items, 4)

		items, total, err = s.Query(ctx, map[string]string{"name": "spark"}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, "Sparky Electric", *items[0].Name)

		items, total, err = s.Query(ctx, map[string]string{"name": "%"}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 0, total, "LIKE wildcards in the value are literal")
		assert.Empty(t, items)
	})

	t.Run("QueryBeyondLastPage", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, _, err := s.Upsert(ctx, lead("Acme", "1 Main St"))
		require.NoError(t, err)

		items, total, err := s.Query(ctx, nil, 5, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	})

	t.Run("QueryInvalidInput", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, _, err := s.Query(ctx, map[string]string{"phone": "555"}, 1, 10)
		assert.ErrorIs(t, err, ErrInvalidFilter)

		_, _, err = s.Query(ctx, nil, 0, 10)
		assert.ErrorIs(t, err, ErrInvalidPagination)

		_, _, err = s.Query(ctx, nil, 1, 0)
		assert.ErrorIs(t, err, ErrInvalidPagination)
	})

	t.Run("QueryMinQuality", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		full := lead("Full", "1 Main St")
		full.Email = model.Str("info@full.example")
		full.Phone = model.Str("555-0100")
		full.Website = model.Str("https://full.example")
		full.Latitude, full.Longitude = model.Float(30.27), model.Float(-97.74)

		contact := lead("Contact", "2 Side Rd")
		contact.Email = model.Str("hi@contact.example")
		contact.Phone = model.Str("555-0200")

		for _, l := range []model.Lead{full, contact, lead("Bare", "3 Back Ln")} {
			_, _, err := s.Upsert(ctx, l)
			require.NoError(t, err)
		}

		tests := []struct {
			min   string
			names []string
		}{
			{"", []string{"Full", "Contact", "Bare"}},
			{"15", []string{"Full", "Contact", "Bare"}},
			{"70", []string{"Full", "Contact"}},
			{"70.5", []string{"Full"}},
			{"100", []string{"Full"}},
		}
		for _, tt := range tests {
			items, total, err := s.Query(ctx, map[string]string{"min_quality": tt.min}, 1, 10)
			require.NoError(t, err)
			assert.Equal(t, len(tt.names), total, "min_quality=%q", tt.min)
			var got []string
			for _, l := range items {
				got = append(got, *l.Name)
			}
			assert.Equal(t, tt.names, got, "min_quality=%q", tt.min)
		}
	})

	t.Run("Each", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, n := range []string{"A", "B", "C"} {
			_, _, err := s.Upsert(ctx, lead(n, "1 St"))
			require.NoError(t, err)
		}
		var names []string
		require.NoError(t, s.Each(ctx, func(l model.Lead) error {
			names = append(names, *l.Name)
			return nil
		}))
		assert.Equal(t, []string{"A", "B", "C"}, names)

		stop := errors.New("stop")
		err := s.Each(ctx, func(model.Lead) error { return stop })
		assert.ErrorIs(t, err, stop)
	})

	t.Run("ConcurrentUpsertSameKey", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, c, err := s.Upsert(ctx, lead("Acme", "1 Main St"))
				assert.NoError(t, err)
				if c {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, created)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestSQLiteStore_PingAndClosed(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())

	_, err := s.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t,
		"leads.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)",
		sqliteDSN("leads.db"))
	assert.Contains(t, sqliteDSN("file:x.db?cache=shared"), "cache=shared&_pragma=busy_timeout(5000)")
	assert.Equal(t, "x.db?_pragma=foo(1)", sqliteDSN("x.db?_pragma=foo(1)"))
}
