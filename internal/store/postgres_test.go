package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivortex/lead-scraper/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

var leadRowColumns = []string{
	"id", "name", "category", "address", "city", "website",
	"phone", "email", "latitude", "longitude", "source_url",
}

func TestPostgresStore_Upsert_Created(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	l := model.Lead{
		Name:      model.Str("Acme Plumbing"),
		Address:   model.Str("1 Main St"),
		City:      model.Str("Mumbai"),
		SourceURL: model.Str("https://directory.example"),
	}

	mock.ExpectQuery(`INSERT INTO leads .* ON CONFLICT \(natural_key\) DO UPDATE`).
		WithArgs(
			"na:acme plumbing|1 main st", "Acme Plumbing", "acme plumbing",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), "https://directory.example",
		).
		WillReturnRows(pgxmock.NewRows([]string{"id", "sightings"}).AddRow(int64(7), int64(1)))

	id, created, err := s.Upsert(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Upsert_Merged(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO leads`).
		WithArgs(anyArgs(14)...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "sightings"}).AddRow(int64(7), int64(3)))

	id, created, err := s.Upsert(context.Background(), model.Lead{
		Name:      model.Str("Acme"),
		SourceURL: model.Str("https://directory.example"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Upsert_InvalidSkipsDatabase(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	_, _, err := s.Upsert(context.Background(), model.Lead{Name: model.Str("Acme")})
	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Upsert_Unavailable(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO leads`).
		WithArgs(anyArgs(14)...).
		WillReturnError(errors.New("connection refused"))

	_, _, err := s.Upsert(context.Background(), model.Lead{
		Name:      model.Str("Acme"),
		SourceURL: model.Str("https://directory.example"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "upsert lead")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, category, .* FROM leads WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(leadRowColumns).AddRow(
			int64(3), model.Str("Acme"), model.Str("Plumbers"), nil, model.Str("Mumbai"), nil,
			model.Str("555-1234"), nil, model.Float(19.07), model.Float(72.87), model.Str("https://directory.example"),
		))

	got, err := s.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ID)
	assert.Equal(t, "Acme", *got.Name)
	assert.Equal(t, "555-1234", *got.Phone)
	assert.Nil(t, got.Address)
	assert.Nil(t, got.Email)
	assert.InDelta(t, 72.87, *got.Longitude, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM leads WHERE id = \$1`).
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, errors.Is(err, ErrUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Query(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	mock.ExpectQuery(`SELECT count\(\*\) FROM leads WHERE category_fold = \$1 AND name_fold LIKE \$2`).
		WithArgs("plumbers", "%acme%").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(`FROM leads WHERE .* ORDER BY id LIMIT \$3 OFFSET \$4`).
		WithArgs("plumbers", "%acme%", 5, 5).
		WillReturnRows(pgxmock.NewRows(leadRowColumns).
			AddRow(int64(6), model.Str("Acme One"), model.Str("Plumbers"), nil, nil, nil, nil, nil, nil, nil, model.Str("s")).
			AddRow(int64(9), model.Str("Acme Two"), model.Str("Plumbers"), nil, nil, nil, nil, nil, nil, nil, model.Str("s")))
	mock.ExpectCommit()

	items, total, err := s.Query(context.Background(),
		map[string]string{"category": "Plumbers", "name": "ACME"}, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, items, 2)
	assert.Equal(t, int64(6), items[0].ID)
	assert.Equal(t, "Acme Two", *items[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Query_InvalidFilterSkipsDatabase(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	_, _, err := s.Query(context.Background(), map[string]string{"zip": "400001"}, 1, 10)
	assert.ErrorIs(t, err, ErrInvalidFilter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Query_BeginFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}).
		WillReturnError(errors.New("too many connections"))

	_, _, err := s.Query(context.Background(), nil, 1, 10)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Each(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM leads ORDER BY id`).
		WillReturnRows(pgxmock.NewRows(leadRowColumns).
			AddRow(int64(1), model.Str("A"), nil, nil, nil, nil, nil, nil, nil, nil, model.Str("s")).
			AddRow(int64(2), model.Str("B"), nil, nil, nil, nil, nil, nil, nil, nil, model.Str("s")))

	var ids []int64
	err := s.Each(context.Background(), func(l model.Lead) error {
		ids = append(ids, l.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectPing()
	require.NoError(t, s.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.ErrorIs(t, s.Ping(context.Background()), ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS leads`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
