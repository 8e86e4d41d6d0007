package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/shivortex/lead-scraper/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// sqlitePragmas are applied to every pooled connection via the DSN.
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// NewSQLite opens a SQLite database at the given path with WAL mode and a
// busy timeout on every connection.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: db}, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(dsn)
	for _, p := range sqlitePragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	natural_key   TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	name_fold     TEXT NOT NULL,
	category      TEXT,
	category_fold TEXT,
	address       TEXT,
	city          TEXT,
	city_fold     TEXT,
	website       TEXT,
	phone         TEXT,
	email         TEXT,
	latitude      REAL CHECK (latitude BETWEEN -90 AND 90),
	longitude     REAL CHECK (longitude BETWEEN -180 AND 180),
	source_url    TEXT NOT NULL,
	sightings     INTEGER NOT NULL DEFAULT 1,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	CHECK ((latitude IS NULL) = (longitude IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_leads_category_fold ON leads(category_fold);
CREATE INDEX IF NOT EXISTS idx_leads_city_fold ON leads(city_fold);
`

// sqliteUpsert merges in a single statement so concurrent writers, including
// other processes, never observe a half-applied merge. sightings tells an
// insert (1) from a merge (>1).
const sqliteUpsert = `
INSERT INTO leads (
	natural_key, name, name_fold, category, category_fold, address,
	city, city_fold, website, phone, email, latitude, longitude, source_url
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (natural_key) DO UPDATE SET
	name          = excluded.name,
	name_fold     = excluded.name_fold,
	category      = COALESCE(excluded.category, leads.category),
	category_fold = COALESCE(excluded.category_fold, leads.category_fold),
	address       = COALESCE(excluded.address, leads.address),
	city          = COALESCE(excluded.city, leads.city),
	city_fold     = COALESCE(excluded.city_fold, leads.city_fold),
	website       = COALESCE(excluded.website, leads.website),
	phone         = COALESCE(excluded.phone, leads.phone),
	email         = COALESCE(excluded.email, leads.email),
	latitude      = COALESCE(excluded.latitude, leads.latitude),
	longitude     = COALESCE(excluded.longitude, leads.longitude),
	source_url    = excluded.source_url,
	sightings     = leads.sightings + 1,
	updated_at    = datetime('now')
RETURNING id, sightings`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable(err, "sqlite: ping")
	}
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, lead model.Lead) (int64, bool, error) {
	if err := lead.Validate(); err != nil {
		return 0, false, err
	}

	var id, sightings int64
	err := s.db.QueryRowContext(ctx, sqliteUpsert, upsertArgs(lead)...).Scan(&id, &sightings)
	if err != nil {
		return 0, false, unavailable(err, "sqlite: upsert lead")
	}
	return id, sightings == 1, nil
}

func (s *SQLiteStore) Query(ctx context.Context, filters map[string]string, page, pageSize int) ([]model.Lead, int, error) {
	c, err := NewCriteria(filters, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	where, args := c.Where(questionMark)

	// Count and page share one read transaction so they see the same snapshot.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, unavailable(err, "sqlite: begin query")
	}
	defer tx.Rollback() //nolint:errcheck

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM leads`+where, args...).Scan(&total); err != nil {
		return nil, 0, unavailable(err, "sqlite: count leads")
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads`+where+` ORDER BY id LIMIT ? OFFSET ?`,
		append(args, c.Limit, c.Offset)...,
	)
	if err != nil {
		return nil, 0, unavailable(err, "sqlite: query leads")
	}
	defer rows.Close() //nolint:errcheck

	items := []model.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, unavailable(err, "sqlite: scan lead")
		}
		items = append(items, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, unavailable(err, "sqlite: query leads iterate")
	}
	return items, total, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err, "sqlite: get lead")
	}
	return l, nil
}

func (s *SQLiteStore) Each(ctx context.Context, fn func(model.Lead) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY id`)
	if err != nil {
		return unavailable(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return unavailable(err, "sqlite: scan lead")
		}
		if err := fn(*l); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return unavailable(err, "sqlite: list leads iterate")
	}
	return nil
}
