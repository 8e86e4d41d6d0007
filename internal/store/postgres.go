package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/shivortex/lead-scraper/internal/db"
	"github.com/shivortex/lead-scraper/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id            BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
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
	latitude      DOUBLE PRECISION CHECK (latitude BETWEEN -90 AND 90),
	longitude     DOUBLE PRECISION CHECK (longitude BETWEEN -180 AND 180),
	source_url    TEXT NOT NULL,
	sightings     INTEGER NOT NULL DEFAULT 1,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT leads_coordinates_pair CHECK ((latitude IS NULL) = (longitude IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_leads_category_fold ON leads(category_fold);
CREATE INDEX IF NOT EXISTS idx_leads_city_fold ON leads(city_fold);
CREATE INDEX IF NOT EXISTS idx_leads_name_fold ON leads(name_fold text_pattern_ops);
`

const postgresUpsert = `
INSERT INTO leads (
	natural_key, name, name_fold, category, category_fold, address,
	city, city_fold, website, phone, email, latitude, longitude, source_url
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (natural_key) DO UPDATE SET
	name          = EXCLUDED.name,
	name_fold     = EXCLUDED.name_fold,
	category      = COALESCE(EXCLUDED.category, leads.category),
	category_fold = COALESCE(EXCLUDED.category_fold, leads.category_fold),
	address       = COALESCE(EXCLUDED.address, leads.address),
	city          = COALESCE(EXCLUDED.city, leads.city),
	city_fold     = COALESCE(EXCLUDED.city_fold, leads.city_fold),
	website       = COALESCE(EXCLUDED.website, leads.website),
	phone         = COALESCE(EXCLUDED.phone, leads.phone),
	email         = COALESCE(EXCLUDED.email, leads.email),
	latitude      = COALESCE(EXCLUDED.latitude, leads.latitude),
	longitude     = COALESCE(EXCLUDED.longitude, leads.longitude),
	source_url    = EXCLUDED.source_url,
	sightings     = leads.sightings + 1,
	updated_at    = now()
RETURNING id, sightings`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return unavailable(err, "postgres: ping")
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, lead model.Lead) (int64, bool, error) {
	if err := lead.Validate(); err != nil {
		return 0, false, err
	}

	var id, sightings int64
	err := s.pool.QueryRow(ctx, postgresUpsert, upsertArgs(lead)...).Scan(&id, &sightings)
	if err != nil {
		return 0, false, unavailable(err, "postgres: upsert lead")
	}
	return id, sightings == 1, nil
}

func (s *PostgresStore) Query(ctx context.Context, filters map[string]string, page, pageSize int) ([]model.Lead, int, error) {
	c, err := NewCriteria(filters, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	where, args := c.Where(dollar)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, unavailable(err, "postgres: begin query")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var total int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM leads`+where, args...).Scan(&total); err != nil {
		return nil, 0, unavailable(err, "postgres: count leads")
	}

	n := len(args)
	rows, err := tx.Query(ctx,
		`SELECT `+leadColumns+` FROM leads`+where+` ORDER BY id LIMIT `+dollar(n+1)+` OFFSET `+dollar(n+2),
		append(args, c.Limit, c.Offset)...,
	)
	if err != nil {
		return nil, 0, unavailable(err, "postgres: query leads")
	}
	items, err := collectLeads(rows)
	if err != nil {
		return nil, 0, unavailable(err, "postgres: scan leads")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, unavailable(err, "postgres: commit query")
	}
	return items, total, nil
}

func collectLeads(rows pgx.Rows) ([]model.Lead, error) {
	defer rows.Close()
	items := []model.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *l)
	}
	return items, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err, "postgres: get lead")
	}
	return l, nil
}

func (s *PostgresStore) Each(ctx context.Context, fn func(model.Lead) error) error {
	rows, err := s.pool.Query(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY id`)
	if err != nil {
		return unavailable(err, "postgres: list leads")
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return unavailable(err, "postgres: scan lead")
		}
		if err := fn(*l); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return unavailable(err, "postgres: list leads iterate")
	}
	return nil
}
