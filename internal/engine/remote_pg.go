package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgCacheSchema = `CREATE UNLOGGED TABLE IF NOT EXISTS tube_cache (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
)`

// PostgresRemote is an L2 tier on a Postgres key/value table, for deployments
// that already run Postgres and no Redis. Expired rows are invisible to reads
// and removed by Sweep.
type PostgresRemote struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresRemote connects, pings and ensures the cache table exists.
func NewPostgresRemote(ctx context.Context, databaseURL string) (*PostgresRemote, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, pgCacheSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}
	return &PostgresRemote{pool: pool, now: time.Now}, nil
}

func (p *PostgresRemote) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM tube_cache WHERE key = $1 AND expires_at > $2`, key, p.now()).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRemoteMiss
	}
	return value, err
}

func (p *PostgresRemote) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx,
		`SELECT key, value FROM tube_cache WHERE key = ANY($1) AND expires_at > $2`, keys, p.now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]byte, len(keys))
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, rows.Err()
}

func (p *PostgresRemote) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO tube_cache (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, p.now().Add(ttl))
	return err
}

// Sweep deletes expired rows. Called from the cache cleanup loop.
func (p *PostgresRemote) Sweep(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM tube_cache WHERE expires_at <= $1`, p.now())
	return err
}

func (p *PostgresRemote) Close() error {
	p.pool.Close()
	return nil
}
