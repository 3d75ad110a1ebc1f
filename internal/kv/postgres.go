package kv

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a Store backed by the kv_entries and kv_members tables.
// Expired rows are hidden from reads and removed by PurgeExpired.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const liveEntry = `(expires_at IS NULL OR expires_at > now())`

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE key = $1 AND `+liveEntry, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return value, err
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return upsert(ctx, p.pool, key, value, ttl)
}

func (p *Postgres) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
		WHERE kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= now()`,
		key, value, expiresAt(ttl))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return err
	}

	var current []byte
	err = tx.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE key = $1 AND `+liveEntry, key).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		if _, err := tx.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
			return err
		}
	} else if err := upsert(ctx, tx, key, next, ttl); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM kv_entries WHERE key = ANY($1)`, keys)
	batch.Queue(`DELETE FROM kv_members WHERE key = ANY($1)`, keys)
	return p.pool.SendBatch(ctx, batch).Close()
}

func (p *Postgres) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO kv_members (key, member) SELECT $1, unnest($2::text[])
		ON CONFLICT (key, member) DO NOTHING`, key, members)
	return err
}

func (p *Postgres) SRem(ctx context.Context, key string, members ...string) error {
	return p.ZRem(ctx, key, members...)
}

func (p *Postgres) SMembers(ctx context.Context, key string) ([]string, error) {
	return p.members(ctx, `SELECT member FROM kv_members WHERE key = $1 ORDER BY member`, key)
}

func (p *Postgres) ZAdd(ctx context.Context, key, member string, score float64) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO kv_members (key, member, score) VALUES ($1, $2, $3)
		ON CONFLICT (key, member) DO UPDATE SET score = EXCLUDED.score`, key, member, score)
	return err
}

func (p *Postgres) ZRangeByScore(ctx context.Context, key string, max float64) ([]string, error) {
	return p.members(ctx,
		`SELECT member FROM kv_members WHERE key = $1 AND score <= $2 ORDER BY score, member`, key, max)
}

func (p *Postgres) ZRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	_, err := p.pool.Exec(ctx, `DELETE FROM kv_members WHERE key = $1 AND member = ANY($2)`, key, members)
	return err
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// PurgeExpired deletes entries whose expiry has passed.
func (p *Postgres) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) members(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func upsert(ctx context.Context, db execer, key string, value []byte, ttl time.Duration) error {
	if ttl == KeepTTL {
		_, err := db.Exec(ctx, `
			INSERT INTO kv_entries (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value,
				expires_at = CASE WHEN kv_entries.expires_at <= now() THEN NULL ELSE kv_entries.expires_at END`,
			key, value)
		return err
	}
	_, err := db.Exec(ctx, `
		INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, expiresAt(ttl))
	return err
}

func expiresAt(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := time.Now().Add(ttl).UTC()
	return &t
}
