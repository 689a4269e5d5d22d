package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres — адаптер Store поверх PostgreSQL.
//
// Для деплоев, где Redis недоступен, а Postgres уже есть.
// Обычные ключи — таблица kv_items, множества — kv_zsets.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres создаёт адаптер поверх существующего пула и гарантирует схему.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	p := &Postgres{pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS kv_items (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS kv_zsets (
			set_name TEXT             NOT NULL,
			member   TEXT             NOT NULL,
			score    DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (set_name, member)
		);
		CREATE INDEX IF NOT EXISTS kv_zsets_score_idx ON kv_zsets (set_name, score);
	`
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure kv schema: %w", err)
	}
	return nil
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO kv_items (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := p.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.pool.QueryRow(ctx, `SELECT value FROM kv_items WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %s: %w", key, err)
	}
	return value, true, nil
}

func (p *Postgres) Del(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM kv_items WHERE key = $1`, key); err != nil {
		return fmt.Errorf("kv del %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) ZAdd(ctx context.Context, set string, entry ZEntry) error {
	query := `
		INSERT INTO kv_zsets (set_name, member, score) VALUES ($1, $2, $3)
		ON CONFLICT (set_name, member) DO UPDATE SET score = EXCLUDED.score
	`
	if _, err := p.pool.Exec(ctx, query, set, entry.Member, entry.Score); err != nil {
		return fmt.Errorf("kv zadd %s: %w", set, err)
	}
	return nil
}

func (p *Postgres) ZRange(ctx context.Context, set string, start, stop int64) ([]string, error) {
	// Семантика zrange: stop включительно, -1 — до конца.
	var limit any
	if stop >= 0 {
		limit = stop - start + 1
	} else if stop == -1 {
		limit = nil
	} else {
		return nil, nil
	}

	query := `
		SELECT member FROM kv_zsets
		WHERE set_name = $1
		ORDER BY score ASC
		OFFSET $2 LIMIT $3
	`
	rows, err := p.pool.Query(ctx, query, set, start, limit)
	if err != nil {
		return nil, fmt.Errorf("kv zrange %s: %w", set, err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (p *Postgres) ZRem(ctx context.Context, set, member string) error {
	query := `DELETE FROM kv_zsets WHERE set_name = $1 AND member = $2`
	if _, err := p.pool.Exec(ctx, query, set, member); err != nil {
		return fmt.Errorf("kv zrem %s: %w", set, err)
	}
	return nil
}

func (p *Postgres) ZCard(ctx context.Context, set string) (int64, error) {
	var n int64
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM kv_zsets WHERE set_name = $1`, set).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("kv zcard %s: %w", set, err)
	}
	return n, nil
}

func (p *Postgres) Keys(ctx context.Context, prefix string) ([]string, error) {
	query := `SELECT key FROM kv_items WHERE key LIKE $1 || '%' ORDER BY key`
	rows, err := p.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("kv keys %s*: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close — no-op: пулом владеет composition root.
func (p *Postgres) Close() error {
	return nil
}
