package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrjgit/news/internal/domain"
)

// NewsRepo — репозиторий обработанных новостей и маркеров завершённых
// синхронизаций.
type NewsRepo struct {
	pool *pgxpool.Pool
}

// NewNewsRepo создаёт новый NewsRepo.
func NewNewsRepo(pool *pgxpool.Pool) *NewsRepo {
	return &NewsRepo{pool: pool}
}

// EnsureSchema создаёт таблицы, если их ещё нет. Вызывается один раз
// на старте процесса.
func (r *NewsRepo) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS news_items (
			id                 UUID PRIMARY KEY,
			sync_date          TEXT NOT NULL,
			title              TEXT NOT NULL,
			content            TEXT NOT NULL DEFAULT '',
			summary            TEXT NOT NULL DEFAULT '',
			translated_content TEXT NOT NULL DEFAULT '',
			script             TEXT NOT NULL DEFAULT '',
			importance         INT  NOT NULL DEFAULT 3,
			link               TEXT NOT NULL,
			source             TEXT NOT NULL DEFAULT '',
			category           TEXT NOT NULL DEFAULT 'domestic',
			created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (sync_date, link)
		);
		CREATE INDEX IF NOT EXISTS news_items_sync_date_idx ON news_items (sync_date);

		CREATE TABLE IF NOT EXISTS sync_markers (
			sync_date    TEXT PRIMARY KEY,
			job_id       TEXT NOT NULL,
			item_count   INT  NOT NULL,
			completed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveItems сохраняет новости за дату. Повторный прогон той же даты
// перезаписывает набор целиком: запись происходит в транзакции
// после удаления старых строк даты.
func (r *NewsRepo) SaveItems(ctx context.Context, date string, items []domain.ProcessedItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM news_items WHERE sync_date = $1`, date); err != nil {
		return fmt.Errorf("delete old items: %w", err)
	}

	const insert = `
		INSERT INTO news_items (id, sync_date, title, content, summary, translated_content,
		                        script, importance, link, source, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	for _, item := range items {
		_, err := tx.Exec(ctx, insert,
			uuid.New(),
			date,
			item.Title,
			item.Content,
			item.Summary,
			item.TranslatedContent,
			item.Script,
			item.Importance,
			item.Link,
			item.Source,
			string(item.Category),
		)
		if err != nil {
			return fmt.Errorf("insert item %q: %w", item.Title, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ItemsByDate возвращает новости за дату, важные первыми.
func (r *NewsRepo) ItemsByDate(ctx context.Context, date string) ([]domain.ProcessedItem, error) {
	const query = `
		SELECT title, content, summary, translated_content, script, importance, link, source, category
		FROM news_items
		WHERE sync_date = $1
		ORDER BY importance DESC, created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []domain.ProcessedItem
	for rows.Next() {
		var item domain.ProcessedItem
		var category string
		err := rows.Scan(
			&item.Title,
			&item.Content,
			&item.Summary,
			&item.TranslatedContent,
			&item.Script,
			&item.Importance,
			&item.Link,
			&item.Source,
			&category,
		)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item.Category = domain.Category(category)
		items = append(items, item)
	}
	return items, rows.Err()
}

// CompletedMarker сообщает, завершена ли синхронизация за дату.
func (r *NewsRepo) CompletedMarker(ctx context.Context, date string) (bool, error) {
	var jobID string
	err := r.pool.QueryRow(ctx,
		`SELECT job_id FROM sync_markers WHERE sync_date = $1`, date,
	).Scan(&jobID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query sync marker: %w", err)
	}
	return true, nil
}

// MarkCompleted ставит маркер завершённой синхронизации за дату.
// Повторный прогон (force refresh) перезаписывает маркер.
func (r *NewsRepo) MarkCompleted(ctx context.Context, date, jobID string, itemCount int) error {
	const query = `
		INSERT INTO sync_markers (sync_date, job_id, item_count, completed_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (sync_date) DO UPDATE
		SET job_id = EXCLUDED.job_id, item_count = EXCLUDED.item_count, completed_at = now()
	`
	if _, err := r.pool.Exec(ctx, query, date, jobID, itemCount); err != nil {
		return fmt.Errorf("upsert sync marker: %w", err)
	}
	return nil
}

// CleanupOlderThan удаляет новости и маркеры старше cutoff.
// Возвращает число удалённых новостей.
func (r *NewsRepo) CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM news_items WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old items: %w", err)
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM sync_markers WHERE completed_at < $1`, cutoff); err != nil {
		return 0, fmt.Errorf("delete old markers: %w", err)
	}
	return tag.RowsAffected(), nil
}
