// Package scheduler — cron-триггеры фоновых задач: ежедневная
// синхронизация новостей и периодическая уборка устаревших записей.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jrjgit/news/internal/domain"
)

// Default configuration values.
const (
	defaultSyncSchedule    = "0 2 * * *" // каждый день в 02:00
	defaultCleanupSchedule = "0 * * * *" // каждый час
	defaultTickTimeout     = 10 * time.Minute
)

// JobEnqueuer ставит jobs. Реализуется enqueue.Enqueuer.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, kind domain.Kind, payload domain.Payload) (*domain.Job, error)
}

// Reaper удаляет устаревшие записи jobs. Реализуется jobstore.Store.
type Reaper interface {
	CleanupExpired(ctx context.Context, retention time.Duration) (int, error)
	Retention() time.Duration
}

// NewsCleaner удаляет старые новости и sync-маркеры. Реализуется repo.NewsRepo.
type NewsCleaner interface {
	CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler регистрирует cron-задачи и запускает их по расписанию.
type Scheduler struct {
	enqueuer JobEnqueuer
	reapers  []Reaper
	news     NewsCleaner

	cron   *cron.Cron
	logger *slog.Logger

	syncSchedule    string
	cleanupSchedule string
	itemCount       int
	newsRetention   time.Duration
}

// Config — конфигурация Scheduler.
type Config struct {
	// Enqueuer ставит ежедневную sync-джобу (обязателен).
	Enqueuer JobEnqueuer

	// Reapers — job stores, подлежащие периодической уборке.
	Reapers []Reaper

	// News — уборка таблиц новостей (опционально).
	News NewsCleaner

	// SyncSchedule — cron ежедневной синхронизации (default: "0 2 * * *").
	SyncSchedule string

	// CleanupSchedule — cron уборки (default: "0 * * * *").
	CleanupSchedule string

	// ItemCount — размер выпуска для плановой синхронизации.
	ItemCount int

	// NewsRetention — срок хранения новостей (default: 72h).
	NewsRetention time.Duration

	Logger *slog.Logger
}

// New создаёт Scheduler и валидирует cron-выражения.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Enqueuer == nil {
		return nil, errors.New("enqueuer is required")
	}

	syncSchedule := cfg.SyncSchedule
	if syncSchedule == "" {
		syncSchedule = defaultSyncSchedule
	}
	cleanupSchedule := cfg.CleanupSchedule
	if cleanupSchedule == "" {
		cleanupSchedule = defaultCleanupSchedule
	}
	retention := cfg.NewsRetention
	if retention <= 0 {
		retention = 72 * time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	for _, expr := range []string{syncSchedule, cleanupSchedule} {
		if _, err := parser.Parse(expr); err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
		}
	}

	return &Scheduler{
		enqueuer:        cfg.Enqueuer,
		reapers:         cfg.Reapers,
		news:            cfg.News,
		cron:            cron.New(),
		logger:          logger,
		syncSchedule:    syncSchedule,
		cleanupSchedule: cleanupSchedule,
		itemCount:       cfg.ItemCount,
		newsRetention:   retention,
	}, nil
}

// Start регистрирует cron-задачи и запускает планировщик.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.syncSchedule, s.wrap("daily sync", s.TriggerSync)); err != nil {
		return fmt.Errorf("register sync job: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cleanupSchedule, s.wrap("cleanup", s.Cleanup)); err != nil {
		return fmt.Errorf("register cleanup job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		"sync_schedule", s.syncSchedule,
		"cleanup_schedule", s.cleanupSchedule,
	)
	return nil
}

// Stop останавливает планировщик и ждёт завершения текущих задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// wrap превращает tick-функцию в cron-колбэк с таймаутом и логом ошибки.
func (s *Scheduler) wrap(name string, fn func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultTickTimeout)
		defer cancel()

		s.logger.Info("cron trigger", "job", name)
		if err := fn(ctx); err != nil {
			s.logger.Error("cron job failed", "job", name, "error", err)
		}
	}
}

// TriggerSync ставит плановую sync-джобу.
func (s *Scheduler) TriggerSync(ctx context.Context) error {
	job, err := s.enqueuer.Enqueue(ctx, domain.KindSync, domain.Payload{ItemCount: s.itemCount})
	if err != nil {
		return fmt.Errorf("enqueue scheduled sync: %w", err)
	}
	s.logger.Info("scheduled sync enqueued", "job_id", job.ID)
	return nil
}

// Cleanup удаляет устаревшие записи jobs и старые новости.
// Ошибка одного хранилища не блокирует уборку остальных.
func (s *Scheduler) Cleanup(ctx context.Context) error {
	var firstErr error

	for _, reaper := range s.reapers {
		removed, err := reaper.CleanupExpired(ctx, reaper.Retention())
		if err != nil {
			s.logger.Error("job cleanup failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if removed > 0 {
			s.logger.Info("expired jobs removed", "count", removed)
		}
	}

	if s.news != nil {
		cutoff := time.Now().Add(-s.newsRetention)
		removed, err := s.news.CleanupOlderThan(ctx, cutoff)
		if err != nil {
			s.logger.Error("news cleanup failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		} else if removed > 0 {
			s.logger.Info("old news removed", "count", removed)
		}
	}
	return firstErr
}
