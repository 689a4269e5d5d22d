// Package enqueue — единая точка постановки jobs: запись в JobStore
// плюс best-effort wakeup-уведомление через RabbitMQ.
package enqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jrjgit/news/internal/domain"
	"github.com/jrjgit/news/internal/jobstore"
	"github.com/jrjgit/news/internal/mq"
)

// Enqueuer ставит jobs обоих видов.
//
// Источник истины — JobStore; публикация в MQ лишь будит worker
// раньше polling-тика, её отказ не считается отказом постановки.
type Enqueuer struct {
	stores    map[domain.Kind]*jobstore.Store
	publisher *mq.Publisher
	logger    *slog.Logger
}

// New создаёт Enqueuer. publisher может быть nil (только polling).
func New(syncStore, audioStore *jobstore.Store, publisher *mq.Publisher, logger *slog.Logger) *Enqueuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enqueuer{
		stores: map[domain.Kind]*jobstore.Store{
			domain.KindSync:  syncStore,
			domain.KindAudio: audioStore,
		},
		publisher: publisher,
		logger:    logger,
	}
}

// Enqueue создаёт job указанного вида.
func (e *Enqueuer) Enqueue(ctx context.Context, kind domain.Kind, payload domain.Payload) (*domain.Job, error) {
	store, ok := e.stores[kind]
	if !ok || store == nil {
		return nil, fmt.Errorf("no store for job kind %q", kind)
	}

	// Дата job — её ключ для идемпотентности и поиска; по умолчанию сегодня.
	if payload.Date == "" {
		payload.Date = time.Now().Format("2006-01-02")
	}

	job, err := store.Enqueue(ctx, payload)
	if err != nil {
		return nil, err
	}

	if e.publisher != nil {
		if err := e.publisher.PublishJobEnqueued(ctx, job.ID, kind); err != nil {
			e.logger.Warn("wakeup publish failed, job will be picked up by polling",
				"job_id", job.ID, "error", err)
		}
	}
	return job, nil
}

// EnqueueAudio ставит задачу генерации аудио-выпуска.
// Используется sync-pipeline'ом как AudioEnqueuer.
func (e *Enqueuer) EnqueueAudio(ctx context.Context, date, script string) (string, error) {
	job, err := e.Enqueue(ctx, domain.KindAudio, domain.Payload{Date: date, Script: script})
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

// Store возвращает JobStore вида задачи (nil, если не настроен).
func (e *Enqueuer) Store(kind domain.Kind) *jobstore.Store {
	return e.stores[kind]
}
