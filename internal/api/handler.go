package api

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jrjgit/news/internal/domain"
	"github.com/jrjgit/news/internal/enqueue"
	"github.com/jrjgit/news/internal/jobstore"
	"github.com/jrjgit/news/internal/worker"
)

// Максимальная длительность SSE-подписки на статус job.
const defaultStreamCap = 3 * time.Minute

// NewsReader отдаёт сохранённые новости за дату. Реализуется repo.NewsRepo.
type NewsReader interface {
	ItemsByDate(ctx context.Context, date string) ([]domain.ProcessedItem, error)
}

// OneProcessor — single-shot обработка одной job. Реализуется worker.Loop.
type OneProcessor interface {
	ProcessOne(ctx context.Context) worker.Outcome
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	enqueuer   *enqueue.Enqueuer
	syncStore  *jobstore.Store
	audioStore *jobstore.Store
	news       NewsReader
	processor  OneProcessor
	logger     *slog.Logger
	streamCap  time.Duration
}

// Config — конфигурация для создания Handler.
type Config struct {
	Enqueuer   *enqueue.Enqueuer
	SyncStore  *jobstore.Store
	AudioStore *jobstore.Store

	// News — чтение новостей (опционально).
	News NewsReader

	// Processor — single-shot обработка для хостов с лимитом времени
	// вызова (опционально).
	Processor OneProcessor

	Logger *slog.Logger

	// StreamCap — максимум времени SSE-подписки (default: 3m).
	StreamCap time.Duration
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	streamCap := cfg.StreamCap
	if streamCap <= 0 {
		streamCap = defaultStreamCap
	}
	return &Handler{
		enqueuer:   cfg.Enqueuer,
		syncStore:  cfg.SyncStore,
		audioStore: cfg.AudioStore,
		news:       cfg.News,
		processor:  cfg.Processor,
		logger:     logger,
		streamCap:  streamCap,
	}
}

// storeForID выбирает store по префиксу идентификатора
// (job id имеет форму "<kind>-<ms>-<suffix>").
func (h *Handler) storeForID(jobID string) *jobstore.Store {
	if strings.HasPrefix(jobID, string(domain.KindAudio)+"-") {
		return h.audioStore
	}
	return h.syncStore
}
