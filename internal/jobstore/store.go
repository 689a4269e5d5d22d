package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jrjgit/news/internal/domain"
	"github.com/jrjgit/news/internal/kv"
)

// DefaultRetention — срок хранения записей jobs по умолчанию.
const DefaultRetention = 24 * time.Hour

// Store — durable состояние jobs одного kind поверх kv.Store.
//
// Каждый kind живёт в своём keyspace (news-sync:* / news-audio:*):
// запись job — обычный ключ, очередь — sorted set со score по времени
// создания (старые первыми, FIFO).
//
// ClaimNext — это peek, не атомарный pop: два worker'а могут прочитать
// один и тот же job. Гонка разрешается повторной проверкой статуса
// после чтения — проигравший видит статус уже не PENDING и отступает
// (at-least-once семантика, см. worker.Loop).
type Store struct {
	kv        kv.Store
	kind      domain.Kind
	keyspace  string
	retention time.Duration
	logger    *slog.Logger

	// now подменяется в тестах.
	now func() time.Time
}

// Config — конфигурация Store.
type Config struct {
	// Kind — вид jobs этого store.
	Kind domain.Kind

	// Retention — срок хранения (default: 24h).
	Retention time.Duration

	// Logger — логгер; nil — slog.Default().
	Logger *slog.Logger
}

// New создаёт Store для заданного kind.
func New(store kv.Store, cfg Config) *Store {
	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		kv:        store,
		kind:      cfg.Kind,
		keyspace:  "news-" + string(cfg.Kind),
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Retention возвращает настроенный срок хранения.
func (s *Store) Retention() time.Duration {
	return s.retention
}

func (s *Store) jobKey(jobID string) string {
	return s.keyspace + ":job:" + jobID
}

func (s *Store) jobKeyPrefix() string {
	return s.keyspace + ":job:"
}

func (s *Store) pendingSet() string {
	return s.keyspace + ":queue:pending"
}

// newJobID генерирует time-ordered идентификатор со случайным суффиксом.
func (s *Store) newJobID() string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s", s.kind, s.now().UnixMilli(), suffix)
}

// Enqueue создаёт job со статусом PENDING и ставит её в очередь.
func (s *Store) Enqueue(ctx context.Context, payload domain.Payload) (*domain.Job, error) {
	now := s.now()
	job := &domain.Job{
		ID:     s.newJobID(),
		Kind:   s.kind,
		Status: domain.StatusPending,
		Progress: domain.Progress{
			Stage:   "pending",
			Percent: 0,
			Message: "job queued",
		},
		Payload:   payload,
		CreatedAt: now,
	}

	if err := s.write(ctx, job); err != nil {
		return nil, err
	}

	err := s.kv.ZAdd(ctx, s.pendingSet(), kv.ZEntry{
		Member: job.ID,
		Score:  float64(now.UnixMilli()),
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", job.ID, err)
	}

	s.logger.Info("job enqueued", "job_id", job.ID, "kind", s.kind)
	return job, nil
}

// GetStatus возвращает job по ID.
func (s *Store) GetStatus(ctx context.Context, jobID string) (*domain.Job, error) {
	raw, ok, err := s.kv.Get(ctx, s.jobKey(jobID))
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	var job domain.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", jobID, err)
	}
	return &job, nil
}

// Update — частичное обновление job.
type Update struct {
	// Status — новый статус (движение только вперёд).
	Status *domain.Status

	// Progress — новый прогресс; Percent ниже текущего игнорируется
	// (монотонность), стадия и сообщение применяются всегда.
	Progress *domain.Progress

	// Result — итог; осмыслен вместе с терминальным статусом.
	Result *domain.Result
}

// UpdateStatus применяет частичное обновление.
//
// Терминальный статус дополнительно проставляет finishedAt и убирает
// job из pending-очереди. Попытка двинуть статус назад отклоняется.
func (s *Store) UpdateStatus(ctx context.Context, jobID string, upd Update) (*domain.Job, error) {
	job, err := s.GetStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if upd.Status != nil && *upd.Status != job.Status {
		if !job.Status.CanTransitionTo(*upd.Status) {
			return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, job.Status, *upd.Status)
		}
		job.Status = *upd.Status
	}

	if upd.Progress != nil {
		p := *upd.Progress
		if p.Percent < job.Progress.Percent {
			p.Percent = job.Progress.Percent
		}
		job.Progress = p
	}

	if upd.Result != nil {
		job.Result = upd.Result
	}

	if job.Status.IsTerminal() && job.FinishedAt == nil {
		now := s.now()
		job.FinishedAt = &now
		if err := s.kv.ZRem(ctx, s.pendingSet(), jobID); err != nil {
			return nil, fmt.Errorf("dequeue %s: %w", jobID, err)
		}
	}

	if err := s.write(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// ClaimNext возвращает ID самой старой pending job или "" при пустой очереди.
//
// Это read-only peek: вызывающий обязан перечитать job и проверить,
// что статус всё ещё PENDING, прежде чем начинать обработку.
//
// Члены очереди, чья запись уже не PENDING, не блокируют jobs позади
// себя: ACTIVE пропускается (её worker может быть ещё жив), терминальные
// и осиротевшие члены попутно убираются из очереди.
func (s *Store) ClaimNext(ctx context.Context) (string, error) {
	members, err := s.kv.ZRange(ctx, s.pendingSet(), 0, -1)
	if err != nil {
		return "", fmt.Errorf("peek pending queue: %w", err)
	}

	for _, jobID := range members {
		job, err := s.GetStatus(ctx, jobID)
		if errors.Is(err, ErrJobNotFound) {
			// Запись стёрта (cancel или cleanup), member остался.
			if err := s.kv.ZRem(ctx, s.pendingSet(), jobID); err != nil {
				return "", fmt.Errorf("dequeue %s: %w", jobID, err)
			}
			continue
		}
		if err != nil {
			return "", err
		}

		if job.Status == domain.StatusPending {
			return jobID, nil
		}
		if job.Status.IsTerminal() {
			if err := s.kv.ZRem(ctx, s.pendingSet(), jobID); err != nil {
				return "", fmt.Errorf("dequeue %s: %w", jobID, err)
			}
		}
	}
	return "", nil
}

// Cancel удаляет job из очереди и стирает запись.
// Возвращает false, если job не найдена.
func (s *Store) Cancel(ctx context.Context, jobID string) (bool, error) {
	_, ok, err := s.kv.Get(ctx, s.jobKey(jobID))
	if err != nil {
		return false, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if !ok {
		return false, nil
	}

	if err := s.kv.ZRem(ctx, s.pendingSet(), jobID); err != nil {
		return false, fmt.Errorf("dequeue %s: %w", jobID, err)
	}
	if err := s.kv.Del(ctx, s.jobKey(jobID)); err != nil {
		return false, fmt.Errorf("delete job %s: %w", jobID, err)
	}

	s.logger.Info("job cancelled", "job_id", jobID, "kind", s.kind)
	return true, nil
}

// Stats — статистика очереди.
type Stats struct {
	Kind    domain.Kind `json:"kind"`
	Pending int64       `json:"pending"`
}

// QueueStats возвращает размер pending-очереди.
func (s *Store) QueueStats(ctx context.Context) (Stats, error) {
	n, err := s.kv.ZCard(ctx, s.pendingSet())
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{Kind: s.kind, Pending: n}, nil
}

// CleanupExpired удаляет jobs старше retention и возвращает количество.
//
// Сканируются и pending-очередь, и завершённые записи (уже убранные
// из очереди). Активная job без finishedAt не трогается независимо
// от возраста: её worker может быть ещё жив.
func (s *Store) CleanupExpired(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		retention = s.retention
	}
	now := s.now()

	keys, err := s.kv.Keys(ctx, s.jobKeyPrefix())
	if err != nil {
		return 0, fmt.Errorf("scan jobs: %w", err)
	}

	removed := 0
	for _, key := range keys {
		jobID := strings.TrimPrefix(key, s.jobKeyPrefix())

		job, err := s.GetStatus(ctx, jobID)
		if err != nil {
			// Запись могла исчезнуть между scan и чтением.
			continue
		}

		if job.Age(now) <= retention {
			continue
		}
		if job.Status == domain.StatusActive && job.FinishedAt == nil {
			continue
		}

		if err := s.kv.ZRem(ctx, s.pendingSet(), jobID); err != nil {
			return removed, fmt.Errorf("dequeue %s: %w", jobID, err)
		}
		if err := s.kv.Del(ctx, key); err != nil {
			return removed, fmt.Errorf("delete job %s: %w", jobID, err)
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("expired jobs removed", "kind", s.kind, "count", removed)
	}
	return removed, nil
}

// LatestForDate возвращает свежайшую job данной даты (payload.date),
// предпочитая успешно завершённые. Используется audio-вариантом для
// проверки "выпуск за сегодня уже готов".
func (s *Store) LatestForDate(ctx context.Context, date string) (*domain.Job, error) {
	keys, err := s.kv.Keys(ctx, s.jobKeyPrefix())
	if err != nil {
		return nil, fmt.Errorf("scan jobs: %w", err)
	}

	var best *domain.Job
	for _, key := range keys {
		jobID := strings.TrimPrefix(key, s.jobKeyPrefix())
		job, err := s.GetStatus(ctx, jobID)
		if err != nil {
			continue
		}
		if job.Payload.Date != date {
			continue
		}
		if best == nil || better(job, best) {
			best = job
		}
	}
	return best, nil
}

// better предпочитает успешные jobs, затем более свежие.
func better(a, b *domain.Job) bool {
	aDone := a.Status == domain.StatusSucceeded
	bDone := b.Status == domain.StatusSucceeded
	if aDone != bDone {
		return aDone
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func (s *Store) write(ctx context.Context, job *domain.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	if err := s.kv.Set(ctx, s.jobKey(job.ID), string(raw)); err != nil {
		return fmt.Errorf("write job %s: %w", job.ID, err)
	}
	return nil
}
