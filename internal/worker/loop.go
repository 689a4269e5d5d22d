package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jrjgit/news/internal/domain"
	"github.com/jrjgit/news/internal/jobstore"
	"github.com/jrjgit/news/internal/mq"
	"github.com/jrjgit/news/internal/pipeline"
	"github.com/jrjgit/news/internal/synth"
	"github.com/jrjgit/news/internal/telemetry"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultPrefetch     = 1
)

// SyncRunner обрабатывает sync-джобу. Реализуется pipeline.Runner.
type SyncRunner interface {
	Run(ctx context.Context, job *domain.Job, report pipeline.ReportFunc) *domain.Result
}

// AudioSynthesizer синтезирует аудио-выпуск. Реализуется synth.Chunked.
type AudioSynthesizer interface {
	Split(text string) []string
	SynthesizeAll(ctx context.Context, chunks []string, jobID string, opts synth.Options) (*synth.Result, error)
}

// Loop обрабатывает jobs из двух очередей: sync и audio.
type Loop struct {
	syncStore  *jobstore.Store
	audioStore *jobstore.Store

	runner SyncRunner
	synth  AudioSynthesizer

	conn *mq.Connection

	metrics *telemetry.Metrics
	logger  *slog.Logger

	pollInterval time.Duration

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	now func() time.Time
}

// Config — конфигурация Loop.
type Config struct {
	// SyncStore и AudioStore — очереди двух видов jobs.
	SyncStore  *jobstore.Store
	AudioStore *jobstore.Store

	// Runner обрабатывает sync-джобы.
	Runner SyncRunner

	// Synth обрабатывает audio-джобы.
	Synth AudioSynthesizer

	// Conn — RabbitMQ для wakeup-уведомлений (опционально;
	// nil — только polling).
	Conn *mq.Connection

	Metrics *telemetry.Metrics
	Logger  *slog.Logger

	// PollInterval — интервал polling fallback (default: 10s).
	PollInterval time.Duration
}

// New создаёт Loop.
func New(cfg Config) (*Loop, error) {
	if cfg.SyncStore == nil || cfg.AudioStore == nil {
		return nil, errors.New("both job stores are required")
	}
	if cfg.Runner == nil || cfg.Synth == nil {
		return nil, errors.New("runner and synth are required")
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Loop{
		syncStore:    cfg.SyncStore,
		audioStore:   cfg.AudioStore,
		runner:       cfg.Runner,
		synth:        cfg.Synth,
		conn:         cfg.Conn,
		metrics:      cfg.Metrics,
		logger:       logger,
		pollInterval: pollInterval,
		now:          time.Now,
	}, nil
}

// Start запускает polling-горутину и, при наличии соединения,
// MQ-consumers обеих очередей.
func (l *Loop) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	l.cancelFunc = cancel

	l.logger.Info("starting worker", "poll_interval", l.pollInterval, "mq", l.conn != nil)

	if l.conn != nil {
		for _, kind := range []domain.Kind{domain.KindSync, domain.KindAudio} {
			consumer := mq.NewConsumer(l.conn, l.logger, mq.ConsumerConfig{
				Queue:    mq.QueueFor(kind),
				Handler:  l.handleWakeup,
				Prefetch: defaultPrefetch,
			})
			l.wg.Add(1)
			go func() {
				defer l.wg.Done()
				if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					l.logger.Error("wakeup consumer error", "error", err)
				}
			}()
		}
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.pollLoop(ctx)
	}()

	l.logger.Info("worker started")
	return nil
}

// Stop останавливает Loop и ждёт завершения горутин.
func (l *Loop) Stop() {
	l.logger.Info("stopping worker...")
	if l.cancelFunc != nil {
		l.cancelFunc()
	}
	l.wg.Wait()
	l.logger.Info("worker stopped")
}

// Outcome — итог одного вызова ProcessOne.
type Outcome struct {
	// Processed — была ли обработана хоть одна job.
	Processed bool

	// JobID — идентификатор обработанной job.
	JobID string

	// Err — ошибка обработки (job при этом получает статус FAILED,
	// если успела быть захвачена).
	Err error
}

// ProcessOne захватывает и обрабатывает не более одной job:
// сначала sync-очередь, затем audio. Подходит для single-shot хостов.
func (l *Loop) ProcessOne(ctx context.Context) Outcome {
	for _, store := range []*jobstore.Store{l.syncStore, l.audioStore} {
		jobID, err := store.ClaimNext(ctx)
		if err != nil {
			return Outcome{Err: err}
		}
		if jobID == "" {
			continue
		}

		processed, err := l.process(ctx, store, jobID)
		if !processed {
			// Гонка claim: job уже увёл другой worker, пробуем дальше.
			continue
		}
		return Outcome{Processed: true, JobID: jobID, Err: err}
	}
	return Outcome{}
}

// pollLoop — polling fallback. Первый проход сразу при старте,
// чтобы подхватить jobs, накопившиеся пока worker был выключен.
func (l *Loop) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	l.drainQueues(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.drainQueues(ctx)
		}
	}
}

// drainQueues обрабатывает jobs, пока очереди не опустеют.
func (l *Loop) drainQueues(ctx context.Context) {
	l.observeQueueDepth(ctx)
	for {
		if ctx.Err() != nil {
			return
		}
		outcome := l.ProcessOne(ctx)
		if outcome.Err != nil {
			l.logger.Error("job processing failed", "job_id", outcome.JobID, "error", outcome.Err)
		}
		if !outcome.Processed {
			return
		}
	}
}

// handleWakeup — обработчик MQ-уведомления о новой job.
func (l *Loop) handleWakeup(ctx context.Context, msg *mq.Message) error {
	payload, err := mq.ParsePayload[mq.JobEnqueuedPayload](msg)
	if err != nil {
		l.logger.Error("malformed wakeup payload", "message_id", msg.ID, "error", err)
		return nil // не возвращаем в очередь, polling подстрахует
	}

	store := l.storeFor(payload.Kind)
	processed, perr := l.process(ctx, store, payload.JobID)
	if !processed {
		l.logger.Debug("wakeup for already-claimed job", "job_id", payload.JobID)
		return nil
	}
	if perr != nil {
		// Job получила терминальный FAILED; сообщение не ретраим.
		l.logger.Error("job failed", "job_id", payload.JobID, "error", perr)
	}
	return nil
}

func (l *Loop) storeFor(kind domain.Kind) *jobstore.Store {
	if kind == domain.KindAudio {
		return l.audioStore
	}
	return l.syncStore
}

func (l *Loop) observeQueueDepth(ctx context.Context) {
	if l.metrics == nil {
		return
	}
	for kind, store := range map[string]*jobstore.Store{
		string(domain.KindSync):  l.syncStore,
		string(domain.KindAudio): l.audioStore,
	} {
		stats, err := store.QueueStats(ctx)
		if err != nil {
			continue
		}
		l.metrics.QueueDepth.WithLabelValues(kind).Set(float64(stats.Pending))
	}
}
