// News Worker — обрабатывает фоновые jobs синхронизации новостей
// и генерации аудио-выпусков.
//
// Worker:
//   - Забирает jobs из durable очереди (KV store)
//   - Просыпается раньше polling-тика по уведомлениям из RabbitMQ
//   - Прогоняет sync-джобы через staged pipeline
//   - Синтезирует аудио-выпуски по chunks
//   - По расписанию ставит ежедневную синхронизацию и убирает старые записи
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"log/slog"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jrjgit/news/internal/api"
	"github.com/jrjgit/news/internal/artifact"
	"github.com/jrjgit/news/internal/breaker"
	"github.com/jrjgit/news/internal/compose"
	"github.com/jrjgit/news/internal/domain"
	"github.com/jrjgit/news/internal/enqueue"
	"github.com/jrjgit/news/internal/jobstore"
	"github.com/jrjgit/news/internal/kv"
	"github.com/jrjgit/news/internal/limiter"
	"github.com/jrjgit/news/internal/mq"
	"github.com/jrjgit/news/internal/pipeline"
	"github.com/jrjgit/news/internal/provider"
	"github.com/jrjgit/news/internal/repo"
	"github.com/jrjgit/news/internal/scheduler"
	"github.com/jrjgit/news/internal/synth"
	"github.com/jrjgit/news/internal/telemetry"
	"github.com/jrjgit/news/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting news-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	newsRepo := repo.NewNewsRepo(pool)
	if err := newsRepo.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	// KV store для очередей jobs
	store, err := kv.Open(ctx, kv.Config{
		Driver:   kv.Driver(envOr("KV_DRIVER", string(kv.DriverPostgres))),
		RedisURL: os.Getenv("REDIS_URL"),
		Pool:     pool,
	}, logger)
	if err != nil {
		logger.Error("failed to open kv store", "error", err)
		os.Exit(1)
	}

	syncStore := jobstore.New(store, jobstore.Config{Kind: domain.KindSync, Logger: logger})
	audioStore := jobstore.New(store, jobstore.Config{Kind: domain.KindAudio, Logger: logger})

	// RabbitMQ (опционально: без него работает polling)
	var mqConn *mq.Connection
	var publisher *mq.Publisher
	if mqURL := os.Getenv("RABBITMQ_URL"); mqURL != "" {
		mqConn, err = mq.NewConnection(mqURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
			mqConn = nil
		} else {
			defer mqConn.Close()
			logger.Info("RabbitMQ connected")

			if err := mq.SetupTopology(mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			publisher = mq.NewPublisher(mqConn, logger)
		}
	}

	metrics := telemetry.NewMetrics()

	// Внешние провайдеры
	fetcher, err := provider.NewRSSFetcher(provider.RSSConfig{
		Feeds:  loadFeeds(logger),
		Logger: logger,
	})
	if err != nil {
		logger.Error("failed to build rss fetcher", "error", err)
		os.Exit(1)
	}

	chat, err := provider.NewChatClient(provider.ChatConfig{
		BaseURL: envOr("AI_BASE_URL", "https://api.openai.com"),
		APIKey:  os.Getenv("AI_API_KEY"),
		Model:   os.Getenv("AI_MODEL"),
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to build chat client", "error", err)
		os.Exit(1)
	}

	tts, err := provider.NewTTSClient(provider.TTSConfig{
		BaseURL: envOr("TTS_BASE_URL", "https://api.openai.com"),
		APIKey:  envOr("TTS_API_KEY", os.Getenv("AI_API_KEY")),
		Voice:   os.Getenv("TTS_VOICE"),
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to build tts client", "error", err)
		os.Exit(1)
	}

	// Защита AI-зависимости
	brk := breaker.New(breaker.Config{
		Name:   "ai",
		Logger: logger,
		OnStateChange: func(name string, state breaker.State) {
			metrics.ObserveBreaker(name, string(state))
		},
	})
	bucket, err := limiter.NewTokenBucket(envInt("AI_RATE_PER_MINUTE", 30))
	if err != nil {
		logger.Error("invalid rate limit", "error", err)
		os.Exit(1)
	}
	sem, err := limiter.NewSemaphore(envInt("AI_CONCURRENCY", 3))
	if err != nil {
		logger.Error("invalid concurrency limit", "error", err)
		os.Exit(1)
	}

	enqueuer := enqueue.New(syncStore, audioStore, publisher, logger)

	runner, err := pipeline.NewRunner(pipeline.Config{
		Fetcher:    fetcher,
		Summarizer: chat,
		Translator: chat,
		Scorer:     chat,
		Composer:   compose.New(0),
		Audio:      enqueuer,
		Recorder:   newsRepo,
		Breaker:    brk,
		Bucket:     bucket,
		Sem:        sem,
		Metrics:    metrics,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	chunked, err := synth.New(synth.Config{
		Synthesizer: tts,
		Artifacts:   artifact.NewFS(envOr("ARTIFACT_DIR", "./artifacts")),
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to build synthesizer", "error", err)
		os.Exit(1)
	}

	// Worker loop
	w, err := worker.New(worker.Config{
		SyncStore:  syncStore,
		AudioStore: audioStore,
		Runner:     runner,
		Synth:      chunked,
		Conn:       mqConn,
		Metrics:    metrics,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to build worker", "error", err)
		os.Exit(1)
	}
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// Планировщик: ежедневный sync + уборка
	sched, err := scheduler.New(scheduler.Config{
		Enqueuer:     enqueuer,
		Reapers:      []scheduler.Reaper{syncStore, audioStore},
		News:         newsRepo,
		SyncSchedule: os.Getenv("CRON_SCHEDULE"),
		Logger:       logger,
	})
	if err != nil {
		logger.Error("failed to build scheduler", "error", err)
		os.Exit(1)
	}
	if err := sched.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz, /metrics и API. Worker — единственный процесс
	// со всеми коллабораторами pipeline, поэтому single-shot
	// process-one живёт здесь.
	handler := api.NewHandler(api.Config{
		Enqueuer:   enqueuer,
		SyncStore:  syncStore,
		AudioStore: audioStore,
		News:       newsRepo,
		Processor:  w,
		Logger:     logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	port := ":" + envOr("WORKER_PORT", "8082")
	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	sched.Stop()
	w.Stop()
	logger.Info("news-worker stopped")
}

// defaultFeeds — ленты по умолчанию; перекрываются переменной FEEDS_JSON.
var defaultFeeds = []provider.Feed{
	{URL: "https://www.chinanews.com.cn/rss/scroll-news.xml", Source: "中国新闻网", Category: domain.CategoryDomestic},
	{URL: "https://feeds.bbci.co.uk/news/world/rss.xml", Source: "BBC World", Category: domain.CategoryInternational},
	{URL: "https://rss.cnn.com/rss/edition_world.rss", Source: "CNN World", Category: domain.CategoryInternational},
}

func loadFeeds(logger *slog.Logger) []provider.Feed {
	raw := os.Getenv("FEEDS_JSON")
	if raw == "" {
		return defaultFeeds
	}

	var feeds []struct {
		URL      string `json:"url"`
		Source   string `json:"source"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(raw), &feeds); err != nil {
		logger.Warn("invalid FEEDS_JSON, using default feeds", "error", err)
		return defaultFeeds
	}

	out := make([]provider.Feed, 0, len(feeds))
	for _, f := range feeds {
		cat := domain.CategoryDomestic
		if f.Category == string(domain.CategoryInternational) {
			cat = domain.CategoryInternational
		}
		out = append(out, provider.Feed{URL: f.URL, Source: f.Source, Category: cat})
	}
	if len(out) == 0 {
		return defaultFeeds
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
