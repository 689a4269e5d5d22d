// News API — HTTP-интерфейс системы: постановка jobs, статусы
// и стримы прогресса, чтение результатов синхронизации.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jrjgit/news/internal/api"
	"github.com/jrjgit/news/internal/domain"
	"github.com/jrjgit/news/internal/enqueue"
	"github.com/jrjgit/news/internal/jobstore"
	"github.com/jrjgit/news/internal/kv"
	"github.com/jrjgit/news/internal/mq"
	"github.com/jrjgit/news/internal/repo"
	"github.com/jrjgit/news/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "news_api_http_requests_total",
		Help: "Total HTTP requests handled by news_api",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting news-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	newsRepo := repo.NewNewsRepo(pool)

	// KV store для очередей jobs
	driver := os.Getenv("KV_DRIVER")
	if driver == "" {
		driver = string(kv.DriverPostgres)
	}
	store, err := kv.Open(ctx, kv.Config{
		Driver:   kv.Driver(driver),
		RedisURL: os.Getenv("REDIS_URL"),
		Pool:     pool,
	}, logger)
	if err != nil {
		logger.Error("failed to open kv store", "error", err)
		os.Exit(1)
	}

	syncStore := jobstore.New(store, jobstore.Config{Kind: domain.KindSync, Logger: logger})
	audioStore := jobstore.New(store, jobstore.Config{Kind: domain.KindAudio, Logger: logger})

	// RabbitMQ publisher для wakeup-уведомлений (опционально)
	var publisher *mq.Publisher
	if mqURL := os.Getenv("RABBITMQ_URL"); mqURL != "" {
		conn, err := mq.NewConnection(mqURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, workers rely on polling", "error", err)
		} else {
			defer conn.Close()
			if err := mq.SetupTopology(conn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			publisher = mq.NewPublisher(conn, logger)
		}
	}

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		Enqueuer:   enqueue.New(syncStore, audioStore, publisher, logger),
		SyncStore:  syncStore,
		AudioStore: audioStore,
		News:       newsRepo,
		Logger:     logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
