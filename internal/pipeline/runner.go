package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jrjgit/news/internal/breaker"
	"github.com/jrjgit/news/internal/domain"
	"github.com/jrjgit/news/internal/limiter"
	"github.com/jrjgit/news/internal/telemetry"
)

// ErrNoItems — ContentFetcher не вернул ни одной новости.
var ErrNoItems = errors.New("no news fetched")

// Config — зависимости и параметры Runner.
type Config struct {
	Fetcher    ContentFetcher
	Summarizer Summarizer
	Translator Translator
	Scorer     Scorer
	Composer   ScriptComposer
	Audio      AudioEnqueuer
	Recorder   Recorder

	// Breaker защищает AI-стадии (summarize, translate, score).
	// Один инстанс на внешнюю AI-зависимость, живёт столько же,
	// сколько процесс.
	Breaker *breaker.Breaker

	// Bucket и Sem ограничивают пер-item вызовы внутри стадии.
	Bucket *limiter.TokenBucket
	Sem    *limiter.Semaphore

	Metrics *telemetry.Metrics
	Logger  *slog.Logger

	// ItemCount — размер выпуска по умолчанию, если payload не задал.
	ItemCount int

	// TargetLang — язык перевода международных новостей.
	TargetLang string

	// BreakerPause — пауза перед единственным повтором стадии после
	// CircuitOpenError.
	BreakerPause time.Duration
}

// Runner прогоняет sync-джобу через фиксированную последовательность стадий.
type Runner struct {
	fetcher    ContentFetcher
	summarizer Summarizer
	translator Translator
	scorer     Scorer
	composer   ScriptComposer
	audio      AudioEnqueuer
	recorder   Recorder

	brk    *breaker.Breaker
	bucket *limiter.TokenBucket
	sem    *limiter.Semaphore

	metrics *telemetry.Metrics
	logger  *slog.Logger

	itemCount    int
	targetLang   string
	breakerPause time.Duration

	// Подменяются в тестах.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner создаёт Runner. Все коллабораторы обязательны.
func NewRunner(cfg Config) (*Runner, error) {
	switch {
	case cfg.Fetcher == nil:
		return nil, errors.New("fetcher is required")
	case cfg.Summarizer == nil || cfg.Translator == nil || cfg.Scorer == nil:
		return nil, errors.New("ai collaborators are required")
	case cfg.Composer == nil:
		return nil, errors.New("composer is required")
	case cfg.Audio == nil:
		return nil, errors.New("audio enqueuer is required")
	case cfg.Recorder == nil:
		return nil, errors.New("recorder is required")
	case cfg.Breaker == nil:
		return nil, errors.New("breaker is required")
	case cfg.Bucket == nil || cfg.Sem == nil:
		return nil, errors.New("limiters are required")
	}

	itemCount := cfg.ItemCount
	if itemCount <= 0 {
		itemCount = defaultItemCount
	}
	targetLang := cfg.TargetLang
	if targetLang == "" {
		targetLang = defaultTargetLang
	}
	pause := cfg.BreakerPause
	if pause <= 0 {
		pause = defaultBreakerPause
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		fetcher:      cfg.Fetcher,
		summarizer:   cfg.Summarizer,
		translator:   cfg.Translator,
		scorer:       cfg.Scorer,
		composer:     cfg.Composer,
		audio:        cfg.Audio,
		recorder:     cfg.Recorder,
		brk:          cfg.Breaker,
		bucket:       cfg.Bucket,
		sem:          cfg.Sem,
		metrics:      cfg.Metrics,
		logger:       logger,
		itemCount:    itemCount,
		targetLang:   targetLang,
		breakerPause: pause,
		now:          time.Now,
		sleep:        sleepCtx,
	}, nil
}

// Run выполняет все стадии sync-джобы и возвращает итог.
//
// Возврат всегда не-nil; терминальный статус по нему выставляет worker.
// Стадии выполняются строго по порядку, отказ стадии останавливает
// прогон.
func (r *Runner) Run(ctx context.Context, job *domain.Job, report ReportFunc) *domain.Result {
	start := r.now()
	logger := telemetry.WithJobID(r.logger, job.ID)

	date := job.Payload.Date
	if date == "" {
		date = start.Format("2006-01-02")
	}

	rep := func(stage string, percent int, message string, details *domain.ProgressDetails) {
		logger.Info("sync progress", "stage", stage, "percent", percent, "message", message)
		if report == nil {
			return
		}
		p := domain.Progress{Stage: stage, Percent: percent, Message: message, Details: details}
		if err := report(ctx, p); err != nil {
			logger.Warn("progress report failed", "stage", stage, "error", err)
		}
	}

	rep("init", 5, "starting news sync", nil)

	if !job.Payload.ForceRefresh {
		completed, err := r.recorder.CompletedMarker(ctx, date)
		if err != nil {
			return r.fail(logger, "init", err)
		}
		if completed {
			logger.Info("sync already completed for date, skipping", "date", date)
			return &domain.Result{Success: true, Skipped: true}
		}
	}

	// Стадия 1: получение сырых новостей. Отказ фатален.
	rep("fetch", 10, "fetching feeds", nil)
	stageStart := r.now()
	raw, err := r.fetcher.FetchBatch(ctx)
	if err != nil {
		return r.fail(logger, "fetch", err)
	}
	if len(raw) == 0 {
		return r.fail(logger, "fetch", ErrNoItems)
	}
	r.observeStage("fetch", stageStart)
	rep("fetch", 15, fmt.Sprintf("fetched %d raw items", len(raw)), nil)

	// Стадия 2: отбор выпуска.
	rep("select", 20, "selecting daily items", nil)
	count := job.Payload.ItemCount
	if count <= 0 {
		count = r.itemCount
	}
	items := r.selectDaily(raw, count)
	domestic, international := splitByCategory(items)
	rep("select", 25, fmt.Sprintf("selected %d domestic, %d international", len(domestic), len(international)), nil)

	var allFailed []string

	// Стадия 3: резюме. Fallback — усечённый оригинальный текст.
	rep("summarize", 30, fmt.Sprintf("summarizing %d items", len(items)), nil)
	stageStart = r.now()
	failed, err := r.batchStage(ctx, "summarize", items, rep, 30, 45,
		func(ctx context.Context, item *domain.ProcessedItem) error {
			summary, err := r.summarizer.Summarize(ctx, item.NewsItem)
			if err != nil {
				return err
			}
			item.Summary = summary
			return nil
		},
		func(item *domain.ProcessedItem) {
			item.Summary = truncateRunes(item.Content, fallbackSummaryRunes)
		},
	)
	if err != nil {
		return r.fail(logger, "summarize", err)
	}
	allFailed = append(allFailed, failed...)
	r.observeStage("summarize", stageStart)
	rep("summarize", 45, "summaries done", details(len(items), len(items), allFailed))

	// Стадия 4: перевод международных новостей. Fallback — оригинал.
	rep("translate", 50, fmt.Sprintf("translating %d international items", len(international)), nil)
	stageStart = r.now()
	failed, err = r.batchStage(ctx, "translate", international, rep, 50, 60,
		func(ctx context.Context, item *domain.ProcessedItem) error {
			translated, err := r.translator.Translate(ctx, item.Content, r.targetLang)
			if err != nil {
				return err
			}
			item.TranslatedContent = translated
			return nil
		},
		func(item *domain.ProcessedItem) {
			item.TranslatedContent = ""
		},
	)
	if err != nil {
		return r.fail(logger, "translate", err)
	}
	allFailed = append(allFailed, failed...)
	r.observeStage("translate", stageStart)
	rep("translate", 60, "translation done", details(len(international), len(international), allFailed))

	// Стадия 5: важность 1..5. Fallback — середина шкалы.
	rep("score", 65, "evaluating importance", nil)
	stageStart = r.now()
	failed, err = r.batchStage(ctx, "score", items, rep, 65, 75,
		func(ctx context.Context, item *domain.ProcessedItem) error {
			importance, err := r.scorer.EvaluateImportance(ctx, item.Title, item.Summary)
			if err != nil {
				return err
			}
			item.Importance = clampImportance(importance)
			return nil
		},
		func(item *domain.ProcessedItem) {
			item.Importance = fallbackImportance
		},
	)
	if err != nil {
		return r.fail(logger, "score", err)
	}
	allFailed = append(allFailed, failed...)
	r.observeStage("score", stageStart)
	rep("score", 75, "importance done", details(len(items), len(items), allFailed))

	// Стадия 6: текст выпуска и пер-новостные скрипты. Чистый код, без I/O.
	rep("compose", 80, "composing broadcast script", nil)
	broadcastDate := start
	if parsed, perr := time.Parse("2006-01-02", date); perr == nil {
		broadcastDate = parsed
	}
	processed := deref(items)
	script := r.composer.DailyScript(broadcastDate, processed)
	for i := range processed {
		processed[i].Script = r.composer.ItemScript(processed[i])
	}
	rep("compose", 85, "script composed", nil)

	// Стадия 7: аудио уходит в фоновую очередь, здесь не ждём синтеза.
	rep("audio", 90, "enqueueing audio job", nil)
	audioJobID, err := r.audio.EnqueueAudio(ctx, date, script)
	if err != nil {
		return r.fail(logger, "audio", err)
	}
	logger.Info("audio job enqueued", "audio_job_id", audioJobID, "date", date)

	// Стадия 8: сохранение и маркер идемпотентности.
	rep("persist", 95, "saving results", nil)
	stageStart = r.now()
	if err := r.recorder.SaveItems(ctx, date, processed); err != nil {
		return r.fail(logger, "persist", err)
	}
	if err := r.recorder.MarkCompleted(ctx, date, job.ID, len(processed)); err != nil {
		return r.fail(logger, "persist", err)
	}
	r.observeStage("persist", stageStart)

	rep("done", 100, fmt.Sprintf("saved %d items", len(processed)), details(len(processed), len(processed), allFailed))
	logger.Info("sync finished",
		"date", date,
		"items", len(processed),
		"fallbacks", len(allFailed),
		"duration", r.now().Sub(start),
	)
	return &domain.Result{Success: true, ProducedCount: len(processed)}
}

// selectDaily сортирует новости по свежести и отбирает выпуск:
// примерно 70% внутренних, остальное международные.
func (r *Runner) selectDaily(raw []domain.NewsItem, count int) []*domain.ProcessedItem {
	sorted := make([]domain.NewsItem, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
	})

	domesticMax := (count*7 + 9) / 10
	internationalMax := count - domesticMax

	var items []*domain.ProcessedItem
	var nDomestic, nInternational int
	for _, n := range sorted {
		switch {
		case n.Category == domain.CategoryInternational && nInternational < internationalMax:
			nInternational++
		case n.Category != domain.CategoryInternational && nDomestic < domesticMax:
			nDomestic++
		default:
			continue
		}
		items = append(items, &domain.ProcessedItem{NewsItem: n})
	}
	return items
}

// batchStage прогоняет fn по items параллельно под bucket+semaphore,
// внутри breaker. Пер-item отказ после ретраев деградирует до fallback;
// permanent-ошибка отменяет весь batch.
func (r *Runner) batchStage(
	ctx context.Context,
	stage string,
	items []*domain.ProcessedItem,
	rep func(string, int, string, *domain.ProgressDetails),
	percentFrom, percentTo int,
	fn func(context.Context, *domain.ProcessedItem) error,
	fallback func(*domain.ProcessedItem),
) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}

	var degraded []string
	run := func(ctx context.Context) error {
		failed, err := r.runBatch(ctx, stage, items, rep, percentFrom, percentTo, fn, fallback)
		if err != nil {
			return err
		}
		degraded = failed
		return nil
	}

	err := r.brk.Do(ctx, run)
	var open *breaker.OpenError
	if errors.As(err, &open) {
		// Breaker открыт: ждём фиксированную паузу и пробуем стадию
		// ровно ещё один раз.
		r.logger.Warn("breaker open, pausing before stage retry",
			"stage", stage, "retry_after", open.RetryAfter)
		if serr := r.sleep(ctx, r.breakerPause); serr != nil {
			return nil, serr
		}
		err = r.brk.Do(ctx, run)
	}
	if r.metrics != nil {
		r.metrics.ObserveBreaker("ai", string(r.brk.State()))
	}
	if err != nil {
		return nil, err
	}
	return degraded, nil
}

// runBatch — одна попытка batch-стадии.
func (r *Runner) runBatch(
	ctx context.Context,
	stage string,
	items []*domain.ProcessedItem,
	rep func(string, int, string, *domain.ProgressDetails),
	percentFrom, percentTo int,
	fn func(context.Context, *domain.ProcessedItem) error,
	fallback func(*domain.ProcessedItem),
) ([]string, error) {
	total := len(items)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu     sync.Mutex
		done   int
		failed []string
		fatal  error
	)

	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		go func(item *domain.ProcessedItem) {
			defer wg.Done()

			err := r.attemptItem(runCtx, func(c context.Context) error { return fn(c, item) })

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
			case breaker.IsPermanent(err):
				if fatal == nil {
					fatal = err
				}
				cancel()
				return
			case runCtx.Err() != nil:
				return
			default:
				fallback(item)
				failed = append(failed, item.Title)
				if r.metrics != nil {
					r.metrics.ItemFallbacks.WithLabelValues(stage).Inc()
				}
				r.logger.Warn("item degraded to fallback",
					"stage", stage, "title", item.Title, "error", err)
			}

			done++
			percent := percentFrom + (percentTo-percentFrom)*done/total
			rep(stage, percent, "", &domain.ProgressDetails{Current: done, Total: total, FailedItems: failed})
		}(item)
	}
	wg.Wait()

	if fatal != nil {
		return nil, fatal
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return failed, nil
}

// attemptItem выполняет один пер-item вызов с ретраями по таблице
// задержек. Каждая попытка платит токеном bucket и местом в semaphore.
func (r *Runner) attemptItem(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxItemAttempts; attempt++ {
		if attempt > 0 {
			if serr := r.sleep(ctx, backoffDelay(attempt-1, err)); serr != nil {
				return serr
			}
		}
		if err = r.bucket.Acquire(ctx); err != nil {
			return err
		}
		err = limiter.With(ctx, r.sem, func() error { return fn(ctx) })
		if err == nil || breaker.IsPermanent(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (r *Runner) fail(logger *slog.Logger, stage string, err error) *domain.Result {
	logger.Error("sync stage failed", "stage", stage, "error", err)
	return &domain.Result{Success: false, Error: err.Error()}
}

func (r *Runner) observeStage(stage string, since time.Time) {
	if r.metrics != nil {
		r.metrics.StageDuration.WithLabelValues(stage).Observe(r.now().Sub(since).Seconds())
	}
}

func splitByCategory(items []*domain.ProcessedItem) (domestic, international []*domain.ProcessedItem) {
	for _, item := range items {
		if item.Category == domain.CategoryInternational {
			international = append(international, item)
		} else {
			domestic = append(domestic, item)
		}
	}
	return domestic, international
}

func deref(items []*domain.ProcessedItem) []domain.ProcessedItem {
	out := make([]domain.ProcessedItem, len(items))
	for i, item := range items {
		out[i] = *item
	}
	return out
}

func details(current, total int, failed []string) *domain.ProgressDetails {
	return &domain.ProgressDetails{Current: current, Total: total, FailedItems: failed}
}

func clampImportance(v int) int {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
