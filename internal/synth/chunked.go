package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jrjgit/news/internal/artifact"
	"github.com/jrjgit/news/internal/domain"
	"github.com/jrjgit/news/internal/limiter"
)

// Default configuration values.
const (
	defaultMaxChunkChars  = 200
	defaultMaxConcurrency = 3
)

// ErrNoChunksSynthesized — в best-effort режиме не удалось синтезировать
// ни одного chunk.
var ErrNoChunksSynthesized = errors.New("no chunks synthesized")

// Synthesizer — внешний примитив синтеза речи: текст → аудио-байты.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ProgressFunc — колбэк прогресса синтеза.
// Вызывается по завершении каждого chunk; порядок завершения
// из-за параллелизма произволен.
type ProgressFunc func(percent, completed, total int)

// Options — параметры одного вызова SynthesizeAll.
type Options struct {
	// BestEffort — пропускать упавшие chunks вместо отмены всей
	// операции; ошибка возвращается только если не удался ни один.
	BestEffort bool

	// OnProgress — колбэк прогресса (может быть nil).
	OnProgress ProgressFunc
}

// Result — итог синтеза.
type Result struct {
	// URLs — артефакты в порядке возрастания index (порядок воспроизведения).
	URLs []string

	// TotalBytes — суммарный размер артефактов.
	TotalBytes int64

	// ChunkCount — количество синтезированных chunks.
	ChunkCount int
}

// Chunked — параллельный синтез длинного текста по chunks.
//
// Каждый chunk синтезируется под семафором maxConcurrency и
// сохраняется в ArtifactStore под ключом audio/streaming/<jobID>/chunk-<index>.mp3.
// Итог всегда пересортирован по index, какой бы ни была очерёдность
// завершения.
type Chunked struct {
	synth     Synthesizer
	artifacts artifact.Store
	sem       *limiter.Semaphore
	maxChars  int
	logger    *slog.Logger
}

// Config — конфигурация Chunked.
type Config struct {
	// Synthesizer — примитив синтеза (обязателен).
	Synthesizer Synthesizer

	// Artifacts — blob-хранилище артефактов (обязательно).
	Artifacts artifact.Store

	// MaxChunkChars — лимит длины chunk в рунах (default: 200).
	MaxChunkChars int

	// MaxConcurrency — число одновременных синтезов (default: 3).
	MaxConcurrency int

	// Logger — логгер; nil — slog.Default().
	Logger *slog.Logger
}

// New создаёт Chunked.
func New(cfg Config) (*Chunked, error) {
	maxChars := cfg.MaxChunkChars
	if maxChars <= 0 {
		maxChars = defaultMaxChunkChars
	}
	concurrency := cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = defaultMaxConcurrency
	}

	sem, err := limiter.NewSemaphore(concurrency)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Chunked{
		synth:     cfg.Synthesizer,
		artifacts: cfg.Artifacts,
		sem:       sem,
		maxChars:  maxChars,
		logger:    logger,
	}, nil
}

// Split разбивает текст согласно настроенному лимиту.
func (c *Chunked) Split(text string) []string {
	return Split(text, c.maxChars)
}

func chunkKey(jobID string, index int) string {
	return fmt.Sprintf("audio/streaming/%s/chunk-%d.mp3", jobID, index)
}

// SynthesizeAll синтезирует chunks параллельно и собирает результат
// в порядке index.
//
// Уже сохранённые артефакты этого jobID переиспользуются: job,
// перехваченная после смерти предыдущего worker'а, не синтезирует
// готовые chunks заново.
func (c *Chunked) SynthesizeAll(ctx context.Context, chunks []string, jobID string, opts Options) (*Result, error) {
	total := len(chunks)
	if total == 0 {
		return nil, errors.New("empty text, nothing to synthesize")
	}

	existing := c.existingChunks(ctx, jobID)

	var (
		mu        sync.Mutex
		done      []domain.AudioChunk
		completed int
		firstErr  error
		failed    int
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i, text := range chunks {
		wg.Add(1)
		go func(index int, text string) {
			defer wg.Done()

			err := limiter.With(runCtx, c.sem, func() error {
				chunk, err := c.synthesizeChunk(runCtx, text, index, jobID, existing)
				if err != nil {
					return err
				}
				mu.Lock()
				done = append(done, *chunk)
				completed++
				cur := completed
				mu.Unlock()

				if opts.OnProgress != nil {
					opts.OnProgress(cur*100/total, cur, total)
				}
				return nil
			})
			if err == nil {
				return
			}

			mu.Lock()
			failed++
			// Отмена — каскад от чужого провала; корневая ошибка
			// вытесняет записанную раньше неё отмену.
			if firstErr == nil ||
				(errors.Is(firstErr, context.Canceled) && !errors.Is(err, context.Canceled)) {
				firstErr = fmt.Errorf("chunk %d: %w", index, err)
			}
			mu.Unlock()

			if opts.BestEffort {
				c.logger.Warn("chunk synthesis failed, skipping",
					"job_id", jobID, "chunk", index, "error", err)
				return
			}
			// Обычный режим: частичный выпуск непригоден, отменяем остальных.
			cancel()
		}(i, text)
	}
	wg.Wait()

	if !opts.BestEffort && firstErr != nil {
		return nil, firstErr
	}
	if opts.BestEffort && len(done) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoChunksSynthesized, firstErr)
	}

	sort.Slice(done, func(i, j int) bool { return done[i].Index < done[j].Index })

	result := &Result{ChunkCount: len(done)}
	for _, chunk := range done {
		result.URLs = append(result.URLs, chunk.URL)
		result.TotalBytes += chunk.ByteSize
	}

	c.logger.Info("streaming synthesis finished",
		"job_id", jobID,
		"chunks", result.ChunkCount,
		"skipped", failed,
		"total_bytes", result.TotalBytes,
	)
	return result, nil
}

// synthesizeChunk синтезирует один chunk или переиспользует готовый артефакт.
func (c *Chunked) synthesizeChunk(ctx context.Context, text string, index int, jobID string, existing map[string]artifact.Entry) (*domain.AudioChunk, error) {
	key := chunkKey(jobID, index)

	if entry, ok := existing[key]; ok {
		c.logger.Debug("reusing stored chunk", "job_id", jobID, "chunk", index)
		return &domain.AudioChunk{Index: index, URL: entry.URL, ByteSize: entry.Size}, nil
	}

	start := time.Now()
	audio, err := c.synth.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	url, err := c.artifacts.Put(ctx, key, audio)
	if err != nil {
		return nil, fmt.Errorf("store artifact: %w", err)
	}

	return &domain.AudioChunk{
		Index:      index,
		URL:        url,
		ByteSize:   int64(len(audio)),
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// existingChunks возвращает уже сохранённые артефакты job по ключу.
func (c *Chunked) existingChunks(ctx context.Context, jobID string) map[string]artifact.Entry {
	entries, err := c.artifacts.List(ctx, fmt.Sprintf("audio/streaming/%s/", jobID))
	if err != nil {
		c.logger.Debug("listing stored chunks failed", "job_id", jobID, "error", err)
		return nil
	}

	existing := make(map[string]artifact.Entry, len(entries))
	for _, e := range entries {
		existing[e.Key] = e
	}
	return existing
}
