package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrjgit/news/internal/domain"
	"github.com/jrjgit/news/internal/jobstore"
	"github.com/jrjgit/news/internal/synth"
	"github.com/jrjgit/news/internal/telemetry"
)

// process захватывает job и доводит её до терминального статуса.
//
// Возвращает processed=false, если job уже увёл другой worker (claim
// в JobStore — это peek, а не атомарный pop) или запись исчезла.
func (l *Loop) process(ctx context.Context, store *jobstore.Store, jobID string) (bool, error) {
	job, err := store.GetStatus(ctx, jobID)
	if errors.Is(err, jobstore.ErrJobNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if job.Status != domain.StatusPending {
		return false, nil
	}

	active := domain.StatusActive
	job, err = store.UpdateStatus(ctx, jobID, jobstore.Update{Status: &active})
	if errors.Is(err, jobstore.ErrInvalidTransition) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	logger := telemetry.WithJobID(l.logger, jobID)
	logger.Info("job claimed", "kind", job.Kind)

	start := l.now()
	var result *domain.Result
	switch job.Kind {
	case domain.KindSync:
		result = l.handleSync(ctx, store, job)
	case domain.KindAudio:
		result = l.handleAudio(ctx, store, job)
	default:
		result = &domain.Result{Success: false, Error: fmt.Sprintf("unknown job kind %q", job.Kind)}
	}

	status := domain.StatusSucceeded
	if !result.Success {
		status = domain.StatusFailed
	}
	if _, uerr := store.UpdateStatus(ctx, jobID, jobstore.Update{Status: &status, Result: result}); uerr != nil {
		return true, fmt.Errorf("write terminal status: %w", uerr)
	}

	if l.metrics != nil {
		l.metrics.JobsProcessed.WithLabelValues(string(job.Kind), string(status)).Inc()
		l.metrics.JobDuration.WithLabelValues(string(job.Kind)).Observe(l.now().Sub(start).Seconds())
	}
	logger.Info("job finished", "kind", job.Kind, "status", status, "duration", l.now().Sub(start))

	if !result.Success {
		return true, errors.New(result.Error)
	}
	return true, nil
}

// handleSync прогоняет sync-джобу через pipeline.
func (l *Loop) handleSync(ctx context.Context, store *jobstore.Store, job *domain.Job) *domain.Result {
	report := func(ctx context.Context, p domain.Progress) error {
		_, err := store.UpdateStatus(ctx, job.ID, jobstore.Update{Progress: &p})
		return err
	}
	return l.runner.Run(ctx, job, report)
}

// handleAudio синтезирует аудио-выпуск из скрипта в payload.
//
// Джоба возобновляема: повторный прогон после смерти предыдущего
// worker'а переиспользует уже сохранённые chunk-артефакты.
func (l *Loop) handleAudio(ctx context.Context, store *jobstore.Store, job *domain.Job) *domain.Result {
	if job.Payload.Script == "" {
		return &domain.Result{Success: false, Error: "audio job has empty script"}
	}

	chunks := l.synth.Split(job.Payload.Script)

	onProgress := func(percent, completed, total int) {
		p := domain.Progress{
			Stage:   "synthesize",
			Percent: percent,
			Message: fmt.Sprintf("synthesized %d/%d chunks", completed, total),
			Details: &domain.ProgressDetails{Current: completed, Total: total},
		}
		if _, err := store.UpdateStatus(ctx, job.ID, jobstore.Update{Progress: &p}); err != nil {
			l.logger.Warn("audio progress update failed", "job_id", job.ID, "error", err)
		}
	}

	res, err := l.synth.SynthesizeAll(ctx, chunks, job.ID, synth.Options{
		BestEffort: job.Payload.BestEffort,
		OnProgress: onProgress,
	})
	if err != nil {
		if l.metrics != nil {
			l.metrics.ChunksSynthesized.WithLabelValues("failed").Add(float64(len(chunks)))
		}
		return &domain.Result{Success: false, Error: err.Error()}
	}

	if l.metrics != nil {
		l.metrics.ChunksSynthesized.WithLabelValues("ok").Add(float64(res.ChunkCount))
	}
	return &domain.Result{
		Success:       true,
		ProducedCount: res.ChunkCount,
		ArtifactURLs:  res.URLs,
		TotalBytes:    res.TotalBytes,
	}
}
