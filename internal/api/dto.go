package api

import (
	"time"

	"github.com/jrjgit/news/internal/domain"
)

// EnqueueSyncRequest — запрос на постановку sync-джобы.
type EnqueueSyncRequest struct {
	ForceRefresh bool `json:"force_refresh"`
	ItemCount    int  `json:"item_count"`
}

// EnqueueAudioRequest — запрос на постановку audio-джобы.
type EnqueueAudioRequest struct {
	Date       string `json:"date"`
	Script     string `json:"script"`
	BestEffort bool   `json:"best_effort"`
}

// JobDTO — представление job в API.
type JobDTO struct {
	ID         string          `json:"id"`
	Kind       domain.Kind     `json:"kind"`
	Status     domain.Status   `json:"status"`
	Progress   domain.Progress `json:"progress"`
	Result     *domain.Result  `json:"result,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// toJobDTO преобразует доменную job в DTO (payload не раскрывается:
// script может быть большим, наружу он не нужен).
func toJobDTO(job *domain.Job) JobDTO {
	return JobDTO{
		ID:         job.ID,
		Kind:       job.Kind,
		Status:     job.Status,
		Progress:   job.Progress,
		Result:     job.Result,
		CreatedAt:  job.CreatedAt,
		FinishedAt: job.FinishedAt,
	}
}

// QueueStatsDTO — статистика очередей.
type QueueStatsDTO struct {
	Sync  int64 `json:"sync_pending"`
	Audio int64 `json:"audio_pending"`
}

// CleanupDTO — итог уборки очередей.
type CleanupDTO struct {
	SyncRemoved  int `json:"sync_removed"`
	AudioRemoved int `json:"audio_removed"`
}

// ProcessOneDTO — итог single-shot обработки.
type ProcessOneDTO struct {
	Processed bool   `json:"processed"`
	JobID     string `json:"job_id,omitempty"`
	Error     string `json:"error,omitempty"`
}
