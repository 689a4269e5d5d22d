package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/jrjgit/news/internal/domain"
)

// EnqueueSync ставит sync-джобу.
func (h *Handler) EnqueueSync(w http.ResponseWriter, r *http.Request) {
	// Тело опционально: POST без параметров ставит дефолтную джобу.
	var req EnqueueSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid json body")
		return
	}
	if req.ItemCount < 0 || req.ItemCount > 100 {
		BadRequest(w, "item_count must be between 0 and 100")
		return
	}

	job, err := h.enqueuer.Enqueue(r.Context(), domain.KindSync, domain.Payload{
		ForceRefresh: req.ForceRefresh,
		ItemCount:    req.ItemCount,
	})
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	Created(w, toJobDTO(job))
}

// EnqueueAudio ставит audio-джобу с готовым скриптом.
func (h *Handler) EnqueueAudio(w http.ResponseWriter, r *http.Request) {
	var req EnqueueAudioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid json body")
		return
	}
	if req.Script == "" {
		BadRequest(w, "script is required")
		return
	}
	if req.Date == "" {
		req.Date = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		BadRequest(w, "date must be YYYY-MM-DD")
		return
	}

	job, err := h.enqueuer.Enqueue(r.Context(), domain.KindAudio, domain.Payload{
		Date:       req.Date,
		Script:     req.Script,
		BestEffort: req.BestEffort,
	})
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	Created(w, toJobDTO(job))
}

// GetJob возвращает статус job.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	job, err := h.storeForID(jobID).GetStatus(r.Context(), jobID)
	if HandleStoreError(w, h.logger, err, "job not found") {
		return
	}
	Success(w, toJobDTO(job))
}

// CancelJob удаляет pending job из очереди.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	ok, err := h.storeForID(jobID).Cancel(r.Context(), jobID)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	if !ok {
		NotFound(w, "job not found")
		return
	}
	Success(w, map[string]string{"job_id": jobID, "status": "cancelled"})
}

// QueueStats возвращает размеры pending-очередей.
func (h *Handler) QueueStats(w http.ResponseWriter, r *http.Request) {
	syncStats, err := h.syncStore.QueueStats(r.Context())
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	audioStats, err := h.audioStore.QueueStats(r.Context())
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	Success(w, QueueStatsDTO{Sync: syncStats.Pending, Audio: audioStats.Pending})
}

// ProcessOne — single-shot обработка одной job. Для хостов, где один
// вызов ограничен по времени и долгоживущий worker невозможен.
func (h *Handler) ProcessOne(w http.ResponseWriter, r *http.Request) {
	if h.processor == nil {
		InvalidState(w, "single-shot processing is not enabled")
		return
	}

	outcome := h.processor.ProcessOne(r.Context())
	dto := ProcessOneDTO{Processed: outcome.Processed, JobID: outcome.JobID}
	if outcome.Err != nil {
		dto.Error = outcome.Err.Error()
	}
	Success(w, dto)
}

// CleanupQueues удаляет записи jobs старше retention в обеих очередях.
func (h *Handler) CleanupQueues(w http.ResponseWriter, r *http.Request) {
	syncRemoved, err := h.syncStore.CleanupExpired(r.Context(), 0)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	audioRemoved, err := h.audioStore.CleanupExpired(r.Context(), 0)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	Success(w, CleanupDTO{SyncRemoved: syncRemoved, AudioRemoved: audioRemoved})
}

// LatestSync возвращает последнюю sync-джобу за дату.
func (h *Handler) LatestSync(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	job, err := h.syncStore.LatestForDate(r.Context(), date)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	if job == nil {
		NotFound(w, "no sync job for date")
		return
	}
	Success(w, toJobDTO(job))
}

// NewsByDate возвращает сохранённые новости за дату, важные первыми.
func (h *Handler) NewsByDate(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		BadRequest(w, "date must be YYYY-MM-DD")
		return
	}
	if h.news == nil {
		InvalidState(w, "news storage is not enabled")
		return
	}

	items, err := h.news.ItemsByDate(r.Context(), date)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	Success(w, items)
}
