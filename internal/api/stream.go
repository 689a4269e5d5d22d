package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jrjgit/news/internal/domain"
	"github.com/jrjgit/news/internal/jobstore"
)

// Интервал опроса статуса для SSE-стрима.
const streamPollInterval = time.Second

// streamEvent — один кадр SSE-стрима статуса.
type streamEvent struct {
	Status   string `json:"status"`
	Stage    string `json:"stage"`
	Percent  int    `json:"percent"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
	Terminal bool   `json:"terminal"`
}

// StreamJob — SSE-стрим статуса job: шлёт дельты до терминального
// состояния. Подписка ограничена по времени; по истечении лимита
// клиент получает событие timeout и соединение закрывается — дальше
// можно опрашивать GetJob.
func (h *Handler) StreamJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	store := h.storeForID(jobID)

	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalError(w, h.logger, errors.New("response writer does not support flushing"))
		return
	}

	// Первое чтение до установки SSE-заголовков: на несуществующую
	// job отвечаем обычным 404.
	job, err := store.GetStatus(r.Context(), jobID)
	if HandleStoreError(w, h.logger, err, "job not found") {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx, cancel := context.WithTimeout(r.Context(), h.streamCap)
	defer cancel()

	writeEvent := func(name string, ev streamEvent) {
		data, _ := json.Marshal(ev)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
		flusher.Flush()
	}

	var last string
	send := func(job *domain.Job) bool {
		ev := streamEvent{
			Status:   string(job.Status),
			Stage:    job.Progress.Stage,
			Percent:  job.Progress.Percent,
			Message:  job.Progress.Message,
			Terminal: job.Status.IsTerminal(),
		}
		if job.Result != nil {
			ev.Error = job.Result.Error
		}

		key := fmt.Sprintf("%s/%s/%d/%s", ev.Status, ev.Stage, ev.Percent, ev.Message)
		if key != last {
			writeEvent("status", ev)
			last = key
		}
		return ev.Terminal
	}

	if send(job) {
		return
	}

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				writeEvent("timeout", streamEvent{
					Status:  string(job.Status),
					Message: "stream duration limit reached, poll job status instead",
				})
			}
			return
		case <-ticker.C:
			job, err = store.GetStatus(ctx, jobID)
			if errors.Is(err, jobstore.ErrJobNotFound) {
				writeEvent("status", streamEvent{Status: "GONE", Terminal: true, Message: "job record expired"})
				return
			}
			if err != nil {
				h.logger.Warn("stream poll failed", "job_id", jobID, "error", err)
				continue
			}
			if send(job) {
				return
			}
		}
	}
}
