package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Jobs
	mux.Handle("POST /api/v1/jobs/sync", chain(http.HandlerFunc(h.EnqueueSync)))
	mux.Handle("POST /api/v1/jobs/audio", chain(http.HandlerFunc(h.EnqueueAudio)))
	mux.Handle("GET /api/v1/jobs/{id}", chain(http.HandlerFunc(h.GetJob)))
	mux.Handle("GET /api/v1/jobs/{id}/stream", chain(http.HandlerFunc(h.StreamJob)))
	mux.Handle("POST /api/v1/jobs/{id}/cancel", chain(http.HandlerFunc(h.CancelJob)))

	// Queues
	mux.Handle("GET /api/v1/queues/stats", chain(http.HandlerFunc(h.QueueStats)))
	mux.Handle("POST /api/v1/queues/cleanup", chain(http.HandlerFunc(h.CleanupQueues)))
	mux.Handle("POST /api/v1/worker/process-one", chain(http.HandlerFunc(h.ProcessOne)))

	// Sync results
	mux.Handle("GET /api/v1/sync/latest", chain(http.HandlerFunc(h.LatestSync)))
	mux.Handle("GET /api/v1/news/{date}", chain(http.HandlerFunc(h.NewsByDate)))
}
