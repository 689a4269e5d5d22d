package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jrjgit/news/internal/domain"
	"github.com/jrjgit/news/internal/enqueue"
	"github.com/jrjgit/news/internal/jobstore"
	"github.com/jrjgit/news/internal/kv"
	"github.com/jrjgit/news/internal/pipeline"
	"github.com/jrjgit/news/internal/synth"
	"github.com/jrjgit/news/internal/worker"
)

type env struct {
	mux        *http.ServeMux
	handler    *Handler
	syncStore  *jobstore.Store
	audioStore *jobstore.Store
}

func newEnv(t *testing.T, opts ...func(*Config)) *env {
	t.Helper()

	mem := kv.NewMemory(nil)
	syncStore := jobstore.New(mem, jobstore.Config{Kind: domain.KindSync})
	audioStore := jobstore.New(mem, jobstore.Config{Kind: domain.KindAudio})

	cfg := Config{
		Enqueuer:   enqueue.New(syncStore, audioStore, nil, nil),
		SyncStore:  syncStore,
		AudioStore: audioStore,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := NewHandler(cfg)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return &env{mux: mux, handler: h, syncStore: syncStore, audioStore: audioStore}
}

func (e *env) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeJob(t *testing.T, rec *httptest.ResponseRecorder) JobDTO {
	t.Helper()

	var resp struct {
		Data JobDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.Data
}

func TestEnqueueSyncAndGet(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/jobs/sync", `{"force_refresh":true,"item_count":5}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	job := decodeJob(t, rec)
	if !strings.HasPrefix(job.ID, "sync-") {
		t.Errorf("job id = %q, want sync- prefix", job.ID)
	}
	if job.Status != domain.StatusPending {
		t.Errorf("status = %s, want PENDING", job.Status)
	}

	rec = e.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}
	got := decodeJob(t, rec)
	if got.ID != job.ID || got.Kind != domain.KindSync {
		t.Errorf("got job %s/%s, want %s/sync", got.ID, got.Kind, job.ID)
	}
}

func TestEnqueueSyncEmptyBody(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/jobs/sync", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 for empty body", rec.Code)
	}
}

func TestEnqueueSyncValidation(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/jobs/sync", `{"item_count":200}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	rec = e.do(t, http.MethodPost, "/api/v1/jobs/sync", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for malformed json", rec.Code)
	}
}

func TestEnqueueAudio(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/jobs/audio", `{"date":"2026-08-31","script":"各位听众朋友"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	job := decodeJob(t, rec)
	if !strings.HasPrefix(job.ID, "audio-") {
		t.Errorf("job id = %q, want audio- prefix", job.ID)
	}

	// Аудио-джоба читается и через общий GET (по префиксу id).
	rec = e.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}
}

func TestEnqueueAudioValidation(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/jobs/audio", `{"date":"2026-08-31"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for missing script", rec.Code)
	}
	rec = e.do(t, http.MethodPost, "/api/v1/jobs/audio", `{"date":"31.08.2026","script":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for bad date", rec.Code)
	}
}

func TestGetJobNotFound(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/v1/jobs/sync-0-missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "NOT_FOUND") {
		t.Errorf("body = %s, want NOT_FOUND code", rec.Body.String())
	}
}

func TestCancelJob(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/jobs/sync", "")
	job := decodeJob(t, rec)

	rec = e.do(t, http.MethodPost, "/api/v1/jobs/"+job.ID+"/cancel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, want 200", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/v1/jobs/"+job.ID+"/cancel", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second cancel status = %d, want 404", rec.Code)
	}
}

func TestQueueStats(t *testing.T) {
	e := newEnv(t)

	e.do(t, http.MethodPost, "/api/v1/jobs/sync", "")
	e.do(t, http.MethodPost, "/api/v1/jobs/audio", `{"script":"a"}`)
	e.do(t, http.MethodPost, "/api/v1/jobs/audio", `{"script":"b"}`)

	rec := e.do(t, http.MethodGet, "/api/v1/queues/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Data QueueStatsDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Sync != 1 || resp.Data.Audio != 2 {
		t.Errorf("stats = %+v, want sync=1 audio=2", resp.Data)
	}
}

func TestCleanupQueues(t *testing.T) {
	e := newEnv(t)

	// Свежие jobs retention не переживают уборку только по возрасту.
	e.do(t, http.MethodPost, "/api/v1/jobs/sync", "")

	rec := e.do(t, http.MethodPost, "/api/v1/queues/cleanup", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Data CleanupDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.SyncRemoved != 0 || resp.Data.AudioRemoved != 0 {
		t.Errorf("cleanup = %+v, want nothing removed for fresh jobs", resp.Data)
	}
}

type fakeProcessor struct {
	outcome worker.Outcome
}

func (f *fakeProcessor) ProcessOne(context.Context) worker.Outcome {
	return f.outcome
}

func TestProcessOne(t *testing.T) {
	e := newEnv(t, func(cfg *Config) {
		cfg.Processor = &fakeProcessor{outcome: worker.Outcome{Processed: true, JobID: "sync-1-abc"}}
	})

	rec := e.do(t, http.MethodPost, "/api/v1/worker/process-one", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"processed":true`) {
		t.Errorf("body = %s, want processed=true", rec.Body.String())
	}
}

// syncRunnerStub завершает любую sync-джобу успехом.
type syncRunnerStub struct{}

func (syncRunnerStub) Run(_ context.Context, _ *domain.Job, _ pipeline.ReportFunc) *domain.Result {
	return &domain.Result{Success: true, ProducedCount: 1}
}

type synthStub struct{}

func (synthStub) Split(text string) []string { return []string{text} }

func (synthStub) SynthesizeAll(_ context.Context, chunks []string, _ string, _ synth.Options) (*synth.Result, error) {
	return &synth.Result{ChunkCount: len(chunks)}, nil
}

// Processor на worker-бинаре — это живой worker.Loop, а не фейк.
func TestProcessOneWithWorkerLoop(t *testing.T) {
	e := newEnv(t, func(cfg *Config) {
		loop, err := worker.New(worker.Config{
			SyncStore:  cfg.SyncStore,
			AudioStore: cfg.AudioStore,
			Runner:     syncRunnerStub{},
			Synth:      synthStub{},
		})
		if err != nil {
			t.Fatalf("new worker: %v", err)
		}
		cfg.Processor = loop
	})

	created := e.do(t, http.MethodPost, "/api/v1/jobs/sync", "")
	job := decodeJob(t, created)

	rec := e.do(t, http.MethodPost, "/api/v1/worker/process-one", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data ProcessOneDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Data.Processed || resp.Data.JobID != job.ID {
		t.Errorf("outcome = %+v, want processed job %s", resp.Data, job.ID)
	}

	rec = e.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID, "")
	if got := decodeJob(t, rec); got.Status != domain.StatusSucceeded {
		t.Errorf("status = %s, want SUCCEEDED", got.Status)
	}
}

func TestProcessOneDisabled(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/worker/process-one", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 when processor is not wired", rec.Code)
	}
}

func TestLatestSync(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/v1/sync/latest?date=2026-08-31", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 without jobs", rec.Code)
	}

	created := e.do(t, http.MethodPost, "/api/v1/jobs/sync", "")
	job := decodeJob(t, created)
	// Дата джобы — из payload; пустая дата матчится по дате создания.
	rec = e.do(t, http.MethodGet, "/api/v1/sync/latest", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	got := decodeJob(t, rec)
	if got.ID != job.ID {
		t.Errorf("latest = %s, want %s", got.ID, job.ID)
	}
}

func TestNewsByDateValidation(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/v1/news/today", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for bad date", rec.Code)
	}
	rec = e.do(t, http.MethodGet, "/api/v1/news/2026-08-31", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 without news storage", rec.Code)
	}
}

func TestStreamTerminalJob(t *testing.T) {
	e := newEnv(t)

	created := e.do(t, http.MethodPost, "/api/v1/jobs/sync", "")
	job := decodeJob(t, created)

	ctx := context.Background()
	active := domain.StatusActive
	if _, err := e.syncStore.UpdateStatus(ctx, job.ID, jobstore.Update{Status: &active}); err != nil {
		t.Fatalf("to active: %v", err)
	}
	done := domain.StatusSucceeded
	if _, err := e.syncStore.UpdateStatus(ctx, job.ID, jobstore.Update{
		Status: &done,
		Result: &domain.Result{Success: true},
	}); err != nil {
		t.Fatalf("to succeeded: %v", err)
	}

	// Терминальная job: стрим отдаёт один кадр и сразу закрывается.
	rec := e.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID+"/stream", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content-type = %q, want text/event-stream", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: status") {
		t.Errorf("body = %q, want status event", body)
	}
	if !strings.Contains(body, `"terminal":true`) {
		t.Errorf("body = %q, want terminal frame", body)
	}
}

func TestStreamMissingJob(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/v1/jobs/audio-0-missing/stream", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
