package worker

import (
	"context"
	"testing"

	"github.com/jrjgit/news/internal/domain"
	"github.com/jrjgit/news/internal/jobstore"
	"github.com/jrjgit/news/internal/kv"
	"github.com/jrjgit/news/internal/pipeline"
	"github.com/jrjgit/news/internal/synth"
)

type fakeRunner struct {
	calls   int
	result  *domain.Result
	lastJob *domain.Job
}

func (f *fakeRunner) Run(ctx context.Context, job *domain.Job, report pipeline.ReportFunc) *domain.Result {
	f.calls++
	f.lastJob = job
	if report != nil {
		report(ctx, domain.Progress{Stage: "fetch", Percent: 10})
	}
	if f.result != nil {
		return f.result
	}
	return &domain.Result{Success: true, ProducedCount: 5}
}

type fakeSynth struct {
	calls int
	err   error
}

func (f *fakeSynth) Split(text string) []string {
	return []string{text}
}

func (f *fakeSynth) SynthesizeAll(_ context.Context, chunks []string, jobID string, _ synth.Options) (*synth.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &synth.Result{
		URLs:       []string{"/audio/streaming/" + jobID + "/chunk-0.mp3"},
		TotalBytes: 42,
		ChunkCount: len(chunks),
	}, nil
}

type testEnv struct {
	syncStore  *jobstore.Store
	audioStore *jobstore.Store
	runner     *fakeRunner
	synth      *fakeSynth
	loop       *Loop
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := kv.NewMemory(nil)
	e := &testEnv{
		syncStore:  jobstore.New(store, jobstore.Config{Kind: domain.KindSync}),
		audioStore: jobstore.New(store, jobstore.Config{Kind: domain.KindAudio}),
		runner:     &fakeRunner{},
		synth:      &fakeSynth{},
	}

	loop, err := New(Config{
		SyncStore:  e.syncStore,
		AudioStore: e.audioStore,
		Runner:     e.runner,
		Synth:      e.synth,
	})
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	e.loop = loop
	return e
}

func TestProcessOne_EmptyQueues(t *testing.T) {
	e := newTestEnv(t)

	outcome := e.loop.ProcessOne(context.Background())
	if outcome.Processed || outcome.Err != nil {
		t.Fatalf("expected idle outcome, got %+v", outcome)
	}
}

func TestProcessOne_SyncJob(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	job, err := e.syncStore.Enqueue(ctx, domain.Payload{Date: "2026-08-31"})
	if err != nil {
		t.Fatal(err)
	}

	outcome := e.loop.ProcessOne(ctx)
	if !outcome.Processed || outcome.Err != nil {
		t.Fatalf("outcome: %+v", outcome)
	}
	if outcome.JobID != job.ID {
		t.Errorf("processed %s, want %s", outcome.JobID, job.ID)
	}
	if e.runner.calls != 1 {
		t.Errorf("runner calls = %d, want 1", e.runner.calls)
	}

	got, err := e.syncStore.GetStatus(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusSucceeded {
		t.Errorf("status = %s, want SUCCEEDED", got.Status)
	}
	if got.FinishedAt == nil {
		t.Error("finishedAt not set on terminal status")
	}
	if got.Result == nil || got.Result.ProducedCount != 5 {
		t.Errorf("result = %+v", got.Result)
	}

	// Терминальная job ушла из очереди.
	if next, _ := e.syncStore.ClaimNext(ctx); next != "" {
		t.Errorf("queue should be empty, got %s", next)
	}
}

func TestProcessOne_SyncFailureWritesFailed(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.runner.result = &domain.Result{Success: false, Error: "feeds unreachable"}

	job, _ := e.syncStore.Enqueue(ctx, domain.Payload{})

	outcome := e.loop.ProcessOne(ctx)
	if !outcome.Processed {
		t.Fatal("job must be processed")
	}
	if outcome.Err == nil {
		t.Fatal("failed job must surface an error")
	}

	got, _ := e.syncStore.GetStatus(ctx, job.ID)
	if got.Status != domain.StatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
	if got.Result.Error != "feeds unreachable" {
		t.Errorf("result error = %q", got.Result.Error)
	}
}

func TestProcessOne_AudioJob(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	job, _ := e.audioStore.Enqueue(ctx, domain.Payload{Date: "2026-08-31", Script: "今天的新闻。"})

	outcome := e.loop.ProcessOne(ctx)
	if !outcome.Processed || outcome.Err != nil {
		t.Fatalf("outcome: %+v", outcome)
	}
	if e.synth.calls != 1 {
		t.Errorf("synth calls = %d, want 1", e.synth.calls)
	}

	got, _ := e.audioStore.GetStatus(ctx, job.ID)
	if got.Status != domain.StatusSucceeded {
		t.Errorf("status = %s", got.Status)
	}
	if len(got.Result.ArtifactURLs) != 1 || got.Result.TotalBytes != 42 {
		t.Errorf("result = %+v", got.Result)
	}
}

func TestProcessOne_AudioEmptyScriptFails(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	job, _ := e.audioStore.Enqueue(ctx, domain.Payload{Date: "2026-08-31"})

	outcome := e.loop.ProcessOne(ctx)
	if outcome.Err == nil {
		t.Fatal("empty script must fail the job")
	}
	got, _ := e.audioStore.GetStatus(ctx, job.ID)
	if got.Status != domain.StatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
	if e.synth.calls != 0 {
		t.Error("synthesizer must not be called for an empty script")
	}
}

func TestProcessOne_SyncBeforeAudio(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	e.audioStore.Enqueue(ctx, domain.Payload{Script: "text"})
	syncJob, _ := e.syncStore.Enqueue(ctx, domain.Payload{})

	outcome := e.loop.ProcessOne(ctx)
	if outcome.JobID != syncJob.ID {
		t.Errorf("sync queue must be drained first, got %s", outcome.JobID)
	}
}

func TestProcess_LostClaimRaceIsNoop(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	job, _ := e.syncStore.Enqueue(ctx, domain.Payload{})

	// Другой worker уже перевёл job в ACTIVE.
	active := domain.StatusActive
	if _, err := e.syncStore.UpdateStatus(ctx, job.ID, jobstore.Update{Status: &active}); err != nil {
		t.Fatal(err)
	}

	processed, err := e.loop.process(ctx, e.syncStore, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if processed {
		t.Error("loser of the claim race must no-op")
	}
	if e.runner.calls != 0 {
		t.Error("runner must not run for a job claimed elsewhere")
	}
}

func TestProcess_MissingJobIsNoop(t *testing.T) {
	e := newTestEnv(t)

	processed, err := e.loop.process(context.Background(), e.syncStore, "sync-123-deadbeef")
	if err != nil || processed {
		t.Fatalf("missing job: processed=%v err=%v", processed, err)
	}
}

func TestProcessOne_ProgressReachesStore(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	job, _ := e.syncStore.Enqueue(ctx, domain.Payload{})
	e.loop.ProcessOne(ctx)

	got, _ := e.syncStore.GetStatus(ctx, job.ID)
	if got.Progress.Stage != "fetch" || got.Progress.Percent != 10 {
		t.Errorf("progress = %+v, want fetch/10", got.Progress)
	}
}

func TestDrainQueues_ProcessesEverything(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := e.syncStore.Enqueue(ctx, domain.Payload{}); err != nil {
			t.Fatal(err)
		}
	}
	e.audioStore.Enqueue(ctx, domain.Payload{Script: "text"})

	e.loop.drainQueues(ctx)

	if e.runner.calls != 3 {
		t.Errorf("runner calls = %d, want 3", e.runner.calls)
	}
	if e.synth.calls != 1 {
		t.Errorf("synth calls = %d, want 1", e.synth.calls)
	}
}

func TestProcessOne_UnknownKindFails(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	// Store с неизвестным kind пишет jobs в собственный keyspace.
	store := kv.NewMemory(nil)
	weird := jobstore.New(store, jobstore.Config{Kind: domain.Kind("video")})
	job, _ := weird.Enqueue(ctx, domain.Payload{})

	processed, err := e.loop.process(ctx, weird, job.ID)
	if !processed {
		t.Fatal("job must be claimed")
	}
	if err == nil {
		t.Fatal("unknown kind must fail")
	}
	got, _ := weird.GetStatus(ctx, job.ID)
	if got.Status != domain.StatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
}
