package jobstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jrjgit/news/internal/domain"
	"github.com/jrjgit/news/internal/kv"
)

func newTestStore(t *testing.T, kind domain.Kind) (*Store, *time.Time) {
	t.Helper()
	now := time.Now()
	s := New(kv.NewMemory(nil), Config{Kind: kind})
	s.now = func() time.Time { return now }
	return s, &now
}

func statusPtr(s domain.Status) *domain.Status { return &s }

func TestStore_EnqueueThenGetStatus(t *testing.T) {
	s, _ := newTestStore(t, domain.KindSync)
	ctx := context.Background()

	job, err := s.Enqueue(ctx, domain.Payload{ForceRefresh: true, ItemCount: 5})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, err := s.GetStatus(ctx, job.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if got.Status != domain.StatusPending {
		t.Errorf("expected PENDING, got %s", got.Status)
	}
	if got.Progress.Percent != 0 {
		t.Errorf("expected percent 0, got %d", got.Progress.Percent)
	}
	if !got.Payload.ForceRefresh || got.Payload.ItemCount != 5 {
		t.Errorf("payload not preserved: %+v", got.Payload)
	}
	if got.FinishedAt != nil {
		t.Error("finishedAt must be empty for non-terminal job")
	}
}

func TestStore_GetStatusNotFound(t *testing.T) {
	s, _ := newTestStore(t, domain.KindSync)

	_, err := s.GetStatus(context.Background(), "sync-0-deadbeef")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}

	_, err = s.UpdateStatus(context.Background(), "sync-0-deadbeef", Update{
		Status: statusPtr(domain.StatusActive),
	})
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("update of missing job: expected ErrJobNotFound, got %v", err)
	}
}

func TestStore_ClaimNextFIFO(t *testing.T) {
	s, now := newTestStore(t, domain.KindSync)
	ctx := context.Background()

	first, err := s.Enqueue(ctx, domain.Payload{})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	*now = now.Add(time.Second)
	if _, err := s.Enqueue(ctx, domain.Payload{}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, err := s.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got != first.ID {
		t.Errorf("expected oldest job %s, got %s", first.ID, got)
	}

	// Peek не извлекает: повторный claim видит ту же job.
	again, _ := s.ClaimNext(ctx)
	if again != first.ID {
		t.Errorf("peek must not pop, got %s", again)
	}
}

func TestStore_ClaimNextSkipsActiveHead(t *testing.T) {
	s, now := newTestStore(t, domain.KindSync)
	ctx := context.Background()

	// Worker взял job и умер: запись осталась ACTIVE в голове очереди.
	stalled, _ := s.Enqueue(ctx, domain.Payload{})
	if _, err := s.UpdateStatus(ctx, stalled.ID, Update{Status: statusPtr(domain.StatusActive)}); err != nil {
		t.Fatalf("activate: %v", err)
	}

	*now = now.Add(time.Second)
	next, _ := s.Enqueue(ctx, domain.Payload{})

	// Jobs позади ACTIVE-головы остаются достижимыми.
	for i := 0; i < 3; i++ {
		got, err := s.ClaimNext(ctx)
		if err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		if got != next.ID {
			t.Fatalf("claim %d: expected %s behind the active head, got %s", i, next.ID, got)
		}
	}
}

func TestStore_ClaimNextEvictsDanglingMembers(t *testing.T) {
	mem := kv.NewMemory(nil)
	s := New(mem, Config{Kind: domain.KindSync})
	ctx := context.Background()

	// Запись могла исчезнуть между peek и cleanup, member — остаться.
	if err := mem.ZAdd(ctx, "news-sync:queue:pending", kv.ZEntry{Member: "sync-0-deadbeef", Score: 1}); err != nil {
		t.Fatalf("zadd: %v", err)
	}

	got, err := s.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got != "" {
		t.Errorf("dangling member must not be claimable, got %s", got)
	}
	if n, _ := mem.ZCard(ctx, "news-sync:queue:pending"); n != 0 {
		t.Errorf("dangling member must be evicted, queue size %d", n)
	}
}

func TestStore_TerminalUpdateDequeuesAndStamps(t *testing.T) {
	s, _ := newTestStore(t, domain.KindSync)
	ctx := context.Background()

	job, _ := s.Enqueue(ctx, domain.Payload{})

	updated, err := s.UpdateStatus(ctx, job.ID, Update{
		Status: statusPtr(domain.StatusSucceeded),
		Result: &domain.Result{Success: true, ProducedCount: 7},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.FinishedAt == nil {
		t.Error("terminal status must set finishedAt")
	}
	if updated.Result == nil || updated.Result.ProducedCount != 7 {
		t.Errorf("result not stored: %+v", updated.Result)
	}

	next, _ := s.ClaimNext(ctx)
	if next != "" {
		t.Errorf("succeeded job must leave the pending queue, claimed %s", next)
	}
}

func TestStore_StatusOnlyMovesForward(t *testing.T) {
	s, _ := newTestStore(t, domain.KindSync)
	ctx := context.Background()

	job, _ := s.Enqueue(ctx, domain.Payload{})
	if _, err := s.UpdateStatus(ctx, job.ID, Update{Status: statusPtr(domain.StatusActive)}); err != nil {
		t.Fatalf("to active: %v", err)
	}

	_, err := s.UpdateStatus(ctx, job.ID, Update{Status: statusPtr(domain.StatusPending)})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("backward transition must fail, got %v", err)
	}

	if _, err := s.UpdateStatus(ctx, job.ID, Update{Status: statusPtr(domain.StatusFailed)}); err != nil {
		t.Fatalf("to failed: %v", err)
	}
	_, err = s.UpdateStatus(ctx, job.ID, Update{Status: statusPtr(domain.StatusActive)})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("leaving terminal state must fail, got %v", err)
	}
}

func TestStore_ProgressPercentMonotonic(t *testing.T) {
	s, _ := newTestStore(t, domain.KindSync)
	ctx := context.Background()

	job, _ := s.Enqueue(ctx, domain.Payload{})
	if _, err := s.UpdateStatus(ctx, job.ID, Update{
		Progress: &domain.Progress{Stage: "summarize", Percent: 45},
	}); err != nil {
		t.Fatalf("progress: %v", err)
	}

	got, err := s.UpdateStatus(ctx, job.ID, Update{
		Progress: &domain.Progress{Stage: "translate", Percent: 30, Message: "late update"},
	})
	if err != nil {
		t.Fatalf("progress: %v", err)
	}

	if got.Progress.Percent != 45 {
		t.Errorf("percent must not decrease, got %d", got.Progress.Percent)
	}
	if got.Progress.Stage != "translate" {
		t.Errorf("stage should still apply, got %s", got.Progress.Stage)
	}
}

func TestStore_CleanupExpired(t *testing.T) {
	s, now := newTestStore(t, domain.KindSync)
	ctx := context.Background()

	old, _ := s.Enqueue(ctx, domain.Payload{})
	if _, err := s.UpdateStatus(ctx, old.ID, Update{Status: statusPtr(domain.StatusFailed)}); err != nil {
		t.Fatalf("fail old: %v", err)
	}

	stale, _ := s.Enqueue(ctx, domain.Payload{}) // застрявшая в PENDING

	active, _ := s.Enqueue(ctx, domain.Payload{})
	if _, err := s.UpdateStatus(ctx, active.ID, Update{Status: statusPtr(domain.StatusActive)}); err != nil {
		t.Fatalf("activate: %v", err)
	}

	*now = now.Add(25 * time.Hour)
	fresh, _ := s.Enqueue(ctx, domain.Payload{})

	removed, err := s.CleanupExpired(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed (old terminal + stale pending), got %d", removed)
	}

	if _, err := s.GetStatus(ctx, old.ID); !errors.Is(err, ErrJobNotFound) {
		t.Error("expired terminal job should be deleted")
	}
	if _, err := s.GetStatus(ctx, stale.ID); !errors.Is(err, ErrJobNotFound) {
		t.Error("expired pending job should be deleted")
	}
	if _, err := s.GetStatus(ctx, active.ID); err != nil {
		t.Error("active job without finishedAt must survive cleanup")
	}
	if _, err := s.GetStatus(ctx, fresh.ID); err != nil {
		t.Error("fresh job must survive cleanup")
	}
}

func TestStore_KeyspaceIsolationBetweenKinds(t *testing.T) {
	mem := kv.NewMemory(nil)
	syncStore := New(mem, Config{Kind: domain.KindSync})
	audioStore := New(mem, Config{Kind: domain.KindAudio})
	ctx := context.Background()

	syncJob, _ := syncStore.Enqueue(ctx, domain.Payload{})
	audioJob, _ := audioStore.Enqueue(ctx, domain.Payload{Date: "2026-08-31", Script: "hello"})

	if got, _ := syncStore.ClaimNext(ctx); got != syncJob.ID {
		t.Errorf("sync queue claimed %s", got)
	}
	if got, _ := audioStore.ClaimNext(ctx); got != audioJob.ID {
		t.Errorf("audio queue claimed %s", got)
	}
	if _, err := syncStore.GetStatus(ctx, audioJob.ID); !errors.Is(err, ErrJobNotFound) {
		t.Error("audio job must not be visible through sync store")
	}
}

func TestStore_LatestForDate(t *testing.T) {
	s, now := newTestStore(t, domain.KindAudio)
	ctx := context.Background()

	failed, _ := s.Enqueue(ctx, domain.Payload{Date: "2026-08-31", Script: "a"})
	s.UpdateStatus(ctx, failed.ID, Update{Status: statusPtr(domain.StatusFailed)})

	*now = now.Add(time.Second)
	done, _ := s.Enqueue(ctx, domain.Payload{Date: "2026-08-31", Script: "b"})
	s.UpdateStatus(ctx, done.ID, Update{
		Status: statusPtr(domain.StatusSucceeded),
		Result: &domain.Result{Success: true, ArtifactURLs: []string{"/audio/x.mp3"}},
	})

	*now = now.Add(time.Second)
	s.Enqueue(ctx, domain.Payload{Date: "2026-09-01", Script: "c"})

	got, err := s.LatestForDate(ctx, "2026-08-31")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got == nil || got.ID != done.ID {
		t.Fatalf("expected succeeded job %s, got %+v", done.ID, got)
	}

	missing, err := s.LatestForDate(ctx, "2020-01-01")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown date, got %+v", missing)
	}
}
