package breaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream failed")

func newTestBreaker(t *testing.T) (*Breaker, *time.Time) {
	t.Helper()
	now := time.Now()
	b := New(Config{
		FailureThreshold: 3,
		Timeout:          time.Minute,
		HalfOpenRequests: 2,
		Name:             "test",
	})
	b.now = func() time.Time { return now }
	return b, &now
}

func failN(t *testing.T, b *Breaker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := b.Do(context.Background(), func(context.Context) error { return errUpstream })
		if !errors.Is(err, errUpstream) {
			t.Fatalf("expected original error back, got %v", err)
		}
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(t)

	failN(t, b, 2)
	if got := b.State(); got != StateClosed {
		t.Fatalf("expected closed after 2 failures, got %s", got)
	}

	failN(t, b, 1)
	if got := b.State(); got != StateOpen {
		t.Fatalf("expected open after threshold, got %s", got)
	}

	// Fail-fast: fn не вызывается.
	called := false
	err := b.Do(context.Background(), func(context.Context) error {
		called = true
		return nil
	})

	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected OpenError, got %v", err)
	}
	if openErr.RetryAfter <= 0 {
		t.Errorf("RetryAfter should be positive, got %v", openErr.RetryAfter)
	}
	if called {
		t.Error("fn must not be invoked while open")
	}
}

func TestBreaker_HalfOpenAfterTimeout(t *testing.T) {
	b, now := newTestBreaker(t)
	failN(t, b, 3)

	*now = now.Add(61 * time.Second)

	if got := b.State(); got != StateHalfOpen {
		t.Fatalf("expected half-open after timeout, got %s", got)
	}

	// Проба выполняется.
	called := false
	err := b.Do(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("probe fn should be invoked in half-open")
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, now := newTestBreaker(t)
	failN(t, b, 3)
	*now = now.Add(61 * time.Second)

	failN(t, b, 1)

	if got := b.State(); got != StateOpen {
		t.Fatalf("single half-open failure should reopen, got %s", got)
	}

	m := b.Snapshot()
	if !m.NextAttempt.Equal(now.Add(time.Minute)) {
		t.Errorf("nextAttempt should be refreshed, got %v", m.NextAttempt)
	}
}

func TestBreaker_HalfOpenSuccessesClose(t *testing.T) {
	b, now := newTestBreaker(t)
	failN(t, b, 3)
	*now = now.Add(61 * time.Second)

	ok := func(context.Context) error { return nil }

	if err := b.Do(context.Background(), ok); err != nil {
		t.Fatalf("probe 1: %v", err)
	}
	if got := b.State(); got != StateHalfOpen {
		t.Fatalf("one probe success should not close yet, got %s", got)
	}

	if err := b.Do(context.Background(), ok); err != nil {
		t.Fatalf("probe 2: %v", err)
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("expected closed after halfOpenRequests successes, got %s", got)
	}

	m := b.Snapshot()
	if m.Failures != 0 || m.Successes != 0 {
		t.Errorf("counters should be zeroed on close, got %+v", m)
	}
}

func TestBreaker_SuccessResetsConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(t)

	failN(t, b, 2)
	if err := b.Do(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	failN(t, b, 2)

	if got := b.State(); got != StateClosed {
		t.Fatalf("failures are not consecutive, breaker must stay closed, got %s", got)
	}
}

func TestBreaker_ForceOpenAndReset(t *testing.T) {
	b, _ := newTestBreaker(t)

	b.ForceOpen()
	if got := b.State(); got != StateOpen {
		t.Fatalf("expected open after ForceOpen, got %s", got)
	}

	b.Reset()
	if got := b.State(); got != StateClosed {
		t.Fatalf("expected closed after Reset, got %s", got)
	}

	if err := b.Do(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("call after reset: %v", err)
	}
}

func TestBreaker_StateChangeHook(t *testing.T) {
	var states []State
	b := New(Config{
		FailureThreshold: 1,
		Timeout:          time.Minute,
		Name:             "hooked",
		OnStateChange: func(_ string, s State) {
			states = append(states, s)
		},
	})

	b.Do(context.Background(), func(context.Context) error { return errUpstream })

	if len(states) != 1 || states[0] != StateOpen {
		t.Errorf("expected single transition to open, got %v", states)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err       error
		rateLimit bool
		timeout   bool
		permanent bool
	}{
		{errors.New("HTTP 429 Too Many Requests"), true, false, false},
		{errors.New("rate limit exceeded"), true, false, false},
		{errors.New("request timeout"), false, true, false},
		{context.DeadlineExceeded, false, true, false},
		{errors.New("401 Unauthorized"), false, false, true},
		{errors.New("invalid api key"), false, false, true},
		{errors.New("connection refused"), false, false, false},
		{nil, false, false, false},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		if got := IsRateLimit(tt.err); got != tt.rateLimit {
			t.Errorf("IsRateLimit(%q) = %v, want %v", name, got, tt.rateLimit)
		}
		if got := IsTimeout(tt.err); got != tt.timeout {
			t.Errorf("IsTimeout(%q) = %v, want %v", name, got, tt.timeout)
		}
		if got := IsPermanent(tt.err); got != tt.permanent {
			t.Errorf("IsPermanent(%q) = %v, want %v", name, got, tt.permanent)
		}
	}
}
