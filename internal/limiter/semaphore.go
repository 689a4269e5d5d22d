package limiter

import (
	"context"
	"errors"
	"sync"
)

// ErrInvalidPermits — семафор нельзя создать с n <= 0.
var ErrInvalidPermits = errors.New("permits must be greater than 0")

// Semaphore — счётный семафор, ограничивающий число одновременных операций.
//
// Ожидающие выстраиваются в FIFO-очередь: Release будит самого старого.
// Верхней границы на длину очереди нет.
type Semaphore struct {
	mu      sync.Mutex
	permits int
	waiters []chan struct{}
}

// NewSemaphore создаёт семафор с n разрешениями.
func NewSemaphore(n int) (*Semaphore, error) {
	if n <= 0 {
		return nil, ErrInvalidPermits
	}
	return &Semaphore{permits: n}, nil
}

// Acquire забирает разрешение, при необходимости ожидая.
// Ожидание отменяется через ctx.
func (s *Semaphore) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.permits > 0 {
		s.permits--
		s.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	s.waiters = append(s.waiters, ready)
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		// Могли получить разрешение одновременно с отменой.
		select {
		case <-ready:
			s.mu.Unlock()
			return nil
		default:
		}
		for i, w := range s.waiters {
			if w == ready {
				s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		return ctx.Err()
	}
}

// TryAcquire забирает разрешение без ожидания.
func (s *Semaphore) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.permits > 0 {
		s.permits--
		return true
	}
	return false
}

// Release возвращает разрешение. Если есть ожидающие,
// будит самого старого вместо инкремента счётчика.
func (s *Semaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.waiters) > 0 {
		ready := s.waiters[0]
		s.waiters = s.waiters[1:]
		close(ready)
		return
	}
	s.permits++
}

// AvailablePermits возвращает число свободных разрешений.
func (s *Semaphore) AvailablePermits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permits
}

// QueueLen возвращает длину очереди ожидающих.
func (s *Semaphore) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

// With выполняет fn под семафором, гарантированно освобождая разрешение.
func With(ctx context.Context, s *Semaphore, fn func() error) error {
	if err := s.Acquire(ctx); err != nil {
		return err
	}
	defer s.Release()
	return fn()
}
