package limiter

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrInvalidRate — bucket нельзя создать с частотой <= 0.
var ErrInvalidRate = errors.New("rate must be greater than 0")

// TokenBucket — ограничитель частоты запросов по алгоритму token bucket.
//
// Ёмкость равна ratePerMinute, пополнение непрерывное:
// ratePerMinute/60000 токенов в миллисекунду от wall-clock времени.
// Токены дробные, в минус не уходят.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // токенов в миллисекунду
	lastRefill time.Time

	// now подменяется в тестах.
	now func() time.Time
}

// NewTokenBucket создаёт полный bucket с частотой ratePerMinute запросов в минуту.
func NewTokenBucket(ratePerMinute int) (*TokenBucket, error) {
	if ratePerMinute <= 0 {
		return nil, ErrInvalidRate
	}
	rate := float64(ratePerMinute)
	return &TokenBucket{
		tokens:     rate,
		maxTokens:  rate,
		refillRate: rate / 60000.0,
		lastRefill: time.Now(),
		now:        time.Now,
	}, nil
}

// refillLocked пополняет токены по прошедшему времени. Вызывается под мьютексом.
func (b *TokenBucket) refillLocked() {
	now := b.now()
	elapsed := float64(now.Sub(b.lastRefill)) / float64(time.Millisecond)
	if elapsed > 0 {
		b.tokens = min(b.maxTokens, b.tokens+elapsed*b.refillRate)
	}
	b.lastRefill = now
}

// Acquire забирает один токен, при нехватке ожидая ровно столько,
// сколько нужно для накопления одного токена. Ожидание отменяется через ctx.
func (b *TokenBucket) Acquire(ctx context.Context) error {
	for {
		b.mu.Lock()
		b.refillLocked()

		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}

		needed := 1 - b.tokens
		wait := time.Duration(needed/b.refillRate) * time.Millisecond
		b.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// TryAcquire забирает токен без ожидания.
func (b *TokenBucket) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Reset восстанавливает полную ёмкость.
func (b *TokenBucket) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = b.maxTokens
	b.lastRefill = b.now()
}

// Tokens возвращает текущее количество токенов (для тестов и диагностики).
func (b *TokenBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	return b.tokens
}
