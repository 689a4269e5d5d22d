package pipeline

import (
	"context"
	"time"

	"github.com/jrjgit/news/internal/breaker"
)

// Таблица задержек пер-item ретраев. Rate-limit ошибки ждут дольше:
// повторный запрос раньше окна лимита гарантированно бесполезен.
const (
	maxItemAttempts      = 3
	rateLimitBackoff     = 60 * time.Second
	backoffBase          = 2 * time.Second
	backoffMax           = 16 * time.Second
	defaultBreakerPause  = 10 * time.Second
	defaultTargetLang    = "zh"
	defaultItemCount     = 10
	fallbackSummaryRunes = 100
	fallbackImportance   = 3
)

// backoffDelay возвращает задержку перед повтором attempt (с нуля).
func backoffDelay(attempt int, err error) time.Duration {
	if breaker.IsRateLimit(err) {
		return rateLimitBackoff
	}
	d := backoffBase << attempt
	if d > backoffMax {
		d = backoffMax
	}
	return d
}

// sleepCtx ждёт d или отмены контекста.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
