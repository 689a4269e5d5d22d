package breaker

import (
	"fmt"
	"time"
)

// OpenError — синтетическая ошибка: breaker открыт, вызов не выполнялся.
type OpenError struct {
	// RetryAfter — сколько осталось до следующей пробы.
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker is open, retry after %s", e.RetryAfter.Round(time.Second))
}
