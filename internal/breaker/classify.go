package breaker

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Классификация ошибок внешних зависимостей.
//
// Используется pipeline'ом для выбора backoff и решения о retry;
// для учёта в breaker все ошибки равнозначны.

// IsRateLimit распознаёт ошибки класса 429 (превышение квоты запросов).
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "code 1302")
}

// IsTimeout распознаёт таймауты. Для breaker и retry таймаут
// эквивалентен обычной ошибке вызова.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// IsPermanent распознаёт ошибки, по которым retry бессмыслен:
// проблемы авторизации и некорректные запросы.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "401") ||
		strings.Contains(msg, "403") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "malformed request")
}
