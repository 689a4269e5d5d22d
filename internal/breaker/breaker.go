package breaker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State — состояние circuit breaker.
type State string

const (
	// StateClosed — нормальный режим, ошибки подсчитываются.
	StateClosed State = "closed"

	// StateOpen — fail-fast, вызовы не выполняются до nextAttempt.
	StateOpen State = "open"

	// StateHalfOpen — пробный режим: ограниченное число вызовов,
	// любая ошибка возвращает в Open.
	StateHalfOpen State = "half-open"
)

// Default configuration values.
const (
	defaultFailureThreshold = 3
	defaultTimeout          = 2 * time.Minute
	defaultHalfOpenRequests = 2
)

// Config — конфигурация Breaker.
type Config struct {
	// FailureThreshold — сколько последовательных ошибок открывает breaker (default: 3).
	FailureThreshold int

	// Timeout — пауза перед пробными вызовами (default: 2m).
	Timeout time.Duration

	// HalfOpenRequests — сколько подряд успешных проб закрывает breaker (default: 2).
	HalfOpenRequests int

	// Name — имя защищаемой зависимости (для логов и метрик).
	Name string

	// Logger — логгер; nil — slog.Default().
	Logger *slog.Logger

	// OnStateChange — необязательный хук смены состояния (метрики).
	OnStateChange func(name string, state State)
}

// Breaker — изоляция отказов внешней зависимости.
//
// Состояние живёт в памяти процесса и не разделяется между worker'ами.
// Один экземпляр создаётся на защищаемую зависимость и переживает
// все вызовы к ней в рамках процесса.
type Breaker struct {
	cfg    Config
	logger *slog.Logger

	mu                sync.Mutex
	state             State
	failures          int
	successes         int
	halfOpenSuccesses int
	lastFailure       time.Time
	lastSuccess       time.Time
	nextAttempt       time.Time

	// now подменяется в тестах.
	now func() time.Time
}

// Metrics — снапшот внутреннего состояния breaker.
type Metrics struct {
	State       State
	Failures    int
	Successes   int
	LastFailure time.Time
	LastSuccess time.Time
	NextAttempt time.Time
}

// New создаёт Breaker в состоянии Closed.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HalfOpenRequests <= 0 {
		cfg.HalfOpenRequests = defaultHalfOpenRequests
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Breaker{
		cfg:    cfg,
		logger: logger,
		state:  StateClosed,
		now:    time.Now,
	}
}

// Do выполняет fn под защитой breaker.
//
// В Open до истечения паузы возвращает *OpenError не вызывая fn.
// Ошибка fn никогда не подменяется — она возвращается как есть,
// breaker лишь учитывает её в своём состоянии.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	b.mu.Lock()
	if b.state == StateOpen {
		if b.now().Before(b.nextAttempt) {
			retryAfter := b.nextAttempt.Sub(b.now())
			b.mu.Unlock()
			return &OpenError{RetryAfter: retryAfter}
		}
		// Пауза вышла — переходим в пробный режим.
		b.setStateLocked(StateHalfOpen)
		b.halfOpenSuccesses = 0
	}
	b.mu.Unlock()

	err := fn(ctx)
	if err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}

// State возвращает текущее состояние с учётом истёкшей паузы Open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && !b.now().Before(b.nextAttempt) {
		return StateHalfOpen
	}
	return b.state
}

// Snapshot возвращает метрики breaker.
func (b *Breaker) Snapshot() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Metrics{
		State:       b.state,
		Failures:    b.failures,
		Successes:   b.successes,
		LastFailure: b.lastFailure,
		LastSuccess: b.lastSuccess,
		NextAttempt: b.nextAttempt,
	}
}

// Reset принудительно закрывает breaker и обнуляет счётчики.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

// ForceOpen принудительно открывает breaker (операционный override).
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openLocked()
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes++
	b.lastSuccess = b.now()
	b.failures = 0

	if b.state == StateHalfOpen {
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.cfg.HalfOpenRequests {
			b.logger.Info("circuit breaker recovered", "breaker", b.cfg.Name)
			b.resetLocked()
		}
	}
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()

	if b.state == StateHalfOpen {
		// Любая ошибка в пробном режиме открывает заново.
		b.openLocked()
		return
	}
	if b.failures >= b.cfg.FailureThreshold {
		b.openLocked()
	}
}

func (b *Breaker) openLocked() {
	b.setStateLocked(StateOpen)
	b.nextAttempt = b.now().Add(b.cfg.Timeout)
	b.halfOpenSuccesses = 0
	b.logger.Warn("circuit breaker opened",
		"breaker", b.cfg.Name,
		"failures", b.failures,
		"retry_in", b.cfg.Timeout,
	)
}

func (b *Breaker) resetLocked() {
	b.setStateLocked(StateClosed)
	b.failures = 0
	b.successes = 0
	b.halfOpenSuccesses = 0
	b.lastFailure = time.Time{}
	b.lastSuccess = time.Time{}
	b.nextAttempt = time.Time{}
}

func (b *Breaker) setStateLocked(state State) {
	if b.state == state {
		return
	}
	b.state = state
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, state)
	}
}
