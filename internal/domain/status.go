package domain

// Status — статус выполнения job.
//
// Жизненный цикл:
//
//	PENDING → ACTIVE → SUCCEEDED
//	                 ↘ FAILED
type Status string

const (
	// StatusPending — job создана, ждёт в очереди.
	StatusPending Status = "PENDING"

	// StatusActive — job взята worker'ом и выполняется.
	StatusActive Status = "ACTIVE"

	// StatusSucceeded — job успешно завершена.
	StatusSucceeded Status = "SUCCEEDED"

	// StatusFailed — job завершилась с ошибкой.
	StatusFailed Status = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

// rank задаёт порядок статусов для проверки "только вперёд".
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusActive:
		return 1
	case StatusSucceeded, StatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo проверяет, что переход s → next не движется назад.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	return next.rank() >= s.rank()
}
