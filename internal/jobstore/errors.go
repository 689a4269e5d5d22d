package jobstore

import "errors"

// Ошибки jobstore.
var (
	// ErrJobNotFound — job с таким ID не существует.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition — попытка двинуть статус назад.
	ErrInvalidTransition = errors.New("invalid status transition")
)
