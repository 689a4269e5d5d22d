package kv

import (
	"context"
	"errors"
)

// Общие ошибки слоя KV.
var (
	// ErrUnknownDriver — в конфигурации указан неизвестный драйвер.
	ErrUnknownDriver = errors.New("unknown kv driver")
)

// ZEntry — элемент отсортированного множества.
type ZEntry struct {
	Member string
	Score  float64
}

// Store — контракт внешнего ordered key-value хранилища.
//
// Единственный разделяемый мутабельный ресурс системы: все worker'ы
// координируются только через него. Конкретный адаптер выбирается
// один раз на старте процесса (см. Open), никакого per-call ветвления.
type Store interface {
	// Set записывает значение по ключу.
	Set(ctx context.Context, key, value string) error

	// Get возвращает значение. ok=false, если ключ отсутствует.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Del удаляет ключ. Отсутствующий ключ — не ошибка.
	Del(ctx context.Context, key string) error

	// ZAdd добавляет member с score в отсортированное множество.
	ZAdd(ctx context.Context, set string, entry ZEntry) error

	// ZRange возвращает members с позиций start..stop (включительно,
	// stop=-1 — до конца) по возрастанию score.
	ZRange(ctx context.Context, set string, start, stop int64) ([]string, error)

	// ZRem удаляет member из множества. Отсутствующий — не ошибка.
	ZRem(ctx context.Context, set, member string) error

	// ZCard возвращает размер множества.
	ZCard(ctx context.Context, set string) (int64, error)

	// Keys возвращает ключи с данным префиксом.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close освобождает ресурсы адаптера.
	Close() error
}
