package artifact

import (
	"context"
)

// Entry — запись листинга артефактов.
type Entry struct {
	// Key — ключ артефакта внутри store.
	Key string

	// URL — публичная ссылка.
	URL string

	// Size — размер в байтах.
	Size int64
}

// Store — blob-хранилище для аудио-артефактов.
//
// Узкий контракт: конкретный бэкенд (объектное хранилище, CDN)
// подставляется снаружи. List по префиксу используется и для проверки
// "артефакт уже сгенерирован" при возобновлении джоба.
type Store interface {
	// Put сохраняет blob и возвращает его публичный URL.
	Put(ctx context.Context, key string, data []byte) (url string, err error)

	// List возвращает артефакты с данным префиксом ключа.
	List(ctx context.Context, prefix string) ([]Entry, error)

	// Delete удаляет артефакт по URL.
	Delete(ctx context.Context, url string) error
}
