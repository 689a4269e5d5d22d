package kv

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Memory — in-memory реализация Store для локальной разработки и тестов.
//
// Деградированный режим: состояние живёт только в памяти процесса,
// горизонтальная координация worker'ов невозможна. В managed-окружении
// использоваться не должен — конструктор пишет warning в лог.
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
	zsets map[string][]ZEntry
}

// NewMemory создаёт in-memory Store.
func NewMemory(logger *slog.Logger) *Memory {
	if logger != nil {
		logger.Warn("using in-memory kv store, state will not survive restarts")
	}
	return &Memory{
		items: make(map[string]string),
		zsets: make(map[string][]ZEntry),
	}
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *Memory) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *Memory) ZAdd(_ context.Context, set string, entry ZEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.zsets[set]
	for i := range entries {
		if entries[i].Member == entry.Member {
			entries[i].Score = entry.Score
			m.sortLocked(set)
			return nil
		}
	}
	m.zsets[set] = append(entries, entry)
	m.sortLocked(set)
	return nil
}

func (m *Memory) ZRange(_ context.Context, set string, start, stop int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.zsets[set]
	n := int64(len(entries))
	if n == 0 {
		return nil, nil
	}

	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil, nil
	}

	members := make([]string, 0, stop-start+1)
	for _, e := range entries[start : stop+1] {
		members = append(members, e.Member)
	}
	return members, nil
}

func (m *Memory) ZRem(_ context.Context, set, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.zsets[set]
	for i := range entries {
		if entries[i].Member == member {
			m.zsets[set] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *Memory) ZCard(_ context.Context, set string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.zsets[set])), nil
}

func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) Close() error {
	return nil
}

// sortLocked восстанавливает порядок по score. Вызывается под мьютексом.
func (m *Memory) sortLocked(set string) {
	entries := m.zsets[set]
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score < entries[j].Score
	})
}
