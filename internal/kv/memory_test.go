package kv

import (
	"context"
	"testing"
)

func TestMemory_SetGetDel(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("missing key must report ok=false")
	}

	m.Set(ctx, "k", "v1")
	m.Set(ctx, "k", "v2")
	if v, ok, _ := m.Get(ctx, "k"); !ok || v != "v2" {
		t.Errorf("got %q ok=%v", v, ok)
	}

	m.Del(ctx, "k")
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("deleted key must be absent")
	}
	// Повторное удаление — не ошибка.
	if err := m.Del(ctx, "k"); err != nil {
		t.Errorf("double del: %v", err)
	}
}

func TestMemory_ZSetOrderAndRange(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	m.ZAdd(ctx, "q", ZEntry{Member: "c", Score: 3})
	m.ZAdd(ctx, "q", ZEntry{Member: "a", Score: 1})
	m.ZAdd(ctx, "q", ZEntry{Member: "b", Score: 2})

	tests := []struct {
		start, stop int64
		want        []string
	}{
		{0, 0, []string{"a"}},
		{0, -1, []string{"a", "b", "c"}},
		{1, 2, []string{"b", "c"}},
		{0, 100, []string{"a", "b", "c"}},
		{5, 10, nil},
	}
	for _, tt := range tests {
		got, err := m.ZRange(ctx, "q", tt.start, tt.stop)
		if err != nil {
			t.Fatalf("zrange(%d,%d): %v", tt.start, tt.stop, err)
		}
		if len(got) != len(tt.want) {
			t.Errorf("zrange(%d,%d) = %v, want %v", tt.start, tt.stop, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("zrange(%d,%d) = %v, want %v", tt.start, tt.stop, got, tt.want)
				break
			}
		}
	}

	// Обновление score переупорядочивает.
	m.ZAdd(ctx, "q", ZEntry{Member: "c", Score: 0})
	got, _ := m.ZRange(ctx, "q", 0, 0)
	if len(got) != 1 || got[0] != "c" {
		t.Errorf("after score update expected [c], got %v", got)
	}

	m.ZRem(ctx, "q", "c")
	if n, _ := m.ZCard(ctx, "q"); n != 2 {
		t.Errorf("expected card 2, got %d", n)
	}
}

func TestMemory_KeysPrefix(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	m.Set(ctx, "news-sync:job:1", "a")
	m.Set(ctx, "news-sync:job:2", "b")
	m.Set(ctx, "news-audio:job:1", "c")

	keys, err := m.Keys(ctx, "news-sync:job:")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 keys, got %v", keys)
	}
}
