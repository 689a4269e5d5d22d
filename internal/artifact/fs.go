package artifact

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FS — файловая реализация Store для локальной разработки.
//
// Кладёт артефакты под root (обычно ./public), URL — путь относительно
// root с ведущим слэшем, как отдаёт их статический файл-сервер.
type FS struct {
	root string
}

// NewFS создаёт файловый Store с корнем root.
func NewFS(root string) *FS {
	return &FS{root: root}
}

func (f *FS) Put(_ context.Context, key string, data []byte) (string, error) {
	path := filepath.Join(f.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("mkdir for %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	return "/" + key, nil
}

func (f *FS) List(_ context.Context, prefix string) ([]Entry, error) {
	dir := filepath.Join(f.root, filepath.FromSlash(prefix))

	// Префикс может указывать и на директорию, и на начало имени файла.
	base := dir
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		base = filepath.Dir(dir)
	}
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil, nil
	}

	var entries []Entry
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			Key:  key,
			URL:  "/" + key,
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return entries, nil
}

func (f *FS) Delete(_ context.Context, url string) error {
	key := strings.TrimPrefix(url, "/")
	path := filepath.Join(f.root, filepath.FromSlash(key))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", url, err)
	}
	return nil
}
