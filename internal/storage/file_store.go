package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore хранит каждый ключ отдельным файлом в дереве каталогов.
// Ключ "{world}/{x}.{z}.reg" становится файлом basePath/{world}/{x}.{z}.reg.
type FileStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStore создаёт файловое хранилище в каталоге basePath
func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", basePath, err)
	}
	return &FileStore{basePath: basePath}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}

// Read читает содержимое файла ключа
func (s *FileStore) Read(_ context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", key, err)
	}
	return data, nil
}

// Write атомарно заменяет файл ключа: запись во временный файл и переименование
func (s *FileStore) Write(_ context.Context, key string, data []byte) error {
	if err := validKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filename := s.path(key)
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("не удалось создать директорию для %s: %w", key, err)
	}

	tempFile := filename + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("ошибка записи временного файла %s: %w", tempFile, err)
	}
	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("ошибка переименования файла %s: %w", filename, err)
	}
	return nil
}

// Delete удаляет файл ключа. Отсутствующий ключ не ошибка.
func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка удаления файла %s: %w", key, err)
	}
	return nil
}

// DeleteAll удаляет все файлы, чьи ключи начинаются с prefix.
// Префикс вида "{world}/" удаляет каталог мира целиком.
func (s *FileStore) DeleteAll(_ context.Context, prefix string) (bool, error) {
	if err := validKey(prefix); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.HasSuffix(prefix, "/") {
		dir := s.path(strings.TrimSuffix(prefix, "/"))
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		if err := os.RemoveAll(dir); err != nil {
			return false, fmt.Errorf("ошибка удаления директории %s: %w", dir, err)
		}
		return true, nil
	}

	removed := false
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		if strings.HasPrefix(filepath.ToSlash(rel), prefix) {
			if err := os.Remove(path); err != nil {
				return err
			}
			removed = true
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("ошибка обхода директории %s: %w", s.basePath, err)
	}
	return removed, nil
}

// Close ничего не держит открытым
func (s *FileStore) Close() error {
	return nil
}
