package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/annel0/voxel-terrain/internal/config"
)

// ErrNotFound возвращается, когда ключа нет в хранилище
var ErrNotFound = errors.New("ключ не найден")

// BlobStore байтовое хранилище ключ/значение, через которое мир сохраняет
// регионы и документ конфигурации. Ключи имеют вид "{world}/{name}".
type BlobStore interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	// DeleteAll удаляет все ключи с указанным префиксом и сообщает,
	// был ли удалён хотя бы один
	DeleteAll(ctx context.Context, prefix string) (bool, error)
	Close() error
}

// Open создаёт хранилище по настройкам конфигурации
func Open(ctx context.Context, cfg config.StorageConfig) (BlobStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		return NewFileStore(cfg.Path)
	case "memory":
		return NewMemoryStore(), nil
	case "badger":
		return NewBadgerStore(filepath.Join(cfg.Path, "badger"))
	case "leveldb":
		return NewLevelDBStore(filepath.Join(cfg.Path, "leveldb"))
	case "redis":
		return NewRedisStore(ctx, cfg.GetRedisAddr(), cfg.RedisDB, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("неизвестный тип хранилища: %q", cfg.Backend)
	}
}

// validKey отбрасывает пустые ключи и попытки выйти за корень хранилища
func validKey(key string) error {
	if key == "" {
		return fmt.Errorf("пустой ключ")
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return fmt.Errorf("недопустимый ключ %q", key)
		}
	}
	return nil
}
