package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-terrain/internal/config"
)

type storeFactory struct {
	name string
	open func(t *testing.T) BlobStore
}

func factories() []storeFactory {
	return []storeFactory{
		{"memory", func(t *testing.T) BlobStore { return NewMemoryStore() }},
		{"file", func(t *testing.T) BlobStore {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return s
		}},
		{"badger", func(t *testing.T) BlobStore {
			s, err := NewBadgerStore("")
			require.NoError(t, err)
			return s
		}},
		{"leveldb", func(t *testing.T) BlobStore {
			s, err := NewMemLevelDBStore()
			require.NoError(t, err)
			return s
		}},
		{"redis", func(t *testing.T) BlobStore {
			addr := os.Getenv("TERRAIN_REDIS_ADDR")
			if addr == "" {
				t.Skip("TERRAIN_REDIS_ADDR не задан, пропускаем Redis")
			}
			s, err := NewRedisStore(context.Background(), addr, 15, "terrain-test:")
			require.NoError(t, err)
			_, err = s.DeleteAll(context.Background(), "")
			require.NoError(t, err)
			return s
		}},
	}
}

func TestBlobStores(t *testing.T) {
	ctx := context.Background()

	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			s := f.open(t)
			defer s.Close()

			_, err := s.Read(ctx, "alpha/0.0.reg")
			assert.ErrorIs(t, err, ErrNotFound, "Отсутствующий ключ должен давать ErrNotFound")

			require.NoError(t, s.Write(ctx, "alpha/0.0.reg", []byte("first")))
			require.NoError(t, s.Write(ctx, "alpha/-1.2.reg", []byte("second")))
			require.NoError(t, s.Write(ctx, "beta/0.0.reg", []byte("other")))

			data, err := s.Read(ctx, "alpha/0.0.reg")
			require.NoError(t, err)
			assert.Equal(t, []byte("first"), data)

			require.NoError(t, s.Write(ctx, "alpha/0.0.reg", []byte("replaced")))
			data, err = s.Read(ctx, "alpha/0.0.reg")
			require.NoError(t, err)
			assert.Equal(t, []byte("replaced"), data, "Повторная запись заменяет значение")

			require.NoError(t, s.Delete(ctx, "alpha/-1.2.reg"))
			_, err = s.Read(ctx, "alpha/-1.2.reg")
			assert.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, s.Delete(ctx, "alpha/-1.2.reg"), "Удаление отсутствующего ключа не ошибка")

			removed, err := s.DeleteAll(ctx, "alpha/")
			require.NoError(t, err)
			assert.True(t, removed)

			_, err = s.Read(ctx, "alpha/0.0.reg")
			assert.ErrorIs(t, err, ErrNotFound, "Ключи мира должны быть удалены")

			data, err = s.Read(ctx, "beta/0.0.reg")
			require.NoError(t, err, "Другой мир не должен пострадать")
			assert.Equal(t, []byte("other"), data)

			removed, err = s.DeleteAll(ctx, "alpha/")
			require.NoError(t, err)
			assert.False(t, removed, "Повторное удаление ничего не находит")
		})
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, s.Write(context.Background(), "../outside", []byte("x")))
	assert.Error(t, s.Write(context.Background(), "", []byte("x")))
}

func TestOpenByBackend(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StorageConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, config.StorageConfig{Backend: "file", Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(ctx, config.StorageConfig{Backend: "leveldb", Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LevelDBStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.StorageConfig{Backend: "cassandra"})
	assert.Error(t, err)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `w\*\?\[1\]/`, escapeGlob("w*?[1]/"))
}
