package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBStore хранилище регионов поверх goleveldb
type LevelDBStore struct {
	db *leveldb.DB
}

// NewLevelDBStore открывает базу в каталоге path
func NewLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть LevelDB %s: %w", path, err)
	}
	return &LevelDBStore{db: db}, nil
}

// NewMemLevelDBStore открывает базу в памяти
func NewMemLevelDBStore() (*LevelDBStore, error) {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть LevelDB в памяти: %w", err)
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Read(_ context.Context, key string) ([]byte, error) {
	data, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из LevelDB: %w", err)
	}
	return data, nil
}

func (s *LevelDBStore) Write(_ context.Context, key string, data []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := s.db.Put([]byte(key), data, nil); err != nil {
		return fmt.Errorf("ошибка записи в LevelDB: %w", err)
	}
	return nil
}

func (s *LevelDBStore) Delete(_ context.Context, key string) error {
	if err := s.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("ошибка удаления из LevelDB: %w", err)
	}
	return nil
}

func (s *LevelDBStore) DeleteAll(_ context.Context, prefix string) (bool, error) {
	batch := new(leveldb.Batch)

	it := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	for it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return false, fmt.Errorf("ошибка обхода LevelDB: %w", err)
	}

	if batch.Len() == 0 {
		return false, nil
	}
	if err := s.db.Write(batch, nil); err != nil {
		return false, fmt.Errorf("ошибка удаления префикса %s из LevelDB: %w", prefix, err)
	}
	return true, nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
