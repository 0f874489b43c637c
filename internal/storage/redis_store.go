package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
)

const redisDeleteBatch = 256

// RedisStore хранит регионы в Redis. Все ключи получают общий префикс.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore подключается к Redis и проверяет соединение
func NewRedisStore(ctx context.Context, addr string, db int, keyPrefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis %s: %w", addr, err)
	}

	return &RedisStore{client: client, keyPrefix: keyPrefix}, nil
}

func (s *RedisStore) key(key string) string {
	return s.keyPrefix + key
}

func (s *RedisStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из Redis: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Write(ctx context.Context, key string, data []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("ошибка записи в Redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("ошибка удаления из Redis: %w", err)
	}
	return nil
}

// DeleteAll обходит ключи через SCAN и удаляет их пачками
func (s *RedisStore) DeleteAll(ctx context.Context, prefix string) (bool, error) {
	pattern := escapeGlob(s.key(prefix)) + "*"
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()

	removed := false
	batch := make([]string, 0, redisDeleteBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("ошибка удаления из Redis: %w", err)
		}
		removed = true
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == redisDeleteBatch {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("ошибка сканирования Redis: %w", err)
	}
	if err := flush(); err != nil {
		return removed, err
	}
	return removed, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// escapeGlob экранирует спецсимволы шаблона SCAN MATCH
func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
