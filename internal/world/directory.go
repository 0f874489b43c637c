package world

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/annel0/voxel-terrain/internal/logging"
	"github.com/annel0/voxel-terrain/internal/storage"
)

// ConfigDocument имя документа конфигурации внутри каталога мира
const ConfigDocument = "worldConfig.yaml"

var (
	// ErrWorldExists мир с таким именем уже создан
	ErrWorldExists = errors.New("мир уже существует")
	// ErrWorldNotFound у мира нет документа конфигурации
	ErrWorldNotFound = errors.New("мир не найден")
)

func configKey(name string) string {
	return name + "/" + ConfigDocument
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("недопустимое имя мира: %q", name)
	}
	return nil
}

// CreateWorld создаёт мир и сохраняет его конфигурацию.
// nil cfg даёт конфигурацию по умолчанию со случайным сидом.
// Существующий мир никогда не перезаписывается.
func CreateWorld(ctx context.Context, store storage.BlobStore, name string, cfg *WorldConfig) (*WorldConfig, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	_, err := store.Read(ctx, configKey(name))
	if err == nil {
		return nil, fmt.Errorf("%w: %s", ErrWorldExists, name)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("ошибка проверки мира %s: %w", name, err)
	}

	if cfg == nil {
		cfg = DefaultWorldConfig(rand.Int63())
	} else {
		copied := *cfg
		cfg = &copied
	}
	cfg.ID = uuid.New()
	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации конфигурации мира: %w", err)
	}
	if err := store.Write(ctx, configKey(name), data); err != nil {
		return nil, fmt.Errorf("ошибка сохранения конфигурации мира %s: %w", name, err)
	}

	logging.GetStorageLogger().Info("🌍 Создан мир %s (id=%s, seed=%d)", name, cfg.ID, cfg.Seed)
	return cfg, nil
}

// DeleteWorld удаляет мир со всеми регионами. Возвращает false, если удалять было нечего.
func DeleteWorld(ctx context.Context, store storage.BlobStore, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}

	removed, err := store.DeleteAll(ctx, name+"/")
	if err != nil {
		return removed, fmt.Errorf("ошибка удаления мира %s: %w", name, err)
	}
	if removed {
		logging.GetStorageLogger().Info("🗑️ Мир %s удалён", name)
	}
	return removed, nil
}

// LoadWorldConfig читает конфигурацию мира
func LoadWorldConfig(ctx context.Context, store storage.BlobStore, name string) (*WorldConfig, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	data, err := store.Read(ctx, configKey(name))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrWorldNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения конфигурации мира %s: %w", name, err)
	}

	var cfg WorldConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logging.LogCorruptBlob(configKey(name), err, data)
		return nil, fmt.Errorf("ошибка разбора конфигурации мира %s: %w", name, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// OpenOrCreateWorld загружает конфигурацию мира или создаёт мир с defaults.
// Второе значение сообщает, был ли мир создан.
func OpenOrCreateWorld(ctx context.Context, store storage.BlobStore, name string, defaults *WorldConfig) (*WorldConfig, bool, error) {
	cfg, err := LoadWorldConfig(ctx, store, name)
	if err == nil {
		return cfg, false, nil
	}
	if !errors.Is(err, ErrWorldNotFound) {
		return nil, false, err
	}

	logging.GetStorageLogger().Warn("Конфигурация мира %s отсутствует, создаётся новая", name)
	cfg, err = CreateWorld(ctx, store, name, defaults)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// ReconfigureWorld заменяет конфигурацию мира. Если параметры генерации
// отличаются от сохранённых, старые данные мира удаляются.
// Второе значение сообщает, были ли данные удалены.
func ReconfigureWorld(ctx context.Context, store storage.BlobStore, name string, cfg *WorldConfig) (*WorldConfig, bool, error) {
	if cfg == nil {
		return nil, false, fmt.Errorf("пустая конфигурация мира")
	}

	normalized := *cfg
	normalized.Normalize()

	existing, err := LoadWorldConfig(ctx, store, name)
	switch {
	case err == nil && existing.SameGeneration(&normalized):
		return existing, false, nil
	case err != nil && !errors.Is(err, ErrWorldNotFound):
		return nil, false, err
	}

	if normalized.Compression == "" && existing != nil {
		normalized.Compression = existing.Compression
	}

	wiped, err := DeleteWorld(ctx, store, name)
	if err != nil {
		return nil, false, err
	}
	created, err := CreateWorld(ctx, store, name, &normalized)
	if err != nil {
		return nil, wiped, err
	}
	return created, wiped, nil
}
