package world

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-terrain/internal/noise"
	"github.com/annel0/voxel-terrain/internal/storage"
)

func TestCreateAndLoadWorld(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	cfg := DefaultWorldConfig(1234)
	cfg.Noise = noise.OpenSimplex
	created, err := CreateWorld(ctx, store, "alpha", cfg)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID, "Новый мир получает идентификатор")
	assert.Equal(t, uuid.Nil, cfg.ID, "Переданная конфигурация не изменяется")

	_, err = store.Read(ctx, "alpha/worldConfig.yaml")
	require.NoError(t, err, "Документ конфигурации сохраняется в каталоге мира")

	loaded, err := LoadWorldConfig(ctx, store, "alpha")
	require.NoError(t, err)
	assert.Equal(t, created, loaded)
	assert.Equal(t, noise.OpenSimplex, loaded.Noise)
}

func TestCreateWorldCollision(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	first, err := CreateWorld(ctx, store, "alpha", DefaultWorldConfig(1))
	require.NoError(t, err)

	_, err = CreateWorld(ctx, store, "alpha", DefaultWorldConfig(2))
	assert.ErrorIs(t, err, ErrWorldExists, "Повторное создание мира должно завершаться ошибкой")

	loaded, err := LoadWorldConfig(ctx, store, "alpha")
	require.NoError(t, err)
	assert.Equal(t, first.Seed, loaded.Seed, "Существующий мир не перезаписывается")
}

func TestCreateWorldRandomSeed(t *testing.T) {
	cfg, err := CreateWorld(context.Background(), storage.NewMemoryStore(), "alpha", nil)
	require.NoError(t, err)
	assert.Equal(t, 150.0, cfg.BiomeScale)
	assert.Equal(t, noise.Perlin, cfg.Noise)
}

func TestDeleteWorld(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	_, err := CreateWorld(ctx, store, "alpha", nil)
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, "alpha/0.0.reg", []byte("x")))
	_, err = CreateWorld(ctx, store, "alphabet", nil)
	require.NoError(t, err)

	removed, err := DeleteWorld(ctx, store, "alpha")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = LoadWorldConfig(ctx, store, "alpha")
	assert.ErrorIs(t, err, ErrWorldNotFound)
	_, err = LoadWorldConfig(ctx, store, "alphabet")
	assert.NoError(t, err, "Мир с похожим именем не должен пострадать")

	removed, err = DeleteWorld(ctx, store, "alpha")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestOpenOrCreateWorld(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	cfg, created, err := OpenOrCreateWorld(ctx, store, "alpha", DefaultWorldConfig(77))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(77), cfg.Seed)

	again, created, err := OpenOrCreateWorld(ctx, store, "alpha", DefaultWorldConfig(88))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, cfg.ID, again.ID, "Существующий мир открывается со своей конфигурацией")
	assert.Equal(t, int64(77), again.Seed)
}

func TestReconfigureWorld(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	original, err := CreateWorld(ctx, store, "alpha", DefaultWorldConfig(5))
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, "alpha/0.0.reg", []byte("region")))

	same, wiped, err := ReconfigureWorld(ctx, store, "alpha", DefaultWorldConfig(5))
	require.NoError(t, err)
	assert.False(t, wiped, "Те же параметры не удаляют данные")
	assert.Equal(t, original.ID, same.ID)

	changed, wiped, err := ReconfigureWorld(ctx, store, "alpha", DefaultWorldConfig(6))
	require.NoError(t, err)
	assert.True(t, wiped, "Новые параметры генерации удаляют старый мир")
	assert.Equal(t, int64(6), changed.Seed)
	assert.NotEqual(t, original.ID, changed.ID)

	_, err = store.Read(ctx, "alpha/0.0.reg")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestInvalidWorldName(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	for _, name := range []string{"", "..", "a/b"} {
		_, err := CreateWorld(ctx, store, name, nil)
		assert.Error(t, err, "Имя %q недопустимо", name)
	}
}

func TestWorldConfigNormalize(t *testing.T) {
	cfg := &WorldConfig{BiomeScale: -5, DiffToMerge: 3, SurfaceLevel: 500, Octaves: 0, Persistence: 0, Lacunarity: 100}
	cfg.Normalize()

	assert.Equal(t, 1.0, cfg.BiomeScale)
	assert.Equal(t, 0.5, cfg.DiffToMerge)
	assert.Equal(t, 80, cfg.SurfaceLevel)
	assert.Equal(t, 1, cfg.Octaves)
	assert.Equal(t, 0.001, cfg.Persistence)
	assert.Equal(t, 20.0, cfg.Lacunarity)
	assert.Equal(t, noise.Perlin, cfg.Noise)
}
