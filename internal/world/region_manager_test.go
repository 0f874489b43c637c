package world

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-terrain/internal/region"
	"github.com/annel0/voxel-terrain/internal/storage"
	"github.com/annel0/voxel-terrain/internal/vec"
	"github.com/annel0/voxel-terrain/internal/world/voxel"
)

// flakyStore отказывает в записи, пока failing выставлен
type flakyStore struct {
	*storage.MemoryStore
	failing atomic.Bool
}

func (s *flakyStore) Write(ctx context.Context, key string, data []byte) error {
	if s.failing.Load() {
		return errors.New("диск недоступен")
	}
	return s.MemoryStore.Write(ctx, key, data)
}

func newTestRegions(t *testing.T, store storage.BlobStore) *RegionManager {
	codec, err := region.NewCodec("none")
	require.NoError(t, err)
	return NewRegionManager("test", store, codec, nil)
}

func editedChunk(key vec.Vec2) *Chunk {
	c := NewChunk(key, voxel.NewGrid(), false)
	c.ModifyVertex(vec.Vec3{X: 1, Y: 1, Z: 1}, 200, int(voxel.MaterialRock), true)
	return c
}

func TestRegionOf(t *testing.T) {
	assert.Equal(t, vec.Vec2{}, RegionOf(vec.Vec2Float{X: 0, Z: 511.9}))
	assert.Equal(t, vec.Vec2{X: 1, Z: -1}, RegionOf(vec.Vec2Float{X: 512, Z: -0.1}))
	assert.Equal(t, vec.Vec2{X: 0, Z: 0}, ChunkOf(vec.Vec2Float{X: 15.99, Z: 0}))
	assert.Equal(t, vec.Vec2{X: -1, Z: 1}, ChunkOf(vec.Vec2Float{X: -0.01, Z: 16}))
}

func TestRecenterCallsBeforeLeave(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	rm := newTestRegions(t, store)

	assert.True(t, rm.NeedsRecenter(vec.Vec2Float{}), "До первого окна пересчёт нужен всегда")
	rm.Recenter(ctx, vec.Vec2Float{X: 100, Z: 100}, nil)
	require.Equal(t, 9, rm.Count())
	assert.False(t, rm.NeedsRecenter(vec.Vec2Float{X: 500, Z: 100}))
	assert.True(t, rm.NeedsRecenter(vec.Vec2Float{X: 520, Z: 100}), "Переход в соседний регион сдвигает окно")
	assert.True(t, rm.NeedsRecenter(vec.Vec2Float{X: 100, Z: -1}))
	assert.Equal(t, vec.Vec2{}, rm.Center())

	c := editedChunk(vec.Vec2{X: -1, Z: 0})
	var left []vec.Vec2
	rm.Recenter(ctx, vec.Vec2Float{X: 600, Z: 100}, func(coord vec.Vec2, r *region.Region) {
		left = append(left, coord)
		if coord == c.RegionCoords {
			_, err := c.SaveToRegion(r)
			assert.NoError(t, err)
		}
	})

	assert.ElementsMatch(t, []vec.Vec2{{X: -1, Z: -1}, {X: -1, Z: 0}, {X: -1, Z: 1}}, left)
	assert.Equal(t, 9, rm.Count())
	assert.False(t, c.NeedsPersist())

	data, err := store.Read(ctx, region.Key("test", vec.Vec2{X: -1, Z: 0}))
	require.NoError(t, err, "Уходящий регион записан вместе с данными чанка")
	assert.NotEmpty(t, data)
	_, err = store.Read(ctx, region.Key("test", vec.Vec2{X: -1, Z: 1}))
	assert.ErrorIs(t, err, storage.ErrNotFound, "Неизменённый регион не записывается")
}

func TestPersistOutside(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	rm := newTestRegions(t, store)
	rm.Recenter(ctx, vec.Vec2Float{X: 100, Z: 100}, nil)

	c := editedChunk(vec.Vec2{X: 200, Z: 3})
	require.Nil(t, rm.Get(c.RegionCoords))
	require.NoError(t, rm.PersistOutside(ctx, c))
	assert.False(t, c.NeedsPersist())

	r := region.Open(ctx, store, rm.codec, "test", c.RegionCoords)
	grid, ok := r.Load(c.Local)
	require.True(t, ok, "Чанк сохранён в регион вне окна")
	assert.Equal(t, uint8(200), grid.At(1, 1, 1).Density)
	assert.Equal(t, voxel.MaterialRock, grid.At(1, 1, 1).Material)
}

func TestFailedFlushIsRetried(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: storage.NewMemoryStore()}
	rm := newTestRegions(t, store)
	rm.Recenter(ctx, vec.Vec2Float{X: 100, Z: 100}, nil)

	c := editedChunk(vec.Vec2{X: -1, Z: 0})
	store.failing.Store(true)
	rm.Recenter(ctx, vec.Vec2Float{X: 600, Z: 100}, func(coord vec.Vec2, r *region.Region) {
		if coord == c.RegionCoords {
			_, err := c.SaveToRegion(r)
			require.NoError(t, err)
		}
	})
	assert.Len(t, rm.pending, 1, "Незаписанный регион ждёт повтора")

	assert.Error(t, rm.FlushAll(ctx))
	assert.Len(t, rm.pending, 1, "Регион остаётся в ожидании после повторной неудачи")

	store.failing.Store(false)
	require.NoError(t, rm.FlushAll(ctx))
	assert.Empty(t, rm.pending)

	r := region.Open(ctx, store, rm.codec, "test", c.RegionCoords)
	_, ok := r.Load(c.Local)
	assert.True(t, ok)
}

func TestPendingRegionReenters(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: storage.NewMemoryStore()}
	rm := newTestRegions(t, store)
	rm.Recenter(ctx, vec.Vec2Float{X: 100, Z: 100}, nil)

	c := editedChunk(vec.Vec2{X: -1, Z: 0})
	store.failing.Store(true)
	rm.Recenter(ctx, vec.Vec2Float{X: 600, Z: 100}, func(coord vec.Vec2, r *region.Region) {
		if coord == c.RegionCoords {
			_, _ = c.SaveToRegion(r)
		}
	})
	require.Len(t, rm.pending, 1)

	// Регион возвращается в окно с несохранёнными данными, а не перечитывается
	rm.Recenter(ctx, vec.Vec2Float{X: 100, Z: 100}, nil)
	assert.Empty(t, rm.pending)
	r := rm.Get(c.RegionCoords)
	require.NotNil(t, r)
	assert.True(t, r.IsModified())
	_, ok := r.Load(c.Local)
	assert.True(t, ok)
}
