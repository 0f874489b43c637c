package region

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-terrain/internal/storage"
	"github.com/annel0/voxel-terrain/internal/vec"
	"github.com/annel0/voxel-terrain/internal/world/voxel"
)

func filled(density, material uint8) voxel.Grid {
	g := make(voxel.Grid, voxel.ChunkTotalVertices)
	for i := range g {
		g[i] = voxel.Voxel{Density: density, Material: material}
	}
	return g
}

func mustCodec(t *testing.T, name string) Codec {
	c, err := NewCodec(name)
	require.NoError(t, err)
	return c
}

func TestKeyAndCoords(t *testing.T) {
	assert.Equal(t, "w/-1.3.reg", Key("w", vec.Vec2{X: -1, Z: 3}))

	assert.Equal(t, vec.Vec2{X: -1, Z: 0}, CoordOf(vec.Vec2{X: -1, Z: 31}))
	assert.Equal(t, vec.Vec2{X: 31, Z: 31}, LocalOf(vec.Vec2{X: -1, Z: 31}))
	assert.Equal(t, vec.Vec2{X: 1, Z: -2}, CoordOf(vec.Vec2{X: 32, Z: -33}))
	assert.Equal(t, vec.Vec2{X: 0, Z: 31}, LocalOf(vec.Vec2{X: 32, Z: -33}))
}

func TestEmptyRegion(t *testing.T) {
	ctx := context.Background()
	r := Open(ctx, storage.NewMemoryStore(), mustCodec(t, "zstd"), "w", vec.Vec2{})

	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 0, r.ChunkIndex(vec.Vec2{X: 5, Z: 5}))
	_, ok := r.Load(vec.Vec2{X: 5, Z: 5})
	assert.False(t, ok, "В пустом регионе нет чанков")
	assert.False(t, r.IsModified())
}

func TestSequentialAllocationAndInPlaceResave(t *testing.T) {
	ctx := context.Background()
	r := Open(ctx, storage.NewMemoryStore(), mustCodec(t, "none"), "w", vec.Vec2{})

	require.NoError(t, r.Save(filled(10, 1), vec.Vec2{X: 3, Z: 0}))
	require.NoError(t, r.Save(filled(20, 2), vec.Vec2{X: 0, Z: 7}))
	require.NoError(t, r.Save(filled(30, 3), vec.Vec2{X: 31, Z: 31}))

	assert.Equal(t, 1, r.ChunkIndex(vec.Vec2{X: 3, Z: 0}), "Номера блоков выдаются по порядку")
	assert.Equal(t, 2, r.ChunkIndex(vec.Vec2{X: 0, Z: 7}))
	assert.Equal(t, 3, r.ChunkIndex(vec.Vec2{X: 31, Z: 31}))
	assert.Equal(t, 3, r.Count())

	size := len(r.data)
	require.NoError(t, r.Save(filled(99, 4), vec.Vec2{X: 0, Z: 7}))
	assert.Equal(t, size, len(r.data), "Повторное сохранение не должно увеличивать буфер")
	assert.Equal(t, 2, r.ChunkIndex(vec.Vec2{X: 0, Z: 7}))

	g, ok := r.Load(vec.Vec2{X: 0, Z: 7})
	require.True(t, ok)
	assert.Equal(t, filled(99, 4), g)

	g, ok = r.Load(vec.Vec2{X: 3, Z: 0})
	require.True(t, ok)
	assert.Equal(t, filled(10, 1), g, "Соседний блок не должен быть затронут")
}

func TestCounterCarry(t *testing.T) {
	ctx := context.Background()
	r := Open(ctx, storage.NewMemoryStore(), mustCodec(t, "none"), "w", vec.Vec2{})

	for i := 0; i < 256; i++ {
		require.NoError(t, r.Save(filled(uint8(i), 0), vec.Vec2{X: i % Size, Z: i / Size}))
	}
	assert.Equal(t, byte(1), r.data[0], "Старший байт счётчика после переноса")
	assert.Equal(t, byte(0), r.data[1])
	assert.Equal(t, 256, r.ChunkIndex(vec.Vec2{X: 255 % Size, Z: 255 / Size}))
}

func TestRoundTripEverySlot(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	codec := mustCodec(t, "zstd")
	coord := vec.Vec2{X: -2, Z: 5}

	r := Open(ctx, store, codec, "w", coord)
	for z := 0; z < Size; z++ {
		for x := 0; x < Size; x++ {
			slot := x + z*Size
			require.NoError(t, r.Save(filled(uint8(slot), uint8(slot%voxel.NumberMaterials)), vec.Vec2{X: x, Z: z}))
		}
	}
	require.True(t, r.IsModified())
	require.NoError(t, r.Flush(ctx))
	assert.False(t, r.IsModified())

	raw, err := store.Read(ctx, "w/-2.5.reg")
	require.NoError(t, err, "Регион должен быть записан по ключу {world}/{x}.{z}.reg")
	_, err = base64.StdEncoding.DecodeString(string(raw))
	require.NoError(t, err, "Содержимое блоба должно быть в base64")

	loaded := Open(ctx, store, codec, "w", coord)
	assert.Equal(t, Chunks, loaded.Count())
	for z := 0; z < Size; z++ {
		for x := 0; x < Size; x++ {
			slot := x + z*Size
			g, ok := loaded.Load(vec.Vec2{X: x, Z: z})
			require.True(t, ok, "Чанк %d,%d должен быть сохранён", x, z)
			require.Equal(t, uint8(slot), g[0].Density)
			require.Equal(t, uint8(slot%voxel.NumberMaterials), g[len(g)-1].Material)
		}
	}
}

func TestFlushWithoutChangesIsNoop(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	r := Open(ctx, store, mustCodec(t, "gzip"), "w", vec.Vec2{})

	require.NoError(t, r.Flush(ctx))
	assert.Equal(t, 0, store.Keys(), "Неизменённый регион не записывается")
}

func TestCorruptRegionFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	codec := mustCodec(t, "zstd")

	cases := map[string][]byte{
		"не base64":      []byte("%%%не base64%%%"),
		"не zstd":        []byte(base64.StdEncoding.EncodeToString([]byte("plain bytes"))),
		"битый zstd":     []byte(base64.StdEncoding.EncodeToString(append([]byte{0x28, 0xB5, 0x2F, 0xFD}, "garbage"...))),
		"короткий буфер": mustCompress(t, codec, make([]byte, 10)),
		"лишние блоки":   mustCompress(t, codec, make([]byte, LookupTableBytes+chunkBytes)),
	}

	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Write(ctx, "w/0.0.reg", blob))
			r := Open(ctx, store, codec, "w", vec.Vec2{})
			assert.Equal(t, 0, r.Count())
			assert.Len(t, r.data, LookupTableBytes, "Повреждённый регион заменяется пустым")
		})
	}
}

func mustCompress(t *testing.T, c Codec, data []byte) []byte {
	out, err := c.Compress(data)
	require.NoError(t, err)
	return []byte(base64.StdEncoding.EncodeToString(out))
}

type failingStore struct {
	*storage.MemoryStore
}

func (failingStore) Write(context.Context, string, []byte) error {
	return assert.AnError
}

func TestFlushFailureKeepsModified(t *testing.T) {
	ctx := context.Background()
	r := Open(ctx, failingStore{storage.NewMemoryStore()}, mustCodec(t, "none"), "w", vec.Vec2{})

	require.NoError(t, r.Save(filled(1, 1), vec.Vec2{}))
	assert.Error(t, r.Flush(ctx))
	assert.True(t, r.IsModified(), "После неудачной записи регион остаётся изменённым")
}

func TestCodecs(t *testing.T) {
	data := filled(128, 4).Pack()
	for _, name := range []string{"zstd", "gzip", "none"} {
		c := mustCodec(t, name)
		assert.Equal(t, name, c.Name())

		packed, err := c.Compress(data)
		require.NoError(t, err)
		out, err := c.Decompress(packed)
		require.NoError(t, err)
		assert.Equal(t, []byte(data), out, "Кодек %s должен восстанавливать данные", name)
	}

	_, err := NewCodec("lz4")
	assert.Error(t, err)
}

func TestDetectCodec(t *testing.T) {
	data := make([]byte, LookupTableBytes)
	data[0], data[1] = byte(Chunks>>8), byte(Chunks & 0xFF)

	for _, name := range []string{"zstd", "gzip", "none"} {
		packed, err := mustCodec(t, name).Compress(data)
		require.NoError(t, err)
		assert.Equal(t, name, DetectCodec(packed), "Сигнатура кодека %s", name)
	}
	assert.Equal(t, "none", DetectCodec(nil))
}

func TestRegionWrittenByOtherCodec(t *testing.T) {
	ctx := context.Background()
	names := []string{"zstd", "gzip", "none"}

	for _, written := range names {
		for _, configured := range names {
			t.Run(written+"->"+configured, func(t *testing.T) {
				store := storage.NewMemoryStore()

				r := Open(ctx, store, mustCodec(t, written), "w", vec.Vec2{})
				require.NoError(t, r.Save(filled(200, 4), vec.Vec2{X: 1}))
				require.NoError(t, r.Flush(ctx))

				reopened := Open(ctx, store, mustCodec(t, configured), "w", vec.Vec2{})
				grid, ok := reopened.Load(vec.Vec2{X: 1})
				require.True(t, ok, "Регион читается независимо от настроенного кодека")
				assert.Equal(t, filled(200, 4), grid)

				require.NoError(t, reopened.Save(filled(50, 6), vec.Vec2{X: 2}))
				require.NoError(t, reopened.Flush(ctx))

				back := Open(ctx, store, mustCodec(t, written), "w", vec.Vec2{})
				assert.Equal(t, 2, back.Count(), "После возврата к прежнему кодеку сохранены оба чанка")
				_, ok = back.Load(vec.Vec2{X: 1})
				assert.True(t, ok)
			})
		}
	}
}

func TestSaveRejectsBadInput(t *testing.T) {
	r := Open(context.Background(), storage.NewMemoryStore(), mustCodec(t, "none"), "w", vec.Vec2{})
	assert.Error(t, r.Save(filled(1, 1), vec.Vec2{X: Size}))
	assert.Error(t, r.Save(make(voxel.Grid, 3), vec.Vec2{}))
}
