package region

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/voxel-terrain/internal/logging"
	"github.com/annel0/voxel-terrain/internal/storage"
	"github.com/annel0/voxel-terrain/internal/vec"
	"github.com/annel0/voxel-terrain/internal/world/voxel"
)

// Формат региона: таблица поиска из (Chunks+1) записей по IndexBytes байт
// (big-endian), затем блоки чанков по chunkBytes. Запись 0 хранит счётчик
// выделенных блоков, запись k+1 номер блока чанка k (0 = чанк не сохранён).
// Номер блока n указывает на смещение LookupTableBytes + (n-1)*chunkBytes.
const (
	Size             = 32
	Chunks           = Size * Size
	IndexBytes       = 2
	LookupTableBytes = (Chunks + 1) * IndexBytes

	chunkBytes = voxel.ChunkBytes
)

// Key ключ региона в хранилище
func Key(world string, coord vec.Vec2) string {
	return fmt.Sprintf("%s/%d.%d.reg", world, coord.X, coord.Z)
}

// CoordOf регион, которому принадлежит чанк
func CoordOf(chunk vec.Vec2) vec.Vec2 {
	return chunk.FloorDiv(Size)
}

// LocalOf координаты чанка внутри его региона
func LocalOf(chunk vec.Vec2) vec.Vec2 {
	return chunk.Mod(Size)
}

// Region контейнер до Size x Size чанков, сохраняемый одним блобом
type Region struct {
	coord vec.Vec2
	key   string
	store storage.BlobStore
	codec Codec

	mu       sync.RWMutex
	data     []byte
	modified bool
}

// Open загружает регион из хранилища. Отсутствующий, повреждённый или
// нераспаковываемый блоб даёт пустой регион, ошибка только логируется.
func Open(ctx context.Context, store storage.BlobStore, codec Codec, world string, coord vec.Vec2) *Region {
	r := &Region{
		coord: coord,
		key:   Key(world, coord),
		store: store,
		codec: codec,
	}

	data, err := r.read(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logging.GetStorageLogger().Warn("Регион %s не загружен, используется пустой: %v", r.key, err)
		}
		data = make([]byte, LookupTableBytes)
	}
	r.data = data

	return r
}

func (r *Region) read(ctx context.Context) ([]byte, error) {
	raw, err := r.store.Read(ctx, r.key)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, storage.ErrNotFound
	}

	compressed, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		logging.LogCorruptBlob(r.key, err, raw)
		return nil, fmt.Errorf("ошибка декодирования base64: %w", err)
	}

	codec := r.codec
	if name := DetectCodec(compressed); name != codec.Name() {
		// Регион записан другим кодеком: читается им, при записи пересжимается текущим
		if codec, err = sharedCodec(name); err != nil {
			return nil, err
		}
		logging.GetStorageLogger().Warn("Регион %s сжат %s, используется %s", r.key, name, r.codec.Name())
	}

	data, err := codec.Decompress(compressed)
	if err != nil {
		logging.LogCorruptBlob(r.key, err, compressed)
		return nil, err
	}

	if err := validate(data); err != nil {
		logging.LogCorruptBlob(r.key, err, data)
		return nil, err
	}
	return data, nil
}

// validate проверяет согласованность таблицы поиска и размера буфера
func validate(data []byte) error {
	if len(data) < LookupTableBytes {
		return fmt.Errorf("буфер региона короче таблицы поиска: %d байт", len(data))
	}
	if (len(data)-LookupTableBytes)%chunkBytes != 0 {
		return fmt.Errorf("размер блоков региона не кратен размеру чанка: %d байт", len(data)-LookupTableBytes)
	}

	blocks := (len(data) - LookupTableBytes) / chunkBytes
	if counter := entry(data, 0); counter != blocks {
		return fmt.Errorf("счётчик блоков %d не совпадает с числом блоков %d", counter, blocks)
	}
	for slot := 1; slot <= Chunks; slot++ {
		if idx := entry(data, slot); idx > blocks {
			return fmt.Errorf("запись %d ссылается на блок %d из %d", slot, idx, blocks)
		}
	}
	return nil
}

// entry читает запись таблицы поиска (big-endian)
func entry(data []byte, slot int) int {
	pos := slot * IndexBytes
	v := 0
	for i := 0; i < IndexBytes; i++ {
		v = v<<8 | int(data[pos+i])
	}
	return v
}

// Coord координаты региона
func (r *Region) Coord() vec.Vec2 {
	return r.coord
}

// Key ключ региона в хранилище
func (r *Region) Key() string {
	return r.key
}

// ChunkIndex номер блока чанка с локальными координатами local, 0 если чанк не сохранён
func (r *Region) ChunkIndex(local vec.Vec2) int {
	if local.X < 0 || local.X >= Size || local.Z < 0 || local.Z >= Size {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return entry(r.data, slotOf(local))
}

func slotOf(local vec.Vec2) int {
	return local.X + local.Z*Size + 1
}

// Count число выделенных блоков
func (r *Region) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return entry(r.data, 0)
}

// Get возвращает копию блока с номером index
func (r *Region) Get(index int) (voxel.Packed, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index < 1 || index > entry(r.data, 0) {
		return nil, false
	}

	start := LookupTableBytes + (index-1)*chunkBytes
	out := make(voxel.Packed, chunkBytes)
	copy(out, r.data[start:start+chunkBytes])
	return out, true
}

// Load возвращает сохранённые данные чанка или false, если их нет
func (r *Region) Load(local vec.Vec2) (voxel.Grid, bool) {
	index := r.ChunkIndex(local)
	if index == 0 {
		return nil, false
	}
	packed, ok := r.Get(index)
	if !ok {
		return nil, false
	}
	return packed.Unpack(), true
}

// Save записывает данные чанка: новый чанк получает следующий номер блока,
// уже сохранённый перезаписывается на месте
func (r *Region) Save(grid voxel.Grid, local vec.Vec2) error {
	if local.X < 0 || local.X >= Size || local.Z < 0 || local.Z >= Size {
		return fmt.Errorf("локальные координаты чанка вне региона: %v", local)
	}
	if len(grid) != voxel.ChunkTotalVertices {
		return fmt.Errorf("неверный размер чанка: ожидается %d вершин, получено %d",
			voxel.ChunkTotalVertices, len(grid))
	}

	packed := grid.Pack()

	r.mu.Lock()
	defer r.mu.Unlock()

	slot := slotOf(local)
	if index := entry(r.data, slot); index != 0 {
		start := LookupTableBytes + (index-1)*chunkBytes
		copy(r.data[start:start+chunkBytes], packed)
	} else {
		// Инкремент счётчика с переносом в старший байт
		for i := IndexBytes - 1; i >= 0; i-- {
			r.data[i]++
			if r.data[i] != 0 {
				break
			}
		}
		copy(r.data[slot*IndexBytes:(slot+1)*IndexBytes], r.data[:IndexBytes])
		r.data = append(r.data, packed...)
	}

	r.modified = true
	return nil
}

// IsModified есть ли несохранённые изменения
func (r *Region) IsModified() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modified
}

// Flush сжимает буфер, кодирует в base64 и записывает в хранилище.
// Без изменений ничего не делает. При ошибке регион остаётся изменённым.
func (r *Region) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.modified {
		return nil
	}

	compressed, err := r.codec.Compress(r.data)
	if err != nil {
		return fmt.Errorf("ошибка сжатия региона %s: %w", r.key, err)
	}

	encoded := base64.StdEncoding.EncodeToString(compressed)
	if err := r.store.Write(ctx, r.key, []byte(encoded)); err != nil {
		return fmt.Errorf("ошибка записи региона %s: %w", r.key, err)
	}

	r.modified = false
	return nil
}
