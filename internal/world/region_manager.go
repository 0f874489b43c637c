package world

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/annel0/voxel-terrain/internal/logging"
	"github.com/annel0/voxel-terrain/internal/region"
	"github.com/annel0/voxel-terrain/internal/storage"
	"github.com/annel0/voxel-terrain/internal/vec"
	"github.com/annel0/voxel-terrain/internal/world/voxel"
)

const (
	// RegionSide ширина региона в единицах мира
	RegionSide = region.Size * voxel.ChunkSide
	// recenterDistance смещение точки обзора от якоря окна, после которого окно пересчитывается
	recenterDistance = RegionSide * 0.9
	windowRadius     = 1 // окно 3x3
)

// RegionManager держит окно 3x3 регионов вокруг региона точки обзора.
// Не потокобезопасен: все вызовы идут из ChunkManager под его мьютексом.
type RegionManager struct {
	world string
	store storage.BlobStore
	codec region.Codec

	regions map[vec.Vec2]*region.Region
	// pending регионы вне окна, запись которых не удалась; повторяются при следующей записи
	pending map[vec.Vec2]*region.Region

	anchor      vec.Vec2Float
	center      vec.Vec2
	initialized bool

	metrics *Metrics
	logger  *logging.Logger
	stats   RegionManagerStats
}

// RegionManagerStats статистика менеджера регионов
type RegionManagerStats struct {
	opened   atomic.Int64
	flushed  atomic.Int64
	failures atomic.Int64
}

// NewRegionManager создаёт менеджер регионов мира world
func NewRegionManager(world string, store storage.BlobStore, codec region.Codec, metrics *Metrics) *RegionManager {
	return &RegionManager{
		world:   world,
		store:   store,
		codec:   codec,
		regions: make(map[vec.Vec2]*region.Region),
		pending: make(map[vec.Vec2]*region.Region),
		metrics: metrics,
		logger:  logging.GetStorageLogger(),
	}
}

// RegionOf регион, содержащий точку мира
func RegionOf(p vec.Vec2Float) vec.Vec2 {
	return vec.Vec2{
		X: int(math.Floor(p.X / RegionSide)),
		Z: int(math.Floor(p.Z / RegionSide)),
	}
}

// Get возвращает регион окна или nil
func (rm *RegionManager) Get(coord vec.Vec2) *region.Region {
	return rm.regions[coord]
}

// Count число регионов в окне
func (rm *RegionManager) Count() int {
	return len(rm.regions)
}

// Window координаты регионов окна
func (rm *RegionManager) Window() []vec.Vec2 {
	out := make([]vec.Vec2, 0, len(rm.regions))
	for k := range rm.regions {
		out = append(out, k)
	}
	return out
}

// open возвращает регион из списка ожидающих записи или загружает его из хранилища
func (rm *RegionManager) open(ctx context.Context, coord vec.Vec2) *region.Region {
	if r, ok := rm.pending[coord]; ok {
		delete(rm.pending, coord)
		return r
	}
	rm.stats.opened.Add(1)
	return region.Open(ctx, rm.store, rm.codec, rm.world, coord)
}

// Center регион в центре окна
func (rm *RegionManager) Center() vec.Vec2 {
	return rm.center
}

// NeedsRecenter нужен ли пересчёт окна: точка обзора перешла в другой регион
// или сместилась достаточно далеко от якоря окна
func (rm *RegionManager) NeedsRecenter(viewpoint vec.Vec2Float) bool {
	if !rm.initialized {
		return true
	}
	if RegionOf(viewpoint) != rm.center {
		return true
	}
	return math.Abs(viewpoint.X-rm.anchor.X) > recenterDistance ||
		math.Abs(viewpoint.Z-rm.anchor.Z) > recenterDistance
}

// Recenter строит окно вокруг региона точки обзора. Перед записью уходящего
// региона вызывается beforeLeave, чтобы чанки успели сохранить в него данные.
func (rm *RegionManager) Recenter(ctx context.Context, viewpoint vec.Vec2Float, beforeLeave func(coord vec.Vec2, r *region.Region)) {
	center := RegionOf(viewpoint)
	rm.anchor = viewpoint
	rm.center = center
	rm.initialized = true

	window := make(map[vec.Vec2]*region.Region, (2*windowRadius+1)*(2*windowRadius+1))
	for x := center.X - windowRadius; x <= center.X+windowRadius; x++ {
		for z := center.Z - windowRadius; z <= center.Z+windowRadius; z++ {
			key := vec.Vec2{X: x, Z: z}
			if r, ok := rm.regions[key]; ok {
				window[key] = r
				delete(rm.regions, key)
			} else {
				window[key] = rm.open(ctx, key)
			}
		}
	}

	leaving := rm.regions
	rm.regions = window
	for key, r := range leaving {
		if beforeLeave != nil {
			beforeLeave(key, r)
		}
		rm.flush(ctx, r)
	}

	rm.logger.Debug("Окно регионов вокруг %v", center)
}

// flush записывает регион; неудачно записанный регион вне окна остаётся в pending
func (rm *RegionManager) flush(ctx context.Context, r *region.Region) error {
	if !r.IsModified() {
		return nil
	}
	if err := r.Flush(ctx); err != nil {
		rm.stats.failures.Add(1)
		if rm.metrics != nil {
			rm.metrics.flushFailures.Inc()
		}
		rm.logger.Error("Ошибка записи региона %s: %v", r.Key(), err)
		if _, resident := rm.regions[r.Coord()]; !resident {
			rm.pending[r.Coord()] = r
		}
		return err
	}
	rm.stats.flushed.Add(1)
	return nil
}

// PersistOutside сохраняет данные чанка, чей регион уже покинул окно:
// регион открывается временно, записывается и закрывается
func (rm *RegionManager) PersistOutside(ctx context.Context, c *Chunk) error {
	r := rm.open(ctx, c.RegionCoords)
	if _, err := c.SaveToRegion(r); err != nil {
		return fmt.Errorf("ошибка сохранения чанка %v: %w", c.Coords, err)
	}
	return rm.flush(ctx, r)
}

// FlushAll записывает все регионы окна и повторяет ожидающие
func (rm *RegionManager) FlushAll(ctx context.Context) error {
	var errs []error
	for _, r := range rm.regions {
		if err := rm.flush(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	retry := rm.pending
	rm.pending = make(map[vec.Vec2]*region.Region)
	for _, r := range retry {
		if err := rm.flush(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetStats возвращает статистику менеджера
func (rm *RegionManager) GetStats() string {
	return fmt.Sprintf("RegionManager: %d regions, %d pending, %d opened, %d flushed, %d failures",
		len(rm.regions), len(rm.pending), rm.stats.opened.Load(), rm.stats.flushed.Load(), rm.stats.failures.Load())
}
