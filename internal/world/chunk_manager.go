package world

import (
	"context"
	"errors"
	"math"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/voxel-terrain/internal/logging"
	"github.com/annel0/voxel-terrain/internal/mesh"
	"github.com/annel0/voxel-terrain/internal/region"
	"github.com/annel0/voxel-terrain/internal/vec"
	"github.com/annel0/voxel-terrain/internal/world/voxel"
)

var tracer = otel.Tracer("github.com/annel0/voxel-terrain/internal/world")

// StreamingOptions параметры стриминга чанков
type StreamingOptions struct {
	// ViewDistance радиус обзора в чанках
	ViewDistance int
	// MaintainMargin доля hideDistance, на которую removeDistance дальше
	MaintainMargin float64
	// LoadsPerTick сколько ключей из очереди обрабатывается за тик
	LoadsPerTick int
	// SaveGeneratedChunks сохранять сгенерированные чанки в регион даже без изменений
	SaveGeneratedChunks bool
}

// Stats снимок состояния стриминга
type Stats struct {
	Active  int
	Hidden  int
	Queued  int
	Regions int
}

// ChunkManager стримит чанки вокруг точки обзора. Все операции выполняются
// под одним мьютексом: тик, изменения рельефа и сохранение не пересекаются.
type ChunkManager struct {
	mu sync.Mutex

	opts           StreamingOptions
	hideDistance   float64
	removeDistance float64

	chunks  map[vec.Vec2]*Chunk
	queue   []vec.Vec2
	queued  map[vec.Vec2]struct{}
	evicted map[vec.Vec2]struct{} // выгруженные на последнем тике

	generator *WorldGenerator
	regions   *RegionManager
	builder   *mesh.Builder
	metrics   *Metrics
	logger    *logging.Logger
}

// NewChunkManager создаёт менеджер чанков
func NewChunkManager(opts StreamingOptions, generator *WorldGenerator, regions *RegionManager, builder *mesh.Builder, metrics *Metrics) *ChunkManager {
	if opts.ViewDistance <= 0 {
		opts.ViewDistance = 10
	}
	if opts.MaintainMargin <= 0 {
		opts.MaintainMargin = 0.3
	}
	if opts.LoadsPerTick <= 0 {
		opts.LoadsPerTick = 1
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	hide := voxel.ChunkSide * float64(opts.ViewDistance)
	return &ChunkManager{
		opts:           opts,
		hideDistance:   hide,
		removeDistance: hide * (1 + opts.MaintainMargin),
		chunks:         make(map[vec.Vec2]*Chunk),
		queued:         make(map[vec.Vec2]struct{}),
		evicted:        make(map[vec.Vec2]struct{}),
		generator:      generator,
		regions:        regions,
		builder:        builder,
		metrics:        metrics,
		logger:         logging.GetStreamingLogger(),
	}
}

// HideDistance расстояние, после которого чанк скрывается
func (cm *ChunkManager) HideDistance() float64 { return cm.hideDistance }

// RemoveDistance расстояние, после которого чанк выгружается
func (cm *ChunkManager) RemoveDistance() float64 { return cm.removeDistance }

// ChunkOf чанк, содержащий точку мира (плоскость XZ)
func ChunkOf(p vec.Vec2Float) vec.Vec2 {
	return vec.Vec2{
		X: int(math.Floor(p.X / voxel.ChunkSide)),
		Z: int(math.Floor(p.Z / voxel.ChunkSide)),
	}
}

// Tick один шаг стриминга: скрытие и выгрузка, проверка окна регионов,
// постановка в очередь, загрузка из очереди, перестройка сеток
func (cm *ChunkManager) Tick(ctx context.Context, viewpoint vec.Vec3Float) error {
	ctx, span := tracer.Start(ctx, "ChunkManager.Tick")
	defer span.End()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	pos := viewpoint.XZ()
	if !cm.regions.initialized {
		cm.recenter(ctx, pos)
	}

	clear(cm.evicted)
	var errs []error

	if err := cm.hideAndEvict(ctx, pos); err != nil {
		errs = append(errs, err)
	}
	// Окно пересчитывается до загрузки, чтобы ключи из нового региона не отбрасывались
	if cm.regions.NeedsRecenter(pos) {
		cm.recenter(ctx, pos)
	}
	cm.enqueueVisible(pos)
	cm.loadFromQueue(ctx, pos)
	if err := cm.remeshDirty(); err != nil {
		errs = append(errs, err)
	}

	stats := cm.statsLocked()
	cm.metrics.setStats(stats)
	span.SetAttributes(
		attribute.Int("chunks.active", stats.Active),
		attribute.Int("chunks.hidden", stats.Hidden),
		attribute.Int("chunks.queued", stats.Queued),
	)

	return errors.Join(errs...)
}

func (cm *ChunkManager) hideAndEvict(ctx context.Context, pos vec.Vec2Float) error {
	var errs []error

	for key, c := range cm.chunks {
		distance := pos.DistanceTo(c.Center())

		switch {
		case distance > cm.removeDistance:
			if err := cm.persist(ctx, c); err != nil {
				errs = append(errs, err)
			}
			c.setState(Evicted)
			delete(cm.chunks, key)
			cm.evicted[key] = struct{}{}
			cm.metrics.evictions.Inc()
		case distance > cm.hideDistance:
			if c.State() == Active {
				c.setState(Hidden)
			}
		default:
			if c.State() == Hidden {
				c.setState(Active)
			}
		}
	}

	return errors.Join(errs...)
}

// persist сохраняет несохранённые данные чанка в его регион
func (cm *ChunkManager) persist(ctx context.Context, c *Chunk) error {
	if !c.NeedsPersist() {
		return nil
	}
	if r := cm.regions.Get(c.RegionCoords); r != nil {
		_, err := c.SaveToRegion(r)
		return err
	}
	return cm.regions.PersistOutside(ctx, c)
}

func (cm *ChunkManager) enqueueVisible(pos vec.Vec2Float) {
	center := ChunkOf(pos)
	r := cm.opts.ViewDistance + 1

	for x := center.X - r; x <= center.X+r; x++ {
		for z := center.Z - r; z <= center.Z+r; z++ {
			key := vec.Vec2{X: x, Z: z}
			if pos.DistanceTo(chunkCenter(key)) > cm.hideDistance {
				continue
			}
			if _, resident := cm.chunks[key]; resident {
				continue
			}
			if _, ok := cm.queued[key]; ok {
				continue
			}
			cm.queue = append(cm.queue, key)
			cm.queued[key] = struct{}{}
		}
	}
}

func (cm *ChunkManager) loadFromQueue(ctx context.Context, pos vec.Vec2Float) {
	for loaded := 0; loaded < cm.opts.LoadsPerTick && len(cm.queue) > 0; {
		key := cm.queue[0]
		cm.queue = cm.queue[1:]
		delete(cm.queued, key)

		if _, resident := cm.chunks[key]; resident {
			continue
		}

		// Точка обзора ушла дальше или регион вне окна: ключ отбрасывается,
		// при возвращении он снова попадёт в очередь
		r := cm.regions.Get(region.CoordOf(key))
		if r == nil || pos.DistanceTo(chunkCenter(key)) > cm.hideDistance {
			cm.metrics.droppedLoads.Inc()
			continue
		}

		if err := cm.loadChunk(ctx, key, r); err != nil {
			cm.logger.Error("Ошибка загрузки чанка %v: %v", key, err)
		}
		loaded++
	}
}

func (cm *ChunkManager) loadChunk(ctx context.Context, key vec.Vec2, r *region.Region) error {
	_, span := tracer.Start(ctx, "ChunkManager.loadChunk", trace.WithAttributes(
		attribute.Int("chunk.x", key.X),
		attribute.Int("chunk.z", key.Z),
	))
	defer span.End()

	data, fromRegion := r.Load(region.LocalOf(key))
	source := sourceRegion
	if !fromRegion {
		data = cm.generator.GenerateChunkData(key)
		source = sourceGenerated
	}
	span.SetAttributes(attribute.String("chunk.source", source))

	c := NewChunk(key, data, !fromRegion && cm.opts.SaveGeneratedChunks)
	if err := c.Remesh(cm.builder, cm.metrics); err != nil {
		span.RecordError(err)
		return err
	}
	c.setState(Active)

	cm.chunks[key] = c
	cm.metrics.loads.WithLabelValues(source).Inc()
	cm.logger.Trace("Чанк %v загружен (%s), треугольников: %d", key, source, c.Mesh().TriangleCount())
	return nil
}

func (cm *ChunkManager) remeshDirty() error {
	var errs []error
	for _, c := range cm.chunks {
		if !c.NeedsRemesh() {
			continue
		}
		if err := c.Remesh(cm.builder, cm.metrics); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (cm *ChunkManager) recenter(ctx context.Context, pos vec.Vec2Float) {
	cm.regions.Recenter(ctx, pos, func(coord vec.Vec2, r *region.Region) {
		for _, c := range cm.chunks {
			if c.RegionCoords != coord {
				continue
			}
			if _, err := c.SaveToRegion(r); err != nil {
				cm.logger.Error("Ошибка сохранения чанка %v в регион: %v", c.Coords, err)
			}
		}
	})
}

// vertexTarget вершина в конкретном чанке
type vertexTarget struct {
	chunk vec.Vec2
	local vec.Vec3
}

// targetsOf все копии мировой вершины: в чанке-владельце и на общих
// гранях соседних чанков с меньшими координатами
func targetsOf(world vec.Vec3) []vertexTarget {
	key := vec.Vec2{X: vec.FloorDiv(world.X, voxel.ChunkSize), Z: vec.FloorDiv(world.Z, voxel.ChunkSize)}
	local := vec.Vec3{X: world.X - key.X*voxel.ChunkSize, Y: world.Y, Z: world.Z - key.Z*voxel.ChunkSize}

	out := []vertexTarget{{chunk: key, local: local}}
	if local.X == 0 {
		out = append(out, vertexTarget{
			chunk: vec.Vec2{X: key.X - 1, Z: key.Z},
			local: vec.Vec3{X: voxel.ChunkSize, Y: local.Y, Z: local.Z},
		})
	}
	if local.Z == 0 {
		out = append(out, vertexTarget{
			chunk: vec.Vec2{X: key.X, Z: key.Z - 1},
			local: vec.Vec3{X: local.X, Y: local.Y, Z: voxel.ChunkSize},
		})
	}
	if local.X == 0 && local.Z == 0 {
		out = append(out, vertexTarget{
			chunk: vec.Vec2{X: key.X - 1, Z: key.Z - 1},
			local: vec.Vec3{X: voxel.ChunkSize, Y: local.Y, Z: voxel.ChunkSize},
		})
	}
	return out
}

// ModifyTerrain изменяет плотность вершин в сфере radius вокруг point.
// Вершина на расстоянии d получает int(delta*(1-d/radius)). material
// (0..NumberMaterials-1) назначается вершинам при положительном delta, -1 не меняет материал.
// Изменения незагруженных чанков отбрасываются. Возвращает число изменённых вершин.
func (cm *ChunkManager) ModifyTerrain(point vec.Vec3Float, radius, delta float64, material int) int {
	if radius <= 0 {
		return 0
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	p := vec.Vec3Float{X: point.X / voxel.VoxelSide, Y: point.Y / voxel.VoxelSide, Z: point.Z / voxel.VoxelSide}
	origin := p.Floor()
	r := int(math.Ceil(radius))
	adding := delta > 0
	changed := 0

	for y := origin.Y - r; y <= origin.Y+r+1; y++ {
		if y < 1 || y > voxel.MaxHeight-1 {
			continue
		}
		for z := origin.Z - r; z <= origin.Z+r+1; z++ {
			for x := origin.X - r; x <= origin.X+r+1; x++ {
				dx, dy, dz := float64(x)-p.X, float64(y)-p.Y, float64(z)-p.Z
				d := math.Sqrt(dx*dx + dy*dy + dz*dz)
				if d > radius {
					continue
				}

				mod := int(delta * (1 - d/radius))
				for _, t := range targetsOf(vec.Vec3{X: x, Y: y, Z: z}) {
					c, ok := cm.chunks[t.chunk]
					if !ok {
						cm.metrics.droppedEdits.Inc()
						continue
					}
					if c.ModifyVertex(t.local, mod, material, adding) {
						changed++
					}
				}
			}
		}
	}

	return changed
}

// materialProbe порядок проверки соседей в GetMaterialAt
var materialProbe = []vec.Vec3{
	{X: 0, Y: 0, Z: 0},
	{X: 0, Y: -1, Z: 0},
	{X: 1, Y: 0, Z: 0},
	{X: -1, Y: 0, Z: 0},
	{X: 0, Y: 0, Z: 1},
	{X: 0, Y: 0, Z: -1},
	{X: 0, Y: 1, Z: 0},
}

// GetMaterialAt материал вершины в точке или первого непустого соседа,
// иначе воздух
func (cm *ChunkManager) GetMaterialAt(point vec.Vec3Float) uint8 {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	p := vec.Vec3Float{X: point.X / voxel.VoxelSide, Y: point.Y / voxel.VoxelSide, Z: point.Z / voxel.VoxelSide}
	origin := p.Floor()

	for _, off := range materialProbe {
		t := targetsOf(origin.Add(off))[0]
		if t.local.Y < 0 || t.local.Y > voxel.MaxHeight {
			continue
		}
		c, ok := cm.chunks[t.chunk]
		if !ok {
			continue
		}
		if m := c.Voxel(t.local).Material; m != voxel.Air {
			return m
		}
	}
	return voxel.Air
}

// Chunk возвращает загруженный чанк
func (cm *ChunkManager) Chunk(key vec.Vec2) (*Chunk, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	c, ok := cm.chunks[key]
	return c, ok
}

// StateOf состояние чанка. Evicted возвращается до следующего тика после выгрузки.
func (cm *ChunkManager) StateOf(key vec.Vec2) ChunkState {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if c, ok := cm.chunks[key]; ok {
		return c.State()
	}
	if _, ok := cm.queued[key]; ok {
		return Loading
	}
	if _, ok := cm.evicted[key]; ok {
		return Evicted
	}
	return Unloaded
}

// Stats снимок состояния стриминга
func (cm *ChunkManager) Stats() Stats {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.statsLocked()
}

func (cm *ChunkManager) statsLocked() Stats {
	s := Stats{Queued: len(cm.queue), Regions: cm.regions.Count()}
	for _, c := range cm.chunks {
		switch c.State() {
		case Active:
			s.Active++
		case Hidden:
			s.Hidden++
		}
	}
	return s
}

// SaveAll сохраняет все чанки в их регионы и записывает регионы
func (cm *ChunkManager) SaveAll(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "ChunkManager.SaveAll")
	defer span.End()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	var errs []error
	for _, c := range cm.chunks {
		if err := cm.persist(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	if err := cm.regions.FlushAll(ctx); err != nil {
		errs = append(errs, err)
	}

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		cm.logger.Error("Ошибка сохранения мира: %v", err)
	} else {
		cm.logger.Info("💾 Мир сохранён: %s", cm.regions.GetStats())
	}
	return err
}
