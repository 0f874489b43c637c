package world

import (
	"sync"
	"time"

	"github.com/annel0/voxel-terrain/internal/mesh"
	"github.com/annel0/voxel-terrain/internal/region"
	"github.com/annel0/voxel-terrain/internal/vec"
	"github.com/annel0/voxel-terrain/internal/world/voxel"
)

// ChunkState состояние чанка в стриминге
type ChunkState int

const (
	Unloaded ChunkState = iota
	Loading
	Active
	Hidden
	Evicted
)

func (s ChunkState) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Active:
		return "active"
	case Hidden:
		return "hidden"
	case Evicted:
		return "evicted"
	}
	return "unknown"
}

// Chunk участок мира 16x80x16 ячеек. Владеет своим массивом вершин.
// Регион, в котором хранится чанк, находится через RegionManager по RegionCoords.
type Chunk struct {
	Coords       vec.Vec2 // Координаты чанка в мире
	RegionCoords vec.Vec2 // Регион, хранящий чанк
	Local        vec.Vec2 // Координаты внутри региона

	data  voxel.Grid
	mesh  *mesh.Mesh
	state ChunkState

	// needsRemesh сетка устарела, needsPersist данные не сохранены в регион.
	// Любое изменение вершины выставляет оба флага.
	needsRemesh  bool
	needsPersist bool

	Mu sync.RWMutex
}

// NewChunk создаёт чанк с готовыми данными. persist выставляет флаг
// несохранённых изменений сразу (для сохранения сгенерированных чанков).
func NewChunk(coords vec.Vec2, data voxel.Grid, persist bool) *Chunk {
	return &Chunk{
		Coords:       coords,
		RegionCoords: region.CoordOf(coords),
		Local:        region.LocalOf(coords),
		data:         data,
		state:        Loading,
		needsRemesh:  true,
		needsPersist: persist,
	}
}

// Center центр чанка в координатах мира (плоскость XZ)
func (c *Chunk) Center() vec.Vec2Float {
	return chunkCenter(c.Coords)
}

func chunkCenter(key vec.Vec2) vec.Vec2Float {
	half := voxel.ChunkSide / 2
	return vec.Vec2Float{
		X: float64(key.X)*voxel.ChunkSide + half,
		Z: float64(key.Z)*voxel.ChunkSide + half,
	}
}

// State текущее состояние чанка
func (c *Chunk) State() ChunkState {
	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return c.state
}

func (c *Chunk) setState(s ChunkState) {
	c.Mu.Lock()
	c.state = s
	c.Mu.Unlock()
}

// Mesh текущая сетка чанка (может быть nil до первого построения)
func (c *Chunk) Mesh() *mesh.Mesh {
	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return c.mesh
}

// Voxel вершина по локальным координатам
func (c *Chunk) Voxel(p vec.Vec3) voxel.Voxel {
	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return c.data[voxel.IndexOf(p)]
}

// Snapshot копия массива вершин
func (c *Chunk) Snapshot() voxel.Grid {
	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return c.data.Clone()
}

// NeedsRemesh нужна ли перестройка сетки
func (c *Chunk) NeedsRemesh() bool {
	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return c.needsRemesh
}

// NeedsPersist есть ли несохранённые изменения
func (c *Chunk) NeedsPersist() bool {
	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return c.needsPersist
}

// ModifyVertex меняет плотность вершины на delta с зажатием в [0,255].
// material применяется при положительном delta кисти (addTerrain), -1 не меняет материал.
// Возвращает true, если вершина изменилась.
func (c *Chunk) ModifyVertex(p vec.Vec3, delta int, material int, adding bool) bool {
	if !voxel.InBounds(p) {
		return false
	}

	c.Mu.Lock()
	defer c.Mu.Unlock()

	i := voxel.IndexOf(p)
	v := c.data[i]
	changed := false

	density := clampInt(int(v.Density)+delta, 0, 255)
	if uint8(density) != v.Density {
		c.data[i].Density = uint8(density)
		changed = true
	}
	if adding && material >= 0 && material < voxel.NumberMaterials && uint8(material) != v.Material {
		c.data[i].Material = uint8(material)
		changed = true
	}

	if changed {
		c.needsRemesh = true
		c.needsPersist = true
	}
	return changed
}

// Remesh перестраивает сетку. Данные читаются под блокировкой чанка,
// поэтому изменение и построение сетки никогда не пересекаются.
func (c *Chunk) Remesh(b *mesh.Builder, m *Metrics) error {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	start := time.Now()
	built, err := b.Build(c.data)
	if err != nil {
		return err
	}
	if m != nil {
		m.observeMesh(start)
	}

	c.mesh = built
	c.needsRemesh = false
	return nil
}

// SaveToRegion записывает данные чанка в регион, если есть несохранённые изменения.
// Возвращает true, если запись была.
func (c *Chunk) SaveToRegion(r *region.Region) (bool, error) {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	if !c.needsPersist {
		return false, nil
	}
	if err := r.Save(c.data, c.Local); err != nil {
		return false, err
	}
	c.needsPersist = false
	return true, nil
}
