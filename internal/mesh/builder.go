package mesh

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/voxel-terrain/internal/logging"
	"github.com/annel0/voxel-terrain/internal/world/voxel"
)

const (
	// uvInset отступ от края ячейки атласа, чтобы не захватывать пиксели соседнего материала
	uvInset          = 0.01
	materialCellSize = float32(voxel.MaterialsPerRow) / float32(voxel.NumberMaterials)

	defaultBatch = 512
)

// Options параметры построителя сетки
type Options struct {
	IsoLevel    uint8
	Interpolate bool
	// Workers размер пула, 0 = runtime.NumCPU()
	Workers int
	// BatchSize число элементов в одной задаче пула
	BatchSize int
}

// Builder строит сетку поверхности чанка методом marching cubes.
// Три этапа выполняются параллельно на пуле, между этапами жёсткий барьер.
type Builder struct {
	iso         uint8
	interpolate bool
	batch       int
	pool        pond.Pool
	closeOnce   sync.Once
	logger      *logging.Logger
}

type corner struct {
	pos     mgl32.Vec3
	density uint8
}

// cube данные ячейки, пережившей первый этап
type cube struct {
	mask     uint8
	material uint8
	corners  [8]corner
}

// NewBuilder создаёт построитель с собственным пулом воркеров
func NewBuilder(opts Options) *Builder {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = defaultBatch
	}

	return &Builder{
		iso:         opts.IsoLevel,
		interpolate: opts.Interpolate,
		batch:       batch,
		pool:        pond.NewPool(workers),
		logger:      logging.GetMeshLogger(),
	}
}

// Close останавливает пул, дожидаясь текущих задач. Повторный вызов ничего не делает.
func (b *Builder) Close() {
	b.closeOnce.Do(b.pool.StopAndWait)
}

// IsoLevel порог изоповерхности
func (b *Builder) IsoLevel() uint8 {
	return b.iso
}

// Extract строит сетку одноразовым построителем
func Extract(field voxel.Field, isoLevel uint8, interpolate bool) (*Mesh, error) {
	b := NewBuilder(Options{IsoLevel: isoLevel, Interpolate: interpolate})
	defer b.Close()
	return b.Build(field)
}

// Build строит сетку для массива вершин чанка
func (b *Builder) Build(field voxel.Field) (*Mesh, error) {
	if field.Len() < voxel.ChunkTotalVertices {
		err := fmt.Errorf("неверный размер чанка: ожидается %d вершин, получено %d",
			voxel.ChunkTotalVertices, field.Len())
		b.logger.Error("Ошибка построения сетки: %v", err)
		return nil, err
	}

	// Этап 1: классификация ячеек, остаются только пересекающие поверхность
	batches := (voxel.ChunkCells + b.batch - 1) / b.batch
	found := make([][]int, batches)
	b.parallel(voxel.ChunkCells, func(batch, start, end int) {
		var local []int
		for cell := start; cell < end; cell++ {
			if m := b.mask(field, cell); m != 0 && m != 255 {
				local = append(local, cell)
			}
		}
		found[batch] = local
	})

	var cells []int
	for _, part := range found {
		cells = append(cells, part...)
	}
	if len(cells) == 0 {
		return &Mesh{}, nil
	}

	// Этап 2: углы, плотности и материал каждой ячейки
	cubes := make([]cube, len(cells))
	b.parallel(len(cells), func(_, start, end int) {
		for i := start; i < end; i++ {
			cubes[i] = b.gather(field, cells[i])
		}
	})

	// Уплотнение: смещение вывода каждой ячейки в общем потоке вершин
	offsets := make([]int, len(cubes)+1)
	for i, c := range cubes {
		offsets[i+1] = offsets[i] + vertexCount(c.mask)
	}
	total := offsets[len(cubes)]

	// Этап 3: треугольники
	out := &Mesh{
		Vertices: make([]mgl32.Vec3, total),
		UVs:      make([]mgl32.Vec2, total),
	}
	b.parallel(len(cubes), func(_, start, end int) {
		for i := start; i < end; i++ {
			b.triangulate(cubes[i], out.Vertices[offsets[i]:offsets[i+1]], out.UVs[offsets[i]:offsets[i+1]])
		}
	})

	b.logger.Trace("Сетка построена: ячеек на поверхности %d, треугольников %d", len(cubes), out.TriangleCount())
	return out, nil
}

// parallel делит [0,n) на пакеты и ждёт завершения всех
func (b *Builder) parallel(n int, fn func(batch, start, end int)) {
	var wg sync.WaitGroup

	for batch, start := 0, 0; start < n; batch, start = batch+1, start+b.batch {
		end := start + b.batch
		if end > n {
			end = n
		}

		wg.Add(1)
		b.pool.Submit(func() {
			defer wg.Done()
			fn(batch, start, end)
		})
	}

	wg.Wait()
}

func (b *Builder) mask(field voxel.Field, cell int) uint8 {
	p := voxel.CellPosition(cell)
	var m uint8
	for i, off := range cornerOffsets {
		if field.Density(voxel.Index(p.X+off[0], p.Y+off[1], p.Z+off[2])) < b.iso {
			m |= 1 << i
		}
	}
	return m
}

func (b *Builder) gather(field voxel.Field, cell int) cube {
	p := voxel.CellPosition(cell)
	c := cube{material: voxel.Air}

	for i, off := range cornerOffsets {
		x, y, z := p.X+off[0], p.Y+off[1], p.Z+off[2]
		idx := voxel.Index(x, y, z)
		d := field.Density(idx)

		if d < b.iso {
			c.mask |= 1 << i
		} else if m := field.Material(idx); m < c.material {
			c.material = m
		}

		c.corners[i] = corner{
			pos:     mgl32.Vec3{float32(x), float32(y), float32(z)}.Mul(voxel.VoxelSide),
			density: d,
		}
	}

	return c
}

func vertexCount(mask uint8) int {
	row := &triTable[mask]
	n := 0
	for n < len(row) && row[n] != -1 {
		n++
	}
	return n
}

func (b *Builder) triangulate(c cube, vertices []mgl32.Vec3, uvs []mgl32.Vec2) {
	row := &triTable[c.mask]
	base := atlasCell(c.material)

	for j := range vertices {
		e := edgeCorners[row[j]]
		vertices[j] = b.edgePoint(c.corners[e[0]], c.corners[e[1]])

		uv := base
		switch j % 3 {
		case 0:
			uv = uv.Add(mgl32.Vec2{uvInset, uvInset})
		case 1:
			uv = uv.Add(mgl32.Vec2{materialCellSize - uvInset, uvInset})
		case 2:
			uv = uv.Add(mgl32.Vec2{uvInset, materialCellSize - uvInset})
		}
		uvs[j] = mgl32.Vec2{uv.X(), 1 - uv.Y()}
	}
}

// edgePoint точка пересечения поверхности с ребром
func (b *Builder) edgePoint(c0, c1 corner) mgl32.Vec3 {
	if !b.interpolate || c0.density == c1.density {
		return c0.pos.Add(c1.pos).Mul(0.5)
	}

	w := (float32(b.iso) - float32(c0.density)) / (float32(c1.density) - float32(c0.density))
	w = mgl32.Clamp(w, 0, 1)
	return c0.pos.Add(c1.pos.Sub(c0.pos).Mul(w))
}

// atlasCell левый верхний угол ячейки материала в атласе (до переворота V)
func atlasCell(material uint8) mgl32.Vec2 {
	id := int(material)
	if id >= voxel.NumberMaterials {
		id = voxel.NumberMaterials - 1
	}
	col := id % voxel.MaterialsPerRow
	row := id / voxel.MaterialsPerRow
	return mgl32.Vec2{float32(col), float32(row)}.Mul(materialCellSize)
}
