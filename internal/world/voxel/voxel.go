package voxel

import "github.com/annel0/voxel-terrain/internal/vec"

// Размеры мира. Все сетки вершин чанка на одну вершину больше числа ячеек,
// соседние чанки делят общую плоскость вершин.
const (
	ChunkSize = 16
	MaxHeight = 80
	VoxelSide = 1.0

	ChunkVertexSize    = ChunkSize + 1
	ChunkVertexHeight  = MaxHeight + 1
	ChunkVertexArea    = ChunkVertexSize * ChunkVertexSize
	ChunkTotalVertices = ChunkVertexArea * ChunkVertexHeight
	ChunkCells         = ChunkSize * ChunkSize * MaxHeight

	// ChunkBytes размер блока чанка в файле региона: плотность и материал на вершину
	ChunkBytes = ChunkTotalVertices * 2

	// ChunkSide ширина чанка в единицах мира
	ChunkSide = ChunkSize * VoxelSide
)

// Материалы. Атлас текстур разбит на сетку MaterialsPerRow x MaterialsPerRow.
const (
	NumberMaterials = 9
	MaterialsPerRow = 3

	// Air отмечает пустую вершину
	Air uint8 = NumberMaterials

	MaterialGrass uint8 = 0
	MaterialDirt  uint8 = 1
	MaterialSnow  uint8 = 3
	MaterialRock  uint8 = 4
	MaterialIce   uint8 = 5
	MaterialSand  uint8 = 6
)

// Voxel вершина сетки. Density < isoLevel означает "снаружи".
type Voxel struct {
	Density  uint8
	Material uint8
}

// Field абстракция над хранилищем вершин, которую читает построитель сетки
type Field interface {
	Len() int
	Density(i int) uint8
	Material(i int) uint8
}

// Index переводит локальные координаты вершины в индекс массива
func Index(x, y, z int) int {
	return x + z*ChunkVertexSize + y*ChunkVertexArea
}

// IndexOf то же, что Index, для вектора
func IndexOf(p vec.Vec3) int {
	return Index(p.X, p.Y, p.Z)
}

// InBounds проверяет, что вершина лежит внутри сетки чанка
func InBounds(p vec.Vec3) bool {
	return p.X >= 0 && p.X < ChunkVertexSize &&
		p.Z >= 0 && p.Z < ChunkVertexSize &&
		p.Y >= 0 && p.Y < ChunkVertexHeight
}

// CellPosition раскладывает индекс ячейки в координаты (x быстрее всех, затем z, затем y)
func CellPosition(index int) vec.Vec3 {
	x := index % ChunkSize
	rest := index / ChunkSize
	return vec.Vec3{X: x, Y: rest / ChunkSize, Z: rest % ChunkSize}
}

// Grid массив вершин чанка
type Grid []Voxel

// NewGrid создаёт пустую (воздух) сетку чанка
func NewGrid() Grid {
	g := make(Grid, ChunkTotalVertices)
	for i := range g {
		g[i].Material = Air
	}
	return g
}

func (g Grid) Len() int             { return len(g) }
func (g Grid) Density(i int) uint8  { return g[i].Density }
func (g Grid) Material(i int) uint8 { return g[i].Material }

// At возвращает вершину по локальным координатам
func (g Grid) At(x, y, z int) Voxel {
	return g[Index(x, y, z)]
}

// Set записывает вершину по локальным координатам
func (g Grid) Set(x, y, z int, v Voxel) {
	g[Index(x, y, z)] = v
}

// Clone возвращает независимую копию
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	copy(out, g)
	return out
}

// Pack сериализует сетку в чередующийся формат плотность/материал
func (g Grid) Pack() Packed {
	out := make(Packed, len(g)*2)
	for i, v := range g {
		out[i*2] = v.Density
		out[i*2+1] = v.Material
	}
	return out
}

// Packed байтовое представление сетки: [density0, material0, density1, ...]
type Packed []byte

func (p Packed) Len() int             { return len(p) / 2 }
func (p Packed) Density(i int) uint8  { return p[i*2] }
func (p Packed) Material(i int) uint8 { return p[i*2+1] }

// Unpack возвращает сетку. Хвост нечётной длины игнорируется.
func (p Packed) Unpack() Grid {
	out := make(Grid, p.Len())
	for i := range out {
		out[i] = Voxel{Density: p[i*2], Material: p[i*2+1]}
	}
	return out
}
