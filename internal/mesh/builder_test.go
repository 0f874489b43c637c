package mesh

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-terrain/internal/world/voxel"
)

// layered сетка: плотность below до высоты split включительно, выше above
func layered(split int, below, above uint8, mat uint8) voxel.Grid {
	g := voxel.NewGrid()
	for y := 0; y < voxel.ChunkVertexHeight; y++ {
		for z := 0; z < voxel.ChunkVertexSize; z++ {
			for x := 0; x < voxel.ChunkVertexSize; x++ {
				if y <= split {
					g.Set(x, y, z, voxel.Voxel{Density: below, Material: mat})
				} else {
					g.Set(x, y, z, voxel.Voxel{Density: above, Material: voxel.Air})
				}
			}
		}
	}
	return g
}

func TestTablesConsistent(t *testing.T) {
	for mask := 0; mask < 256; mask++ {
		crossing := map[int8]bool{}
		for e, c := range edgeCorners {
			if (mask>>c[0])&1 != (mask>>c[1])&1 {
				crossing[int8(e)] = true
			}
		}

		used := map[int8]bool{}
		n := vertexCount(uint8(mask))
		require.Zero(t, n%3, "Маска %d: число вершин должно быть кратно трём", mask)
		for _, e := range triTable[mask][:n] {
			used[e] = true
		}
		require.Equal(t, crossing, used, "Маска %d: таблица должна использовать ровно пересечённые рёбра", mask)
	}
}

func TestUniformFieldsProduceNoTriangles(t *testing.T) {
	b := NewBuilder(Options{IsoLevel: 128})
	defer b.Close()

	solid := layered(voxel.MaxHeight, 255, 255, voxel.MaterialRock)
	m, err := b.Build(solid)
	require.NoError(t, err)
	assert.True(t, m.Empty(), "Полностью заполненный чанк не должен давать треугольников")

	empty := voxel.NewGrid()
	m, err = b.Build(empty)
	require.NoError(t, err)
	assert.True(t, m.Empty(), "Пустой чанк не должен давать треугольников")
}

func TestInterpolatedSurfaceHeight(t *testing.T) {
	grid := layered(5, 200, 50, voxel.MaterialRock)

	m, err := Extract(grid, 128, true)
	require.NoError(t, err)
	require.False(t, m.Empty())

	// Плоскость из двух треугольников на ячейку
	assert.Equal(t, voxel.ChunkSize*voxel.ChunkSize*2, m.TriangleCount())
	for _, v := range m.Vertices {
		require.InDelta(t, 5.48, v.Y(), 1e-4, "Вершина должна лежать на интерполированной высоте")
	}
}

func TestMidpointSurfaceHeight(t *testing.T) {
	grid := layered(5, 200, 50, voxel.MaterialRock)

	m, err := Extract(grid, 128, false)
	require.NoError(t, err)
	for _, v := range m.Vertices {
		require.Equal(t, float32(5.5), v.Y(), "Без интерполяции вершина лежит в середине ребра")
	}
}

func TestInterpolationStaysOnEdges(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	grid := voxel.NewGrid()
	for i := range grid {
		grid[i] = voxel.Voxel{Density: uint8(rng.Intn(256)), Material: uint8(rng.Intn(voxel.NumberMaterials))}
	}

	b := NewBuilder(Options{IsoLevel: 128, Interpolate: true})
	defer b.Close()

	m, err := b.Build(grid)
	require.NoError(t, err)
	require.False(t, m.Empty())

	for _, v := range m.Vertices {
		require.True(t, v.X() >= 0 && v.X() <= voxel.ChunkSize, "x вне чанка: %v", v)
		require.True(t, v.Y() >= 0 && v.Y() <= voxel.MaxHeight, "y вне чанка: %v", v)
		require.True(t, v.Z() >= 0 && v.Z() <= voxel.ChunkSize, "z вне чанка: %v", v)

		// Точка на ребре: минимум две координаты целые
		integral := 0
		for _, c := range []float32{v.X(), v.Y(), v.Z()} {
			if c == float32(int(c)) {
				integral++
			}
		}
		require.GreaterOrEqual(t, integral, 2, "Вершина %v должна лежать на ребре ячейки", v)
	}
}

func TestBuildDeterministicAcrossPoolSizes(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	grid := voxel.NewGrid()
	for i := range grid {
		grid[i] = voxel.Voxel{Density: uint8(rng.Intn(256)), Material: uint8(rng.Intn(voxel.NumberMaterials))}
	}

	single := NewBuilder(Options{IsoLevel: 100, Interpolate: true, Workers: 1, BatchSize: 7})
	defer single.Close()
	wide := NewBuilder(Options{IsoLevel: 100, Interpolate: true, Workers: 8})
	defer wide.Close()

	a, err := single.Build(grid)
	require.NoError(t, err)
	b, err := wide.Build(grid.Pack())
	require.NoError(t, err)

	assert.Equal(t, a, b, "Результат не должен зависеть от числа воркеров и представления данных")
}

func TestUVInsideMaterialCell(t *testing.T) {
	grid := layered(5, 200, 50, voxel.MaterialRock)

	m, err := Extract(grid, 128, true)
	require.NoError(t, err)
	require.Len(t, m.UVs, len(m.Vertices))

	// Камень (4): столбец 1, строка 1 атласа 3x3
	size := float32(1) / 3
	for _, uv := range m.UVs {
		require.True(t, uv.X() > size && uv.X() < 2*size, "u вне ячейки материала: %v", uv)
		flipped := 1 - uv.Y()
		require.True(t, flipped > size && flipped < 2*size, "v вне ячейки материала: %v", uv)
	}
}

func TestMaterialIsMinimumOfInsideCorners(t *testing.T) {
	grid := layered(5, 200, 50, voxel.MaterialRock)
	// Один угол внутри с меньшим номером материала
	grid.Set(0, 5, 0, voxel.Voxel{Density: 200, Material: voxel.MaterialDirt})
	// Угол снаружи с ещё меньшим номером не должен учитываться
	grid.Set(1, 6, 0, voxel.Voxel{Density: 50, Material: voxel.MaterialGrass})

	b := NewBuilder(Options{IsoLevel: 128})
	defer b.Close()

	c := b.gather(grid, 5*voxel.ChunkSize*voxel.ChunkSize)
	assert.Equal(t, voxel.MaterialDirt, c.material)
	assert.Equal(t, uint8(0xF0), c.mask, "Верхние углы снаружи, нижние внутри")
}

func TestBuildRejectsShortField(t *testing.T) {
	b := NewBuilder(Options{IsoLevel: 128})
	defer b.Close()

	_, err := b.Build(make(voxel.Grid, 10))
	assert.Error(t, err)
}

func TestWriteOBJ(t *testing.T) {
	grid := layered(5, 200, 50, voxel.MaterialSand)
	m, err := Extract(grid, 128, false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.WriteOBJ(&buf, mgl32.Vec3{16, 0, 0}))

	out := buf.String()
	assert.Equal(t, len(m.Vertices), strings.Count(out, "\nv "))
	assert.Equal(t, m.TriangleCount(), strings.Count(out, "\nf "))
	assert.Len(t, m.Indices(), len(m.Vertices))
	assert.Contains(t, out, "\nf 1/1 2/2 3/3\n", "Индексы граней OBJ начинаются с 1")
	last := len(m.Vertices)
	assert.Contains(t, out, fmt.Sprintf("f %d/%d %d/%d %d/%d\n", last-2, last-2, last-1, last-1, last, last))
}

func TestBuilderLogsToMeshComponent(t *testing.T) {
	b := NewBuilder(Options{IsoLevel: 128, Workers: 1})
	defer b.Close()

	assert.Equal(t, "mesh", b.logger.Component(), "Построитель пишет в журнал компонента mesh")

	_, err := b.Build(voxel.Grid{})
	assert.Error(t, err)
}
