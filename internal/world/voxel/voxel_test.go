package voxel

import (
	"testing"

	"github.com/annel0/voxel-terrain/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimensions(t *testing.T) {
	assert.Equal(t, 17, ChunkVertexSize)
	assert.Equal(t, 81, ChunkVertexHeight)
	assert.Equal(t, 289, ChunkVertexArea)
	assert.Equal(t, 23409, ChunkTotalVertices)
	assert.Equal(t, 20480, ChunkCells)
	assert.Equal(t, 46818, ChunkBytes)
}

func TestIndexLayout(t *testing.T) {
	assert.Equal(t, 0, Index(0, 0, 0))
	assert.Equal(t, 1, Index(1, 0, 0))
	assert.Equal(t, ChunkVertexSize, Index(0, 0, 1), "z идёт после x")
	assert.Equal(t, ChunkVertexArea, Index(0, 1, 0), "y идёт последним")
	assert.Equal(t, ChunkTotalVertices-1, Index(16, 80, 16))
}

func TestCellPositionCoversAllCells(t *testing.T) {
	seen := make(map[vec.Vec3]bool, ChunkCells)
	for i := 0; i < ChunkCells; i++ {
		p := CellPosition(i)
		require.True(t, p.X >= 0 && p.X < ChunkSize && p.Z >= 0 && p.Z < ChunkSize && p.Y >= 0 && p.Y < MaxHeight,
			"Ячейка %d вне чанка: %v", i, p)
		seen[p] = true
	}
	assert.Len(t, seen, ChunkCells, "Каждая ячейка должна встречаться ровно один раз")
	assert.Equal(t, vec.Vec3{X: 1, Y: 0, Z: 0}, CellPosition(1))
	assert.Equal(t, vec.Vec3{X: 0, Y: 0, Z: 1}, CellPosition(ChunkSize))
	assert.Equal(t, vec.Vec3{X: 0, Y: 1, Z: 0}, CellPosition(ChunkSize*ChunkSize))
}

func TestPackUnpack(t *testing.T) {
	g := NewGrid()
	g.Set(3, 10, 7, Voxel{Density: 200, Material: MaterialRock})
	g.Set(16, 80, 16, Voxel{Density: 1, Material: MaterialIce})

	p := g.Pack()
	require.Len(t, p, ChunkBytes)

	idx := Index(3, 10, 7)
	assert.Equal(t, uint8(200), p.Density(idx))
	assert.Equal(t, MaterialRock, p.Material(idx))
	assert.Equal(t, Air, p.Material(0), "Пустая сетка заполнена воздухом")

	assert.Equal(t, g, p.Unpack())
}

func TestInBounds(t *testing.T) {
	assert.True(t, InBounds(vec.Vec3{X: 16, Y: 80, Z: 16}))
	assert.False(t, InBounds(vec.Vec3{X: 17, Y: 0, Z: 0}))
	assert.False(t, InBounds(vec.Vec3{X: 0, Y: -1, Z: 0}))
}
