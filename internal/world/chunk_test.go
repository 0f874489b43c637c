package world

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/annel0/voxel-terrain/internal/vec"
	"github.com/annel0/voxel-terrain/internal/world/voxel"
)

func TestChunkLocation(t *testing.T) {
	c := NewChunk(vec.Vec2{X: -1, Z: 33}, voxel.NewGrid(), false)

	assert.Equal(t, vec.Vec2{X: -1, Z: 1}, c.RegionCoords)
	assert.Equal(t, vec.Vec2{X: 31, Z: 1}, c.Local)
	assert.Equal(t, vec.Vec2Float{X: -8, Z: 536}, c.Center())
	assert.Equal(t, Loading, c.State())
	assert.True(t, c.NeedsRemesh(), "Новый чанк требует построения сетки")
	assert.False(t, c.NeedsPersist())
}

func TestModifyVertexClamps(t *testing.T) {
	c := NewChunk(vec.Vec2{}, voxel.NewGrid(), false)
	p := vec.Vec3{X: 3, Y: 10, Z: 4}

	assert.True(t, c.ModifyVertex(p, 300, -1, true))
	assert.Equal(t, uint8(255), c.Voxel(p).Density, "Плотность зажимается сверху")
	assert.Equal(t, voxel.Air, c.Voxel(p).Material, "Материал -1 не применяется")
	assert.True(t, c.NeedsPersist())

	assert.False(t, c.ModifyVertex(p, 10, -1, true), "Без изменений флаг не выставляется")

	assert.True(t, c.ModifyVertex(p, -1000, -1, false))
	assert.Equal(t, uint8(0), c.Voxel(p).Density, "Плотность зажимается снизу")
}

func TestModifyVertexMaterialRules(t *testing.T) {
	c := NewChunk(vec.Vec2{}, voxel.NewGrid(), false)
	p := vec.Vec3{X: 0, Y: 1, Z: 16}

	c.ModifyVertex(p, -5, int(voxel.MaterialSand), false)
	assert.Equal(t, voxel.Air, c.Voxel(p).Material, "При снятии рельефа материал не меняется")

	c.ModifyVertex(p, 5, int(voxel.MaterialSand), true)
	assert.Equal(t, voxel.MaterialSand, c.Voxel(p).Material)

	c.ModifyVertex(p, 5, voxel.NumberMaterials, true)
	assert.Equal(t, voxel.MaterialSand, c.Voxel(p).Material, "Недопустимый материал игнорируется")

	assert.False(t, c.ModifyVertex(vec.Vec3{X: 17, Y: 1, Z: 0}, 5, -1, true), "Вершина вне сетки")
}

func TestTargetsOfSharedFaces(t *testing.T) {
	inner := targetsOf(vec.Vec3{X: 5, Y: 3, Z: 7})
	assert.Equal(t, []vertexTarget{{chunk: vec.Vec2{}, local: vec.Vec3{X: 5, Y: 3, Z: 7}}}, inner)

	edge := targetsOf(vec.Vec3{X: 16, Y: 3, Z: 7})
	assert.Equal(t, []vertexTarget{
		{chunk: vec.Vec2{X: 1}, local: vec.Vec3{X: 0, Y: 3, Z: 7}},
		{chunk: vec.Vec2{X: 0}, local: vec.Vec3{X: 16, Y: 3, Z: 7}},
	}, edge)

	corner := targetsOf(vec.Vec3{X: -16, Y: 3, Z: 0})
	assert.Equal(t, []vertexTarget{
		{chunk: vec.Vec2{X: -1, Z: 0}, local: vec.Vec3{X: 0, Y: 3, Z: 0}},
		{chunk: vec.Vec2{X: -2, Z: 0}, local: vec.Vec3{X: 16, Y: 3, Z: 0}},
		{chunk: vec.Vec2{X: -1, Z: -1}, local: vec.Vec3{X: 0, Y: 3, Z: 16}},
		{chunk: vec.Vec2{X: -2, Z: -1}, local: vec.Vec3{X: 16, Y: 3, Z: 16}},
	}, corner)
}

func TestChunkStateString(t *testing.T) {
	assert.Equal(t, "hidden", Hidden.String())
	assert.Equal(t, "evicted", Evicted.String())
	assert.Equal(t, "unknown", ChunkState(42).String())
}
