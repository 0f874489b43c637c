package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloorDivNegative(t *testing.T) {
	assert.Equal(t, 0, FloorDiv(15, 16))
	assert.Equal(t, 1, FloorDiv(16, 16))
	assert.Equal(t, -1, FloorDiv(-1, 16), "Отрицательные координаты должны округляться вниз")
	assert.Equal(t, -1, FloorDiv(-16, 16))
	assert.Equal(t, -2, FloorDiv(-17, 16))
}

func TestModNonNegative(t *testing.T) {
	assert.Equal(t, 15, Mod(-1, 16))
	assert.Equal(t, 0, Mod(-32, 32))
	assert.Equal(t, 5, Mod(37, 32))

	assert.Equal(t, Vec2{X: 31, Z: 0}, Vec2{X: -1, Z: 32}.Mod(32))
	assert.Equal(t, Vec2{X: -1, Z: 1}, Vec2{X: -1, Z: 32}.FloorDiv(32))
}

func TestVec3FloatFloor(t *testing.T) {
	p := Vec3Float{X: -0.5, Y: 5.48, Z: 16}
	assert.Equal(t, Vec3{X: -1, Y: 5, Z: 16}, p.Floor())
	assert.Equal(t, Vec2Float{X: -0.5, Z: 16}, p.XZ())
}
