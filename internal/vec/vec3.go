package vec

import "math"

// Vec3 представляет трехмерный вектор с целочисленными координатами (вершины сетки вокселей)
type Vec3 struct {
	X int
	Y int
	Z int
}

// Vec3Float представляет точку мира
type Vec3Float struct {
	X float64
	Y float64
	Z float64
}

// XZ отбрасывает высоту
func (v Vec3) XZ() Vec2 {
	return Vec2{X: v.X, Z: v.Z}
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// DistanceTo возвращает евклидово расстояние до другого вектора
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	dz := float64(v.Z - other.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// XZ отбрасывает высоту
func (v Vec3Float) XZ() Vec2Float {
	return Vec2Float{X: v.X, Z: v.Z}
}

// Floor округляет координаты вниз
func (v Vec3Float) Floor() Vec3 {
	return Vec3{
		X: int(math.Floor(v.X)),
		Y: int(math.Floor(v.Y)),
		Z: int(math.Floor(v.Z)),
	}
}
