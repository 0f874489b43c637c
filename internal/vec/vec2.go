package vec

import "math"

// Vec2 представляет целочисленные координаты на плоскости XZ (ключи чанков и регионов)
type Vec2 struct {
	X, Z int
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Z: v.Z + other.Z}
}

// Sub вычитает вектор
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Z: v.Z - other.Z}
}

// Mul умножает обе координаты на скаляр
func (v Vec2) Mul(k int) Vec2 {
	return Vec2{X: v.X * k, Z: v.Z * k}
}

// FloorDiv делит обе координаты с округлением к минус бесконечности
func (v Vec2) FloorDiv(size int) Vec2 {
	return Vec2{X: FloorDiv(v.X, size), Z: FloorDiv(v.Z, size)}
}

// Mod возвращает неотрицательный остаток по обеим координатам
func (v Vec2) Mod(size int) Vec2 {
	return Vec2{X: Mod(v.X, size), Z: Mod(v.Z, size)}
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dz := float64(v.Z - other.Z)
	return math.Sqrt(dx*dx + dz*dz)
}

// FloorDiv целочисленное деление с округлением вниз, в том числе для отрицательных a
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Mod возвращает остаток в диапазоне [0, b)
func Mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
