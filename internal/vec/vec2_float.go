package vec

import "math"

// Vec2Float представляет координаты на плоскости XZ с плавающей точкой
type Vec2Float struct {
	X, Z float64
}

// Floor округляет координаты вниз
func (v Vec2Float) Floor() Vec2 {
	return Vec2{X: int(math.Floor(v.X)), Z: int(math.Floor(v.Z))}
}

// FromVec2 создает Vec2Float из Vec2
func FromVec2(v Vec2) Vec2Float {
	return Vec2Float{X: float64(v.X), Z: float64(v.Z)}
}

// Add складывает два вектора
func (v Vec2Float) Add(other Vec2Float) Vec2Float {
	return Vec2Float{X: v.X + other.X, Z: v.Z + other.Z}
}

// Sub вычитает вектор
func (v Vec2Float) Sub(other Vec2Float) Vec2Float {
	return Vec2Float{X: v.X - other.X, Z: v.Z - other.Z}
}

// Mul умножает вектор на скаляр
func (v Vec2Float) Mul(scalar float64) Vec2Float {
	return Vec2Float{X: v.X * scalar, Z: v.Z * scalar}
}

// Length возвращает длину вектора
func (v Vec2Float) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Z*v.Z)
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2Float) DistanceTo(other Vec2Float) float64 {
	return v.Sub(other).Length()
}
