package biome

import "sort"

// CurveKey опорная точка кривой
type CurveKey struct {
	T float64 `yaml:"t"`
	V float64 `yaml:"v"`
}

// Curve кусочно-линейная кривая. Вне диапазона ключей значение зажимается крайними ключами.
// Пустая кривая ведёт себя как тождественная функция.
type Curve struct {
	Keys []CurveKey `yaml:"keys"`
}

// LinearCurve кривая через (t0,v0) и (t1,v1)
func LinearCurve(t0, v0, t1, v1 float64) Curve {
	return Curve{Keys: []CurveKey{{T: t0, V: v0}, {T: t1, V: v1}}}
}

// Identity тождественная кривая на [0,1]
func Identity() Curve {
	return LinearCurve(0, 0, 1, 1)
}

// Evaluate возвращает значение кривой в точке t
func (c Curve) Evaluate(t float64) float64 {
	keys := c.Keys
	switch len(keys) {
	case 0:
		return t
	case 1:
		return keys[0].V
	}

	if t <= keys[0].T {
		return keys[0].V
	}
	last := keys[len(keys)-1]
	if t >= last.T {
		return last.V
	}

	i := sort.Search(len(keys), func(i int) bool { return keys[i].T > t })
	a, b := keys[i-1], keys[i]
	if b.T == a.T {
		return b.V
	}
	w := (t - a.T) / (b.T - a.T)
	return a.V + (b.V-a.V)*w
}

// Normalize сортирует ключи по T
func (c *Curve) Normalize() {
	sort.SliceStable(c.Keys, func(i, j int) bool { return c.Keys[i].T < c.Keys[j].T })
}
