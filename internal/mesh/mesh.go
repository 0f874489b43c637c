package mesh

import (
	"bufio"
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl32"
)

// Mesh поток треугольников: вершины 3k, 3k+1, 3k+2 образуют треугольник k.
// Индексы неявные.
type Mesh struct {
	Vertices []mgl32.Vec3
	UVs      []mgl32.Vec2
}

// TriangleCount число треугольников
func (m *Mesh) TriangleCount() int {
	if m == nil {
		return 0
	}
	return len(m.Vertices) / 3
}

// Empty true, если в сетке нет ни одного треугольника
func (m *Mesh) Empty() bool {
	return m.TriangleCount() == 0
}

// Indices возвращает явный список индексов 0..n-1 для API, которым он нужен
func (m *Mesh) Indices() []uint32 {
	out := make([]uint32, len(m.Vertices))
	for i := range out {
		out[i] = uint32(i)
	}
	return out
}

// WriteOBJ выгружает сетку в формате Wavefront OBJ, смещая вершины на origin
func (m *Mesh) WriteOBJ(w io.Writer, origin mgl32.Vec3) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# triangles %d\n", m.TriangleCount())
	for _, v := range m.Vertices {
		p := v.Add(origin)
		fmt.Fprintf(bw, "v %.4f %.4f %.4f\n", p.X(), p.Y(), p.Z())
	}
	for _, uv := range m.UVs {
		fmt.Fprintf(bw, "vt %.4f %.4f\n", uv.X(), uv.Y())
	}
	// OBJ нумерует вершины с 1
	indices := m.Indices()
	for k := 0; k+2 < len(indices); k += 3 {
		a, b, c := indices[k]+1, indices[k+1]+1, indices[k+2]+1
		fmt.Fprintf(bw, "f %d/%d %d/%d %d/%d\n", a, a, b, b, c, c)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("ошибка записи OBJ: %w", err)
	}
	return nil
}
