package biome

import (
	"fmt"
	"math"

	"github.com/annel0/voxel-terrain/internal/noise"
	"github.com/annel0/voxel-terrain/internal/vec"
	"github.com/annel0/voxel-terrain/internal/world/voxel"
)

// Kind тип биома
type Kind string

const (
	Plains    Kind = "plains"
	Desert    Kind = "desert"
	Ice       Kind = "ice"
	Mountains Kind = "mountains"
)

// Context общие параметры генерации мира, нужные всем биомам
type Context struct {
	Sampler      *noise.Sampler
	IsoLevel     uint8
	SurfaceLevel int
}

// Biome описание биома. Заполнен ровно один из блоков настроек, соответствующий Kind.
type Biome struct {
	Kind        Kind         `yaml:"kind"`
	Noise       noise.Params `yaml:"noise"`
	HeightCurve Curve        `yaml:"height_curve"`

	Plains    *PlainsConfig    `yaml:"plains,omitempty"`
	Desert    *DesertConfig    `yaml:"desert,omitempty"`
	Ice       *IceConfig       `yaml:"ice,omitempty"`
	Mountains *MountainsConfig `yaml:"mountains,omitempty"`
}

// DefaultNoise параметры рельефа биома по умолчанию
func DefaultNoise() noise.Params {
	return noise.Params{Scale: 50, Octaves: 4, Persistence: 0.5, Lacunarity: 2}
}

// New создаёт биом указанного типа с настройками по умолчанию
func New(kind Kind) (Biome, error) {
	b := Biome{Kind: kind, Noise: DefaultNoise(), HeightCurve: Identity()}

	switch kind {
	case Plains:
		b.Plains = DefaultPlains()
	case Desert:
		b.Desert = DefaultDesert()
	case Ice:
		b.Ice = DefaultIce()
	case Mountains:
		b.Mountains = DefaultMountains()
	default:
		return Biome{}, fmt.Errorf("неизвестный биом: %q", kind)
	}

	return b, nil
}

// Defaults набор биомов мира по умолчанию, от верхнего порога появления к нижнему
func Defaults() []Biome {
	kinds := []Kind{Plains, Desert, Ice, Mountains}
	out := make([]Biome, 0, len(kinds))
	for _, k := range kinds {
		b, _ := New(k)
		out = append(out, b)
	}
	return out
}

// Validate проверяет тип и дополняет отсутствующие настройки значениями по умолчанию
func (b *Biome) Validate() error {
	switch b.Kind {
	case Plains:
		if b.Plains == nil {
			b.Plains = DefaultPlains()
		}
	case Desert:
		if b.Desert == nil {
			b.Desert = DefaultDesert()
		}
	case Ice:
		if b.Ice == nil {
			b.Ice = DefaultIce()
		}
	case Mountains:
		if b.Mountains == nil {
			b.Mountains = DefaultMountains()
		}
	default:
		return fmt.Errorf("неизвестный биом: %q", b.Kind)
	}
	b.HeightCurve.Normalize()
	return nil
}

// Generate строит сетку вершин чанка. merge содержит вес слияния (0..1) на каждую колонну.
func (b Biome) Generate(ctx Context, chunk vec.Vec2, merge []float32) voxel.Grid {
	switch b.Kind {
	case Plains:
		return b.generatePlains(ctx, chunk, merge)
	case Desert:
		return b.generateDesert(ctx, chunk, merge)
	case Ice:
		return b.generateIce(ctx, chunk, merge)
	case Mountains:
		return b.generateMountains(ctx, chunk, merge)
	}
	return voxel.NewGrid()
}

// surface возвращает вершину поверхности и её плотность для высоты h.
// Ниже вершины плотность 255, выше 0.
func surface(h float64, iso uint8) (int, uint8) {
	if h < 0 {
		h = 0
	}
	if h > voxel.MaxHeight-1 {
		h = voxel.MaxHeight - 1
	}
	top := math.Floor(h)
	frac := h - top
	weight := int(float64(255-int(iso))*frac + float64(iso))
	return int(top), uint8(weight)
}

// relief высота поверхности с учётом слияния биомов: при merge=0 равна уровню поверхности мира
func relief(surfaceLevel int, target float64, merge float32) float64 {
	return float64(surfaceLevel) + target*float64(merge)
}

func solid(mat uint8) voxel.Voxel {
	return voxel.Voxel{Density: 255, Material: mat}
}

var air = voxel.Voxel{Density: 0, Material: voxel.Air}
